// Package server provides the HTTP server fronting the review service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/reviewsense/ai/metrics"
	"github.com/hrygo/reviewsense/ai/review"
	"github.com/hrygo/reviewsense/internal/profile"
	apiv1 "github.com/hrygo/reviewsense/server/router/api/v1"
	"github.com/hrygo/reviewsense/store"
)

type Server struct {
	echoServer *echo.Echo

	Profile *profile.Profile
	Store   *store.Store
}

// NewServer creates the HTTP server and registers routes. The review index
// is probed once here: a missing index is a warning, not a hard failure,
// and the service runs degraded until the index is provisioned.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store, reviewService *review.Service, exporter *metrics.Exporter) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echoServer: e,
		Profile:    profile,
		Store:      st,
	}

	exists, err := st.IndexExists(ctx)
	if err != nil {
		slog.Warn("failed to probe review index, continuing degraded", "error", err)
	} else if exists {
		slog.Info("review index is available", "index", st.Schema().Name)
	} else {
		slog.Warn("review index not found, some features may not work; run `reviewsense create-index`",
			"index", st.Schema().Name)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	reviewAPI := apiv1.NewReviewService(reviewService)
	reviewAPI.Register(e)

	return s, nil
}

func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	return s.echoServer.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}

	slog.Info("reviewsense stopped properly")
}
