// Package v1 provides the JSON API for review submission and generation.
package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/reviewsense/ai/review"
)

type ReviewService struct {
	reviews *review.Service
}

func NewReviewService(reviews *review.Service) *ReviewService {
	return &ReviewService{reviews: reviews}
}

// Register mounts the review routes on the echo server.
func (s *ReviewService) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/reviews", s.SubmitReview)
	g.POST("/reviews/generate", s.GenerateReview)
}

type submitReviewResponse struct {
	Message string `json:"message"`
}

// SubmitReview ingests a user-submitted review.
func (s *ReviewService) SubmitReview(c echo.Context) error {
	data := &review.ReviewData{}
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if strings.TrimSpace(data.ProductName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please enter a product name.")
	}
	if strings.TrimSpace(data.ProductReview) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please enter the review text.")
	}

	message, err := s.reviews.Ingest(c.Request().Context(), data)
	if err != nil {
		slog.Error("failed to store review", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to store review.").SetInternal(err)
	}

	return c.JSON(http.StatusCreated, submitReviewResponse{Message: message})
}

type generateReviewRequest struct {
	ProductName string `json:"product_name"`
}

// GenerateReview runs the generation pipeline for a product.
func (s *ReviewService) GenerateReview(c echo.Context) error {
	req := &generateReviewRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if strings.TrimSpace(req.ProductName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please enter a product name to search.")
	}

	generated, err := s.reviews.Generate(c.Request().Context(), req.ProductName)
	if err != nil {
		slog.Error("failed to generate review", "product", req.ProductName, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to generate review.").SetInternal(err)
	}

	return c.JSON(http.StatusOK, generated)
}
