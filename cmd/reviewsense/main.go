package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/reviewsense/ai"
	aicache "github.com/hrygo/reviewsense/ai/cache"
	"github.com/hrygo/reviewsense/ai/metrics"
	"github.com/hrygo/reviewsense/ai/review"
	"github.com/hrygo/reviewsense/internal/profile"
	"github.com/hrygo/reviewsense/internal/version"
	"github.com/hrygo/reviewsense/server"
	"github.com/hrygo/reviewsense/store"
	"github.com/hrygo/reviewsense/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "reviewsense",
	Short: `A product review service: submit reviews, get generated reviews synthesizing product knowledge with stored user feedback.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory; absence is fine.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile, err := loadProfile()
		if err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		storeInstance, reviewService, exporter, err := buildServices(instanceProfile)
		if err != nil {
			slog.Error("failed to initialize services", "error", err)
			os.Exit(1)
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, reviewService, exporter)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			os.Exit(1)
		}

		c := make(chan os.Signal, 1)
		// The default signal sent by `kill` is SIGTERM, which is the
		// graceful shutdown signal for most systems, e.g. Kubernetes.
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}

		<-ctx.Done()
	},
}

var createIndexCmd = &cobra.Command{
	Use:   "create-index",
	Short: "Create (or overwrite) the review index with the declared schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			return err
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		defer storeInstance.Close()

		overwrite := viper.GetBool("overwrite")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := storeInstance.CreateIndex(ctx, overwrite); err != nil {
			return err
		}
		fmt.Printf("Index %q created successfully\n", storeInstance.Schema().Name)
		return nil
	},
}

// loadProfile assembles and validates the instance configuration from
// flags and environment.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}

	// The index schema and the embedder must agree on dimensionality;
	// a mismatch is a fatal misconfiguration.
	if err := store.ReviewIndexSchema().Validate(instanceProfile.EmbeddingDimensions); err != nil {
		return nil, err
	}

	return instanceProfile, nil
}

// buildServices constructs the store, caches, AI services and the review
// service, passing all handles down explicitly.
func buildServices(instanceProfile *profile.Profile) (*store.Store, *review.Service, *metrics.Exporter, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, nil, nil, err
	}
	storeInstance := store.New(dbDriver, instanceProfile)

	aiConfig := ai.NewConfigFromProfile(instanceProfile)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, nil, err
	}

	embeddingService, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		return nil, nil, nil, err
	}
	llmService, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return nil, nil, nil, err
	}

	// Warm up the LLM connection asynchronously; best effort.
	go func() {
		warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer warmupCancel()
		llmService.Warmup(warmupCtx)
	}()

	// Caches live in Redis. An unreachable Redis is a warning, not a hard
	// failure: the service runs with caching disabled.
	var (
		embedCache    *aicache.EmbeddingsCache
		responseCache review.ResponseCache
	)
	redisCfg := aicache.DefaultRedisConfig()
	redisCfg.Addr = instanceProfile.RedisAddr()
	redisCfg.Password = instanceProfile.RedisPassword
	redisCfg.DB = instanceProfile.RedisDB
	redisClient, err := aicache.NewRedisClient(redisCfg)
	if err != nil {
		slog.Warn("redis unavailable, running without caches", "addr", redisCfg.Addr, "error", err)
	} else {
		embedCache = aicache.NewEmbeddingsCache(redisClient)
		responseCache = aicache.NewSemanticCache(redisClient, aicache.SemanticCacheConfig{
			DistanceThreshold: aiConfig.Cache.DistanceThreshold,
			TTL:               aiConfig.Cache.TTL,
		})
	}

	embedder := ai.NewCachedEmbedder(embeddingService, embedCache, aiConfig.Embedding.Model)
	exporter := metrics.NewExporter(metrics.DefaultConfig())
	reviewService := review.NewService(storeInstance, embedder, llmService, responseCache, exporter)

	return storeInstance, reviewService, exporter, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28091, "port of server")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	createIndexCmd.Flags().Bool("overwrite", true, "drop and recreate the index if it already exists")
	if err := viper.BindPFlag("overwrite", createIndexCmd.Flags().Lookup("overwrite")); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(createIndexCmd)

	viper.SetEnvPrefix("reviewsense")
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("ReviewSense %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
