package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/auth"
	"tweet-quiz-service/internal/config"
	"tweet-quiz-service/internal/content"
	"tweet-quiz-service/internal/domain"
	"tweet-quiz-service/internal/infra/memory"
	"tweet-quiz-service/internal/infra/postgres"
	redisinfra "tweet-quiz-service/internal/infra/redis"
	transport "tweet-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.ItemLoader
	if pool != nil {
		loader = postgres.NewItemStore(pool)
	} else {
		items, err := loadContent(cfg)
		if err != nil {
			return err
		}
		loader = content.NewStaticLoader(items)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var items app.ItemRepository
	if redisClient != nil {
		items = redisinfra.NewItemRepository(redisClient, loader, contentTTL)
	} else {
		items = memory.NewItemRepository(loader, contentTTL)
	}

	var profiles app.ProfileService
	if cfg.Postgres.URL != "" {
		db := openBun(cfg)
		defer db.Close()
		profiles = postgres.NewProfileService(db)
	} else {
		logger.Warn("postgres not configured; profiles are kept in memory")
		profiles = memory.NewProfileService()
	}

	wsCfg := transport.WSConfig{
		Items:          items,
		Profiles:       profiles,
		OAuth:          auth.GoogleConfig(cfg.Auth.Google.ClientID, cfg.Auth.Google.ClientSecret, cfg.Auth.Google.RedirectURL),
		Registry:       auth.NewRegistry(config.TTLDuration(cfg.Auth.StateTTL, 10*time.Minute)),
		Target:         targetName(cfg),
		RateLimit:      rate.Limit(cfg.RateLimit.PerSecond),
		Burst:          cfg.RateLimit.Burst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}
	wsCfg.Verifier, err = newVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		wsCfg.NewCache = func(deviceID string) app.LocalCache {
			return redisinfra.NewLocalCache(redisClient, deviceID, redisTTL)
		}
		wsCfg.NewSessionStore = func(deviceID string) auth.SessionStore {
			return redisinfra.NewSessionStore(redisClient, deviceID, redisTTL)
		}
	} else {
		caches := memory.NewDeviceCaches()
		wsCfg.NewCache = func(deviceID string) app.LocalCache {
			return caches.For(deviceID)
		}
	}
	if wsCfg.OAuth == nil && wsCfg.Verifier == nil {
		logger.Warn("no identity provider configured; running local-only")
	}

	wsHandler := transport.NewWSHandler(wsCfg)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(wsHandler, items, wsCfg.Registry, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadContent returns the configured content file, or the embedded set.
func loadContent(cfg config.Config) ([]domain.QuizItem, error) {
	if cfg.Content.File != "" {
		return content.LoadFile(cfg.Content.File)
	}
	return content.Default(), nil
}

func targetName(cfg config.Config) string {
	if cfg.Game.Target != "" {
		return cfg.Game.Target
	}
	return domain.DefaultTarget
}

// newVerifier prefers Firebase ID tokens and falls back to the shared-secret verifier.
func newVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	if cfg.Auth.FirebaseCredentials != "" {
		return auth.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseCredentials)
	}
	if cfg.Auth.JWTSecret != "" {
		return auth.NewHMACVerifier(cfg.Auth.JWTSecret, jwtIssuer(cfg))
	}
	return nil, nil
}

func jwtIssuer(cfg config.Config) string {
	if cfg.Auth.JWTIssuer != "" {
		return cfg.Auth.JWTIssuer
	}
	return "tweet-quiz"
}
