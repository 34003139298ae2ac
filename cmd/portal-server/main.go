package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/GYB356/healthcare-origin-sub000/internal/config"
	"github.com/GYB356/healthcare-origin-sub000/internal/domain/chat"
	"github.com/GYB356/healthcare-origin-sub000/internal/domain/notification"
	"github.com/GYB356/healthcare-origin-sub000/internal/platform/auth"
	"github.com/GYB356/healthcare-origin-sub000/internal/platform/crypto"
	"github.com/GYB356/healthcare-origin-sub000/internal/platform/db"
	"github.com/GYB356/healthcare-origin-sub000/internal/platform/middleware"
	"github.com/GYB356/healthcare-origin-sub000/internal/realtime"
)

// devEncryptionKey is used when no MESSAGE_ENCRYPTION_KEY is configured.
// Config validation rejects a missing key outside development.
var devEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Patient portal messaging and notification server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ran, err := db.NewMigrator(pool).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", len(ran))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Message encryption
	keyBytes, err := cfg.EncryptionKey()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid MESSAGE_ENCRYPTION_KEY")
	}
	if keyBytes == nil {
		logger.Warn().Msg("MESSAGE_ENCRYPTION_KEY not set; using a fixed development key")
		keyBytes = devEncryptionKey
	}
	encryptor, err := crypto.NewMessageEncryptor(keyBytes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create message encryptor")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
	}

	// REST API group. Identity middleware runs only here; the websocket
	// endpoint authenticates during the upgrade handshake instead.
	api := e.Group("/api")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Services
	notifSvc := notification.NewService(notification.NewRepoPG(pool), logger)
	chatSvc := chat.NewService(
		chat.NewMessageRepoPG(pool),
		chat.NewConversationRepoPG(pool),
		encryptor,
		cfg.PreviewLength,
		logger,
	)

	// Realtime channel. The notification service broadcasts through the
	// channel and the channel persists through the notification service,
	// so the broadcaster is attached after construction.
	channel := realtime.NewChannel(
		realtime.NewHub(logger),
		realtime.NewPresenceRegistry(),
		chatSvc,
		notifSvc,
		logger,
	)
	notifSvc.SetBroadcaster(channel)

	// Handlers
	chatHandler := chat.NewHandler(chatSvc, channel)
	chatHandler.RegisterRoutes(api)

	notifHandler := notification.NewHandler(notifSvc)
	notifHandler.RegisterRoutes(api)

	var wsAuth realtime.Authenticator
	if cfg.IsDev() {
		wsAuth = func(c echo.Context) (string, string, error) {
			return "dev-user", "Dev User", nil
		}
	} else {
		wsAuth = func(c echo.Context) (string, string, error) {
			token := auth.TokenFromWSRequest(c.Request())
			if token == "" {
				return "", "", fmt.Errorf("missing token")
			}
			claims, err := auth.Verify(jwtCfg, token)
			if err != nil {
				return "", "", err
			}
			return claims.Subject, claims.DisplayName, nil
		}
	}
	rtHandler := realtime.NewHandler(channel, wsAuth, cfg.WSSendBuffer, logger)
	rtHandler.RegisterRoutes(e)
	rtHandler.RegisterAPIRoutes(api)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
