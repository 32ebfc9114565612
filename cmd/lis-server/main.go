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

	"github.com/labgate/labgate/internal/config"
	"github.com/labgate/labgate/internal/domain/analyzer"
	"github.com/labgate/labgate/internal/domain/faults"
	"github.com/labgate/labgate/internal/domain/ingest"
	"github.com/labgate/labgate/internal/domain/mapping"
	"github.com/labgate/labgate/internal/domain/validation"
	"github.com/labgate/labgate/internal/platform/auth"
	"github.com/labgate/labgate/internal/platform/db"
	"github.com/labgate/labgate/internal/platform/middleware"
	"github.com/labgate/labgate/internal/platform/plugin"
	"github.com/labgate/labgate/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lis-server",
		Short: "Laboratory analyzer result ingestion server",
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
		Short: "Start the ingestion server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	registry, err := plugin.NewRegistry(plugin.Builtin()...)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid plugin registry")
	}

	metrics := telemetry.NewMetrics()

	// Repositories and services
	analyzerSvc := analyzer.NewService(analyzer.NewRepoPG(pool))
	ruleRepo := validation.NewRepoPG(pool)
	validationSvc := validation.NewService(ruleRepo)
	engine := validation.NewEngine(ruleRepo)
	mappingRepo := mapping.NewRepoPG(pool)
	dictRepo := mapping.NewDictionaryRepoPG(pool)
	mappingSvc := mapping.NewService(mappingRepo, dictRepo)
	resolver := mapping.NewResolver(mappingRepo, dictRepo, engine)
	faultsRepo := faults.NewRepoPG(pool)
	recorder := faults.NewRecorder(faultsRepo, logger, metrics)

	// Pipeline
	orchestrator := ingest.NewOrchestrator(
		&db.PoolTxRunner{Pool: pool},
		ingest.NewAuditRepoPG(pool),
		ingest.NewAnalysisLookupPG(pool),
		ingest.NewResultWriterPG(pool),
		ingest.NewQCResultServicePG(pool),
	)
	reflexRules := ingest.NewReflexRuleRepoPG(pool)
	reflex := ingest.NewReflexEvaluator(reflexRules, ingest.NewReflexOrderRequesterPG(pool), logger)
	pipeline := ingest.NewPipeline(registry, analyzerSvc, resolver, orchestrator, reflex, recorder, metrics, logger)
	pool2 := ingest.NewPool(pipeline, cfg.IngestWorkers, cfg.IngestQueueSize, logger)
	defer pool2.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", ingest.ProtocolHintHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(cfg.AuthSecret))
	}

	// Configuration mutation requires the admin role; ingestion and the
	// error list are operator surfaces.
	adminGroup := apiV1.Group("", auth.RequireRole(auth.RoleAdmin))
	analyzer.NewHandler(analyzerSvc).RegisterRoutes(adminGroup)
	mapping.NewHandler(mappingSvc).RegisterRoutes(adminGroup)
	validation.NewHandler(validationSvc).RegisterRoutes(adminGroup)

	operatorGroup := apiV1.Group("", auth.RequireRole(auth.RoleOperator))
	ingest.NewHandler(pipeline, pool2, reflexRules).RegisterRoutes(operatorGroup)
	faults.NewHandler(faultsRepo).RegisterRoutes(operatorGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting lis-server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	pool2.Close()
	return nil
}
