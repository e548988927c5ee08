package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/migrations"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.MigrationURL(), migrations.FS, log); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewLedgerEventPublisher(rmq, cfg.RabbitMQ.Exchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize store and services
	store := repository.NewPostgresStore(db, log)
	alerts := service.NewAlertEvaluator(store, publisher, log)
	ledger := service.NewLedger(store, alerts, publisher, log)
	catalog := service.NewCatalog(store, ledger, alerts, publisher, domain.NewSKUGenerator(), cfg.Ledger.TransactionListLimit, log)
	reconciler := service.NewReconciler(store, catalog, ledger, service.NewDepotPolicy(nil), service.DepotDefaults{
		Name:     cfg.Ledger.DefaultDepotName,
		Location: cfg.Ledger.DefaultDepotLocation,
		Capacity: cfg.Ledger.ImportDepotCapacity,
	}, log)
	scheduler := service.NewAlertScheduler(alerts, store, cfg.Ledger.AlertScanInterval, log)

	// Initialize handlers
	handlers := &handler.Handlers{
		Stock:    handler.NewStockHandler(ledger, log),
		Products: handler.NewProductHandler(catalog, log),
		Depots:   handler.NewDepotHandler(catalog, log),
		Alerts:   handler.NewAlertHandler(alerts, log),
		Import:   handler.NewImportHandler(reconciler, log),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)

	auth := httputil.NewAuthenticator(&cfg.JWT)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", handler.HeaderIdempotencyKey},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		dbHealth := db.Health(r.Context())
		mqHealth := rmq.Health()

		code, status := http.StatusOK, "healthy"
		if dbHealth["status"] != "up" || mqHealth["status"] != "up" {
			code, status = http.StatusServiceUnavailable, "degraded"
		}
		httputil.JSON(w, code, map[string]interface{}{
			"status":   status,
			"service":  "inventory-service",
			"database": dbHealth,
			"rabbitmq": mqHealth,
		})
	})

	// API routes
	r.Route("/api/v1/inventory", handlers.Routes)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the alert scan before the store goes away
	cancel()
	scheduler.Stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
