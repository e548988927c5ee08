package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Stock ledger maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newImportHistoryCmd(),
		newScanAlertsCmd(),
		newTailCmd(),
		newTokenCmd(),
	)
	return root
}

// app holds the services a command needs. Close releases connections.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	rmq        *messaging.RabbitMQ
	store      *repository.PostgresStore
	alerts     *service.AlertEvaluator
	ledger     *service.Ledger
	catalog    *service.Catalog
	reconciler *service.Reconciler
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load("stockctl")
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New("stockctl", cfg.Server.Environment), nil
}

// newApp connects to the database and, when available, the broker.
// Without a broker the ledger still commits; events are dropped.
func newApp() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db}

	publisher := events.NewWithSink(nil, log)
	if rmq, err := messaging.New(&cfg.RabbitMQ, log); err != nil {
		log.Warn().Err(err).Msg("broker unavailable, ledger events will not be published")
	} else {
		a.rmq = rmq
		if publisher, err = events.NewLedgerEventPublisher(rmq, cfg.RabbitMQ.Exchange, log); err != nil {
			a.Close()
			return nil, fmt.Errorf("create publisher: %w", err)
		}
	}

	a.store = repository.NewPostgresStore(db, log)
	a.alerts = service.NewAlertEvaluator(a.store, publisher, log)
	a.ledger = service.NewLedger(a.store, a.alerts, publisher, log)
	a.catalog = service.NewCatalog(a.store, a.ledger, a.alerts, publisher, domain.NewSKUGenerator(), cfg.Ledger.TransactionListLimit, log)
	a.reconciler = service.NewReconciler(a.store, a.catalog, a.ledger, service.NewDepotPolicy(nil), service.DepotDefaults{
		Name:     cfg.Ledger.DefaultDepotName,
		Location: cfg.Ledger.DefaultDepotLocation,
		Capacity: cfg.Ledger.ImportDepotCapacity,
	}, log)
	return a, nil
}

func (a *app) Close() {
	if a.rmq != nil {
		a.rmq.Close()
	}
	a.db.Close()
}
