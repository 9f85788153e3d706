// Package app wires configuration, storage, clients, and services into
// the shared core used by cmd/lares-server.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hbarro/lares/internal/auth"
	"github.com/hbarro/lares/internal/clients/brapi"
	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/services/budget"
	"github.com/hbarro/lares/internal/services/invoice"
	"github.com/hbarro/lares/internal/services/investment"
	"github.com/hbarro/lares/internal/services/ledger"
	"github.com/hbarro/lares/internal/services/recurring"
	"github.com/hbarro/lares/internal/storage/surrealdb"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	QuoteClient interfaces.QuoteClient
	AuthWatcher interfaces.AuthWatcher

	Ledger      interfaces.LedgerService
	Invoices    interfaces.InvoiceService
	Recurring   interfaces.RecurringService
	Investments interfaces.InvestmentService
	Budgets     interfaces.BudgetService

	StartupTime time.Time

	maintenanceStop func()
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, LARES_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("LARES_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "lares.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/lares.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var quoteClient interfaces.QuoteClient
	if config.Clients.Brapi.Token != "" {
		opts := []brapi.ClientOption{
			brapi.WithLogger(logger),
			brapi.WithRateLimit(config.Clients.Brapi.RateLimit),
			brapi.WithTimeout(config.Clients.Brapi.GetTimeout()),
		}
		if config.Clients.Brapi.BaseURL != "" {
			opts = append(opts, brapi.WithBaseURL(config.Clients.Brapi.BaseURL))
		}
		quoteClient = brapi.NewClient(config.Clients.Brapi.Token, opts...)
	} else {
		logger.Warn().Msg("brapi token not configured - portfolio valuation will price at cost")
	}

	ledgerService := ledger.NewService(storageManager, logger)
	invoiceService := invoice.NewService(storageManager, logger)
	recurringService := recurring.NewService(storageManager, invoiceService, logger)
	investmentService := investment.NewService(storageManager, quoteClient, logger)
	budgetService := budget.NewService(storageManager, logger)

	watcher := auth.NewSessionWatcher(logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		QuoteClient: quoteClient,
		AuthWatcher: watcher,
		Ledger:      ledgerService,
		Invoices:    invoiceService,
		Recurring:   recurringService,
		Investments: investmentService,
		Budgets:     budgetService,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop maintenance subscriber, close storage.
func (a *App) Close() {
	if a.maintenanceStop != nil {
		a.maintenanceStop()
		a.maintenanceStop = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
