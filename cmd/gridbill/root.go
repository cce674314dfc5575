package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/account"
	"github.com/jgoulah/gridbill/internal/billing"
	"github.com/jgoulah/gridbill/internal/config"
	"github.com/jgoulah/gridbill/internal/database"
	"github.com/jgoulah/gridbill/internal/logging"
	"github.com/jgoulah/gridbill/internal/recordstore"
	"github.com/jgoulah/gridbill/internal/settings"
	"github.com/jgoulah/gridbill/internal/site"
	"github.com/jgoulah/gridbill/internal/snapshot"
	"github.com/jgoulah/gridbill/internal/ticker"
)

var (
	cfgFile  string
	dataDir  string
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gridbill",
	Short: "Bill homes, buildings and apartments for their monthly energy use",
	Long: `GridBill keeps a portfolio of energy-consuming sites in flat CSV tables, generates a
monthly usage report for every site and posts the resulting bills to each site's ledger.
Reports can be mirrored into a local SQLite database and published over MQTT.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default from config, then ./data)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "bill history database (default is <data>/gridbill.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// app holds the billing components wired over one data directory
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *recordstore.Store
	settings *settings.Settings
	accounts *account.Registry
	sites    *site.Graph
	engine   *billing.Engine
	ledger   *billing.Ledger
	reports  *snapshot.Store
	ticker   *ticker.Ticker
}

// openApp loads config and opens every table under the data directory
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.GetLogging())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := recordstore.Open(cfg.GetDataDir())
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	st, err := settings.Open(filepath.Join(store.Root(), settings.FileName))
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	accounts, err := account.Open(store, log.Named("account"))
	if err != nil {
		return nil, err
	}
	sites, err := site.Open(store, accounts, log.Named("site"))
	if err != nil {
		return nil, err
	}

	engine := billing.NewEngine(sites, st, billing.NewSource(), log.Named("billing"))
	ledger := billing.NewLedger(sites, accounts, st, log.Named("ledger"))
	reports := snapshot.New(store, sites, engine, ledger, log.Named("snapshot"))

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		settings: st,
		accounts: accounts,
		sites:    sites,
		engine:   engine,
		ledger:   ledger,
		reports:  reports,
		ticker:   ticker.New(st, reports, log.Named("ticker")),
	}, nil
}

// Close flushes the logger
func (a *app) Close() {
	_ = a.log.Sync()
}

// openDB opens the bill history database
func (a *app) openDB() (*database.DB, error) {
	path := a.cfg.GetDatabasePath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}
