// Command looksd serves the entitlements API and carries the operator
// subcommands (migrate, ensure, verify-ledger, unresolved).
//
// @title                       Looks Entitlements API
// @version                     1.0
// @description                 Entitlements, credit ledger, billing webhooks and offer decisions for the looks app.
// @BasePath                    /api/v1
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
//
// @securityDefinitions.apikey  WebhookSecret
// @in                          header
// @name                        X-Webhook-Secret
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/billing"
	"github.com/tbourn/looks-entitlements/internal/catalog"
	"github.com/tbourn/looks-entitlements/internal/config"
	"github.com/tbourn/looks-entitlements/internal/repo"
	"github.com/tbourn/looks-entitlements/internal/services"
	"github.com/tbourn/looks-entitlements/internal/sysutil"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const serviceName = "looksd"

var envFile string

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "Looks entitlements service",
	Long:          `looksd keeps subscription state and the looks credit ledger in sync with the billing platform and decides which upgrade offer to show.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", serviceName, Version)
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(verifyLedgerCmd)
	rootCmd.AddCommand(unresolvedCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *gorm.DB
	catalog *catalog.Catalog
	billing services.SubscriberLookup
}

// bootstrap loads configuration, sets up logging and opens the database.
// Callers own closing the database through the returned cleanup.
func bootstrap(ctx context.Context) (*app, func(), error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	sysutil.SetLogLevel(cfg.Log.Level)
	pretty := sysutil.PrettyAllowed(cfg.Log.Pretty, os.Getenv("NO_COLOR"))
	lg := sysutil.NewLogger(os.Stderr, pretty, cfg.OTEL.ServiceName)
	zerolog.DefaultContextLogger = &lg

	driver, dsn := cfg.Storage.Target()
	db, err := repo.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load catalog: %w", err)
		}
	}

	a := &app{cfg: cfg, log: lg, db: db, catalog: cat}
	if cfg.Billing.APIKey != "" {
		a.billing = billing.NewClient(cfg.Billing.BaseURL, cfg.Billing.APIKey, cfg.Billing.Timeout)
	} else {
		lg.Warn().Msg("BILLING_API_KEY not set; entitlement recovery is disabled")
	}
	return a, cleanup, nil
}

// ledger returns a LedgerService bound to the app database.
func (a *app) ledger() *services.LedgerService {
	return &services.LedgerService{DB: a.db, SpendKeyTTL: a.cfg.IdempotencyTTL}
}

// ctx attaches the app logger so services log through it.
func (a *app) ctx(ctx context.Context) context.Context {
	return a.log.WithContext(ctx)
}
