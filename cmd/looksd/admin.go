package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/looks-entitlements/internal/repo"
	"github.com/tbourn/looks-entitlements/internal/services"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		if err := repo.AutoMigrate(a.db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.log.Info().Str("driver", a.cfg.Storage.Driver).Msg("schema up to date")
		return nil
	},
}

var ensureUser string

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Reconcile one user's entitlement with the billing platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(ensureUser) == "" {
			return fmt.Errorf("--user is required")
		}
		a, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		svc := &services.EntitlementService{
			DB:            a.db,
			Billing:       a.billing,
			Catalog:       a.catalog,
			Ledger:        a.ledger(),
			EntitlementID: a.cfg.Billing.EntitlementID,
		}
		snap, err := svc.Ensure(a.ctx(cmd.Context()), ensureUser)
		if err != nil {
			return err
		}
		return printJSON(snap)
	},
}

var (
	verifyUser     string
	verifyPageSize int
)

var verifyLedgerCmd = &cobra.Command{
	Use:   "verify-ledger",
	Short: "Compare both credit ledger locations and repair drifted mirrors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		ctx := a.ctx(cmd.Context())
		ledger := a.ledger()

		if verifyUser != "" {
			repaired, err := ledger.Verify(ctx, verifyUser)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"user_id": verifyUser, "repaired": repaired})
		}
		repaired, err := ledger.VerifyAll(ctx, verifyPageSize)
		if err != nil {
			return err
		}
		if repaired == nil {
			repaired = []string{}
		}
		return printJSON(map[string]any{"repaired": repaired})
	},
}

var (
	unresolvedSubscriber string
	unresolvedLimit      int
)

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List billing events whose subscriber could not be linked to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		evs, err := repo.ListUnresolvedEvents(cmd.Context(), a.db, unresolvedSubscriber, unresolvedLimit)
		if err != nil {
			return err
		}
		return printJSON(evs)
	},
}

func init() {
	ensureCmd.Flags().StringVar(&ensureUser, "user", "", "durable user id to reconcile")
	verifyLedgerCmd.Flags().StringVar(&verifyUser, "user", "", "verify a single user (default: every user)")
	verifyLedgerCmd.Flags().IntVar(&verifyPageSize, "page-size", 500, "rows scanned per page")
	unresolvedCmd.Flags().StringVar(&unresolvedSubscriber, "subscriber", "", "only events for this subscriber id")
	unresolvedCmd.Flags().IntVar(&unresolvedLimit, "limit", 50, "maximum events listed")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
