package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"solana-ledger-ops/internal/storage/migrations"
	pgstore "solana-ledger-ops/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the run ledger tables",
	Long: `Applies the embedded schema to the configured PostgreSQL and/or
ClickHouse databases. Safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "" {
		return fmt.Errorf("nothing to migrate: set --postgres-dsn and/or --clickhouse-dsn")
	}

	ctx, cancel := commandContext()
	defer cancel()

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithApplicationName("ledgerops"))
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			return err
		}
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	fmt.Fprintln(cmd.OutOrStdout(), "run ledger schema is up to date")
	return nil
}
