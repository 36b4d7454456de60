// Package main provides the ledgerops CLI:
// - scan: list reclaimable token accounts of the wallet
// - reclaim: close them in batches and recover their rent
// - transfer: send lamports to a list of destinations in batches
// - migrate: apply the run ledger schema
// - outcomes: look up recorded outcomes by signature
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-ledger-ops/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Resolved in PersistentPreRunE
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledgerops",
	Short: "Batched rent reclamation and transfers for a Solana wallet",
	Long: `ledgerops runs ledger operations for one wallet in small concurrent
batches: closing empty token accounts to recover their rent deposit, and
sending lamports to many destinations.

Every target is attempted once. The final report reconciles the wallet
balance delta against the outcomes; the difference is the fees paid.

Settings are read from --config (or ledgerops.yaml), then LEDGEROPS_*
environment variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, &cfg); err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default: ledgerops.yaml if present)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.DurationVar(&timeout, "timeout", 0, "Abort between batches after this long (0 = no limit)")

	pf.String("rpc-url", "", "Solana JSON-RPC endpoint")
	pf.String("ws-url", "", "Solana WebSocket endpoint for confirmations")
	pf.String("cluster", "", "Explorer cluster: mainnet-beta, devnet, testnet")
	pf.String("keypair", "", "Wallet keypair file (JSON byte array or base58)")
	pf.String("commitment", "", "Target commitment: processed, confirmed, finalized")
	pf.Int("batch-size", 0, "Operations per concurrent batch")
	pf.Duration("batch-delay", 0, "Pause between batches")
	pf.Int("max-retries", 0, "Send attempts per transaction")
	pf.Float64("rate-limit", 0, "RPC requests per second (0 = unlimited)")
	pf.String("postgres-dsn", "", "PostgreSQL run ledger DSN")
	pf.String("clickhouse-dsn", "", "ClickHouse analytics DSN")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9102")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reclaimCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(outcomesCmd)
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	strs := map[string]*string{
		"rpc-url":        &c.RPCEndpoint,
		"ws-url":         &c.WSEndpoint,
		"cluster":        &c.Cluster,
		"keypair":        &c.KeypairPath,
		"postgres-dsn":   &c.PostgresDSN,
		"clickhouse-dsn": &c.ClickhouseDSN,
		"metrics-addr":   &c.MetricsAddr,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	if flags.Changed("commitment") {
		v, _ := flags.GetString("commitment")
		var f config.File
		f.RPC.Commitment = v
		if err := config.Merge(c, f); err != nil {
			return err
		}
	}
	if flags.Changed("batch-size") {
		c.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("batch-delay") {
		c.BatchDelay, _ = flags.GetDuration("batch-delay")
	}
	if flags.Changed("max-retries") {
		c.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("rate-limit") {
		c.RateLimit, _ = flags.GetFloat64("rate-limit")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
