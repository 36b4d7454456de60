package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reclaimDryRun bool

var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Close empty token accounts and recover their rent",
	Long: `Scans the wallet, then closes every zero-balance token account in
concurrent batches. Each account is re-read right before its closure; one
that received tokens since the scan is left open.

Interrupting stops before the next batch; closures already sent finish.`,
	Args: cobra.NoArgs,
	RunE: runReclaim,
}

func init() {
	reclaimCmd.Flags().BoolVar(&reclaimDryRun, "dry-run", false, "Scan and print candidates without closing")
}

func runReclaim(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	candidates, err := rt.svc.ScanReclaimable(ctx)
	if err != nil {
		return err
	}
	if reclaimDryRun || len(candidates) == 0 {
		printCandidates(cmd.OutOrStdout(), candidates)
		return nil
	}

	report, err := rt.svc.Reclaim(ctx, candidates)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		logger.Warn("reclaim interrupted", zap.Error(err))
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d closures failed", report.Failed, report.TotalTargets)
	}
	return nil
}
