package main

import (
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List token accounts whose rent can be reclaimed",
	Long: `Lists the wallet's token accounts that hold zero tokens, with the
lamport deposit each would return when closed. Nothing is sent.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
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
	printCandidates(cmd.OutOrStdout(), candidates)
	return nil
}
