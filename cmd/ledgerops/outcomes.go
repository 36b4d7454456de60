package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solana-ledger-ops/internal/storage"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes <signature>",
	Short: "Look up recorded outcomes by transaction signature",
	Long: `Searches the run ledger for outcomes that carry the given signature.
Use it before resubmitting a failure that was already sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutcomes,
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.svc.PriorOutcomes(ctx, args[0])
	if err != nil {
		return err
	}
	printOutcomeRecords(cmd.OutOrStdout(), records)
	return nil
}

func printOutcomeRecords(w io.Writer, records []*storage.OutcomeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no recorded outcomes")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tTARGET\tSTAGE\tSOL\tREASON")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.RunID, r.Kind, r.Target, r.Stage, sol(r.ValueLamports), r.Reason)
	}
	tw.Flush()
}
