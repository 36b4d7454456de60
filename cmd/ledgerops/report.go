package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/reclaim"
)

// printCandidates writes one line per reclaimable account and a total.
func printCandidates(w io.Writer, candidates []domain.ReclaimCandidate) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tMINT\tRENT (SOL)")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Address, c.Mint, c.RentSOL.StringFixed(9))
	}
	tw.Flush()

	summary := reclaim.Summarize(candidates)
	fmt.Fprintf(w, "\n%d reclaimable accounts, %s SOL locked\n", summary.Count, summary.RentSOL().StringFixed(9))
}

// printReport writes the per-outcome table and the reconciliation summary.
func printReport(w io.Writer, r *domain.BatchReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTATUS\tSOL\tDETAIL")
	for _, o := range r.Outcomes {
		switch v := o.(type) {
		case domain.ClosureSucceeded:
			fmt.Fprintf(tw, "%s\tclosed\t%s\t%s\n", v.Account, sol(v.RentRecovered), v.Signature)
		case domain.TransferSucceeded:
			fmt.Fprintf(tw, "%s\tsent\t%s\t%s\n", v.Destination, sol(v.Amount), v.ExplorerURL)
		case domain.Failed:
			detail := v.Error()
			if v.Signature != "" {
				detail += " (signature " + v.Signature + ", check before retrying)"
			}
			fmt.Fprintf(tw, "%s\tfailed at %s\t-\t%s\n", v.Address, v.Stage, detail)
		}
	}
	tw.Flush()

	fmt.Fprintf(w, "\nrun %s: %d targets, %d succeeded, %d failed, %d skipped\n",
		r.RunID, r.TotalTargets, r.Succeeded, r.Failed, r.Skipped)
	switch r.Kind {
	case domain.KindTransfer:
		fmt.Fprintf(w, "transferred: %s SOL\n", r.ValueSOL().StringFixed(9))
	default:
		fmt.Fprintf(w, "recovered:   %s SOL\n", r.ValueSOL().StringFixed(9))
	}
	if r.BalanceAfterKnown {
		fmt.Fprintf(w, "balance:     %s -> %s SOL\n", sol(r.BalanceBefore), sol(r.BalanceAfter))
		fmt.Fprintf(w, "incidental:  %s SOL\n", r.IncidentalCostSOL().StringFixed(9))
	} else {
		fmt.Fprintln(w, "balance after run unavailable; fees not reconciled")
	}
}

func sol(lamports uint64) string {
	return domain.LamportsToSOL(int64(lamports)).StringFixed(9)
}
