package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-ledger-ops/internal/domain"
)

var (
	transferFile         string
	transferUnitPrice    uint64
	transferComputeLimit uint32
)

var transferCmd = &cobra.Command{
	Use:   "transfer [destination:amountSOL ...]",
	Short: "Send SOL to one or more destinations",
	Long: `Sends lamports from the wallet to each destination in concurrent
batches. Every transfer is simulated first and only sent if the dry run
passes. Transfers are never resent with a new blockhash: a failure that
carries a signature may still land and must be checked before retrying.

Example:
  ledgerops transfer 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM:0.25
  ledgerops transfer --file payouts.txt`,
	RunE: runTransfer,
}

func init() {
	f := transferCmd.Flags()
	f.StringVarP(&transferFile, "file", "f", "", "Read destination:amount lines from file ('-' for stdin)")
	f.Uint64Var(&transferUnitPrice, "priority-fee", 0, "Compute unit price in micro-lamports")
	f.Uint32Var(&transferComputeLimit, "compute-limit", 0, "Compute unit limit")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	fee := cfg.Fee()
	if cmd.Flags().Changed("priority-fee") {
		fee.UnitPriceMicroLamports = &transferUnitPrice
	}
	if cmd.Flags().Changed("compute-limit") {
		fee.UnitLimit = &transferComputeLimit
	}

	requests, err := parseTransfers(args, fee)
	if err != nil {
		return err
	}
	if transferFile != "" {
		fromFile, err := readTransferFile(transferFile, cmd.InOrStdin(), fee)
		if err != nil {
			return err
		}
		requests = append(requests, fromFile...)
	}
	if len(requests) == 0 {
		return fmt.Errorf("%w: no transfers given", domain.ErrInvalidInput)
	}

	ctx, cancel := commandContext()
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.svc.Transfer(ctx, requests)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		logger.Warn("transfer interrupted", zap.Error(err))
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", report.Failed, report.TotalTargets)
	}
	return nil
}

func readTransferFile(path string, stdin io.Reader, fee domain.FeeConfig) ([]domain.TransferRequest, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open transfer file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transfer file: %w", err)
	}
	return parseTransfers(lines, fee)
}

// parseTransfers reads "destination:amount" pairs; amount is in SOL.
// Whitespace or a comma may separate the pair instead of a colon.
// Addresses are validated later, per transfer.
func parseTransfers(entries []string, fee domain.FeeConfig) ([]domain.TransferRequest, error) {
	out := make([]domain.TransferRequest, 0, len(entries))
	for _, entry := range entries {
		fields := strings.FieldsFunc(entry, func(r rune) bool {
			return r == ':' || r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: transfer %q: want destination:amount", domain.ErrInvalidInput, entry)
		}
		amount, err := decimal.NewFromString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: transfer %q: amount: %v", domain.ErrInvalidInput, entry, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: transfer %q: negative amount", domain.ErrInvalidInput, entry)
		}
		if !amount.Shift(9).IsInteger() {
			return nil, fmt.Errorf("%w: transfer %q: amount finer than one lamport", domain.ErrInvalidInput, entry)
		}
		out = append(out, domain.TransferRequest{
			Destination:    fields[0],
			AmountLamports: uint64(domain.SOLToLamports(amount)),
			Fee:            fee,
		})
	}
	return out, nil
}
