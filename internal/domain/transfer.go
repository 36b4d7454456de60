package domain

// FeeConfig tunes transaction priority. Nil fields omit the directive.
type FeeConfig struct {
	UnitPriceMicroLamports *uint64 // compute unit price
	UnitLimit              *uint32 // compute unit limit
}

// TransferRequest moves lamports from the owning wallet to Destination.
// Constructed by the caller and consumed once by the transfer executor.
type TransferRequest struct {
	Destination    string
	AmountLamports uint64
	Fee            FeeConfig
}

// SimulationReport is the result of a dry run.
type SimulationReport struct {
	Err           interface{} // ledger error as returned by the endpoint, nil on success
	Logs          []string
	UnitsConsumed uint64
}

// Failed reports whether the dry run returned an error.
func (r *SimulationReport) Failed() bool {
	return r != nil && r.Err != nil
}
