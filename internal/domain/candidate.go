package domain

import "github.com/shopspring/decimal"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// ReclaimCandidate is a zero-balance token account whose rent deposit can be
// recovered by closing it. Produced by the scanner, immutable afterwards.
type ReclaimCandidate struct {
	Address      string          // token account address
	Mint         string          // token mint
	ProgramID    string          // owning token program
	RentLamports uint64          // lamport balance at scan time, may be stale
	RentSOL      decimal.Decimal // RentLamports in SOL
}

// NewReclaimCandidate fills RentSOL from the lamport deposit.
func NewReclaimCandidate(address, mint, programID string, rentLamports uint64) ReclaimCandidate {
	return ReclaimCandidate{
		Address:      address,
		Mint:         mint,
		ProgramID:    programID,
		RentLamports: rentLamports,
		RentSOL:      LamportsToSOL(int64(rentLamports)),
	}
}

// LamportsToSOL converts a (possibly negative) lamport amount to SOL.
func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -9)
}

// SOLToLamports converts SOL to lamports, truncating sub-lamport precision.
func SOLToLamports(sol decimal.Decimal) int64 {
	return sol.Shift(9).IntPart()
}
