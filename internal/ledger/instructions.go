package ledger

import (
	"encoding/binary"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"solana-ledger-ops/internal/domain"
)

// ComputeBudgetProgramID is the native compute budget program.
var ComputeBudgetProgramID = solanago.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Compute budget instruction discriminators.
const (
	computeBudgetSetUnitLimit = 2
	computeBudgetSetUnitPrice = 3
)

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(units uint32) solanago.Instruction {
	data := make([]byte, 5)
	data[0] = computeBudgetSetUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return solanago.NewInstruction(ComputeBudgetProgramID, solanago.AccountMetaSlice{}, data)
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) solanago.Instruction {
	data := make([]byte, 9)
	data[0] = computeBudgetSetUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solanago.NewInstruction(ComputeBudgetProgramID, solanago.AccountMetaSlice{}, data)
}

// FeeInstructions returns the priority directives of fee: price first, then limit.
func FeeInstructions(fee domain.FeeConfig) []solanago.Instruction {
	var out []solanago.Instruction
	if fee.UnitPriceMicroLamports != nil {
		out = append(out, SetComputeUnitPrice(*fee.UnitPriceMicroLamports))
	}
	if fee.UnitLimit != nil {
		out = append(out, SetComputeUnitLimit(*fee.UnitLimit))
	}
	return out
}

// Transfer moves lamports between system accounts.
func Transfer(from, to solanago.PublicKey, lamports uint64) solanago.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// CloseAccount closes a token account owned by programID, sending its rent
// deposit to destination. Token-2022 shares the SPL Token close layout.
func CloseAccount(programID, account, destination, owner solanago.PublicKey) (solanago.Instruction, error) {
	ix := token.NewCloseAccountInstruction(account, destination, owner, []solanago.PublicKey{}).Build()
	if programID.Equals(ix.ProgramID()) {
		return ix, nil
	}

	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("encode close instruction: %w", err)
	}
	return solanago.NewInstruction(programID, ix.Accounts(), data), nil
}
