package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeOutcomeID computes a deterministic outcome_id using SHA256.
// Formula: SHA256(run_id|target|index)
// Returns hex-encoded hash (64 characters).
//
// The index keeps the ID unique when a batch names the same target twice
// (e.g. two transfers to one destination).
func ComputeOutcomeID(runID, target string, index int) string {
	data := fmt.Sprintf("%s|%s|%d", runID, target, index)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
