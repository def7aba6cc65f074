package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"orderflow-lab/internal/domain"
)

// ComputeTransitionID computes a deterministic transition_id using SHA256.
// Formula: SHA256(run_id|symbol|timestamp_ms|kind|side)
// Returns hex-encoded hash (64 characters).
//
// Identical input streams produce identical transition sequences, so the
// same transition replayed twice maps to the same id and deduplicates on
// the storage unique key.
func ComputeTransitionID(
	runID string,
	symbol string,
	timestampMs int64,
	kind domain.TransitionKind,
	side domain.PositionSide,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%s",
		runID,
		symbol,
		timestampMs,
		string(kind),
		string(side),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
