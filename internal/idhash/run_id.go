package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(mode|symbol|from_date|to_date)
// Returns hex-encoded hash (64 characters).
//
// mode distinguishes live runs from replay runs ("live" / "replay"); for
// live runs the date fields carry the start date.
func ComputeRunID(mode, symbol, fromDate, toDate string) string {
	data := fmt.Sprintf("%s|%s|%s|%s", mode, symbol, fromDate, toDate)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
