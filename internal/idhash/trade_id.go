package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(config_id|symbol|entry_tick|exit_tick)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	configID string,
	symbol string,
	entryTick int,
	exitTick int,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		configID,
		symbol,
		entryTick,
		exitTick,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
