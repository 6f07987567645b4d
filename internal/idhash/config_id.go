package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"momentum-lab/internal/domain"
)

// ConfigIDLength is the number of hex characters kept in a config ID.
const ConfigIDLength = 16

// ComputeConfigID computes a deterministic identifier for a parameter set.
// Every field takes part, in declaration order, with nil optionals
// rendered as "-". Floats use the shortest exact decimal form, so two
// configs share an ID only if they are identical.
func ComputeConfigID(cfg domain.SimulationConfig) string {
	parts := []string{
		strconv.Itoa(cfg.Rank),
		string(cfg.Side),
		ftoa(cfg.Leverage),
		strconv.Itoa(cfg.LookbackTicks),
		strconv.Itoa(cfg.MaxHoldTicks),
		ftoa(cfg.StopLossRate),
		ftoa(cfg.InitialBalance),
	}

	if t := cfg.Trailing; t != nil {
		parts = append(parts, strconv.Itoa(t.DelayTicks), ftoa(t.Rate))
	} else {
		parts = append(parts, "-", "-")
	}
	if p := cfg.ProfitTarget; p != nil {
		parts = append(parts, strconv.Itoa(p.DelayTicks), ftoa(p.Rate))
	} else {
		parts = append(parts, "-", "-")
	}
	if s := cfg.ScaleIn; s != nil {
		parts = append(parts, optFloat(s.Stage1Rate), optFloat(s.Stage2Rate))
	} else {
		parts = append(parts, "-", "-")
	}
	if cfg.CooldownTicks != nil {
		parts = append(parts, strconv.Itoa(*cfg.CooldownTicks))
	} else {
		parts = append(parts, "-")
	}
	parts = append(parts,
		optFloat(cfg.MinMomentum),
		optFloat(cfg.MaxDrawdown),
		optFloat(cfg.FeeRate),
	)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])[:ConfigIDLength]
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return ftoa(*v)
}
