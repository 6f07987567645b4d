// Package verification re-simulates stored runs and checks that the stored
// summaries and trades match the replay.
package verification

import (
	"context"

	"momentum-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name, prefixed with the trade index for trade fields
	Expected any    // stored value
	Actual   any    // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	SweepID     string
	ConfigID    string
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for a whole sweep.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// Verifier replays stored runs.
type Verifier interface {
	// VerifyRun re-simulates one stored run and compares it field by field.
	VerifyRun(ctx context.Context, sweepID, configID string) (*VerificationResult, error)

	// VerifySweep verifies every run of a sweep.
	VerifySweep(ctx context.Context, sweepID string) (*VerificationReport, error)
}

// CompareSummaries compares two run summaries.
func CompareSummaries(stored, replayed domain.Summary) []FieldDivergence {
	var d divergences

	d.addInt("TradeCount", stored.TradeCount, replayed.TradeCount)
	d.addInt("WinCount", stored.WinCount, replayed.WinCount)
	d.addFloatPtr("WinRate", stored.WinRate, replayed.WinRate)
	d.addFloat("LowestValue", stored.LowestValue, replayed.LowestValue)
	d.addFloat("FinalValue", stored.FinalValue, replayed.FinalValue)
	d.addFloat("ProfitRatePeak", stored.ProfitRatePeak, replayed.ProfitRatePeak)
	d.addFloat("FinalProfitRate", stored.FinalProfitRate, replayed.FinalProfitRate)
	d.addFloat("MaxProfitRateSingleTrade", stored.MaxProfitRateSingleTrade, replayed.MaxProfitRateSingleTrade)
	d.addFloat("MaxLossRateSingleTrade", stored.MaxLossRateSingleTrade, replayed.MaxLossRateSingleTrade)
	d.addInt("MaxStreak", stored.MaxStreak, replayed.MaxStreak)
	d.addInt("MaxLossStreak", stored.MaxLossStreak, replayed.MaxLossStreak)
	d.addFloat("MaxDrawdown", stored.MaxDrawdown, replayed.MaxDrawdown)
	d.addFloat("TotalProfit", stored.TotalProfit, replayed.TotalProfit)
	d.addFloat("TotalLoss", stored.TotalLoss, replayed.TotalLoss)
	d.addFloatPtr("ProfitFactor", stored.ProfitFactor, replayed.ProfitFactor)
	if stored.KillSwitchTriggered != replayed.KillSwitchTriggered {
		d.add("KillSwitchTriggered", stored.KillSwitchTriggered, replayed.KillSwitchTriggered)
	}

	return d
}

// CompareTradeRecords compares two trade records and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	var d divergences

	d.addStr("TradeID", stored.TradeID, replayed.TradeID)
	d.addStr("ConfigID", stored.ConfigID, replayed.ConfigID)
	d.addStr("Symbol", stored.Symbol, replayed.Symbol)
	d.addStr("Side", string(stored.Side), string(replayed.Side))
	d.addInt("EntryTick", stored.EntryTick, replayed.EntryTick)
	d.addFloat("EntryPrice", stored.EntryPrice, replayed.EntryPrice)
	d.addFloat("Position", stored.Position, replayed.Position)
	d.addFloat("CostBasis", stored.CostBasis, replayed.CostBasis)
	d.addInt("ScaleIns", stored.ScaleIns, replayed.ScaleIns)
	d.addInt("ExitTick", stored.ExitTick, replayed.ExitTick)
	d.addFloat("ExitPrice", stored.ExitPrice, replayed.ExitPrice)
	d.addStr("ExitReason", stored.ExitReason, replayed.ExitReason)
	d.addFloat("RealizedPnL", stored.RealizedPnL, replayed.RealizedPnL)
	d.addFloat("ProfitRate", stored.ProfitRate, replayed.ProfitRate)
	d.addStr("OutcomeClass", stored.OutcomeClass, replayed.OutcomeClass)
	d.addFloat("AccountProfitRate", stored.AccountProfitRate, replayed.AccountProfitRate)

	return d
}

type divergences []FieldDivergence

func (d *divergences) add(field string, expected, actual any) {
	*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

func (d *divergences) addStr(field, expected, actual string) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

func (d *divergences) addInt(field string, expected, actual int) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

func (d *divergences) addFloat(field string, expected, actual float64) {
	if !floatEquals(expected, actual) {
		d.add(field, expected, actual)
	}
}

func (d *divergences) addFloatPtr(field string, expected, actual *float64) {
	if !floatPtrEquals(expected, actual) {
		d.add(field, expected, actual)
	}
}

// floatEquals compares two floats within FloatTolerance.
func floatEquals(a, b float64) bool {
	diff := a - b
	return diff <= FloatTolerance && diff >= -FloatTolerance
}

// floatPtrEquals compares two float pointers.
func floatPtrEquals(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return floatEquals(*a, *b)
}
