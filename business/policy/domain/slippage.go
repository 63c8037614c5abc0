package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/fd1az/autosave-engine/internal/asset"
)

// SlippageAction is the remedy reported when slippage exceeds tolerance.
// The engine only reports it; the caller acts on it.
type SlippageAction uint8

const (
	ActionRevert SlippageAction = iota
	ActionSkipSwap
	ActionContinueAnyway
	ActionRetryWithHigherTolerance
)

func (a SlippageAction) String() string {
	switch a {
	case ActionRevert:
		return "revert"
	case ActionSkipSwap:
		return "skip_swap"
	case ActionContinueAnyway:
		return "continue_anyway"
	case ActionRetryWithHigherTolerance:
		return "retry_with_higher_tolerance"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Valid reports whether a is one of the defined actions.
func (a SlippageAction) Valid() bool {
	return a <= ActionRetryWithHigherTolerance
}

// ParseSlippageAction accepts the String forms, case-insensitive, with '-' or '_'.
func ParseSlippageAction(s string) (SlippageAction, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for a := ActionRevert; a <= ActionRetryWithHigherTolerance; a++ {
		if a.String() == norm {
			return a, nil
		}
	}
	return 0, invalidRange("unknown slippage action %q", s)
}

// SlippageToleranceConfig holds the global tolerance and per-token overrides.
// An override fully replaces the global value for its token.
type SlippageToleranceConfig struct {
	GlobalBps           BasisPoints
	PerTokenOverrideBps map[asset.AssetID]BasisPoints
}

// Validate checks every tolerance is within [0, 10000].
func (c SlippageToleranceConfig) Validate() error {
	if err := c.GlobalBps.ValidatePercentage("global tolerance"); err != nil {
		return err
	}
	for token, bps := range c.PerTokenOverrideBps {
		if err := bps.ValidatePercentage("tolerance for " + token.String()); err != nil {
			return err
		}
	}
	return nil
}

// ToleranceFor returns the override for token, or the global tolerance.
func (c SlippageToleranceConfig) ToleranceFor(token asset.AssetID) BasisPoints {
	if bps, ok := c.PerTokenOverrideBps[token]; ok {
		return bps
	}
	return c.GlobalBps
}

// SlippageResult is the outcome of CheckSlippage.
type SlippageResult struct {
	SlippageBps     BasisPoints
	ToleranceBps    BasisPoints
	WithinTolerance bool
	Action          SlippageAction
}

// CheckSlippage measures the shortfall of actual against expected in basis
// points (rounded down) and compares it to the tolerance for token. Output at or
// above expected counts as zero slippage. Within tolerance the action is
// ActionContinueAnyway; otherwise it is configured, unchanged.
func CheckSlippage(
	expected, actual asset.Amount,
	token asset.AssetID,
	cfg SlippageToleranceConfig,
	configured SlippageAction,
) (SlippageResult, error) {
	if !expected.SameAsset(actual) {
		return SlippageResult{}, invalidComparison("expected %s vs actual %s", expected, actual)
	}
	if expected.IsZero() {
		return SlippageResult{}, divisionByZero("expected amount is zero")
	}
	if err := cfg.Validate(); err != nil {
		return SlippageResult{}, err
	}
	if !configured.Valid() {
		return SlippageResult{}, invalidRange("unknown slippage action %d", configured)
	}

	exp, act := expected.Raw(), actual.Raw()

	var slippage BasisPoints
	if exp.Cmp(act) > 0 {
		shortfall, err := MulDivBpsInverse(new(big.Int).Sub(exp, act), exp)
		if err != nil {
			return SlippageResult{}, err
		}
		// shortfall < expected, so the share is below 10000.
		slippage = BasisPoints(shortfall.Uint64())
	}

	tolerance := cfg.ToleranceFor(token)
	result := SlippageResult{
		SlippageBps:     slippage,
		ToleranceBps:    tolerance,
		WithinTolerance: slippage <= tolerance,
		Action:          ActionContinueAnyway,
	}
	if !result.WithinTolerance {
		result.Action = configured
	}
	return result, nil
}

// MinimumOutput returns expected less tolerance basis points, rounded down:
// the amountOutMinimum a swap should be submitted with.
func MinimumOutput(expected asset.Amount, tolerance BasisPoints) (asset.Amount, error) {
	if expected.Asset() == nil {
		return asset.Amount{}, invalidRange("expected amount is not set")
	}
	if err := tolerance.ValidatePercentage("tolerance"); err != nil {
		return asset.Amount{}, err
	}
	return ApplyBps(expected, MaxBps-tolerance), nil
}
