package domain

import "github.com/fd1az/autosave-engine/internal/asset"

// SplitResult holds the save and swap portions of an input amount.
// Save + Swap always equals the input.
type SplitResult struct {
	Save asset.Amount
	Swap asset.Amount
}

// Split divides input into a save portion of percentage basis points and a
// swap remainder. With roundUp an inexact save portion is rounded up by one
// minor unit; the swap portion is always the remainder.
func Split(input asset.Amount, percentage BasisPoints, roundUp bool) (SplitResult, error) {
	if input.Asset() == nil {
		return SplitResult{}, invalidRange("input amount is not set")
	}
	if err := percentage.ValidatePercentage("percentage"); err != nil {
		return SplitResult{}, err
	}

	rounding := RoundDown
	if roundUp {
		rounding = RoundUp
	}

	raw := input.Raw()
	save := MulDivBpsRounding(raw, percentage, rounding)
	swap := raw.Sub(raw, save)

	return SplitResult{
		Save: input.WithRaw(save),
		Swap: input.WithRaw(swap),
	}, nil
}
