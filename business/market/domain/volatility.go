package domain

import (
	policy "github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
)

// VolatilityThresholds are the absolute tick movements at which a snapshot
// moves into the next volatility level.
type VolatilityThresholds struct {
	Medium  uint32
	High    uint32
	Maximum uint32
}

// DefaultVolatilityThresholds is roughly 0.6%, 2% and 6% of price.
func DefaultVolatilityThresholds() VolatilityThresholds {
	return VolatilityThresholds{Medium: 60, High: 200, Maximum: 600}
}

// Validate requires strictly increasing thresholds.
func (t VolatilityThresholds) Validate() error {
	if t.Medium == 0 || t.Medium >= t.High || t.High >= t.Maximum {
		return apperror.Validationf(apperror.CodeInvalidRange,
			"volatility thresholds must increase: medium=%d high=%d maximum=%d", t.Medium, t.High, t.Maximum)
	}
	return nil
}

// ClassifyVolatility buckets |movement| against t. Used when the oracle does
// not report a level itself.
func ClassifyVolatility(movement int64, t VolatilityThresholds) policy.VolatilityLevel {
	abs := movement
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= int64(t.Maximum):
		return policy.VolatilityMaximum
	case abs >= int64(t.High):
		return policy.VolatilityHigh
	case abs >= int64(t.Medium):
		return policy.VolatilityMedium
	default:
		return policy.VolatilityLow
	}
}
