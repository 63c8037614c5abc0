package domain

import (
	"fmt"
	"strings"

	"github.com/fd1az/autosave-engine/internal/asset"
)

// VolatilityLevel is the market volatility bucket reported by the oracle.
type VolatilityLevel uint8

const (
	VolatilityLow VolatilityLevel = iota
	VolatilityMedium
	VolatilityHigh
	VolatilityMaximum
)

var volatilityNames = map[VolatilityLevel]string{
	VolatilityLow:     "low",
	VolatilityMedium:  "medium",
	VolatilityHigh:    "high",
	VolatilityMaximum: "maximum",
}

// AllVolatilityLevels lists levels from calmest to most volatile.
func AllVolatilityLevels() []VolatilityLevel {
	return []VolatilityLevel{VolatilityLow, VolatilityMedium, VolatilityHigh, VolatilityMaximum}
}

func (v VolatilityLevel) String() string {
	if name, ok := volatilityNames[v]; ok {
		return name
	}
	return fmt.Sprintf("volatility(%d)", uint8(v))
}

// ParseVolatilityLevel parses "low", "medium", "high" or "maximum" ("max").
func ParseVolatilityLevel(s string) (VolatilityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return VolatilityLow, nil
	case "medium", "med":
		return VolatilityMedium, nil
	case "high":
		return VolatilityHigh, nil
	case "maximum", "max":
		return VolatilityMaximum, nil
	}
	return 0, invalidRange("unknown volatility level %q", s)
}

// VolatilityTiers maps a level to the scalar applied to the configured
// multiplier, in basis points (15000 = 150%).
type VolatilityTiers map[VolatilityLevel]BasisPoints

// DefaultVolatilityTiers returns Low 100%, Medium 150%, High 200%, Maximum 300%.
func DefaultVolatilityTiers() VolatilityTiers {
	return VolatilityTiers{
		VolatilityLow:     10_000,
		VolatilityMedium:  15_000,
		VolatilityHigh:    20_000,
		VolatilityMaximum: 30_000,
	}
}

// Validate requires a tier for every level.
func (t VolatilityTiers) Validate() error {
	for _, level := range AllVolatilityLevels() {
		if _, ok := t[level]; !ok {
			return invalidRange("missing volatility tier for %s", level)
		}
	}
	return nil
}

// DynamicSizingConfig is the per-order DCA sizing configuration.
type DynamicSizingConfig struct {
	BaseAmount              asset.Amount
	VolatilityMultiplierBps BasisPoints
	MinMultiplierBps        BasisPoints
	MaxMultiplierBps        BasisPoints
}

// Validate checks MinMultiplierBps <= MaxMultiplierBps and that BaseAmount is set.
func (c DynamicSizingConfig) Validate() error {
	if c.BaseAmount.Asset() == nil {
		return invalidRange("base amount is not set")
	}
	if c.MinMultiplierBps > c.MaxMultiplierBps {
		return invalidRange("min multiplier %d bps above max %d bps", c.MinMultiplierBps, c.MaxMultiplierBps)
	}
	return nil
}

// SizingResult is the resized DCA amount and how it was derived.
type SizingResult struct {
	Amount                 asset.Amount
	Base                   asset.Amount // configured base the multiplier was applied to
	RawMultiplierBps       uint64
	EffectiveMultiplierBps BasisPoints
	Dip                    bool // tick movement was negative
	Clamped                bool // effective multiplier hit min or max
}

// SizingPolicy resizes DCA amounts from tick movement and volatility.
// The zero value has no tiers; use NewSizingPolicy.
type SizingPolicy struct {
	tiers VolatilityTiers
}

// NewSizingPolicy copies tiers into a new policy.
func NewSizingPolicy(tiers VolatilityTiers) (SizingPolicy, error) {
	if err := tiers.Validate(); err != nil {
		return SizingPolicy{}, err
	}
	own := make(VolatilityTiers, len(tiers))
	for k, v := range tiers {
		own[k] = v
	}
	return SizingPolicy{tiers: own}, nil
}

// Tier returns the scalar configured for level.
func (p SizingPolicy) Tier(level VolatilityLevel) (BasisPoints, bool) {
	bps, ok := p.tiers[level]
	return bps, ok
}

// Size computes the adjusted DCA amount.
//
// A negative tickMovement (a dip) applies the tiered multiplier directly; zero or
// positive movement applies its inverse, buying more on dips and less on rallies.
// The effective multiplier is clamped to [MinMultiplierBps, MaxMultiplierBps]
// before it is applied to BaseAmount.
func (p SizingPolicy) Size(cfg DynamicSizingConfig, tickMovement int64, level VolatilityLevel) (SizingResult, error) {
	if err := cfg.Validate(); err != nil {
		return SizingResult{}, err
	}

	tier, ok := p.tiers[level]
	if !ok {
		return SizingResult{}, invalidRange("no volatility tier for %s", level)
	}

	// Both factors are < 2^32 so the product fits in uint64.
	raw := uint64(cfg.VolatilityMultiplierBps) * uint64(tier) / uint64(BpsDenominator)

	dip := tickMovement < 0
	effective := raw
	if !dip {
		if raw == 0 {
			return SizingResult{}, invalidRange("multiplier %d bps x tier %d bps rounds to zero, cannot invert",
				cfg.VolatilityMultiplierBps, tier)
		}
		effective = uint64(BpsDenominator) * uint64(BpsDenominator) / raw
	}

	clamped := false
	if effective < uint64(cfg.MinMultiplierBps) {
		effective = uint64(cfg.MinMultiplierBps)
		clamped = true
	} else if effective > uint64(cfg.MaxMultiplierBps) {
		effective = uint64(cfg.MaxMultiplierBps)
		clamped = true
	}

	multiplier := BasisPoints(effective)
	return SizingResult{
		Amount:                 ApplyBps(cfg.BaseAmount, multiplier),
		Base:                   cfg.BaseAmount,
		RawMultiplierBps:       raw,
		EffectiveMultiplierBps: multiplier,
		Dip:                    dip,
		Clamped:                clamped,
	}, nil
}
