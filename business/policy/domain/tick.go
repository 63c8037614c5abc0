package domain

import (
	"fmt"
	"strings"
)

// Tick is a concentrated-liquidity pool price coordinate.
type Tick int32

// TickStrategy gates a tick-triggered DCA order.
type TickStrategy struct {
	LowerTick        Tick
	UpperTick        Tick
	TickDelta        uint32 // minimum |current - reference|
	ExpirySeconds    uint64 // order expires once this many seconds elapsed
	OnlyImprovePrice bool
}

// Validate checks LowerTick <= UpperTick.
func (s TickStrategy) Validate() error {
	if s.LowerTick > s.UpperTick {
		return invalidRange("lower tick %d above upper tick %d", s.LowerTick, s.UpperTick)
	}
	return nil
}

// EligibilityReason explains an eligibility decision. Exactly one reason is
// reported per evaluation.
type EligibilityReason uint8

const (
	ReasonOK EligibilityReason = iota
	ReasonOutOfRange
	ReasonDeltaNotMet
	ReasonExpired
	ReasonPriceNotImproved
)

func (r EligibilityReason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonOutOfRange:
		return "out_of_range"
	case ReasonDeltaNotMet:
		return "delta_not_met"
	case ReasonExpired:
		return "expired"
	case ReasonPriceNotImproved:
		return "price_not_improved"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Eligibility is the outcome of EvaluateTick.
type Eligibility struct {
	Eligible bool
	Reason   EligibilityReason
	Delta    uint64 // |current - reference|
}

// EvaluateTick decides whether a tick-triggered order may execute now.
// Checks run in a fixed order and the first failure wins:
// out of range, expired, delta not met, price not improved.
func EvaluateTick(strategy TickStrategy, currentTick, referenceTick Tick, elapsedSeconds uint64, wouldImprovePrice bool) (Eligibility, error) {
	if err := strategy.Validate(); err != nil {
		return Eligibility{}, err
	}

	delta := tickDistance(currentTick, referenceTick)
	result := func(reason EligibilityReason) (Eligibility, error) {
		return Eligibility{Eligible: reason == ReasonOK, Reason: reason, Delta: delta}, nil
	}

	switch {
	case currentTick < strategy.LowerTick || currentTick > strategy.UpperTick:
		return result(ReasonOutOfRange)
	case elapsedSeconds >= strategy.ExpirySeconds:
		return result(ReasonExpired)
	case delta < uint64(strategy.TickDelta):
		return result(ReasonDeltaNotMet)
	case strategy.OnlyImprovePrice && !wouldImprovePrice:
		return result(ReasonPriceNotImproved)
	}
	return result(ReasonOK)
}

func tickDistance(a, b Tick) uint64 {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return uint64(d)
}

// Side is the direction of a DCA buy relative to pool token ordering.
// Pool ticks price token0 in units of token1.
type Side uint8

const (
	BuyToken0 Side = iota // spend token1, receive token0
	BuyToken1             // spend token0, receive token1
)

func (s Side) String() string {
	if s == BuyToken1 {
		return "token1"
	}
	return "token0"
}

// ParseSide accepts "token0" or "token1", case-insensitive. Empty means token0.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "token0":
		return BuyToken0, nil
	case "token1":
		return BuyToken1, nil
	default:
		return 0, invalidRange("unknown side %q, want token0 or token1", s)
	}
}

// ImprovesPrice reports whether moving from referenceTick to currentTick makes
// the buy cheaper for side. Equal ticks do not improve the price.
func ImprovesPrice(side Side, currentTick, referenceTick Tick) bool {
	if side == BuyToken0 {
		return currentTick < referenceTick
	}
	return currentTick > referenceTick
}
