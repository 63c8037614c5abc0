// Package domain contains the deterministic policy calculators: save/swap
// split, dynamic DCA sizing, tick eligibility, slippage review and goal
// penalties. All monetary math is integer basis-point arithmetic.
package domain

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/asset"
)

// BasisPoints is a fraction of BpsDenominator (10000 = 100%).
// Multipliers may exceed 10000.
type BasisPoints uint32

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator BasisPoints = 10_000
	// MaxBps is the upper bound for percentages and tolerances.
	MaxBps = BpsDenominator
)

// Rounding selects the direction of a mul-div.
type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

var (
	bigBpsDenom  = big.NewInt(int64(BpsDenominator))
	u256BpsDenom = uint256.NewInt(uint64(BpsDenominator))
)

// ValidatePercentage fails with INVALID_PERCENTAGE when b is above 100%.
func (b BasisPoints) ValidatePercentage(field string) error {
	if b > MaxBps {
		return invalidPercentage(field, b)
	}
	return nil
}

// Percent returns b as a percentage for display (250 -> 2.5).
func (b BasisPoints) Percent() decimal.Decimal {
	return decimal.New(int64(b), -2)
}

// String renders b as a percentage, e.g. "2.5%".
func (b BasisPoints) String() string {
	return b.Percent().String() + "%"
}

// ParsePercent converts a decimal percentage ("2.5") into basis points.
// Fractions below one basis point are rejected rather than rounded.
func ParsePercent(s string) (BasisPoints, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err), apperror.WithContext(s))
	}
	scaled := d.Shift(2)
	if d.IsNegative() || !scaled.Equal(scaled.Truncate(0)) || scaled.GreaterThan(decimal.NewFromInt(int64(^uint32(0)))) {
		return 0, apperror.Validationf(apperror.CodeInvalidPercentage, "percentage %s is not a whole number of basis points", s)
	}
	return BasisPoints(scaled.IntPart()), nil
}

// MulDivBps returns floor(amount * bps / 10000). amount must be non-negative.
// The product is computed at full width, so no input size overflows.
func MulDivBps(amount *big.Int, bps BasisPoints) *big.Int {
	q, _ := mulDivBps(amount, bps)
	return q
}

// MulDivBpsRounding is MulDivBps with an explicit rounding direction.
func MulDivBpsRounding(amount *big.Int, bps BasisPoints, rounding Rounding) *big.Int {
	q, exact := mulDivBps(amount, bps)
	if rounding == RoundUp && !exact {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func mulDivBps(amount *big.Int, bps BasisPoints) (*big.Int, bool) {
	product := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	q, r := new(big.Int).QuoRem(product, bigBpsDenom, new(big.Int))
	return q, r.Sign() == 0
}

// MulDivBpsInverse returns floor(delta * 10000 / base), the share of base that
// delta represents in basis points.
func MulDivBpsInverse(delta, base *big.Int) (*big.Int, error) {
	if base.Sign() == 0 {
		return nil, divisionByZero("base amount is zero")
	}
	product := new(big.Int).Mul(delta, bigBpsDenom)
	return product.Quo(product, base), nil
}

// ApplyBps returns floor(amount * bps / 10000) in the same asset as amount.
func ApplyBps(amount asset.Amount, bps BasisPoints) asset.Amount {
	return amount.WithRaw(MulDivBps(amount.Raw(), bps))
}

// ToU256 converts an amount to the on-chain uint256 width.
func ToU256(amount asset.Amount) (*uint256.Int, error) {
	u, overflow := uint256.FromBig(amount.Raw())
	if overflow {
		return nil, apperror.Validationf(apperror.CodeAmountOverflow, "%s", amount.Raw())
	}
	return u, nil
}

// MulDivBpsU256 mirrors MulDivBps with uint256 operands and a 512-bit
// intermediate, matching on-chain mulDiv. It fails only when the result itself
// does not fit in 256 bits (possible for bps > 10000).
func MulDivBpsU256(amount *uint256.Int, bps BasisPoints) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(bps)), u256BpsDenom)
	if overflow {
		return nil, apperror.Validationf(apperror.CodeAmountOverflow, "%s * %d / %d", amount.Dec(), bps, BpsDenominator)
	}
	return z, nil
}
