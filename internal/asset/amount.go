package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/autosave-engine/internal/apperror"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNegativeAmount  = apperror.New(apperror.CodeInvalidInput, apperror.WithContext("negative amount"))
	ErrTooManyDecimals = apperror.New(apperror.CodeInvalidFormat, apperror.WithContext("too many decimal places for asset"))

	// ErrAssetMismatch and ErrNegativeResult compare by code with errors.Is.
	ErrAssetMismatch  = apperror.Sentinel(apperror.CodeInvalidComparison)
	ErrNegativeResult = apperror.Sentinel(apperror.CodeInsufficientBalance)
)

// Amount is an immutable quantity of an asset in its smallest unit. It never
// holds a negative value.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount creates an Amount from raw minor units. It panics on a nil asset
// or a nil or negative raw value.
func NewAmount(asset *Asset, raw *big.Int) Amount {
	if asset == nil {
		panic(ErrNilAsset)
	}
	if raw == nil {
		panic(ErrNilRaw)
	}
	if raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: asset}
}

// Zero creates a zero Amount for the given asset.
func Zero(asset *Asset) Amount {
	return NewAmount(asset, new(big.Int))
}

// NewAmountFromInt64 creates an Amount from int64 minor units.
func NewAmountFromInt64(asset *Asset, raw int64) Amount {
	return NewAmount(asset, big.NewInt(raw))
}

// NewAmountFromUint64 creates an Amount from uint64 minor units.
func NewAmountFromUint64(asset *Asset, raw uint64) Amount {
	return NewAmount(asset, new(big.Int).SetUint64(raw))
}

// Raw returns a copy of the minor-unit value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

// Asset returns the asset this amount is denominated in.
func (a Amount) Asset() *Asset {
	return a.asset
}

func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

func (a Amount) IsPositive() bool {
	return a.raw != nil && a.raw.Sign() > 0
}

// WithRaw returns an Amount of the same asset holding raw.
func (a Amount) WithRaw(raw *big.Int) Amount {
	return NewAmount(a.asset, raw)
}

// SameAsset reports whether both amounts are denominated in the same asset.
func (a Amount) SameAsset(b Amount) bool {
	return a.checkSameAsset(b) == nil
}

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	return NewAmount(a.asset, new(big.Int).Add(a.Raw(), b.Raw())), nil
}

// MustAdd is Add for callers that already checked the assets.
func (a Amount) MustAdd(b Amount) Amount {
	sum, err := a.Add(b)
	if err != nil {
		panic(err)
	}
	return sum
}

// Sub returns a-b, or ErrNegativeResult when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	if a.Raw().Cmp(b.Raw()) < 0 {
		return Amount{}, apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext(fmt.Sprintf("%s - %s", a, b)))
	}
	return NewAmount(a.asset, new(big.Int).Sub(a.Raw(), b.Raw())), nil
}

// MustSub is Sub for callers that already checked assets and ordering.
func (a Amount) MustSub(b Amount) Amount {
	diff, err := a.Sub(b)
	if err != nil {
		panic(err)
	}
	return diff
}

// Cmp returns -1, 0 or 1 as a is below, equal to or above b.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkSameAsset(b); err != nil {
		return 0, err
	}
	return a.Raw().Cmp(b.Raw()), nil
}

// Equals reports same asset and same value.
func (a Amount) Equals(b Amount) bool {
	c, err := a.Cmp(b)
	return err == nil && c == 0
}

// ToDecimal converts to a decimal in whole units, for display and parsing
// boundaries only.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// ParseDecimal converts whole units to an Amount. Precision beyond the
// asset's decimals is rejected rather than rounded.
func ParseDecimal(asset *Asset, d decimal.Decimal) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	scaled := d.Shift(int32(asset.Decimals()))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}
	return NewAmount(asset, scaled.BigInt()), nil
}

// ParseString parses a decimal string in whole units ("12.5").
func ParseString(asset *Asset, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err), apperror.WithContext(s))
	}
	return ParseDecimal(asset, d)
}

// String renders whole units and the symbol ("1.5 USDC").
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return a.ToDecimal().String() + " " + a.asset.Symbol()
}

// MarshalText renders whole units without the symbol, so amounts in JSON
// and YAML never pass through a float.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.ToDecimal().String()), nil
}

func (a Amount) checkSameAsset(b Amount) error {
	if a.asset == nil || b.asset == nil {
		return ErrNilAsset
	}
	if !a.asset.ID().Equals(b.asset.ID()) {
		return apperror.New(apperror.CodeInvalidComparison,
			apperror.WithContext(fmt.Sprintf("%s vs %s", a.asset.Symbol(), b.asset.Symbol())))
	}
	return nil
}
