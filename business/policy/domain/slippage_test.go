package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/asset"
)

func TestCheckSlippage(t *testing.T) {
	global := domain.SlippageToleranceConfig{GlobalBps: 100}
	override := domain.SlippageToleranceConfig{
		GlobalBps:           100,
		PerTokenOverrideBps: map[asset.AssetID]domain.BasisPoints{asset.IDBaseUSDC: 500},
	}

	tests := []struct {
		name          string
		expected      int64
		actual        int64
		cfg           domain.SlippageToleranceConfig
		configured    domain.SlippageAction
		wantSlippage  domain.BasisPoints
		wantTolerance domain.BasisPoints
		wantWithin    bool
		wantAction    domain.SlippageAction
	}{
		{"exceeds_global", 250, 245, global, domain.ActionRevert, 200, 100, false, domain.ActionRevert},
		{"override_allows", 250, 245, override, domain.ActionRevert, 200, 500, true, domain.ActionContinueAnyway},
		{"favorable_is_zero", 250, 300, global, domain.ActionSkipSwap, 0, 100, true, domain.ActionContinueAnyway},
		{"exact_is_zero", 250, 250, global, domain.ActionSkipSwap, 0, 100, true, domain.ActionContinueAnyway},
		{"at_tolerance_is_within", 10_000, 9_900, global, domain.ActionRevert, 100, 100, true, domain.ActionContinueAnyway},
		{"retry_hint_passthrough", 10_000, 9_899, global, domain.ActionRetryWithHigherTolerance, 101, 100, false, domain.ActionRetryWithHigherTolerance},
		{"total_loss", 10_000, 0, global, domain.ActionSkipSwap, 10_000, 100, false, domain.ActionSkipSwap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.CheckSlippage(usdc(tt.expected), usdc(tt.actual), asset.IDBaseUSDC, tt.cfg, tt.configured)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSlippage, got.SlippageBps)
			assert.Equal(t, tt.wantTolerance, got.ToleranceBps)
			assert.Equal(t, tt.wantWithin, got.WithinTolerance)
			assert.Equal(t, tt.wantAction, got.Action)
		})
	}
}

func TestCheckSlippage_Errors(t *testing.T) {
	cfg := domain.SlippageToleranceConfig{GlobalBps: 100}

	t.Run("zero_expected", func(t *testing.T) {
		_, err := domain.CheckSlippage(usdc(0), usdc(0), asset.IDBaseUSDC, cfg, domain.ActionRevert)
		assert.ErrorIs(t, err, domain.ErrDivisionByZero)
	})

	t.Run("asset_mismatch", func(t *testing.T) {
		weth := asset.NewAmountFromInt64(asset.BaseWETH, 245)
		_, err := domain.CheckSlippage(usdc(250), weth, asset.IDBaseUSDC, cfg, domain.ActionRevert)
		assert.ErrorIs(t, err, domain.ErrInvalidComparison)
	})

	t.Run("tolerance_above_hundred_percent", func(t *testing.T) {
		bad := domain.SlippageToleranceConfig{
			GlobalBps:           100,
			PerTokenOverrideBps: map[asset.AssetID]domain.BasisPoints{asset.IDBaseWETH: 10_001},
		}
		_, err := domain.CheckSlippage(usdc(250), usdc(245), asset.IDBaseUSDC, bad, domain.ActionRevert)
		assert.ErrorIs(t, err, domain.ErrInvalidPercentage)
	})
}

func TestMinimumOutput(t *testing.T) {
	got, err := domain.MinimumOutput(usdc(1_000_000), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(995_000), got.Raw().Int64())

	got, err = domain.MinimumOutput(usdc(1_000_000), 10_000)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = domain.MinimumOutput(usdc(1), 10_001)
	assert.ErrorIs(t, err, domain.ErrInvalidPercentage)

	_, err = domain.MinimumOutput(asset.Amount{}, 50)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestParseSlippageAction(t *testing.T) {
	for _, in := range []string{"revert", "skip-swap", "Continue_Anyway", "retry_with_higher_tolerance"} {
		_, err := domain.ParseSlippageAction(in)
		assert.NoError(t, err, in)
	}
	got, err := domain.ParseSlippageAction("skip-swap")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSkipSwap, got)

	_, err = domain.ParseSlippageAction("panic")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
