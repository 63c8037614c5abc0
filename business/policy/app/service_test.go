package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	market "github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/asset"
	"github.com/fd1az/autosave-engine/internal/logger"
)

var (
	pool  = common.HexToAddress("0xd0b53D9277642d899DF5C87A3966A349A798F224")
	start = time.Unix(1_700_000_000, 0)
)

func usdc(raw int64) asset.Amount {
	return asset.NewAmountFromInt64(asset.BaseUSDC, raw)
}

func weth(raw int64) asset.Amount {
	return asset.NewAmountFromInt64(asset.BaseWETH, raw)
}

func testConfig() app.Config {
	return app.Config{
		SavePercentage: 1000,
		Tiers:          domain.DefaultVolatilityTiers(),
		Sizing: domain.DynamicSizingConfig{
			BaseAmount:              usdc(1_000_000),
			VolatilityMultiplierBps: 10_000,
			MinMultiplierBps:        5_000,
			MaxMultiplierBps:        20_000,
		},
		Slippage:       domain.SlippageToleranceConfig{GlobalBps: 50},
		SlippageAction: domain.ActionSkipSwap,
	}
}

type harness struct {
	svc    *app.PolicyService
	reader *sdkmetric.ManualReader
}

func newHarness(t *testing.T, cfg app.Config, now time.Time) harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	svc, err := app.NewPolicyService(cfg, logger.NewNop(),
		app.WithMeterProvider(mp),
		app.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return harness{svc: svc, reader: reader}
}

// count returns policy_decisions_total for the given attributes.
func (h harness) count(t *testing.T, policy, outcome string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "policy_decisions_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				p, _ := dp.Attributes.Value(attribute.Key("policy"))
				o, _ := dp.Attributes.Value(attribute.Key("outcome"))
				if p.AsString() == policy && o.AsString() == outcome {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func dipSnapshot() market.Snapshot {
	return market.Snapshot{
		Pool:          pool,
		CurrentTick:   -120,
		ReferenceTick: -60,
		Volatility:    domain.VolatilityHigh,
		ObservedAt:    start.Add(time.Minute),
	}
}

func dcaOrder() app.DCAOrder {
	return app.DCAOrder{
		ID:   "weekly-eth",
		Pool: pool,
		Side: domain.BuyToken0,
		Strategy: domain.TickStrategy{
			LowerTick:        -1000,
			UpperTick:        1000,
			TickDelta:        50,
			ExpirySeconds:    3600,
			OnlyImprovePrice: true,
		},
		StartedAt: start,
	}
}

func TestNewPolicyService_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*app.Config)
		want   error
	}{
		{"save above 100%", func(c *app.Config) { c.SavePercentage = 10_001 }, domain.ErrInvalidPercentage},
		{"min above max", func(c *app.Config) { c.Sizing.MinMultiplierBps = 30_000 }, domain.ErrInvalidRange},
		{"tolerance above 100%", func(c *app.Config) { c.Slippage.GlobalBps = 20_000 }, domain.ErrInvalidPercentage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := app.NewPolicyService(cfg, logger.NewNop())
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	cfg := testConfig()
	cfg.SlippageAction = domain.SlippageAction(42)
	_, err := app.NewPolicyService(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestPolicyService_SplitSwap(t *testing.T) {
	h := newHarness(t, testConfig(), start)
	ctx := context.Background()

	res, err := h.svc.SplitSwap(ctx, usdc(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), res.Save.Raw().Int64())
	assert.Equal(t, int64(900_000), res.Swap.Raw().Int64())
	assert.Equal(t, int64(1), h.count(t, app.PolicySplit, "ok"))
}

func TestPolicyService_SplitSwapRoundUp(t *testing.T) {
	cfg := testConfig()
	cfg.RoundUp = true
	h := newHarness(t, cfg, start)

	res, err := h.svc.SplitSwap(context.Background(), usdc(1_005))
	require.NoError(t, err)
	assert.Equal(t, int64(101), res.Save.Raw().Int64())
	assert.Equal(t, int64(904), res.Swap.Raw().Int64())
}

func TestPolicyService_SizeDCA(t *testing.T) {
	h := newHarness(t, testConfig(), start)
	ctx := context.Background()

	dip, err := h.svc.SizeDCA(ctx, nil, dipSnapshot())
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), dip.Amount.Raw().Int64())
	assert.True(t, dip.Dip)

	rally := dipSnapshot()
	rally.CurrentTick = 0
	res, err := h.svc.SizeDCA(ctx, nil, rally)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), res.Amount.Raw().Int64())

	override := testConfig().Sizing
	override.MaxMultiplierBps = 15_000
	clamped, err := h.svc.SizeDCA(ctx, &override, dipSnapshot())
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), clamped.Amount.Raw().Int64())
	assert.Equal(t, int64(1), h.count(t, app.PolicySizing, "clamped"))
}

func TestPolicyService_EvaluateDCA(t *testing.T) {
	h := newHarness(t, testConfig(), start.Add(10*time.Minute))

	decision, err := h.svc.EvaluateDCA(context.Background(), dcaOrder(), dipSnapshot())
	require.NoError(t, err)
	assert.True(t, decision.Eligibility.Eligible)
	assert.Equal(t, domain.ReasonOK, decision.Eligibility.Reason)
	require.NotNil(t, decision.Sizing)
	assert.Equal(t, int64(2_000_000), decision.Sizing.Amount.Raw().Int64())
	assert.Equal(t, "weekly-eth", decision.OrderID)
	assert.Equal(t, int64(1), h.count(t, app.PolicyTick, "ok"))
}

func TestPolicyService_EvaluateDCANotEligible(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		mutate func(*app.DCAOrder, *market.Snapshot)
		want   domain.EligibilityReason
	}{
		{
			name:   "out of range",
			now:    start,
			mutate: func(o *app.DCAOrder, _ *market.Snapshot) { o.Strategy.LowerTick = 0 },
			want:   domain.ReasonOutOfRange,
		},
		{
			name:   "expired",
			now:    start.Add(2 * time.Hour),
			mutate: func(*app.DCAOrder, *market.Snapshot) {},
			want:   domain.ReasonExpired,
		},
		{
			name:   "delta not met",
			now:    start,
			mutate: func(_ *app.DCAOrder, s *market.Snapshot) { s.CurrentTick = -80 },
			want:   domain.ReasonDeltaNotMet,
		},
		{
			name:   "price not improved",
			now:    start,
			mutate: func(o *app.DCAOrder, _ *market.Snapshot) { o.Side = domain.BuyToken1 },
			want:   domain.ReasonPriceNotImproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig(), tt.now)
			order, snap := dcaOrder(), dipSnapshot()
			tt.mutate(&order, &snap)

			decision, err := h.svc.EvaluateDCA(context.Background(), order, snap)
			require.NoError(t, err)
			assert.False(t, decision.Eligibility.Eligible)
			assert.Equal(t, tt.want, decision.Eligibility.Reason)
			assert.Nil(t, decision.Sizing)
		})
	}
}

func TestPolicyService_EvaluateDCAClockBeforeStart(t *testing.T) {
	h := newHarness(t, testConfig(), start.Add(-time.Hour))

	decision, err := h.svc.EvaluateDCA(context.Background(), dcaOrder(), dipSnapshot())
	require.NoError(t, err)
	assert.True(t, decision.Eligibility.Eligible)
}

func TestPolicyService_EvaluateDCAErrors(t *testing.T) {
	h := newHarness(t, testConfig(), start)
	ctx := context.Background()

	other := dipSnapshot()
	other.Pool = common.HexToAddress("0x01")
	_, err := h.svc.EvaluateDCA(ctx, dcaOrder(), other)
	assert.Error(t, err)

	bad := dcaOrder()
	bad.Strategy.LowerTick, bad.Strategy.UpperTick = 10, -10
	_, err = h.svc.EvaluateDCA(ctx, bad, dipSnapshot())
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
	assert.Equal(t, int64(2), h.count(t, app.PolicyTick, "error"))
}

func TestPolicyService_ReviewSwap(t *testing.T) {
	h := newHarness(t, testConfig(), start)
	ctx := context.Background()

	within, err := h.svc.ReviewSwap(ctx, usdc(1_000_000), usdc(996_000))
	require.NoError(t, err)
	assert.True(t, within.WithinTolerance)
	assert.Equal(t, domain.ActionContinueAnyway, within.Action)

	exceeded, err := h.svc.ReviewSwap(ctx, usdc(250), usdc(245))
	require.NoError(t, err)
	assert.False(t, exceeded.WithinTolerance)
	assert.Equal(t, domain.BasisPoints(200), exceeded.SlippageBps)
	assert.Equal(t, domain.ActionSkipSwap, exceeded.Action)
	assert.Equal(t, int64(1), h.count(t, app.PolicySlippage, "skip_swap"))

	_, err = h.svc.ReviewSwap(ctx, usdc(0), usdc(0))
	assert.True(t, errors.Is(err, domain.ErrDivisionByZero))

	_, err = h.svc.ReviewSwap(ctx, usdc(10), weth(10))
	assert.True(t, errors.Is(err, domain.ErrInvalidComparison))

	_, err = h.svc.ReviewSwap(ctx, asset.Amount{}, usdc(10))
	assert.True(t, errors.Is(err, domain.ErrInvalidComparison))
}

func TestPolicyService_ReviewSwapPerTokenOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Slippage.PerTokenOverrideBps = map[asset.AssetID]domain.BasisPoints{asset.IDBaseUSDC: 300}
	h := newHarness(t, cfg, start)

	res, err := h.svc.ReviewSwap(context.Background(), usdc(250), usdc(245))
	require.NoError(t, err)
	assert.True(t, res.WithinTolerance)
	assert.Equal(t, domain.BasisPoints(300), res.ToleranceBps)
}

func TestPolicyService_MinimumOutput(t *testing.T) {
	h := newHarness(t, testConfig(), start)

	floor, err := h.svc.MinimumOutput(usdc(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(995_000), floor.Raw().Int64())
}

func TestPolicyService_Withdraw(t *testing.T) {
	h := newHarness(t, testConfig(), start)
	ctx := context.Background()

	goal, err := domain.NewGoalSavings(usdc(800), usdc(1_000), 1_000)
	require.NoError(t, err)

	res, next, err := h.svc.Withdraw(ctx, goal, usdc(300))
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Penalty.Raw().Int64())
	assert.Equal(t, int64(270), res.Net.Raw().Int64())
	assert.Equal(t, int64(500), next.Current.Raw().Int64())
	assert.Equal(t, int64(1), h.count(t, app.PolicyPenalty, "penalized"))

	_, _, err = h.svc.Withdraw(ctx, goal, usdc(900))
	assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))
}

func TestPolicyService_QuoteWithdrawal(t *testing.T) {
	h := newHarness(t, testConfig(), start)
	ctx := context.Background()

	goal, err := domain.NewGoalSavings(usdc(500), usdc(1_000), 1_000)
	require.NoError(t, err)

	res, err := h.svc.QuoteWithdrawal(ctx, goal, usdc(1_000))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Penalty.Raw().Int64())
	assert.Equal(t, int64(900), res.Net.Raw().Int64())

	reached, err := domain.NewGoalSavings(usdc(1_000), usdc(1_000), 1_000)
	require.NoError(t, err)
	free, err := h.svc.QuoteWithdrawal(ctx, reached, usdc(400))
	require.NoError(t, err)
	assert.True(t, free.Penalty.IsZero())
	assert.Equal(t, int64(1), h.count(t, app.PolicyPenalty, "free"))
}

func TestPolicyService_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	svc, err := app.NewPolicyService(testConfig(), logger.NewNop(),
		app.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.SplitSwap(ctx, usdc(1_000))
	require.NoError(t, err)
	_, err = svc.ReviewSwap(ctx, usdc(0), usdc(0))
	require.Error(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "policy.split", ended[0].Name())
	assert.Equal(t, "policy.review_swap", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}
