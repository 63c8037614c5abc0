package infra_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	market "github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/business/policy/infra"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/asset"
	"github.com/fd1az/autosave-engine/internal/logger"
)

var pool = common.HexToAddress("0xd0b53D9277642d899DF5C87A3966A349A798F224")

func decision() (app.DCAOrder, app.DCADecision) {
	order := app.DCAOrder{ID: "weekly-eth", Pool: pool}
	return order, app.DCADecision{
		OrderID:     order.ID,
		Eligibility: domain.Eligibility{Eligible: true, Reason: domain.ReasonOK, Delta: 60},
		Sizing: &domain.SizingResult{
			Amount:                 asset.NewAmountFromInt64(asset.BaseUSDC, 2_000_000),
			Base:                   asset.NewAmountFromInt64(asset.BaseUSDC, 1_000_000),
			EffectiveMultiplierBps: 20_000,
			Dip:                    true,
			Clamped:                true,
		},
		Snapshot: market.Snapshot{
			Pool:          pool,
			CurrentTick:   -120,
			ReferenceTick: -60,
			Volatility:    domain.VolatilityHigh,
			ObservedAt:    time.Unix(1_700_000_000, 0),
		},
		DecidedAt: time.Unix(1_700_000_060, 0).UTC(),
	}
}

func TestLogExecutor_Execute(t *testing.T) {
	var buf bytes.Buffer
	exec := infra.NewLogExecutor(logger.New(&buf, logger.LevelInfo, "test", nil))

	order, d := decision()
	require.NoError(t, exec.Execute(context.Background(), order, d))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "dca order ready", rec["msg"])
	assert.Equal(t, "weekly-eth", rec["order"])
	assert.Equal(t, "2000000", rec["amount_in"])
	assert.EqualValues(t, -120, rec["tick"])
}

func TestLogExecutor_RequiresSizing(t *testing.T) {
	exec := infra.NewLogExecutor(logger.NewNop())

	order, d := decision()
	d.Sizing = nil
	assert.Error(t, exec.Execute(context.Background(), order, d))
}

func TestLogExecutor_RejectsAmountNotDerivedFromBase(t *testing.T) {
	exec := infra.NewLogExecutor(logger.NewNop())

	order, d := decision()
	d.Sizing.Amount = asset.NewAmountFromInt64(asset.BaseUSDC, 2_000_001)
	err := exec.Execute(context.Background(), order, d)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInternalError, apperror.GetCode(err))
}

func TestLogExecutor_MatchesSizingPolicy(t *testing.T) {
	var buf bytes.Buffer
	exec := infra.NewLogExecutor(logger.New(&buf, logger.LevelInfo, "test", nil))

	policy, err := domain.NewSizingPolicy(domain.DefaultVolatilityTiers())
	require.NoError(t, err)
	sized, err := policy.Size(domain.DynamicSizingConfig{
		BaseAmount:              asset.NewAmountFromInt64(asset.BaseUSDC, 333_333_333),
		VolatilityMultiplierBps: 10_000,
		MinMultiplierBps:        1,
		MaxMultiplierBps:        100_000,
	}, 40, domain.VolatilityMedium)
	require.NoError(t, err)

	order, d := decision()
	d.Sizing = &sized
	require.NoError(t, exec.Execute(context.Background(), order, d))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, sized.Amount.Raw().String(), rec["amount_in"])
}

func TestConsoleExecutor_Execute(t *testing.T) {
	var buf bytes.Buffer
	exec := infra.NewConsoleExecutor(&buf)

	order, d := decision()
	require.NoError(t, exec.Execute(context.Background(), order, d))

	out := buf.String()
	for _, want := range []string{
		"DCA ORDER weekly-eth",
		pool.Hex(),
		"Tick:           -120 (reference -60, movement -60)",
		"Volatility:     high",
		"(clamped)",
		"Amount (raw):   2000000",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}
}

func TestConsoleExecutor_RequiresSizing(t *testing.T) {
	exec := infra.NewConsoleExecutor(&bytes.Buffer{})

	order, d := decision()
	d.Sizing = nil
	assert.Error(t, exec.Execute(context.Background(), order, d))
}
