package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/asset"
)

func goal(current, target int64, penalty domain.BasisPoints) domain.GoalSavings {
	return domain.GoalSavings{Current: usdc(current), Goal: usdc(target), PenaltyBps: penalty}
}

func TestQuotePenalty(t *testing.T) {
	tests := []struct {
		name        string
		withdraw    int64
		goal        domain.GoalSavings
		wantPenalty int64
		wantNet     int64
	}{
		{"below_goal", 1000, goal(500, 1000, 1000), 100, 900},
		{"goal_reached_exactly", 1000, goal(1000, 1000, 1000), 0, 1000},
		{"goal_exceeded", 700, goal(1500, 1000, 10_000), 0, 700},
		{"floors_penalty", 999, goal(0, 1000, 1000), 99, 900},
		{"zero_rate", 400, goal(500, 1000, 0), 0, 400},
		{"full_rate", 400, goal(500, 1000, 10_000), 400, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.QuotePenalty(usdc(tt.withdraw), tt.goal)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPenalty, got.Penalty.Raw().Int64())
			assert.Equal(t, tt.wantNet, got.Net.Raw().Int64())
		})
	}
}

func TestCalculatePenalty(t *testing.T) {
	got, err := domain.CalculatePenalty(usdc(300), goal(800, 1000, 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Penalty.Raw().Int64())
	assert.Equal(t, int64(270), got.Net.Raw().Int64())

	_, err = domain.CalculatePenalty(usdc(1000), goal(500, 1000, 1000))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = domain.CalculatePenalty(usdc(10), goal(500, 1000, 10_001))
	assert.ErrorIs(t, err, domain.ErrInvalidPercentage)

	_, err = domain.CalculatePenalty(asset.NewAmountFromInt64(asset.BaseWETH, 10), goal(500, 1000, 100))
	assert.ErrorIs(t, err, domain.ErrInvalidComparison)
}

func TestGoalSavings_Withdraw(t *testing.T) {
	g, err := domain.NewGoalSavings(usdc(800), usdc(1000), 1000)
	require.NoError(t, err)

	res, next, err := g.Withdraw(usdc(300))
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Penalty.Raw().Int64())
	assert.Equal(t, int64(500), next.Current.Raw().Int64())
	assert.Equal(t, int64(800), g.Current.Raw().Int64(), "receiver unchanged")
}

func TestGoalSavings_DepositAndProgress(t *testing.T) {
	g := goal(250, 1000, 500)
	assert.Equal(t, domain.BasisPoints(2_500), g.ProgressBps())
	assert.False(t, g.GoalReached())

	g, err := g.Deposit(usdc(750))
	require.NoError(t, err)
	assert.True(t, g.GoalReached())
	assert.Equal(t, domain.MaxBps, g.ProgressBps())

	_, err = g.Deposit(asset.NewAmountFromInt64(asset.BaseWETH, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidComparison)

	assert.Equal(t, domain.MaxBps, goal(0, 0, 100).ProgressBps())
}

func TestNewGoalSavings_Invalid(t *testing.T) {
	_, err := domain.NewGoalSavings(usdc(1), usdc(2), 10_001)
	assert.ErrorIs(t, err, domain.ErrInvalidPercentage)
}
