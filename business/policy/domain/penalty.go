package domain

import (
	"math/big"

	"github.com/fd1az/autosave-engine/internal/asset"
)

// GoalSavings is a savings balance working towards a goal. Withdrawing before
// the goal is reached costs PenaltyBps of the withdrawn amount.
type GoalSavings struct {
	Current    asset.Amount
	Goal       asset.Amount
	PenaltyBps BasisPoints
}

// NewGoalSavings validates and builds a GoalSavings.
func NewGoalSavings(current, goal asset.Amount, penalty BasisPoints) (GoalSavings, error) {
	g := GoalSavings{Current: current, Goal: goal, PenaltyBps: penalty}
	if err := g.Validate(); err != nil {
		return GoalSavings{}, err
	}
	return g, nil
}

// Validate checks the penalty rate and that balance and goal share an asset.
func (g GoalSavings) Validate() error {
	if err := g.PenaltyBps.ValidatePercentage("penalty"); err != nil {
		return err
	}
	if !g.Current.SameAsset(g.Goal) {
		return invalidComparison("balance %s vs goal %s", g.Current, g.Goal)
	}
	return nil
}

// GoalReached reports whether the balance is at or above the goal.
func (g GoalSavings) GoalReached() bool {
	return g.Current.Raw().Cmp(g.Goal.Raw()) >= 0
}

// ProgressBps returns Current/Goal in basis points, capped at 10000.
// A zero goal counts as reached.
func (g GoalSavings) ProgressBps() BasisPoints {
	if g.Goal.IsZero() || g.GoalReached() {
		return MaxBps
	}
	// Current < Goal here, so the share fits below 10000.
	p, _ := MulDivBpsInverse(g.Current.Raw(), g.Goal.Raw())
	return BasisPoints(p.Uint64())
}

// Deposit returns g with amount added to the balance.
func (g GoalSavings) Deposit(amount asset.Amount) (GoalSavings, error) {
	if !g.Current.SameAsset(amount) {
		return GoalSavings{}, invalidComparison("deposit %s into %s balance", amount, g.Current)
	}
	g.Current = g.Current.MustAdd(amount)
	return g, nil
}

// Withdraw computes the penalty for amount and returns the resulting balance.
// The full amount leaves the balance; the caller receives Net.
func (g GoalSavings) Withdraw(amount asset.Amount) (PenaltyResult, GoalSavings, error) {
	res, err := CalculatePenalty(amount, g)
	if err != nil {
		return PenaltyResult{}, GoalSavings{}, err
	}
	g.Current = g.Current.MustSub(amount)
	return res, g, nil
}

// PenaltyResult splits a withdrawal into the forfeited penalty and the net
// amount paid out. Penalty + Net equals the withdrawal.
type PenaltyResult struct {
	Penalty asset.Amount
	Net     asset.Amount
}

// QuotePenalty prices a withdrawal without checking it against the balance:
// zero once the goal is reached, otherwise floor(withdraw * PenaltyBps / 10000).
func QuotePenalty(withdraw asset.Amount, goal GoalSavings) (PenaltyResult, error) {
	if err := goal.Validate(); err != nil {
		return PenaltyResult{}, err
	}
	if !withdraw.SameAsset(goal.Current) {
		return PenaltyResult{}, invalidComparison("withdraw %s from %s balance", withdraw, goal.Current)
	}

	penalty := withdraw.WithRaw(new(big.Int))
	if !goal.GoalReached() {
		penalty = ApplyBps(withdraw, goal.PenaltyBps)
	}
	return PenaltyResult{
		Penalty: penalty,
		Net:     withdraw.MustSub(penalty),
	}, nil
}

// CalculatePenalty is QuotePenalty for a withdrawal that must be covered by
// the current balance.
func CalculatePenalty(withdraw asset.Amount, goal GoalSavings) (PenaltyResult, error) {
	if err := goal.Validate(); err != nil {
		return PenaltyResult{}, err
	}
	if !withdraw.SameAsset(goal.Current) {
		return PenaltyResult{}, invalidComparison("withdraw %s from %s balance", withdraw, goal.Current)
	}
	if withdraw.Raw().Cmp(goal.Current.Raw()) > 0 {
		return PenaltyResult{}, insufficientBalance("withdraw %s exceeds balance %s", withdraw, goal.Current)
	}
	return QuotePenalty(withdraw, goal)
}
