package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	market "github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/business/policy/domain"
)

type commandFunc func(ctx context.Context, e *env, args []string) error

var commands = map[string]commandFunc{
	"split":    runSplit,
	"size":     runSize,
	"tick":     runTick,
	"slippage": runSlippage,
	"penalty":  runPenalty,
	"serve":    runServe,
}

func runSplit(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("split")
	amount := fs.String("amount", "", "Swap input in token units, e.g. 100.5")
	ref := fs.String("asset", "", "Input asset (default policy.sizing.asset)")
	percent := fs.String("percent", "", "Save percentage (default policy.save_percentage)")
	roundUp := fs.Bool("round-up", false, "Round the saved portion up")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pc, err := e.policyConfig()
	if err != nil {
		return err
	}
	if *percent != "" {
		if pc.SavePercentage, err = percentFlag("percent", *percent); err != nil {
			return err
		}
	}
	if isSet(fs, "round-up") {
		pc.RoundUp = *roundUp
	}

	a, err := e.asset(*ref)
	if err != nil {
		return err
	}
	input, err := amountFlag(a, "amount", *amount)
	if err != nil {
		return err
	}

	svc, err := e.service(pc)
	if err != nil {
		return err
	}
	res, err := svc.SplitSwap(ctx, input)
	if err != nil {
		return err
	}

	line(e.stdout, "Input", input)
	line(e.stdout, "Save ("+pc.SavePercentage.String()+")", res.Save)
	line(e.stdout, "Swap", res.Swap)
	return nil
}

func runSize(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("size")
	current := fs.Int("current", 0, "Current pool tick")
	reference := fs.Int("reference", 0, "Reference tick")
	volatility := fs.String("volatility", "", "low|medium|high|maximum (default: classified from movement)")
	base := fs.String("base", "", "Base amount (default policy.sizing.base_amount)")
	multiplier := fs.String("multiplier", "", "Volatility multiplier percent")
	minMult := fs.String("min", "", "Minimum multiplier percent")
	maxMult := fs.String("max", "", "Maximum multiplier percent")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, err := e.snapshot(*current, *reference, *volatility)
	if err != nil {
		return err
	}

	pc, err := e.policyConfig()
	if err != nil {
		return err
	}
	sizing := pc.Sizing
	if *base != "" {
		if sizing.BaseAmount, err = amountFlag(sizing.BaseAmount.Asset(), "base", *base); err != nil {
			return err
		}
	}
	for _, o := range []struct {
		field string
		value string
		dst   *domain.BasisPoints
	}{
		{"multiplier", *multiplier, &sizing.VolatilityMultiplierBps},
		{"min", *minMult, &sizing.MinMultiplierBps},
		{"max", *maxMult, &sizing.MaxMultiplierBps},
	} {
		if o.value == "" {
			continue
		}
		if *o.dst, err = percentFlag(o.field, o.value); err != nil {
			return err
		}
	}

	svc, err := e.service(pc)
	if err != nil {
		return err
	}
	res, err := svc.SizeDCA(ctx, &sizing, snap)
	if err != nil {
		return err
	}

	branch := "rally (inverse multiplier)"
	if res.Dip {
		branch = "dip (direct multiplier)"
	}
	line(e.stdout, "Movement", snap.TickMovement())
	line(e.stdout, "Volatility", snap.Volatility)
	line(e.stdout, "Branch", branch)
	line(e.stdout, "Raw multiplier", domain.BasisPoints(min(res.RawMultiplierBps, uint64(^uint32(0)))))
	line(e.stdout, "Effective", res.EffectiveMultiplierBps)
	line(e.stdout, "Clamped", res.Clamped)
	line(e.stdout, "Base", sizing.BaseAmount)
	line(e.stdout, "Amount", res.Amount)
	return nil
}

func runTick(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("tick")
	current := fs.Int("current", 0, "Current pool tick")
	reference := fs.Int("reference", 0, "Reference tick")
	lower := fs.Int("lower", -887272, "Lower tick bound")
	upper := fs.Int("upper", 887272, "Upper tick bound")
	delta := fs.Uint("delta", 0, "Minimum |current - reference|")
	expiry := fs.Duration("expiry", 24*time.Hour, "Order lifetime")
	elapsed := fs.Duration("elapsed", 0, "Time since the order started")
	side := fs.String("side", "token0", "token0 (buy token0) or token1")
	onlyImprove := fs.Bool("only-improve", false, "Require the move to improve the buy price")
	volatility := fs.String("volatility", "", "Volatility for sizing (default: classified)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lo, err := tickFlag("lower", *lower)
	if err != nil {
		return err
	}
	hi, err := tickFlag("upper", *upper)
	if err != nil {
		return err
	}
	snap, err := e.snapshot(*current, *reference, *volatility)
	if err != nil {
		return err
	}

	order := app.DCAOrder{
		ID:   "cli",
		Pool: snap.Pool,
		Side: domain.BuyToken0,
		Strategy: domain.TickStrategy{
			LowerTick:        lo,
			UpperTick:        hi,
			TickDelta:        uint32(min(*delta, uint(^uint32(0)))),
			ExpirySeconds:    uint64(max(*expiry, 0) / time.Second),
			OnlyImprovePrice: *onlyImprove,
		},
		StartedAt: snap.ObservedAt,
	}
	if order.Side, err = domain.ParseSide(*side); err != nil {
		return err
	}

	pc, err := e.policyConfig()
	if err != nil {
		return err
	}
	now := snap.ObservedAt.Add(*elapsed)
	svc, err := e.service(pc, app.WithClock(func() time.Time { return now }))
	if err != nil {
		return err
	}
	decision, err := svc.EvaluateDCA(ctx, order, snap)
	if err != nil {
		return err
	}

	line(e.stdout, "Eligible", decision.Eligibility.Eligible)
	line(e.stdout, "Reason", decision.Eligibility.Reason)
	line(e.stdout, "Tick delta", decision.Eligibility.Delta)
	if decision.Sizing != nil {
		line(e.stdout, "Amount", decision.Sizing.Amount)
	}
	return nil
}

func runSlippage(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("slippage")
	expected := fs.String("expected", "", "Quoted output")
	actual := fs.String("actual", "", "Realized output")
	ref := fs.String("asset", "", "Output asset (default policy.sizing.asset)")
	tolerance := fs.String("tolerance", "", "Tolerance percent (default policy.slippage.tolerance)")
	action := fs.String("action", "", "revert|skip_swap|continue_anyway|retry_with_higher_tolerance")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pc, err := e.policyConfig()
	if err != nil {
		return err
	}
	if *tolerance != "" {
		if pc.Slippage.GlobalBps, err = percentFlag("tolerance", *tolerance); err != nil {
			return err
		}
		pc.Slippage.PerTokenOverrideBps = nil
	}
	if *action != "" {
		if pc.SlippageAction, err = domain.ParseSlippageAction(*action); err != nil {
			return err
		}
	}

	a, err := e.asset(*ref)
	if err != nil {
		return err
	}
	exp, err := amountFlag(a, "expected", *expected)
	if err != nil {
		return err
	}
	act, err := amountFlag(a, "actual", *actual)
	if err != nil {
		return err
	}

	svc, err := e.service(pc)
	if err != nil {
		return err
	}
	res, err := svc.ReviewSwap(ctx, exp, act)
	if err != nil {
		return err
	}
	floor, err := svc.MinimumOutput(exp)
	if err != nil {
		return err
	}

	line(e.stdout, "Slippage", res.SlippageBps)
	line(e.stdout, "Tolerance", res.ToleranceBps)
	line(e.stdout, "Within", res.WithinTolerance)
	line(e.stdout, "Action", res.Action)
	line(e.stdout, "Minimum output", floor)
	return nil
}

func runPenalty(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("penalty")
	current := fs.String("current", "", "Current goal balance")
	goal := fs.String("goal", "", "Goal amount")
	penalty := fs.String("penalty", "", "Early-withdrawal penalty percent")
	amount := fs.String("amount", "", "Withdrawal amount")
	ref := fs.String("asset", "", "Savings asset (default policy.sizing.asset)")
	apply := fs.Bool("apply", false, "Check the balance and show the remaining savings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := e.asset(*ref)
	if err != nil {
		return err
	}
	cur, err := amountFlag(a, "current", *current)
	if err != nil {
		return err
	}
	target, err := amountFlag(a, "goal", *goal)
	if err != nil {
		return err
	}
	withdraw, err := amountFlag(a, "amount", *amount)
	if err != nil {
		return err
	}
	bps, err := percentFlag("penalty", *penalty)
	if err != nil {
		return err
	}
	savings, err := domain.NewGoalSavings(cur, target, bps)
	if err != nil {
		return err
	}

	pc, err := e.policyConfig()
	if err != nil {
		return err
	}
	svc, err := e.service(pc)
	if err != nil {
		return err
	}

	line(e.stdout, "Progress", savings.ProgressBps())
	if *apply {
		res, next, err := svc.Withdraw(ctx, savings, withdraw)
		if err != nil {
			return err
		}
		line(e.stdout, "Penalty", res.Penalty)
		line(e.stdout, "Net", res.Net)
		line(e.stdout, "Remaining", next.Current)
		return nil
	}

	res, err := svc.QuoteWithdrawal(ctx, savings, withdraw)
	if err != nil {
		return err
	}
	line(e.stdout, "Penalty", res.Penalty)
	line(e.stdout, "Net", res.Net)
	return nil
}

// snapshot builds a synthetic market snapshot for the calculator commands.
func (e *env) snapshot(current, reference int, volatility string) (market.Snapshot, error) {
	cur, err := tickFlag("current", current)
	if err != nil {
		return market.Snapshot{}, err
	}
	ref, err := tickFlag("reference", reference)
	if err != nil {
		return market.Snapshot{}, err
	}

	snap := market.Snapshot{
		Pool:          common.Address{},
		CurrentTick:   cur,
		ReferenceTick: ref,
		ObservedAt:    time.Unix(0, 0).UTC(),
	}
	if volatility == "" {
		t := e.cfg.Market.Thresholds
		snap.Volatility = market.ClassifyVolatility(snap.TickMovement(), market.VolatilityThresholds{
			Medium: t.Medium, High: t.High, Maximum: t.Maximum,
		})
		return snap, nil
	}
	if snap.Volatility, err = domain.ParseVolatilityLevel(volatility); err != nil {
		return market.Snapshot{}, err
	}
	return snap, nil
}
