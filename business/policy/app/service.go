package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	market "github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apm"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/asset"
	"github.com/fd1az/autosave-engine/internal/logger"
)

const (
	tracerName = "policy"
	meterName  = "policy"

	metricDecisions = "policy_decisions_total"
)

// Policy names used as the "policy" metric attribute.
const (
	PolicySplit    = "split"
	PolicySizing   = "sizing"
	PolicyTick     = "tick"
	PolicySlippage = "slippage"
	PolicyPenalty  = "penalty"
)

// DCADecision is the outcome of evaluating one order against one snapshot.
// Sizing is set only when the order is eligible.
type DCADecision struct {
	OrderID     string
	Eligibility domain.Eligibility
	Sizing      *domain.SizingResult
	Snapshot    market.Snapshot
	DecidedAt   time.Time
}

type options struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	now            func() time.Time
}

// Option configures a PolicyService.
type Option func(*options)

// WithMeterProvider sets the OTEL meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the OTEL tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithClock overrides time.Now for order expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// PolicyService applies the configured policies. It holds no monetary state;
// every result is derived from the call's arguments and the configuration.
type PolicyService struct {
	cfg       Config
	sizer     domain.SizingPolicy
	log       logger.LoggerInterface
	tracer    apm.Tracer
	decisions metric.Int64Counter
	now       func() time.Time
}

// NewPolicyService validates cfg and creates the service.
func NewPolicyService(cfg Config, log logger.LoggerInterface, opts ...Option) (*PolicyService, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sizer, err := domain.NewSizingPolicy(cfg.Tiers)
	if err != nil {
		return nil, err
	}

	decisions, err := o.meterProvider.Meter(meterName).Int64Counter(
		metricDecisions,
		metric.WithDescription("Policy evaluations by policy and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &PolicyService{
		cfg:       cfg,
		sizer:     sizer,
		log:       log,
		tracer:    apm.NewTracerFromProvider(o.tracerProvider, tracerName),
		decisions: decisions,
		now:       o.now,
	}, nil
}

// Config returns the configuration the service was built with.
func (s *PolicyService) Config() Config {
	return s.cfg
}

// SplitSwap splits a swap input into save and swap portions using the
// configured save percentage and rounding.
func (s *PolicyService) SplitSwap(ctx context.Context, input asset.Amount) (domain.SplitResult, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "policy.split")
	defer span.End()

	res, err := domain.Split(input, s.cfg.SavePercentage, s.cfg.RoundUp)
	if err != nil {
		return domain.SplitResult{}, s.reject(ctx, span, PolicySplit, err)
	}

	span.SetAttributes(
		attribute.Int64("policy.save_bps", int64(s.cfg.SavePercentage)),
		attribute.Bool("policy.round_up", s.cfg.RoundUp),
	)
	s.record(ctx, PolicySplit, "ok")
	s.log.Debug(ctx, "split computed",
		"input", input.String(),
		"save", res.Save.String(),
		"swap", res.Swap.String())
	return res, nil
}

// SizeDCA resizes a DCA buy from snap's tick movement and volatility. A nil
// sizing uses the configured one.
func (s *PolicyService) SizeDCA(ctx context.Context, sizing *domain.DynamicSizingConfig, snap market.Snapshot) (domain.SizingResult, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "policy.size")
	defer span.End()

	res, err := s.size(sizing, snap)
	if err != nil {
		return domain.SizingResult{}, s.reject(ctx, span, PolicySizing, err)
	}

	span.SetAttributes(
		attribute.Int64("policy.tick_movement", snap.TickMovement()),
		attribute.String("policy.volatility", snap.Volatility.String()),
		attribute.Int64("policy.effective_bps", int64(res.EffectiveMultiplierBps)),
	)
	s.record(ctx, PolicySizing, sizingOutcome(res))
	s.log.Debug(ctx, "dca sized",
		"pool", snap.Pool.Hex(),
		"movement", snap.TickMovement(),
		"volatility", snap.Volatility.String(),
		"multiplier_bps", uint32(res.EffectiveMultiplierBps),
		"clamped", res.Clamped,
		"amount", res.Amount.String())
	return res, nil
}

func (s *PolicyService) size(sizing *domain.DynamicSizingConfig, snap market.Snapshot) (domain.SizingResult, error) {
	cfg := s.cfg.Sizing
	if sizing != nil {
		cfg = *sizing
	}
	return s.sizer.Size(cfg, snap.TickMovement(), snap.Volatility)
}

func sizingOutcome(res domain.SizingResult) string {
	switch {
	case res.Clamped:
		return "clamped"
	case res.Dip:
		return "dip"
	default:
		return "rally"
	}
}

// EvaluateDCA checks whether order may execute on snap and, if so, sizes it.
func (s *PolicyService) EvaluateDCA(ctx context.Context, order DCAOrder, snap market.Snapshot) (DCADecision, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "policy.evaluate_dca")
	defer span.End()
	span.SetAttributes(attribute.String("policy.order_id", order.ID))

	if snap.Pool != order.Pool {
		err := apperror.Validationf(apperror.CodeInvalidInput, "order %s is for pool %s, snapshot is for %s",
			order.ID, order.Pool.Hex(), snap.Pool.Hex())
		return DCADecision{}, s.reject(ctx, span, PolicyTick, err)
	}

	now := s.now()
	elig, err := domain.EvaluateTick(
		order.Strategy,
		snap.CurrentTick,
		snap.ReferenceTick,
		elapsedSeconds(order.StartedAt, now),
		domain.ImprovesPrice(order.Side, snap.CurrentTick, snap.ReferenceTick),
	)
	if err != nil {
		return DCADecision{}, s.reject(ctx, span, PolicyTick, err)
	}

	decision := DCADecision{
		OrderID:     order.ID,
		Eligibility: elig,
		Snapshot:    snap,
		DecidedAt:   now,
	}
	span.SetAttributes(attribute.String("policy.reason", elig.Reason.String()))
	s.record(ctx, PolicyTick, elig.Reason.String())

	if !elig.Eligible {
		s.log.Debug(ctx, "dca order not eligible", "order", order.ID, "reason", elig.Reason.String(), "delta", elig.Delta)
		return decision, nil
	}

	sized, err := s.size(order.Sizing, snap)
	if err != nil {
		return DCADecision{}, s.reject(ctx, span, PolicySizing, err)
	}
	s.record(ctx, PolicySizing, sizingOutcome(sized))
	decision.Sizing = &sized

	s.log.Info(ctx, "dca order eligible",
		"order", order.ID,
		"pool", snap.Pool.Hex(),
		"tick", int32(snap.CurrentTick),
		"amount", sized.Amount.String())
	return decision, nil
}

func elapsedSeconds(start, now time.Time) uint64 {
	if now.Before(start) {
		return 0
	}
	return uint64(now.Sub(start) / time.Second)
}

// ReviewSwap compares a swap's realized output with the quote, using the
// tolerance configured for the output token.
func (s *PolicyService) ReviewSwap(ctx context.Context, expected, actual asset.Amount) (domain.SlippageResult, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "policy.review_swap")
	defer span.End()

	res, err := domain.CheckSlippage(expected, actual, tokenOf(expected), s.cfg.Slippage, s.cfg.SlippageAction)
	if err != nil {
		return domain.SlippageResult{}, s.reject(ctx, span, PolicySlippage, err)
	}

	outcome := "within"
	if !res.WithinTolerance {
		outcome = res.Action.String()
	}
	span.SetAttributes(
		attribute.Int64("policy.slippage_bps", int64(res.SlippageBps)),
		attribute.Int64("policy.tolerance_bps", int64(res.ToleranceBps)),
	)
	s.record(ctx, PolicySlippage, outcome)

	if !res.WithinTolerance {
		s.log.Warn(ctx, "slippage above tolerance",
			"expected", expected.String(),
			"actual", actual.String(),
			"slippage", res.SlippageBps.String(),
			"tolerance", res.ToleranceBps.String(),
			"action", res.Action.String())
	}
	return res, nil
}

// MinimumOutput returns the least output a swap quoted at expected may
// accept under the configured tolerance.
func (s *PolicyService) MinimumOutput(expected asset.Amount) (asset.Amount, error) {
	return domain.MinimumOutput(expected, s.cfg.Slippage.ToleranceFor(tokenOf(expected)))
}

func tokenOf(a asset.Amount) asset.AssetID {
	if a.Asset() == nil {
		return asset.AssetID{}
	}
	return a.Asset().ID()
}

// Withdraw takes amount out of goal, charging the early-withdrawal penalty.
// It returns the penalty split and the balance after the withdrawal.
func (s *PolicyService) Withdraw(ctx context.Context, goal domain.GoalSavings, amount asset.Amount) (domain.PenaltyResult, domain.GoalSavings, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "policy.withdraw")
	defer span.End()

	res, next, err := goal.Withdraw(amount)
	if err != nil {
		return domain.PenaltyResult{}, domain.GoalSavings{}, s.reject(ctx, span, PolicyPenalty, err)
	}
	s.recordPenalty(ctx, res)
	s.log.Info(ctx, "goal withdrawal",
		"amount", amount.String(),
		"penalty", res.Penalty.String(),
		"net", res.Net.String(),
		"remaining", next.Current.String())
	return res, next, nil
}

// QuoteWithdrawal prices a withdrawal without checking the balance.
func (s *PolicyService) QuoteWithdrawal(ctx context.Context, goal domain.GoalSavings, amount asset.Amount) (domain.PenaltyResult, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "policy.quote_withdrawal")
	defer span.End()

	res, err := domain.QuotePenalty(amount, goal)
	if err != nil {
		return domain.PenaltyResult{}, s.reject(ctx, span, PolicyPenalty, err)
	}
	s.recordPenalty(ctx, res)
	return res, nil
}

func (s *PolicyService) recordPenalty(ctx context.Context, res domain.PenaltyResult) {
	outcome := "free"
	if !res.Penalty.IsZero() {
		outcome = "penalized"
	}
	s.record(ctx, PolicyPenalty, outcome)
}

func (s *PolicyService) record(ctx context.Context, policy, outcome string) {
	s.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", policy),
		attribute.String("outcome", outcome),
	))
}

// reject records a failed evaluation and returns err unchanged.
func (s *PolicyService) reject(ctx context.Context, span apm.Span, policy string, err error) error {
	span.NoticeError(err)
	s.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", policy),
		attribute.String("outcome", "error"),
		attribute.String("code", string(apperror.GetCode(err))),
	))
	s.log.Warn(ctx, "policy rejected input", "policy", policy, "error", err)
	return err
}
