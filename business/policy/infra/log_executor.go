package infra

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/logger"
)

// LogExecutor records eligible DCA decisions in the structured log. Swap
// construction and signing happen outside this service.
type LogExecutor struct {
	log logger.LoggerInterface
}

var _ app.Executor = (*LogExecutor)(nil)

// NewLogExecutor creates a LogExecutor.
func NewLogExecutor(log logger.LoggerInterface) *LogExecutor {
	return &LogExecutor{log: log}
}

// Execute logs the decision with the on-chain encoded amount. amount_in is
// recomputed from the base amount in uint256 arithmetic and must equal the
// sized amount.
func (e *LogExecutor) Execute(ctx context.Context, order app.DCAOrder, decision app.DCADecision) error {
	if decision.Sizing == nil || decision.Sizing.Base.Asset() == nil {
		return errNotSized(order.ID)
	}
	amountIn, err := onChainAmount(*decision.Sizing)
	if err != nil {
		return err
	}

	e.log.Info(ctx, "dca order ready",
		"order", order.ID,
		"pool", decision.Snapshot.Pool.Hex(),
		"tick", int32(decision.Snapshot.CurrentTick),
		"reference_tick", int32(decision.Snapshot.ReferenceTick),
		"volatility", decision.Snapshot.Volatility.String(),
		"multiplier_bps", uint32(decision.Sizing.EffectiveMultiplierBps),
		"asset", decision.Sizing.Amount.Asset().Ref(),
		"amount", decision.Sizing.Amount.String(),
		"amount_in", amountIn.Dec())
	return nil
}

func onChainAmount(sized domain.SizingResult) (*uint256.Int, error) {
	base, err := domain.ToU256(sized.Base)
	if err != nil {
		return nil, err
	}
	amountIn, err := domain.MulDivBpsU256(base, sized.EffectiveMultiplierBps)
	if err != nil {
		return nil, err
	}
	want, err := domain.ToU256(sized.Amount)
	if err != nil {
		return nil, err
	}
	if !amountIn.Eq(want) {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithContext(fmt.Sprintf("amount_in %s != sized amount %s", amountIn.Dec(), want.Dec())))
	}
	return amountIn, nil
}

func errNotSized(orderID string) error {
	return apperror.New(apperror.CodeInvalidInput,
		apperror.WithContext(fmt.Sprintf("order %s: decision has no sizing", orderID)))
}
