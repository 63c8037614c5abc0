// Package infra contains Executor adapters for the policy context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/autosave-engine/business/policy/app"
)

const rule = "--------------------------------------------------------------------------------"

// ConsoleExecutor prints each eligible DCA decision as a text block. It is a
// dry-run executor; nothing leaves the process.
type ConsoleExecutor struct {
	mu  sync.Mutex
	out io.Writer
}

var _ app.Executor = (*ConsoleExecutor)(nil)

// NewConsoleExecutor writes to w, or stdout when w is nil.
func NewConsoleExecutor(w io.Writer) *ConsoleExecutor {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleExecutor{out: w}
}

// Execute prints the decision.
func (e *ConsoleExecutor) Execute(_ context.Context, order app.DCAOrder, decision app.DCADecision) error {
	if decision.Sizing == nil || decision.Sizing.Base.Asset() == nil {
		return errNotSized(order.ID)
	}
	amountIn, err := onChainAmount(*decision.Sizing)
	if err != nil {
		return err
	}

	snap := decision.Snapshot
	e.mu.Lock()
	defer e.mu.Unlock()

	fmt.Fprintln(e.out, rule)
	fmt.Fprintf(e.out, "DCA ORDER %s\n", order.ID)
	fmt.Fprintln(e.out, rule)
	fmt.Fprintf(e.out, "Decided:        %s\n", decision.DecidedAt.Format(time.RFC3339))
	fmt.Fprintf(e.out, "Pool:           %s\n", snap.Pool.Hex())
	fmt.Fprintf(e.out, "Tick:           %d (reference %d, movement %d)\n", snap.CurrentTick, snap.ReferenceTick, snap.TickMovement())
	fmt.Fprintf(e.out, "Volatility:     %s\n", snap.Volatility)
	fmt.Fprintf(e.out, "Multiplier:     %s", decision.Sizing.EffectiveMultiplierBps)
	if decision.Sizing.Clamped {
		fmt.Fprint(e.out, " (clamped)")
	}
	fmt.Fprintln(e.out)
	fmt.Fprintf(e.out, "Amount:         %s\n", decision.Sizing.Amount)
	fmt.Fprintf(e.out, "Amount (raw):   %s\n", amountIn.Dec())
	fmt.Fprintln(e.out, rule)
	return nil
}
