package app

import (
	"context"
	"sync"

	market "github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/logger"
	"github.com/fd1az/autosave-engine/internal/ratelimit"
)

// OrderStatus is the lifecycle state of a DCA order inside the runner.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderExecuted OrderStatus = "executed"
	OrderExpired  OrderStatus = "expired"
)

// DCARunner evaluates tick-triggered orders against every market snapshot and
// hands eligible ones to the Executor. Orders fire at most once; an order
// stays pending after a failed execution and is retried on the next snapshot.
type DCARunner struct {
	policy   *PolicyService
	source   SnapshotSource
	executor Executor
	limiter  *ratelimit.Limiter
	log      logger.LoggerInterface

	mu     sync.Mutex
	orders []DCAOrder
	status map[string]OrderStatus
}

// NewDCARunner creates a runner. limiter may be nil for no throttling.
func NewDCARunner(
	policy *PolicyService,
	source SnapshotSource,
	executor Executor,
	limiter *ratelimit.Limiter,
	orders []DCAOrder,
	log logger.LoggerInterface,
) (*DCARunner, error) {
	status := make(map[string]OrderStatus, len(orders))
	for _, o := range orders {
		if o.ID == "" {
			return nil, apperror.Validationf(apperror.CodeInvalidInput, "dca order without id")
		}
		if _, dup := status[o.ID]; dup {
			return nil, apperror.Validationf(apperror.CodeInvalidInput, "duplicate dca order id %q", o.ID)
		}
		if err := o.Strategy.Validate(); err != nil {
			return nil, err
		}
		if o.Sizing != nil {
			if err := o.Sizing.Validate(); err != nil {
				return nil, err
			}
		}
		status[o.ID] = OrderPending
	}

	own := make([]DCAOrder, len(orders))
	copy(own, orders)

	return &DCARunner{
		policy:   policy,
		source:   source,
		executor: executor,
		limiter:  limiter,
		log:      log,
		orders:   own,
		status:   status,
	}, nil
}

// Run consumes snapshots until ctx is done or the source closes its channel.
func (r *DCARunner) Run(ctx context.Context) error {
	snapshots, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	r.log.Info(ctx, "dca runner started", "orders", len(r.orders))
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
			r.Process(ctx, snap)
		}
	}
}

// Process evaluates every pending order on snap's pool and returns the
// decisions that were executed.
func (r *DCARunner) Process(ctx context.Context, snap market.Snapshot) []DCADecision {
	var executed []DCADecision

	for _, order := range r.pending(snap) {
		decision, err := r.policy.EvaluateDCA(ctx, order, snap)
		if err != nil {
			r.log.Error(ctx, "dca evaluation failed", "order", order.ID, "error", err)
			continue
		}

		if decision.Eligibility.Reason == domain.ReasonExpired {
			r.setStatus(order.ID, OrderExpired)
			r.log.Info(ctx, "dca order expired", "order", order.ID)
			continue
		}
		if !decision.Eligibility.Eligible {
			continue
		}

		if err := r.executor.Execute(ctx, order, decision); err != nil {
			r.log.Error(ctx, "dca execution failed", "order", order.ID, "error", err)
			continue
		}
		r.setStatus(order.ID, OrderExecuted)
		executed = append(executed, decision)
	}

	return executed
}

// Status returns the state of the order with id.
func (r *DCARunner) Status(id string) (OrderStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.status[id]
	return s, ok
}

// Statuses returns a copy of every order's state keyed by order id.
func (r *DCARunner) Statuses() map[string]OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OrderStatus, len(r.status))
	for id, s := range r.status {
		out[id] = s
	}
	return out
}

// Pending returns the number of orders still waiting to fire.
func (r *DCARunner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.status {
		if s == OrderPending {
			n++
		}
	}
	return n
}

func (r *DCARunner) pending(snap market.Snapshot) []DCAOrder {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []DCAOrder
	for _, o := range r.orders {
		if o.Pool == snap.Pool && r.status[o.ID] == OrderPending {
			out = append(out, o)
		}
	}
	return out
}

func (r *DCARunner) setStatus(id string, s OrderStatus) {
	r.mu.Lock()
	r.status[id] = s
	r.mu.Unlock()
}
