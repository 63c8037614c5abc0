// Package domain contains the market snapshot model fed to the policy engine.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	policy "github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
)

// Snapshot is one oracle observation of a pool.
type Snapshot struct {
	Pool          common.Address
	CurrentTick   policy.Tick
	ReferenceTick policy.Tick
	Volatility    policy.VolatilityLevel
	ObservedAt    time.Time
}

// TickMovement returns CurrentTick - ReferenceTick. Negative is a dip.
func (s Snapshot) TickMovement() int64 {
	return int64(s.CurrentTick) - int64(s.ReferenceTick)
}

// Validate rejects snapshots without a pool or timestamp.
func (s Snapshot) Validate() error {
	if s.Pool == (common.Address{}) {
		return apperror.Validation(apperror.CodeInvalidSnapshot, "pool address is empty")
	}
	if s.ObservedAt.IsZero() {
		return apperror.Validationf(apperror.CodeInvalidSnapshot, "pool %s: missing timestamp", s.Pool.Hex())
	}
	return nil
}

// NewerThan reports whether s was observed after other.
func (s Snapshot) NewerThan(other Snapshot) bool {
	return s.ObservedAt.After(other.ObservedAt)
}
