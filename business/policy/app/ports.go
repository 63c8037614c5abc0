// Package app contains application services and port definitions for the policy context.
package app

import (
	"context"

	market "github.com/fd1az/autosave-engine/business/market/domain"
)

// Executor carries out an eligible DCA decision. Building and signing the
// swap belongs to the implementation.
type Executor interface {
	Execute(ctx context.Context, order DCAOrder, decision DCADecision) error
}

// SnapshotSource streams market snapshots to the runner.
type SnapshotSource interface {
	Subscribe(ctx context.Context) (<-chan market.Snapshot, error)
}
