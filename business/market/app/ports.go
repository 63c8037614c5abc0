// Package app contains application services and port definitions for the market context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/autosave-engine/business/market/domain"
)

// SnapshotHandler receives decoded oracle snapshots.
type SnapshotHandler func(ctx context.Context, snap domain.Snapshot)

// TickStream pushes snapshots as the oracle publishes them.
type TickStream interface {
	// Start connects and delivers snapshots to handler until Close.
	Start(ctx context.Context, handler SnapshotHandler) error
	// Connected reports whether the stream is currently live.
	Connected() bool
	Close() error
}

// SnapshotFetcher pulls the current snapshot for a pool on demand.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, pool common.Address) (domain.Snapshot, error)
}
