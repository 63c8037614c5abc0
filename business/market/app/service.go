package app

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/logger"
)

const subscriberBuffer = 64

// MarketService keeps the latest snapshot per pool and fans updates out to
// subscribers. Out-of-order snapshots are dropped.
type MarketService struct {
	stream  TickStream
	fetcher SnapshotFetcher
	pools   []common.Address
	log     logger.LoggerInterface

	mu     sync.RWMutex
	latest map[common.Address]domain.Snapshot
	subs   map[int]chan domain.Snapshot
	nextID int
}

// NewMarketService creates a MarketService. stream and fetcher may be nil.
func NewMarketService(stream TickStream, fetcher SnapshotFetcher, pools []common.Address, log logger.LoggerInterface) *MarketService {
	return &MarketService{
		stream:  stream,
		fetcher: fetcher,
		pools:   pools,
		log:     log,
		latest:  make(map[common.Address]domain.Snapshot),
		subs:    make(map[int]chan domain.Snapshot),
	}
}

// Start seeds the store from the fetcher, then starts the stream.
func (s *MarketService) Start(ctx context.Context) error {
	if s.fetcher != nil {
		for _, pool := range s.pools {
			if _, err := s.Refresh(ctx, pool); err != nil {
				s.log.Warn(ctx, "initial snapshot fetch failed", "pool", pool.Hex(), "error", err)
			}
		}
	}

	if s.stream == nil {
		return nil
	}
	return s.stream.Start(ctx, func(ctx context.Context, snap domain.Snapshot) {
		s.Publish(ctx, snap)
	})
}

// Publish stores snap and notifies subscribers. It reports whether snap was
// accepted. A snapshot must be strictly newer than the pool's latest; oracle
// timestamps are whole seconds, so a second update for a pool within the same
// second is dropped as stale.
func (s *MarketService) Publish(ctx context.Context, snap domain.Snapshot) bool {
	if err := snap.Validate(); err != nil {
		s.log.Warn(ctx, "dropping invalid snapshot", "error", err)
		return false
	}

	s.mu.Lock()
	if prev, ok := s.latest[snap.Pool]; ok && !snap.NewerThan(prev) {
		s.mu.Unlock()
		s.log.Debug(ctx, "dropping stale snapshot",
			"pool", snap.Pool.Hex(),
			"observed_at", snap.ObservedAt,
			"latest", prev.ObservedAt)
		return false
	}
	s.latest[snap.Pool] = snap

	for id, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			s.log.Warn(ctx, "subscriber lagging, snapshot dropped", "subscriber", id, "pool", snap.Pool.Hex())
		}
	}
	s.mu.Unlock()

	return true
}

// Latest returns the most recent snapshot for pool.
func (s *MarketService) Latest(pool common.Address) (domain.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.latest[pool]
	s.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, apperror.NotFound(apperror.CodeSnapshotNotFound, pool.Hex())
	}
	return snap, nil
}

// Refresh fetches a snapshot for pool over the fallback client and publishes it.
func (s *MarketService) Refresh(ctx context.Context, pool common.Address) (domain.Snapshot, error) {
	if s.fetcher == nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeServiceUnavailable,
			apperror.WithContext("no snapshot fetcher configured"))
	}
	snap, err := s.fetcher.FetchSnapshot(ctx, pool)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.Publish(ctx, snap)
	return snap, nil
}

// Subscribe returns a channel of accepted snapshots. It is closed when ctx is
// done.
func (s *MarketService) Subscribe(ctx context.Context) (<-chan domain.Snapshot, error) {
	ch := make(chan domain.Snapshot, subscriberBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// Healthy reports whether the stream is live, or, without a stream, whether
// any snapshot arrived within maxAge.
func (s *MarketService) Healthy(maxAge time.Duration) (bool, string) {
	if s.stream != nil && s.stream.Connected() {
		return true, "stream connected"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.latest {
		if time.Since(snap.ObservedAt) <= maxAge {
			return true, "recent snapshot"
		}
	}
	return false, "no live stream and no recent snapshot"
}

// Close stops the stream.
func (s *MarketService) Close() error {
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}
