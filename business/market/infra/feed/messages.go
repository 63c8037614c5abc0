// Package feed implements the tick oracle adapters: a WebSocket stream and a
// REST snapshot client sharing one JSON wire format.
package feed

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/autosave-engine/business/market/domain"
	policy "github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
)

// SubscribeRequest asks the oracle to stream the given pools.
type SubscribeRequest struct {
	Op    string   `json:"op"` // "subscribe"
	Pools []string `json:"pools"`
}

// SnapshotMessage is the oracle wire format:
//
//	{"pool":"0x..","tick":-120,"referenceTick":-60,"volatility":"high","timestamp":1700000000}
//
// volatility is optional; timestamp is unix seconds.
type SnapshotMessage struct {
	Op            string `json:"op,omitempty"`
	Pool          string `json:"pool"`
	Tick          *int32 `json:"tick"`
	ReferenceTick *int32 `json:"referenceTick"`
	Volatility    string `json:"volatility,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// IsControl reports whether m is an acknowledgement rather than a snapshot.
func (m SnapshotMessage) IsControl() bool {
	return m.Op != "" && m.Pool == ""
}

// ToDomain validates m and converts it, classifying volatility from tick
// movement when the oracle omitted it.
func (m SnapshotMessage) ToDomain(thresholds domain.VolatilityThresholds) (domain.Snapshot, error) {
	if !common.IsHexAddress(m.Pool) {
		return domain.Snapshot{}, apperror.Validationf(apperror.CodeInvalidSnapshot, "invalid pool %q", m.Pool)
	}
	if m.Tick == nil || m.ReferenceTick == nil {
		return domain.Snapshot{}, apperror.Validationf(apperror.CodeInvalidSnapshot, "pool %s: missing tick", m.Pool)
	}
	if m.Timestamp <= 0 {
		return domain.Snapshot{}, apperror.Validationf(apperror.CodeInvalidSnapshot, "pool %s: missing timestamp", m.Pool)
	}

	snap := domain.Snapshot{
		Pool:          common.HexToAddress(m.Pool),
		CurrentTick:   policy.Tick(*m.Tick),
		ReferenceTick: policy.Tick(*m.ReferenceTick),
		ObservedAt:    time.Unix(m.Timestamp, 0).UTC(),
	}

	if m.Volatility == "" {
		snap.Volatility = domain.ClassifyVolatility(snap.TickMovement(), thresholds)
		return snap, nil
	}

	level, err := policy.ParseVolatilityLevel(m.Volatility)
	if err != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidSnapshot, apperror.WithCause(err), apperror.WithContext(m.Volatility))
	}
	snap.Volatility = level
	return snap, nil
}

func poolStrings(pools []common.Address) []string {
	out := make([]string, len(pools))
	for i, p := range pools {
		out[i] = p.Hex()
	}
	return out
}
