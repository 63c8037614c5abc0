package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/autosave-engine/business/market/domain"
	policy "github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/logger"
)

var testPool = common.HexToAddress("0xd0b53D9277642d899DF5C87A3966A349A798F224")

// oracleServer waits for a subscribe request, reports it, then pushes frames.
func oracleServer(t *testing.T, subscribed chan<- SubscribeRequest, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		var req SubscribeRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		subscribed <- req

		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
}

func TestStreamClient_DeliversSnapshots(t *testing.T) {
	subscribed := make(chan SubscribeRequest, 1)
	server := oracleServer(t, subscribed,
		`{"op":"subscribed"}`,
		`not json`,
		`{"pool":"0xd0b53D9277642d899DF5C87A3966A349A798F224","tick":-120,"referenceTick":-60,"volatility":"high","timestamp":1700000000}`,
	)
	defer server.Close()

	client, err := NewStreamClient(StreamConfig{
		URL:        "ws" + strings.TrimPrefix(server.URL, "http"),
		Pools:      []common.Address{testPool},
		Thresholds: domain.DefaultVolatilityThresholds(),
	}, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	got := make(chan domain.Snapshot, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Start(ctx, func(_ context.Context, snap domain.Snapshot) { got <- snap })
	require.NoError(t, err)
	assert.True(t, client.Connected())

	select {
	case req := <-subscribed:
		assert.Equal(t, "subscribe", req.Op)
		assert.Equal(t, []string{testPool.Hex()}, req.Pools)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe request")
	}

	select {
	case snap := <-got:
		assert.Equal(t, testPool, snap.Pool)
		assert.Equal(t, policy.Tick(-120), snap.CurrentTick)
		assert.Equal(t, policy.VolatilityHigh, snap.Volatility)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStreamClient_StartFailsWhenOracleDown(t *testing.T) {
	client, err := NewStreamClient(StreamConfig{URL: "ws://127.0.0.1:1"}, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	err = client.Start(context.Background(), func(context.Context, domain.Snapshot) {})
	assert.Error(t, err)
	assert.False(t, client.Connected())
}

func TestNewStreamClient_RequiresURL(t *testing.T) {
	_, err := NewStreamClient(StreamConfig{}, logger.NewNop())
	assert.Error(t, err)
}
