package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/autosave-engine/internal/apperror"
)

// mockWSServer starts a WebSocket server running handler per connection.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// newTestClient builds a client with pings and reconnects off.
func newTestClient(t *testing.T, url string, tweak func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(url, "test")
	cfg.PingInterval = 0
	cfg.AutoReconnect = false
	if tweak != nil {
		tweak(&cfg)
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func echoHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}

func drainHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(DefaultConfig("", "test")); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClient_Connect_Success(t *testing.T) {
	server := mockWSServer(t, drainHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if client.State() != StateConnected {
		t.Errorf("expected state %v, got %v", StateConnected, client.State())
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected() to return true")
	}
}

func TestClient_Connect_Failure(t *testing.T) {
	client := newTestClient(t, "ws://127.0.0.1:1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Connect(ctx)
	if err == nil {
		t.Fatal("expected Connect to fail")
	}
	if apperror.GetCode(err) != apperror.CodeWebSocketConnectionError {
		t.Errorf("expected code %s, got %s", apperror.CodeWebSocketConnectionError, apperror.GetCode(err))
	}
	if client.State() != StateDisconnected {
		t.Errorf("expected state %v, got %v", StateDisconnected, client.State())
	}
}

func TestClient_ConnectWithRetry_GivesUp(t *testing.T) {
	client := newTestClient(t, "ws://127.0.0.1:1", func(c *Config) {
		c.InitialBackoff = 5 * time.Millisecond
		c.MaxReconnects = 3
	})

	start := time.Now()
	err := client.ConnectWithRetry(context.Background())
	if err == nil {
		t.Fatal("expected ConnectWithRetry to fail")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("retry took too long: %v", time.Since(start))
	}
}

func TestClient_SendJSON(t *testing.T) {
	received := make(chan []byte, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		received <- data
		drainHandler(conn)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload := map[string]any{
		"op":    "subscribe",
		"pools": []string{"0x4200000000000000000000000000000000000006"},
	}
	if err := client.SendJSON(ctx, payload); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	var data []byte
	select {
	case data = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("received data is not valid JSON: %v\ndata: %s", err, data)
	}
	if parsed["op"] != "subscribe" {
		t.Errorf("expected op=subscribe, got %v", parsed["op"])
	}
}

func TestClient_Send_NotConnected(t *testing.T) {
	client := newTestClient(t, "ws://127.0.0.1:1", nil)

	err := client.Send(context.Background(), []byte("x"))
	if !errors.Is(err, apperror.Sentinel(apperror.CodeWebSocketConnectionError)) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestClient_MessageHandling(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	got := make(chan []byte, 1)
	client.OnMessage(func(ctx context.Context, msg []byte) {
		got <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	testMsg := []byte(`{"pool":"0x01","tick":-120}`)
	if err := client.Send(ctx, testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-got:
		if string(msg) != string(testMsg) {
			t.Errorf("expected %s, got %s", testMsg, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClient_StateChangeHandler(t *testing.T) {
	server := mockWSServer(t, drainHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	var states []State
	var statesMu sync.Mutex
	client.OnStateChange(func(state State, err error) {
		statesMu.Lock()
		states = append(states, state)
		statesMu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	statesMu.Lock()
	defer statesMu.Unlock()

	want := []State{StateConnecting, StateConnected, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state[%d]: expected %v, got %v", i, want[i], states[i])
		}
	}
}

func TestClient_GracefulClose(t *testing.T) {
	server := mockWSServer(t, drainHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("expected state %v, got %v", StateClosed, client.State())
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close should not error: %v", err)
	}
	if err := client.Connect(ctx); apperror.GetCode(err) != apperror.CodeWebSocketClosed {
		t.Errorf("expected %s after close, got %v", apperror.CodeWebSocketClosed, err)
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var msgCount atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
			msgCount.Add(1)
		}
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const numGoroutines = 10
	const msgsPerGoroutine = 5
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < msgsPerGoroutine; j++ {
				if err := client.SendJSON(ctx, map[string]int{"goroutine": id, "msg": j}); err != nil {
					t.Errorf("SendJSON failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	expected := int32(numGoroutines * msgsPerGoroutine)
	if !waitFor(t, 2*time.Second, func() bool { return msgCount.Load() == expected }) {
		t.Errorf("expected %d messages, server received %d", expected, msgCount.Load())
	}
}

func TestClient_MaxMessageSize(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		conn.Write(ctx, websocket.MessageText, []byte(strings.Repeat("A", 1024)))
		drainHandler(conn)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), func(c *Config) {
		c.MaxMessageSize = 100
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return client.State() == StateDisconnected }) {
		t.Errorf("expected disconnect after oversized message, state %v", client.State())
	}
}

func TestClient_Reconnects(t *testing.T) {
	var accepted atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		if accepted.Add(1) == 1 {
			// drop the first connection straight away
			return
		}
		drainHandler(conn)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), func(c *Config) {
		c.AutoReconnect = true
		c.InitialBackoff = 10 * time.Millisecond
		c.MaxBackoff = 50 * time.Millisecond
	})

	var sawReconnecting atomic.Bool
	client.OnStateChange(func(state State, err error) {
		if state == StateReconnecting {
			sawReconnecting.Store(true)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		return accepted.Load() >= 2 && client.IsConnected()
	})
	if !ok {
		t.Fatalf("expected reconnect, accepted=%d state=%v", accepted.Load(), client.State())
	}
	if !sawReconnecting.Load() {
		t.Error("expected a reconnecting state transition")
	}
}
