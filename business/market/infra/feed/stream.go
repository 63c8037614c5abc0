package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/autosave-engine/business/market/app"
	"github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/circuitbreaker"
	"github.com/fd1az/autosave-engine/internal/logger"
	"github.com/fd1az/autosave-engine/internal/wsconn"
)

var _ app.TickStream = (*StreamClient)(nil)

const (
	tracerName = "market.feed"
	meterName  = "market.feed"
)

// StreamConfig holds configuration for the oracle stream.
type StreamConfig struct {
	URL            string
	Pools          []common.Address
	Thresholds     domain.VolatilityThresholds
	ReadTimeout    time.Duration // treat the stream as dead after this much silence
	WriteTimeout   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type streamMetrics struct {
	messages    metric.Int64Counter
	snapshots   metric.Int64Counter
	parseErrors metric.Int64Counter
}

// StreamClient subscribes to pool snapshots over WebSocket. Dial attempts go
// through a circuit breaker so a dead oracle is not hammered.
type StreamClient struct {
	config  StreamConfig
	logger  logger.LoggerInterface
	breaker *circuitbreaker.Breaker[struct{}]
	tracer  trace.Tracer
	metrics *streamMetrics

	conn    *wsconn.Client
	handler app.SnapshotHandler
	mu      sync.RWMutex
}

// NewStreamClient creates a StreamClient.
func NewStreamClient(cfg StreamConfig, log logger.LoggerInterface) (*StreamClient, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("market stream url is empty"))
	}

	c := &StreamClient{
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}

	bcfg := circuitbreaker.DefaultConfig("oracle-stream")
	bcfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	c.breaker = circuitbreaker.New[struct{}](bcfg)

	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *StreamClient) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	c.metrics = &streamMetrics{}

	if c.metrics.messages, err = meter.Int64Counter("oracle_messages_total",
		metric.WithDescription("Messages received from the tick oracle")); err != nil {
		return err
	}
	if c.metrics.snapshots, err = meter.Int64Counter("oracle_snapshots_total",
		metric.WithDescription("Valid snapshots decoded from the tick oracle")); err != nil {
		return err
	}
	if c.metrics.parseErrors, err = meter.Int64Counter("oracle_parse_errors_total",
		metric.WithDescription("Oracle messages that failed to decode")); err != nil {
		return err
	}
	return nil
}

// Start connects and subscribes to the configured pools. Subscriptions are
// re-sent after every reconnect.
func (c *StreamClient) Start(ctx context.Context, handler app.SnapshotHandler) error {
	ctx, span := c.tracer.Start(ctx, "feed.stream.start",
		trace.WithAttributes(attribute.Int("pools", len(c.config.Pools))))
	defer span.End()

	c.mu.Lock()
	c.handler = handler
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = c.newConn()
		if err != nil {
			return err
		}
	}
	if conn.IsConnected() {
		return nil
	}

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, conn.Connect(ctx)
	})
	if err != nil {
		span.RecordError(err)
		if circuitbreaker.IsOpen(err) {
			return apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext("oracle stream"))
		}
		return apperror.New(apperror.CodeOracleConnectionFailed, apperror.WithCause(err), apperror.WithContext(c.config.URL))
	}

	c.logger.Info(ctx, "oracle stream connected", "url", c.config.URL, "pools", len(c.config.Pools))
	return nil
}

func (c *StreamClient) newConn() (*wsconn.Client, error) {
	wsCfg := wsconn.DefaultConfig(c.config.URL, "oracle")
	if c.config.ReadTimeout > 0 {
		wsCfg.ReadTimeout = c.config.ReadTimeout
	}
	if c.config.WriteTimeout > 0 {
		wsCfg.WriteTimeout = c.config.WriteTimeout
	}
	if c.config.InitialBackoff > 0 {
		wsCfg.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		wsCfg.MaxBackoff = c.config.MaxBackoff
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}
	conn.OnMessage(c.handleMessage)
	conn.OnStateChange(c.onStateChange(conn))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *StreamClient) onStateChange(conn *wsconn.Client) wsconn.StateHandler {
	return func(state wsconn.State, err error) {
		ctx := context.Background()
		switch state {
		case wsconn.StateConnected:
			if len(c.config.Pools) == 0 {
				return
			}
			req := SubscribeRequest{Op: "subscribe", Pools: poolStrings(c.config.Pools)}
			if err := conn.SendJSON(ctx, req); err != nil {
				c.logger.Error(ctx, "oracle subscribe failed", "error", err)
			}
		case wsconn.StateReconnecting, wsconn.StateDisconnected:
			c.logger.Warn(ctx, "oracle stream down", "state", string(state), "error", err)
		}
	}
}

func (c *StreamClient) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messages.Add(ctx, 1)

	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse oracle message", "error", err, "data", string(data[:min(len(data), 200)]))
		return
	}
	if msg.IsControl() {
		c.logger.Debug(ctx, "oracle control message", "op", msg.Op)
		return
	}

	snap, err := msg.ToDomain(c.config.Thresholds)
	if err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Warn(ctx, "invalid oracle snapshot", "error", err)
		return
	}
	c.metrics.snapshots.Add(ctx, 1, metric.WithAttributes(attribute.String("volatility", snap.Volatility.String())))

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(ctx, snap)
	}
}

// Connected reports whether the stream is live.
func (c *StreamClient) Connected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && conn.IsConnected()
}

// Close closes the underlying connection.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
