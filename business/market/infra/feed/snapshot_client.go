package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/autosave-engine/business/market/app"
	"github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/circuitbreaker"
	"github.com/fd1az/autosave-engine/internal/httpclient"
	"github.com/fd1az/autosave-engine/internal/logger"
)

var _ app.SnapshotFetcher = (*SnapshotClient)(nil)

const (
	snapshotPath       = "/v1/pools/%s/snapshot"
	defaultHTTPTimeout = 10 * time.Second
)

// SnapshotClientConfig holds configuration for the REST fallback.
type SnapshotClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Thresholds domain.VolatilityThresholds
}

// SnapshotClient fetches pool snapshots over REST when the stream is down or
// a fresh value is needed on demand.
type SnapshotClient struct {
	client  httpclient.Client
	config  SnapshotClientConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	breaker *circuitbreaker.Breaker[domain.Snapshot]
}

// NewSnapshotClient creates a SnapshotClient.
func NewSnapshotClient(cfg SnapshotClientConfig, log logger.LoggerInterface, opts ...httpclient.ClientOption) (*SnapshotClient, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("market snapshot url is empty"))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	tracer := otel.Tracer(tracerName)

	base := []httpclient.ClientOption{
		httpclient.WithProviderName("oracle"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	}
	client, err := httpclient.NewInstrumentedClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	bcfg := circuitbreaker.DefaultConfig("oracle-snapshot")
	bcfg.IsSuccessful = func(err error) bool {
		// the oracle answered; the pool or payload is at fault
		switch apperror.GetCode(err) {
		case apperror.CodeSnapshotNotFound, apperror.CodeInvalidSnapshot:
			return true
		}
		return err == nil
	}

	return &SnapshotClient{
		client:  client,
		config:  cfg,
		logger:  log,
		tracer:  tracer,
		breaker: circuitbreaker.New[domain.Snapshot](bcfg),
	}, nil
}

// FetchSnapshot returns the oracle's current snapshot for pool.
func (c *SnapshotClient) FetchSnapshot(ctx context.Context, pool common.Address) (domain.Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "feed.snapshot.fetch",
		trace.WithAttributes(attribute.String("pool", pool.Hex())))
	defer span.End()

	snap, err := c.breaker.Execute(func() (domain.Snapshot, error) {
		return c.fetch(ctx, pool)
	})
	if err != nil {
		span.RecordError(err)
		if circuitbreaker.IsOpen(err) {
			return domain.Snapshot{}, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext("oracle snapshot"))
		}
		return domain.Snapshot{}, err
	}

	c.logger.Debug(ctx, "fetched snapshot via HTTP",
		"pool", pool.Hex(),
		"tick", int32(snap.CurrentTick),
		"volatility", snap.Volatility.String())
	return snap, nil
}

func (c *SnapshotClient) fetch(ctx context.Context, pool common.Address) (domain.Snapshot, error) {
	var msg SnapshotMessage
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "snapshot")),
		httpclient.WithResponseErrorHandler(oracleErrorHandler),
	).
		SetResult(&msg).
		Get(ctx, fmt.Sprintf(snapshotPath, pool.Hex()))
	if err != nil {
		if apperror.GetCode(err) == apperror.CodeInvalidFormat {
			return domain.Snapshot{}, apperror.New(apperror.CodeInvalidSnapshot, apperror.WithCause(err), apperror.WithContext(pool.Hex()))
		}
		if apperror.IsAppError(err) {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{}, apperror.New(apperror.CodeOracleSnapshotFailed, apperror.WithCause(err), apperror.WithContext(pool.Hex()))
	}

	return msg.ToDomain(c.config.Thresholds)
}

// oracleErrorHandler maps oracle HTTP failures to app errors.
func oracleErrorHandler(statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusNotFound:
		return apperror.NotFound(apperror.CodeSnapshotNotFound, string(body))
	case statusCode >= 400:
		return apperror.New(apperror.CodeOracleSnapshotFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", statusCode, body)))
	}
	return nil
}
