// Package market implements the market-data context: the tick oracle feed and
// the latest snapshot per pool.
package market

import (
	"context"
	"time"

	"github.com/fd1az/autosave-engine/business/market/app"
	marketDI "github.com/fd1az/autosave-engine/business/market/di"
	"github.com/fd1az/autosave-engine/business/market/domain"
	"github.com/fd1az/autosave-engine/business/market/infra/feed"
	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/config"
	"github.com/fd1az/autosave-engine/internal/di"
	"github.com/fd1az/autosave-engine/internal/httpclient"
	"github.com/fd1az/autosave-engine/internal/logger"
	"github.com/fd1az/autosave-engine/internal/monolith"
)

const retryInterval = 5 * time.Second

// Module implements the market bounded context.
type Module struct{}

func thresholds(cfg *config.Config) domain.VolatilityThresholds {
	return domain.VolatilityThresholds{
		Medium:  cfg.Market.Thresholds.Medium,
		High:    cfg.Market.Thresholds.High,
		Maximum: cfg.Market.Thresholds.Maximum,
	}
}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := c.Get("config").(*config.Config)

	if cfg.Market.StreamURL != "" {
		di.RegisterToken(c, marketDI.TickStream, func(sr di.ServiceRegistry) app.TickStream {
			log := sr.Get("logger").(logger.LoggerInterface)

			stream, err := feed.NewStreamClient(feed.StreamConfig{
				URL:            cfg.Market.StreamURL,
				Pools:          cfg.Market.PoolAddresses(),
				Thresholds:     thresholds(cfg),
				ReadTimeout:    cfg.Market.ReadTimeout,
				InitialBackoff: cfg.Market.InitialBackoff,
				MaxBackoff:     cfg.Market.MaxBackoff,
			}, log)
			if err != nil {
				panic("failed to create oracle stream: " + err.Error())
			}
			return stream
		})
	}

	if cfg.Market.SnapshotURL != "" {
		di.RegisterToken(c, marketDI.SnapshotFetcher, func(sr di.ServiceRegistry) app.SnapshotFetcher {
			log := sr.Get("logger").(logger.LoggerInterface)

			client, err := feed.NewSnapshotClient(feed.SnapshotClientConfig{
				BaseURL:    cfg.Market.SnapshotURL,
				Timeout:    cfg.Market.RequestTimeout,
				Thresholds: thresholds(cfg),
			}, log, httpclient.WithProviderName("oracle"))
			if err != nil {
				panic("failed to create oracle snapshot client: " + err.Error())
			}
			return client
		})
	}

	// MarketService (public - consumed by the policy runner and health checks)
	di.RegisterToken(c, marketDI.MarketService, func(sr di.ServiceRegistry) *app.MarketService {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewMarketService(
			marketDI.GetTickStream(sr),
			marketDI.GetSnapshotFetcher(sr),
			cfg.Market.PoolAddresses(),
			log,
		)
	})

	return nil
}

// Startup connects the oracle. A failed first connection is retried in the
// background so startup never blocks on the oracle; errors that retrying
// cannot fix fail startup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := marketDI.GetMarketService(mono.Services())

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := svc.Start(connectCtx); err != nil {
		if !apperror.IsRetryable(err) {
			return err
		}
		log.Warn(ctx, "oracle connection failed, will retry in background", "error", err)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(retryInterval):
					if err := svc.Start(ctx); err != nil {
						log.Warn(ctx, "oracle retry failed", "error", err)
					} else {
						log.Info(ctx, "oracle connected")
						return
					}
				}
			}
		}()
	}

	log.Info(ctx, "market module started", "pools", len(mono.Config().Market.Pools))
	return nil
}
