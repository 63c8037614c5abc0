// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/autosave-engine/business/market/app"
	"github.com/fd1az/autosave-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	MarketService = di.NewToken[*app.MarketService]("market.MarketService")
)

// Private dependency tokens - registered only when the endpoint is configured
var (
	TickStream      = di.NewToken[app.TickStream]("market:tickStream")
	SnapshotFetcher = di.NewToken[app.SnapshotFetcher]("market:snapshotFetcher")
)

// GetMarketService returns the market service.
func GetMarketService(c di.ServiceRegistry) *app.MarketService {
	return di.GetToken(c, MarketService)
}

// GetTickStream returns the tick stream, or nil when none is configured.
func GetTickStream(c di.ServiceRegistry) app.TickStream {
	if !c.Has(TickStream.Name()) {
		return nil
	}
	return di.GetToken(c, TickStream)
}

// GetSnapshotFetcher returns the snapshot fetcher, or nil when none is configured.
func GetSnapshotFetcher(c di.ServiceRegistry) app.SnapshotFetcher {
	if !c.Has(SnapshotFetcher.Name()) {
		return nil
	}
	return di.GetToken(c, SnapshotFetcher)
}
