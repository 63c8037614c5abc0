package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fd1az/autosave-engine/business/market"
	marketDI "github.com/fd1az/autosave-engine/business/market/di"
	"github.com/fd1az/autosave-engine/business/policy"
	"github.com/fd1az/autosave-engine/business/policy/app"
	policyDI "github.com/fd1az/autosave-engine/business/policy/di"
	"github.com/fd1az/autosave-engine/internal/apm"
	"github.com/fd1az/autosave-engine/internal/health"
	"github.com/fd1az/autosave-engine/internal/metrics"
	"github.com/fd1az/autosave-engine/internal/monolith"
)

func runServe(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, log := e.cfg, e.log

	log.Info(ctx, "starting auto-save engine",
		"version", version,
		"environment", cfg.App.Environment,
	)

	mono := monolith.New(cfg, log)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(ctx, "shutdown error", "error", err)
		}
	}()

	// Initialize observability if enabled
	var healthOpts []health.Option
	if cfg.Telemetry.Enabled {
		tp, err := apm.NewTraceProvider(ctx, log, apm.TracerOptions{
			Provider:    apm.ParseProvider(cfg.Telemetry.TraceProvider),
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Headers:     cfg.Telemetry.Headers(),
			Protocol:    cfg.Telemetry.OTLPProtocol,
			Insecure:    cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		mono.OnClose(closerFunc(tp.Stop))

		metricOpts := []metrics.OptionFn{
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
		}
		if cfg.Telemetry.OTLPEndpoint != "" && apm.ParseProvider(cfg.Telemetry.TraceProvider) == apm.OTLPProvider {
			metricOpts = append(metricOpts, metrics.WithProviderConfig(
				metrics.NewOtelCollectorConfig(cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Headers(), cfg.Telemetry.OTLPInsecure)))
		}
		mp, err := metrics.NewMetricProvider(ctx, metricOpts...)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		mono.OnClose(closerFunc(func() error { return mp.Shutdown(context.Background()) }))
		healthOpts = append(healthOpts, health.WithMetricsHandler(mp.Handler()))
		log.Info(ctx, "telemetry initialized", "trace_provider", cfg.Telemetry.TraceProvider)
	}

	// Define modules in dependency order
	modules := []monolith.Module{
		&market.Module{}, // provides snapshots to the runner
		&policy.Module{}, // depends on market
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	svc := marketDI.GetMarketService(mono.Services())
	mono.OnClose(svc)
	runner := policyDI.GetDCARunner(mono.Services())
	healthOpts = append(healthOpts, health.WithHandler("/orders", ordersHandler(runner)))

	if cfg.Health.Enabled {
		healthServer := health.NewServer(cfg.Health.Port, version, append(healthOpts, health.WithLogger(log))...)
		healthServer.RegisterCheck("market", func(context.Context) (bool, string) {
			if len(cfg.Market.Pools) == 0 {
				return true, "no pools configured"
			}
			return svc.Healthy(cfg.Market.StaleAfter)
		})
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
			mono.OnClose(healthServer)
		}
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	log.Info(ctx, "all modules started")
	<-ctx.Done()
	log.Info(ctx, "shutting down")
	return nil
}

// ordersHandler reports each configured DCA order's state.
func ordersHandler(runner *app.DCARunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pending": runner.Pending(),
			"orders":  runner.Statuses(),
		})
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
