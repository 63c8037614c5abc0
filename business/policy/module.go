// Package policy implements the auto-save policy context: split, sizing, tick
// eligibility, slippage review and goal penalties.
package policy

import (
	"context"
	"time"

	marketDI "github.com/fd1az/autosave-engine/business/market/di"
	"github.com/fd1az/autosave-engine/business/policy/app"
	policyDI "github.com/fd1az/autosave-engine/business/policy/di"
	"github.com/fd1az/autosave-engine/business/policy/infra"
	"github.com/fd1az/autosave-engine/internal/asset"
	"github.com/fd1az/autosave-engine/internal/config"
	"github.com/fd1az/autosave-engine/internal/di"
	"github.com/fd1az/autosave-engine/internal/logger"
	"github.com/fd1az/autosave-engine/internal/monolith"
	"github.com/fd1az/autosave-engine/internal/ratelimit"
)

// Module implements the policy bounded context.
type Module struct{}

// RegisterServices registers all policy services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := c.Get("config").(*config.Config)
	reg := c.Get("assetRegistry").(*asset.Registry)

	// Build eagerly so a bad policy fails registration, not the first swap.
	policyCfg, err := BuildConfig(cfg.Policy, reg)
	if err != nil {
		return err
	}
	orders, err := BuildOrders(cfg.Orders, cfg.Policy, reg, time.Now())
	if err != nil {
		return err
	}

	// PolicyService (public)
	di.RegisterToken(c, policyDI.PolicyService, func(sr di.ServiceRegistry) *app.PolicyService {
		log := sr.Get("logger").(logger.LoggerInterface)
		svc, err := app.NewPolicyService(policyCfg, log)
		if err != nil {
			panic("failed to create policy service: " + err.Error())
		}
		return svc
	})

	di.RegisterToken(c, policyDI.Executor, func(sr di.ServiceRegistry) app.Executor {
		if cfg.Runner.Executor == "console" {
			return infra.NewConsoleExecutor(nil)
		}
		return infra.NewLogExecutor(sr.Get("logger").(logger.LoggerInterface))
	})

	di.RegisterToken(c, policyDI.DCARunner, func(sr di.ServiceRegistry) *app.DCARunner {
		log := sr.Get("logger").(logger.LoggerInterface)
		runner, err := app.NewDCARunner(
			policyDI.GetPolicyService(sr),
			marketDI.GetMarketService(sr),
			policyDI.GetExecutor(sr),
			ratelimit.New(cfg.Runner.RatePerSecond, cfg.Runner.Burst),
			orders,
			log,
		)
		if err != nil {
			panic("failed to create dca runner: " + err.Error())
		}
		return runner
	})

	return nil
}

// Startup starts the DCA runner when orders are configured.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	svc := policyDI.GetPolicyService(mono.Services())
	log.Info(ctx, "policy module started",
		"save", svc.Config().SavePercentage.String(),
		"slippage_action", svc.Config().SlippageAction.String())

	if !cfg.Runner.Enabled || len(cfg.Orders) == 0 {
		log.Info(ctx, "dca runner disabled", "orders", len(cfg.Orders))
		return nil
	}

	runner := policyDI.GetDCARunner(mono.Services())
	go func() {
		if err := runner.Run(ctx); err != nil {
			log.Error(ctx, "dca runner stopped", "error", err)
		}
	}()
	return nil
}
