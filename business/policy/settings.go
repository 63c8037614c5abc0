package policy

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/asset"
	"github.com/fd1az/autosave-engine/internal/config"
)

// BuildConfig converts file settings into the engine configuration, resolving
// asset references through reg.
func BuildConfig(pc config.PolicyConfig, reg *asset.Registry) (app.Config, error) {
	save, err := percent("policy.save_percentage", pc.SavePercentage)
	if err != nil {
		return app.Config{}, err
	}

	tiers := make(domain.VolatilityTiers, len(pc.Tiers))
	for name, pct := range pc.Tiers {
		level, err := domain.ParseVolatilityLevel(name)
		if err != nil {
			return app.Config{}, err
		}
		if tiers[level], err = percent("policy.tiers."+name, pct); err != nil {
			return app.Config{}, err
		}
	}

	sizing, err := buildSizing(pc.Sizing, pc.Sizing.BaseAmount, reg)
	if err != nil {
		return app.Config{}, err
	}

	tolerance, err := percent("policy.slippage.tolerance", pc.Slippage.Tolerance)
	if err != nil {
		return app.Config{}, err
	}
	overrides := make(map[asset.AssetID]domain.BasisPoints, len(pc.Slippage.PerToken))
	for ref, pct := range pc.Slippage.PerToken {
		a, err := reg.Resolve(ref)
		if err != nil {
			return app.Config{}, err
		}
		if overrides[a.ID()], err = percent("policy.slippage.per_token."+ref, pct); err != nil {
			return app.Config{}, err
		}
	}

	action, err := domain.ParseSlippageAction(pc.Slippage.Action)
	if err != nil {
		return app.Config{}, err
	}

	cfg := app.Config{
		SavePercentage: save,
		RoundUp:        pc.RoundUp,
		Tiers:          tiers,
		Sizing:         sizing,
		Slippage: domain.SlippageToleranceConfig{
			GlobalBps:           tolerance,
			PerTokenOverrideBps: overrides,
		},
		SlippageAction: action,
	}
	return cfg, cfg.Validate()
}

// BuildOrders converts configured orders. Every order's expiry window starts
// at startedAt.
func BuildOrders(orders []config.OrderConfig, pc config.PolicyConfig, reg *asset.Registry, startedAt time.Time) ([]app.DCAOrder, error) {
	out := make([]app.DCAOrder, 0, len(orders))
	for _, o := range orders {
		side, err := domain.ParseSide(o.Side)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", o.ID, err)
		}

		order := app.DCAOrder{
			ID:   o.ID,
			Pool: common.HexToAddress(o.Pool),
			Side: side,
			Strategy: domain.TickStrategy{
				LowerTick:        domain.Tick(o.LowerTick),
				UpperTick:        domain.Tick(o.UpperTick),
				TickDelta:        o.TickDelta,
				ExpirySeconds:    uint64(o.Expiry / time.Second),
				OnlyImprovePrice: o.OnlyImprovePrice,
			},
			StartedAt: startedAt,
		}

		if o.BaseAmount != "" {
			sizing, err := buildSizing(pc.Sizing, o.BaseAmount, reg)
			if err != nil {
				return nil, fmt.Errorf("order %s: %w", o.ID, err)
			}
			order.Sizing = &sizing
		}

		out = append(out, order)
	}
	return out, nil
}

func buildSizing(sc config.SizingConfig, baseAmount string, reg *asset.Registry) (domain.DynamicSizingConfig, error) {
	a, err := reg.Resolve(sc.Asset)
	if err != nil {
		return domain.DynamicSizingConfig{}, err
	}
	base, err := asset.ParseString(a, baseAmount)
	if err != nil {
		return domain.DynamicSizingConfig{}, fmt.Errorf("base amount %q: %w", baseAmount, err)
	}

	mult, err := percent("policy.sizing.multiplier", sc.Multiplier)
	if err != nil {
		return domain.DynamicSizingConfig{}, err
	}
	lo, err := percent("policy.sizing.min_multiplier", sc.MinMultiplier)
	if err != nil {
		return domain.DynamicSizingConfig{}, err
	}
	hi, err := percent("policy.sizing.max_multiplier", sc.MaxMultiplier)
	if err != nil {
		return domain.DynamicSizingConfig{}, err
	}

	return domain.DynamicSizingConfig{
		BaseAmount:              base,
		VolatilityMultiplierBps: mult,
		MinMultiplierBps:        lo,
		MaxMultiplierBps:        hi,
	}, nil
}

func percent(field, value string) (domain.BasisPoints, error) {
	bps, err := domain.ParsePercent(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return bps, nil
}
