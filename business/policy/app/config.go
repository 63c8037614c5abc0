package app

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/apperror"
)

// Config is the engine configuration the service applies to every call.
type Config struct {
	SavePercentage domain.BasisPoints
	RoundUp        bool
	Tiers          domain.VolatilityTiers
	Sizing         domain.DynamicSizingConfig
	Slippage       domain.SlippageToleranceConfig
	SlippageAction domain.SlippageAction
}

// Validate checks every engine invariant up front so misconfiguration fails
// at startup rather than on the first swap.
func (c Config) Validate() error {
	if err := c.SavePercentage.ValidatePercentage("save percentage"); err != nil {
		return err
	}
	if err := c.Tiers.Validate(); err != nil {
		return err
	}
	if err := c.Sizing.Validate(); err != nil {
		return err
	}
	if err := c.Slippage.Validate(); err != nil {
		return err
	}
	if !c.SlippageAction.Valid() {
		return apperror.Validationf(apperror.CodeInvalidInput, "unknown slippage action %s", c.SlippageAction)
	}
	return nil
}

// DCAOrder is a tick-triggered recurring buy.
type DCAOrder struct {
	ID        string
	Pool      common.Address
	Side      domain.Side
	Strategy  domain.TickStrategy
	Sizing    *domain.DynamicSizingConfig // nil uses Config.Sizing
	StartedAt time.Time
}
