// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Orders    []OrderConfig   `mapstructure:"orders"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Market    MarketConfig    `mapstructure:"market"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// PolicyConfig holds the engine parameters. Percentages are decimal strings
// ("2.5" is 2.5%, 250 bps) so YAML never goes through a float.
type PolicyConfig struct {
	SavePercentage string            `mapstructure:"save_percentage"`
	RoundUp        bool              `mapstructure:"round_up"`
	Tiers          map[string]string `mapstructure:"tiers"` // volatility level -> percent
	Sizing         SizingConfig      `mapstructure:"sizing"`
	Slippage       SlippageConfig    `mapstructure:"slippage"`
}

// SizingConfig is the default DCA sizing. Asset is a registry reference
// ("USDC@8453" or "8453:0x...").
type SizingConfig struct {
	Asset         string `mapstructure:"asset"`
	BaseAmount    string `mapstructure:"base_amount"`
	Multiplier    string `mapstructure:"multiplier"`
	MinMultiplier string `mapstructure:"min_multiplier"`
	MaxMultiplier string `mapstructure:"max_multiplier"`
}

// SlippageConfig holds tolerances and the action taken above them.
type SlippageConfig struct {
	Tolerance string            `mapstructure:"tolerance"`
	PerToken  map[string]string `mapstructure:"per_token"` // asset reference -> percent
	Action    string            `mapstructure:"action"`
}

// OrderConfig describes one tick-triggered DCA order. BaseAmount overrides
// policy.sizing.base_amount when set.
type OrderConfig struct {
	ID               string        `mapstructure:"id"`
	Pool             string        `mapstructure:"pool"`
	Side             string        `mapstructure:"side"` // token0 | token1
	LowerTick        int32         `mapstructure:"lower_tick"`
	UpperTick        int32         `mapstructure:"upper_tick"`
	TickDelta        uint32        `mapstructure:"tick_delta"`
	Expiry           time.Duration `mapstructure:"expiry"`
	OnlyImprovePrice bool          `mapstructure:"only_improve_price"`
	BaseAmount       string        `mapstructure:"base_amount"`
}

// RunnerConfig controls the DCA runner.
type RunnerConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Executor      string  `mapstructure:"executor"` // log | console
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// MarketConfig holds the tick oracle endpoints.
type MarketConfig struct {
	StreamURL      string           `mapstructure:"stream_url"`
	SnapshotURL    string           `mapstructure:"snapshot_url"`
	Pools          []string         `mapstructure:"pools"`
	InitialBackoff time.Duration    `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration    `mapstructure:"max_backoff"`
	ReadTimeout    time.Duration    `mapstructure:"read_timeout"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
	StaleAfter     time.Duration    `mapstructure:"stale_after"`
	Thresholds     ThresholdsConfig `mapstructure:"thresholds"`
}

// ThresholdsConfig holds the absolute tick movements at which volatility is
// classified medium, high and maximum.
type ThresholdsConfig struct {
	Medium  uint32 `mapstructure:"medium"`
	High    uint32 `mapstructure:"high"`
	Maximum uint32 `mapstructure:"maximum"`
}

// PoolAddresses returns the configured pools as addresses.
func (c *MarketConfig) PoolAddresses() []common.Address {
	out := make([]common.Address, len(c.Pools))
	for i, p := range c.Pools {
		out[i] = common.HexToAddress(p)
	}
	return out
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // none | console | zipkin | otlp
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"` // key=value,key=value
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Headers parses OTLPHeaders.
func (c *TelemetryConfig) Headers() map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.OTLPHeaders, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			headers[k] = v
		}
	}
	return headers
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("AUTOSAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "AUTOSAVE_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "AUTOSAVE_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "AUTOSAVE_LOG_LEVEL", "LOG_LEVEL")

	// Market
	_ = v.BindEnv("market.stream_url", "AUTOSAVE_MARKET_STREAM_URL", "ORACLE_WS_URL")
	_ = v.BindEnv("market.snapshot_url", "AUTOSAVE_MARKET_SNAPSHOT_URL", "ORACLE_HTTP_URL")

	// Telemetry
	_ = v.BindEnv("telemetry.enabled", "AUTOSAVE_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "AUTOSAVE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "AUTOSAVE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.otlp_headers", "AUTOSAVE_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	_ = v.BindEnv("telemetry.otlp_protocol", "AUTOSAVE_OTEL_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "autosave-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Policy defaults
	v.SetDefault("policy.save_percentage", "10")
	v.SetDefault("policy.round_up", false)
	v.SetDefault("policy.tiers", map[string]string{
		"low":     "100",
		"medium":  "150",
		"high":    "200",
		"maximum": "300",
	})
	v.SetDefault("policy.sizing.asset", "USDC@8453")
	v.SetDefault("policy.sizing.base_amount", "100")
	v.SetDefault("policy.sizing.multiplier", "100")
	v.SetDefault("policy.sizing.min_multiplier", "50")
	v.SetDefault("policy.sizing.max_multiplier", "200")
	v.SetDefault("policy.slippage.tolerance", "0.5")
	v.SetDefault("policy.slippage.action", "skip_swap")

	// Runner defaults
	v.SetDefault("runner.enabled", true)
	v.SetDefault("runner.executor", "log")
	v.SetDefault("runner.rate_per_second", 5)
	v.SetDefault("runner.burst", 5)

	// Market defaults
	v.SetDefault("market.initial_backoff", "1s")
	v.SetDefault("market.max_backoff", "30s")
	v.SetDefault("market.read_timeout", "60s")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.stale_after", "2m")
	v.SetDefault("market.thresholds.medium", 60)
	v.SetDefault("market.thresholds.high", 200)
	v.SetDefault("market.thresholds.maximum", 600)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "autosave-engine")
	v.SetDefault("telemetry.trace_provider", "none")
	v.SetDefault("telemetry.otlp_protocol", "grpc")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8080)
}

// Validate checks structure and formats. Engine invariants (percent ranges,
// min <= max) are enforced again when the policy service is built.
func (c *Config) Validate() error {
	if err := checkPercent("policy.save_percentage", c.Policy.SavePercentage, true); err != nil {
		return err
	}
	for level, pct := range c.Policy.Tiers {
		if err := checkPercent("policy.tiers."+level, pct, false); err != nil {
			return err
		}
	}
	if c.Policy.Sizing.Asset == "" {
		return fmt.Errorf("policy.sizing.asset is required")
	}
	if _, err := decimal.NewFromString(c.Policy.Sizing.BaseAmount); err != nil {
		return fmt.Errorf("invalid policy.sizing.base_amount %q: %w", c.Policy.Sizing.BaseAmount, err)
	}
	for field, pct := range map[string]string{
		"policy.sizing.multiplier":     c.Policy.Sizing.Multiplier,
		"policy.sizing.min_multiplier": c.Policy.Sizing.MinMultiplier,
		"policy.sizing.max_multiplier": c.Policy.Sizing.MaxMultiplier,
	} {
		if err := checkPercent(field, pct, false); err != nil {
			return err
		}
	}
	if err := checkPercent("policy.slippage.tolerance", c.Policy.Slippage.Tolerance, true); err != nil {
		return err
	}
	for token, pct := range c.Policy.Slippage.PerToken {
		if err := checkPercent("policy.slippage.per_token."+token, pct, true); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Orders))
	for i, o := range c.Orders {
		if o.ID == "" {
			return fmt.Errorf("orders[%d].id is required", i)
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate order id %q", o.ID)
		}
		seen[o.ID] = true
		if !common.IsHexAddress(o.Pool) {
			return fmt.Errorf("invalid orders[%d].pool: %s", i, o.Pool)
		}
		if o.LowerTick > o.UpperTick {
			return fmt.Errorf("orders[%d]: lower_tick %d above upper_tick %d", i, o.LowerTick, o.UpperTick)
		}
		if o.Expiry < 0 {
			return fmt.Errorf("orders[%d].expiry cannot be negative", i)
		}
		switch strings.ToLower(o.Side) {
		case "", "token0", "token1":
		default:
			return fmt.Errorf("invalid orders[%d].side %q: want token0 or token1", i, o.Side)
		}
	}

	switch c.Runner.Executor {
	case "log", "console":
	default:
		return fmt.Errorf("invalid runner.executor %q: want log or console", c.Runner.Executor)
	}

	for _, p := range c.Market.Pools {
		if !common.IsHexAddress(p) {
			return fmt.Errorf("invalid market.pools entry: %s", p)
		}
	}
	if len(c.Orders) > 0 && c.Market.StreamURL == "" && c.Market.SnapshotURL == "" {
		return fmt.Errorf("market.stream_url or market.snapshot_url is required when orders are configured")
	}
	t := c.Market.Thresholds
	if t.Medium == 0 || t.Medium >= t.High || t.High >= t.Maximum {
		return fmt.Errorf("market.thresholds must be increasing and positive, got %d/%d/%d", t.Medium, t.High, t.Maximum)
	}

	return nil
}

// checkPercent validates a decimal percentage string.
func checkPercent(field, value string, atMostHundred bool) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("%s cannot be negative", field)
	}
	if atMostHundred && d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s %s%% exceeds 100%%", field, value)
	}
	return nil
}
