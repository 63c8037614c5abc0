package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/fd1az/autosave-engine/business/policy"
	"github.com/fd1az/autosave-engine/business/policy/app"
	"github.com/fd1az/autosave-engine/business/policy/domain"
	"github.com/fd1az/autosave-engine/internal/asset"
	"github.com/fd1az/autosave-engine/internal/config"
	"github.com/fd1az/autosave-engine/internal/logger"
)

// env carries what every command needs.
type env struct {
	cfg    *config.Config
	reg    *asset.Registry
	log    *logger.Logger
	stdout io.Writer
	stderr io.Writer
}

func newEnv(configPath string, stdout, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &env{
		cfg:    cfg,
		reg:    asset.DefaultRegistry(),
		log:    logger.New(stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil),
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (e *env) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func (e *env) policyConfig() (app.Config, error) {
	return policy.BuildConfig(e.cfg.Policy, e.reg)
}

func (e *env) service(pc app.Config, opts ...app.Option) (*app.PolicyService, error) {
	return app.NewPolicyService(pc, e.log, opts...)
}

func (e *env) asset(ref string) (*asset.Asset, error) {
	if ref == "" {
		ref = e.cfg.Policy.Sizing.Asset
	}
	return e.reg.Resolve(ref)
}

func amountFlag(a *asset.Asset, field, value string) (asset.Amount, error) {
	if value == "" {
		return asset.Amount{}, fmt.Errorf("-%s is required", field)
	}
	amt, err := asset.ParseString(a, value)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("-%s: %w", field, err)
	}
	return amt, nil
}

func percentFlag(field, value string) (domain.BasisPoints, error) {
	bps, err := domain.ParsePercent(value)
	if err != nil {
		return 0, fmt.Errorf("-%s: %w", field, err)
	}
	return bps, nil
}

func tickFlag(field string, value int) (domain.Tick, error) {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, fmt.Errorf("-%s %d is outside the int32 tick range", field, value)
	}
	return domain.Tick(value), nil
}

// isSet reports whether name was given on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// line writes an aligned "label: value" row.
func line(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%-16s%v\n", label+":", value)
}
