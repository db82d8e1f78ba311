// Package config loads runtime settings from TRADESIM_* environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/market"
)

const prefix = "tradesim"

// Config holds every runtime setting.
type Config struct {
	TurnInterval time.Duration `envconfig:"TURN_INTERVAL" default:"10s"` // Zero pauses the clock
	Seed         int64         `envconfig:"SEED" default:"42"`
	WorldFile    string        `envconfig:"WORLD_FILE"` // JSON world; built-in world when empty
	Variation    float64       `envconfig:"VARIATION" default:"0.236"`

	DBPath   string `envconfig:"DB_PATH"` // No archive when empty
	APIPort  int    `envconfig:"API_PORT" default:"8080"`
	AdminKey string `envconfig:"ADMIN_KEY"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"auto"` // auto, text or json

	// Pricing knobs. Zero keeps the default.
	SellMarginBps int64 `envconfig:"SELL_MARGIN_BPS"`
	BuyPremiumBps int64 `envconfig:"BUY_PREMIUM_BPS"`
	StepBps       int64 `envconfig:"STEP_BPS"`
	MaxStepCents  int64 `envconfig:"MAX_STEP_CENTS"`
	FloorCents    int64 `envconfig:"FLOOR_CENTS"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(prefix, &c); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	if c.TurnInterval < 0 {
		return errors.Errorf("config: negative turn interval %s", c.TurnInterval)
	}
	if c.Variation < 0 || c.Variation > 1 {
		return errors.Errorf("config: variation %.3f out of range", c.Variation)
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return errors.Errorf("config: bad api port %d", c.APIPort)
	}
	switch strings.ToLower(c.LogFormat) {
	case "auto", "text", "json":
	default:
		return errors.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	_, err := c.Policy()
	return err
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.Wrapf(err, "config: log level %q", c.LogLevel)
	}
	return l, nil
}

// Policy overlays the pricing knobs on the default policy.
func (c Config) Policy() (market.Policy, error) {
	p := market.DefaultPolicy()
	if c.SellMarginBps != 0 {
		p.SellMarginBps = c.SellMarginBps
	}
	if c.BuyPremiumBps != 0 {
		p.BuyPremiumBps = c.BuyPremiumBps
	}
	if c.StepBps != 0 {
		p.StepBps = c.StepBps
	}
	if c.MaxStepCents != 0 {
		p.MaxStep = economy.Cents(c.MaxStepCents)
	}
	if c.FloorCents != 0 {
		p.Floor = economy.Cents(c.FloorCents)
	}
	if err := p.Validate(); err != nil {
		return market.Policy{}, errors.Wrap(err, "config")
	}
	return p, nil
}
