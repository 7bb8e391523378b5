// Package config resolves the service settings from defaults, an optional
// .env file, REPAIRSHOP_* environment variables and command-line flags.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"repairshop/services"
)

const envPrefix = "REPAIRSHOP_"

// Stage names.
const (
	StageDev  = "dev"
	StageProd = "prod"
)

// Config holds the service settings.
type Config struct {
	Stage             string
	LogLevel          string
	VATRate           float64
	PostPaymentPolicy services.PostPaymentPolicy
	FetchTimeout      time.Duration
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Stage:             StageDev,
		LogLevel:          "info",
		VATRate:           services.VATRate,
		PostPaymentPolicy: services.PolicyAllow,
		FetchTimeout:      10 * time.Second,
	}
}

// Load returns Default overridden by a .env file in the working directory
// (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "STAGE"); ok {
		c.Stage = strings.ToLower(v)
	}
	if v, ok := lookup(envPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(envPrefix + "VAT_RATE"); ok {
		rate, err := cast.ToFloat64E(v)
		if err != nil {
			return errors.New("config: " + envPrefix + "VAT_RATE must be a number")
		}
		c.VATRate = rate
	}
	if v, ok := lookup(envPrefix + "POST_PAYMENT_POLICY"); ok {
		c.PostPaymentPolicy = services.PostPaymentPolicy(strings.ToLower(v))
	}
	if v, ok := lookup(envPrefix + "FETCH_TIMEOUT"); ok {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return errors.New("config: " + envPrefix + "FETCH_TIMEOUT must be a duration")
		}
		c.FetchTimeout = d
	}
	return nil
}

// BindFlags registers the settings as persistent flags on cmd, using the
// current values as defaults. Flags are parsed when cmd executes.
func (c *Config) BindFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.StringVar(&c.Stage, "stage", c.Stage, "deployment stage (dev or prod)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.Float64Var(&c.VATRate, "vat-rate", c.VATRate, "VAT rate applied to taxed cost streams")
	fs.StringVar((*string)(&c.PostPaymentPolicy), "post-payment-policy", string(c.PostPaymentPolicy),
		"recompute behaviour for jobs that already have a payment (allow, flag or block)")
	fs.DurationVar(&c.FetchTimeout, "fetch-timeout", c.FetchTimeout, "timeout for loading each cost stream (0 disables)")
}

// Validate checks the settings.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Stage, validation.Required, validation.In(StageDev, StageProd)),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.VATRate, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.PostPaymentPolicy, validation.Required, validation.By(func(value any) error {
			if p, _ := value.(services.PostPaymentPolicy); !p.Valid() {
				return errors.New("must be one of allow, flag, block")
			}
			return nil
		})),
		validation.Field(&c.FetchTimeout, validation.Min(time.Duration(0))),
	)
}
