package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the credit and recurring-charge policy. It is reloaded
// from billing.yml without a restart.
type BillingConfig struct {
	Credits   CreditsConfig   `mapstructure:"credits"`
	Recurring RecurringConfig `mapstructure:"recurring"`
}

type CreditsConfig struct {
	InitialBalance int64 `mapstructure:"initialBalance"`
	PackageCredits int64 `mapstructure:"packageCredits"`
	MaxPackages    int64 `mapstructure:"maxPackages"`
	// UnitAmount is the price of one package in the currency's minor unit.
	// When zero the price is resolved from PriceID through the processor.
	UnitAmount   int64    `mapstructure:"unitAmount"`
	PriceID      string   `mapstructure:"priceID"`
	Currency     string   `mapstructure:"currency"`
	DemoAccounts []string `mapstructure:"demoAccounts"`
}

type RecurringConfig struct {
	Fee      int64         `mapstructure:"fee"`
	ClaimTTL time.Duration `mapstructure:"claimTTL"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Credits: CreditsConfig{
			InitialBalance: 10,
			PackageCredits: 25,
			MaxPackages:    20,
			Currency:       "usd",
		},
		Recurring: RecurringConfig{
			Fee:      29,
			ClaimTTL: 10 * time.Minute,
		},
	}
}

// IsDemoAccount reports whether email is on the allowlist of accounts that
// bypass metering.
func (c CreditsConfig) IsDemoAccount(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, demo := range c.DemoAccounts {
		if strings.ToLower(strings.TrimSpace(demo)) == email {
			return true
		}
	}
	return false
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("billing.config")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/creditgate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDITGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.credits.initialBalance", defaults.Credits.InitialBalance)
	v.SetDefault("billing.credits.packageCredits", defaults.Credits.PackageCredits)
	v.SetDefault("billing.credits.maxPackages", defaults.Credits.MaxPackages)
	v.SetDefault("billing.credits.unitAmount", defaults.Credits.UnitAmount)
	v.SetDefault("billing.credits.priceID", defaults.Credits.PriceID)
	v.SetDefault("billing.credits.currency", defaults.Credits.Currency)
	v.SetDefault("billing.credits.demoAccounts", []string{})
	v.SetDefault("billing.recurring.fee", defaults.Recurring.Fee)
	v.SetDefault("billing.recurring.claimTTL", defaults.Recurring.ClaimTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileLoaded {
		log.Info("billing.yml not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.Credits.InitialBalance < 0 {
		return errors.New("billing.credits.initialBalance cannot be negative")
	}
	if cfg.Credits.PackageCredits <= 0 {
		return errors.New("billing.credits.packageCredits must be positive")
	}
	if cfg.Credits.MaxPackages <= 0 {
		return errors.New("billing.credits.maxPackages must be positive")
	}
	if cfg.Credits.UnitAmount < 0 {
		return errors.New("billing.credits.unitAmount cannot be negative")
	}
	if cfg.Recurring.Fee <= 0 {
		return errors.New("billing.recurring.fee must be positive")
	}
	if cfg.Recurring.ClaimTTL <= 0 {
		return errors.New("billing.recurring.claimTTL must be positive")
	}
	return nil
}
