package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds operator-tunable billing knobs.
type BillingConfig struct {
	// UpcomingWindowDays bounds the "due soon" listings on the dashboard.
	UpcomingWindowDays int `mapstructure:"upcomingWindowDays"`
	// SweepBatchSize caps how many clients one reconciliation sweep touches.
	SweepBatchSize int `mapstructure:"sweepBatchSize"`
	// SweepLockTTLSeconds is the redis lock lease for the sweep.
	SweepLockTTLSeconds int `mapstructure:"sweepLockTTLSeconds"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		UpcomingWindowDays:  7,
		SweepBatchSize:      100,
		SweepLockTTLSeconds: 60,
	}
}

// BillingConfigHolder serves the current billing config and hot-reloads it
// when the config file changes on disk.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/agencydesk/config")
	v.AddConfigPath("/etc/agencydesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGENCYDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.upcomingWindowDays", defaults.UpcomingWindowDays)
	v.SetDefault("billing.sweepBatchSize", defaults.SweepBatchSize)
	v.SetDefault("billing.sweepLockTTLSeconds", defaults.SweepLockTTLSeconds)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.UpcomingWindowDays <= 0 {
		return errors.New("billing.upcomingWindowDays must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return errors.New("billing.sweepBatchSize must be positive")
	}
	if cfg.SweepLockTTLSeconds <= 0 {
		return errors.New("billing.sweepLockTTLSeconds must be positive")
	}
	return nil
}
