package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EngineConfig holds the tunables of the commission engine. It is loaded from
// engine.yml and hot-reloaded when the file changes, so finance admins can
// adjust defaults without a restart.
type EngineConfig struct {
	// BaseCurrency is the pivot currency all exchange rates are quoted
	// against (1 unit of BaseCurrency = rate units of the quoted currency).
	BaseCurrency string `mapstructure:"baseCurrency"`
	// DisplayCurrency is the default currency for reports and slips when the
	// caller does not request one.
	DisplayCurrency string `mapstructure:"displayCurrency"`
	// RoundingPlaces is the number of decimal places applied at the display
	// step. Intermediate sums are never rounded.
	RoundingPlaces int32 `mapstructure:"roundingPlaces"`
	// CalculationTimeout bounds a single commission calculation, datastore
	// and rate lookups included.
	CalculationTimeout time.Duration `mapstructure:"calculationTimeout"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BaseCurrency:       "CNY",
		DisplayCurrency:    "CNY",
		RoundingPlaces:     2,
		CalculationTimeout: 30 * time.Second,
	}
}

// EngineConfigHolder serves the current EngineConfig to concurrent readers.
type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

func NewEngineConfigHolder() (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/backoffice/config")
	v.AddConfigPath("/etc/backoffice")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	v.SetDefault("engine.baseCurrency", defaults.BaseCurrency)
	v.SetDefault("engine.displayCurrency", defaults.DisplayCurrency)
	v.SetDefault("engine.roundingPlaces", defaults.RoundingPlaces)
	v.SetDefault("engine.calculationTimeout", defaults.CalculationTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg EngineConfig
	if err := v.UnmarshalKey("engine", &cfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			log.Printf("[engine-config] reload failed: %v", err)
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			log.Printf("[engine-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// NewStaticEngineConfigHolder wraps a fixed configuration. It skips the
// engine.yml watcher, which makes it suitable for tests and embedded callers.
func NewStaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Current returns the active engine configuration.
func (h *EngineConfigHolder) Current() EngineConfig {
	return h.current.Load().(EngineConfig)
}

func validateEngineConfig(cfg EngineConfig) error {
	if strings.TrimSpace(cfg.BaseCurrency) == "" {
		return errors.New("engine config: baseCurrency is required")
	}
	if strings.TrimSpace(cfg.DisplayCurrency) == "" {
		return errors.New("engine config: displayCurrency is required")
	}
	if cfg.RoundingPlaces < 0 || cfg.RoundingPlaces > 8 {
		return errors.New("engine config: roundingPlaces must be between 0 and 8")
	}
	if cfg.CalculationTimeout <= 0 {
		return errors.New("engine config: calculationTimeout must be positive")
	}
	return nil
}
