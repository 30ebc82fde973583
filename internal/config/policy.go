package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TaxPolicy is the operator-editable half of configuration: rates, scope and
// reconciliation tuning. It lives in tax.yml and hot-reloads on change so rate
// tweaks do not require a restart.
type TaxPolicy struct {
	// DefaultRatePercent applies when no TaxRate row matches the cascade.
	DefaultRatePercent float64 `mapstructure:"defaultRatePercent"`

	// TaxedSystems is an allow-list of solar system ids. Empty means every
	// system is taxed.
	TaxedSystems []int64 `mapstructure:"taxedSystems"`

	// CreditDeMinimis is the smallest ISK credit worth persisting.
	CreditDeMinimis float64 `mapstructure:"creditDeMinimis"`

	MatcherLookbackDays     int `mapstructure:"matcherLookbackDays"`
	MatcherToleranceMinutes int `mapstructure:"matcherToleranceMinutes"`
	InvoiceDueDays          int `mapstructure:"invoiceDueDays"`

	// ReferenceHubID is the market location used for price discovery;
	// ReferenceRegionID the region queried for its order book.
	ReferenceHubID    int64 `mapstructure:"referenceHubId"`
	ReferenceRegionID int64 `mapstructure:"referenceRegionId"`

	PriceCacheTTLMinutes int `mapstructure:"priceCacheTtlMinutes"`
}

func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{
		DefaultRatePercent:      10,
		TaxedSystems:            nil,
		CreditDeMinimis:         100_000,
		MatcherLookbackDays:     35,
		MatcherToleranceMinutes: 5,
		InvoiceDueDays:          7,
		ReferenceHubID:          60003760, // Jita IV-4
		ReferenceRegionID:       10000002, // The Forge
		PriceCacheTTLMinutes:    60,
	}
}

type TaxPolicyHolder struct {
	current atomic.Value // holds TaxPolicy
}

// NewTaxPolicyHolder reads tax.yml and keeps it fresh via fsnotify.
func NewTaxPolicyHolder() (*TaxPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("tax")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/oretax/config")
	v.AddConfigPath("/etc/oretax")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORETAX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultTaxPolicy()
	v.SetDefault("tax.defaultRatePercent", defaults.DefaultRatePercent)
	v.SetDefault("tax.creditDeMinimis", defaults.CreditDeMinimis)
	v.SetDefault("tax.matcherLookbackDays", defaults.MatcherLookbackDays)
	v.SetDefault("tax.matcherToleranceMinutes", defaults.MatcherToleranceMinutes)
	v.SetDefault("tax.invoiceDueDays", defaults.InvoiceDueDays)
	v.SetDefault("tax.referenceHubId", defaults.ReferenceHubID)
	v.SetDefault("tax.referenceRegionId", defaults.ReferenceRegionID)
	v.SetDefault("tax.priceCacheTtlMinutes", defaults.PriceCacheTTLMinutes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg TaxPolicy
	if err := v.UnmarshalKey("tax", &cfg); err != nil {
		return nil, err
	}
	if err := validateTaxPolicy(cfg); err != nil {
		return nil, err
	}

	holder := &TaxPolicyHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated TaxPolicy
		if err := v.UnmarshalKey("tax", &updated); err != nil {
			log.Printf("[tax-policy] reload failed: %v", err)
			return
		}
		if err := validateTaxPolicy(updated); err != nil {
			log.Printf("[tax-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[tax-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticTaxPolicyHolder wraps a fixed policy, used by tests and dry runs.
func NewStaticTaxPolicyHolder(cfg TaxPolicy) *TaxPolicyHolder {
	holder := &TaxPolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *TaxPolicyHolder) Get() TaxPolicy {
	return h.current.Load().(TaxPolicy)
}

func validateTaxPolicy(cfg TaxPolicy) error {
	if cfg.DefaultRatePercent < 0 || cfg.DefaultRatePercent > 100 {
		return errors.New("tax.defaultRatePercent must be within [0, 100]")
	}
	if cfg.CreditDeMinimis < 0 {
		return errors.New("tax.creditDeMinimis cannot be negative")
	}
	if cfg.ReferenceRegionID == 0 {
		return errors.New("tax.referenceRegionId is required")
	}
	return nil
}
