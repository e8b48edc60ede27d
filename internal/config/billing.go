package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultLateFeeFixed = "1500"
	DefaultDueDays      = 7
	DefaultCurrency     = "KES"
)

// BillingConfig holds the ledger tunables read from billing.yml.
type BillingConfig struct {
	LateFeeFixed string `mapstructure:"lateFeeFixed"`
	DueDays      int    `mapstructure:"dueDays"`
	Currency     string `mapstructure:"currency"`
}

// LateFee returns the parsed fixed late fee.
func (c BillingConfig) LateFee() money.Money {
	fee, err := money.Parse(c.LateFeeFixed)
	if err != nil {
		return money.MustParse(DefaultLateFeeFixed)
	}
	return fee
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		LateFeeFixed: DefaultLateFeeFixed,
		DueDays:      DefaultDueDays,
		Currency:     DefaultCurrency,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, used by tests and CLI one-shots.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(appCfg Config, log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("config.billing")
	v := viper.New()

	if appCfg.BillingConfigPath != "" {
		v.SetConfigFile(appCfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/rentledger")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RENTLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.lateFeeFixed", defaults.LateFeeFixed)
	v.SetDefault("billing.dueDays", defaults.DueDays)
	v.SetDefault("billing.currency", defaults.Currency)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := unmarshalBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileLoaded {
		log.Info("billing config file not found, using defaults",
			zap.String("late_fee_fixed", cfg.LateFeeFixed),
			zap.Int("due_days", cfg.DueDays),
		)
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalBillingConfig(v)
		if err != nil {
			log.Warn("billing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded",
			zap.String("file", e.Name),
			zap.String("late_fee_fixed", updated.LateFeeFixed),
		)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func unmarshalBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return BillingConfig{}, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func validateBillingConfig(cfg BillingConfig) error {
	fee, err := money.Parse(cfg.LateFeeFixed)
	if err != nil {
		return errors.New("billing.lateFeeFixed must be a decimal amount")
	}
	if !fee.IsPositive() {
		return errors.New("billing.lateFeeFixed must be positive")
	}
	if cfg.DueDays <= 0 {
		return errors.New("billing.dueDays must be positive")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	return nil
}
