// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList                  []string      `mapstructure:"rpc_list"`
	JitoEndpoints            []string      `mapstructure:"jito_endpoints"`
	WalletsFile              string        `mapstructure:"wallets_file"`
	ComputeUnits             uint32        `mapstructure:"compute_units"`
	PriorityFeeMicroLamports uint64        `mapstructure:"priority_fee_micro_lamports"`
	TipLamports              uint64        `mapstructure:"tip_lamports"`
	SlippageBps              uint64        `mapstructure:"slippage_bps"`
	MaxRetries               int           `mapstructure:"max_retries"`
	PollInterval             time.Duration `mapstructure:"poll_interval"`
	BundleTimeout            time.Duration `mapstructure:"bundle_timeout"`
	ConfirmTimeout           time.Duration `mapstructure:"confirm_timeout"`
	FundingInterval          time.Duration `mapstructure:"funding_interval"`
	SpreadDelay              time.Duration `mapstructure:"spread_delay"`
	FeeReserveLamports       uint64        `mapstructure:"fee_reserve_lamports"`
	PostgresURL              string        `mapstructure:"postgres_url"`
	MetricsAddr              string        `mapstructure:"metrics_addr"`
	ExportDir                string        `mapstructure:"export_dir"`
	Log                      LogConfig     `mapstructure:"log"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Debug      bool   `mapstructure:"debug"`
}

const (
	EnvPrefix = "PUMP_BUNDLER"

	DefaultWalletsFile              = "wallets.json"
	DefaultComputeUnits             = 200_000
	DefaultPriorityFeeMicroLamports = 5_000
	DefaultTipLamports              = 1_000_000
	DefaultSlippageBps              = 500
	DefaultMaxRetries               = 3
	DefaultPollInterval             = 2 * time.Second
	DefaultBundleTimeout            = 60 * time.Second
	DefaultConfirmTimeout           = 60 * time.Second
	DefaultFundingInterval          = 2 * time.Second
	DefaultSpreadDelay              = 3 * time.Second
	DefaultFeeReserveLamports       = 5_000
	DefaultExportDir                = "exports"
)

// LoadConfig reads path (optional) and applies PUMP_BUNDLER_* overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"wallets_file":                DefaultWalletsFile,
		"compute_units":               DefaultComputeUnits,
		"priority_fee_micro_lamports": DefaultPriorityFeeMicroLamports,
		"tip_lamports":                DefaultTipLamports,
		"slippage_bps":                DefaultSlippageBps,
		"max_retries":                 DefaultMaxRetries,
		"poll_interval":               DefaultPollInterval,
		"bundle_timeout":              DefaultBundleTimeout,
		"confirm_timeout":             DefaultConfirmTimeout,
		"funding_interval":            DefaultFundingInterval,
		"spread_delay":                DefaultSpreadDelay,
		"fee_reserve_lamports":        DefaultFeeReserveLamports,
		"postgres_url":                "",
		"metrics_addr":                "",
		"export_dir":                  DefaultExportDir,
		"log.file":                    "bundler.log",
		"log.max_size":                100,
		"log.max_age":                 7,
		"log.max_backups":             3,
		"log.compress":                true,
		"log.debug":                   false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	loadEnvironmentLists(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	for _, endpoint := range cfg.JitoEndpoints {
		if err := validateURLWithCache(endpoint, "http"); err != nil {
			return errors.New("invalid Jito endpoint protocol")
		}
	}
	if cfg.PostgresURL != "" {
		if err := validateURLWithCache(cfg.PostgresURL, "postgres"); err != nil {
			return errors.New("postgres_url must use the postgres scheme")
		}
	}
	if cfg.WalletsFile == "" {
		return errors.New("wallets_file is empty")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.ComputeUnits == 0 || cfg.ComputeUnits > 1_400_000 {
		return errors.New("invalid compute_units")
	}
	if cfg.SlippageBps > 10_000 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.MaxRetries <= 0 {
		return errors.New("invalid max_retries")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if cfg.BundleTimeout < cfg.PollInterval {
		return errors.New("bundle_timeout must not be shorter than poll_interval")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.FundingInterval < 0 {
		return errors.New("invalid funding_interval")
	}
	if cfg.SpreadDelay < 0 {
		return errors.New("invalid spread_delay")
	}
	return nil
}

// RequireJito reports a configuration error when bundles cannot be sent.
func (c *Config) RequireJito() error {
	if len(c.JitoEndpoints) == 0 {
		return errors.New("jito_endpoints is empty")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// loadEnvironmentLists accepts comma-separated lists for the endpoint keys.
// A list read from the config file is not a string and is left untouched.
func loadEnvironmentLists(v *viper.Viper, cfg *Config) {
	if list := splitList(v.GetString("RPC_LIST")); len(list) > 0 {
		cfg.RPCList = list
	}
	if list := splitList(v.GetString("JITO_ENDPOINTS")); len(list) > 0 {
		cfg.JitoEndpoints = list
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
