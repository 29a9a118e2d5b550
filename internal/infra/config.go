package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. LoadConfig reads the yaml file and
// then applies environment-variable overrides for endpoints and secrets.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Venue struct {
		RestURL         string `yaml:"rest_url"`
		WSURL           string `yaml:"ws_url"`
		MarketID        string `yaml:"market_id"` // initial selection; first catalog market when empty
		FeeRecipient    string `yaml:"fee_recipient"`
		SubaccountIndex int    `yaml:"subaccount_index"`
	} `yaml:"venue"`

	Wallet struct {
		Address string `yaml:"address"`
		KeyHex  string `yaml:"key_hex"` // prefer DEXTERM_WALLET_KEY
	} `yaml:"wallet"`

	Submit struct {
		PollIntervalMS int `yaml:"poll_interval_ms"`
		PollBudget     int `yaml:"poll_budget"`
	} `yaml:"submit"`

	Catalog struct {
		CacheTTLSec int `yaml:"cache_ttl_sec"`
	} `yaml:"catalog"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Venue.RestURL, "http://") && !strings.HasPrefix(c.Venue.RestURL, "https://") {
		return fmt.Errorf("invalid venue REST URL: %s", c.Venue.RestURL)
	}
	if !strings.HasPrefix(c.Venue.WSURL, "ws://") && !strings.HasPrefix(c.Venue.WSURL, "wss://") {
		return fmt.Errorf("invalid venue WS URL: %s", c.Venue.WSURL)
	}
	if c.Venue.SubaccountIndex < 0 {
		return fmt.Errorf("subaccount index must be non-negative")
	}
	if c.Submit.PollIntervalMS < 0 || c.Submit.PollBudget < 0 {
		return fmt.Errorf("submit poll settings must be non-negative")
	}
	return nil
}

// overrideWithEnv applies environment variables over file values. Secrets
// belong in the environment, not the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.Wallet.KeyHex != "" {
		fmt.Println("⚠️  SECURITY WARNING: wallet key found in config file.")
		fmt.Println("   Recommendation: set DEXTERM_WALLET_KEY instead.")
	}

	if v := os.Getenv("DEXTERM_REST_URL"); v != "" {
		cfg.Venue.RestURL = v
	}
	if v := os.Getenv("DEXTERM_WS_URL"); v != "" {
		cfg.Venue.WSURL = v
	}
	if v := os.Getenv("DEXTERM_WALLET_ADDRESS"); v != "" {
		cfg.Wallet.Address = v
	}
	if v := os.Getenv("DEXTERM_WALLET_KEY"); v != "" {
		cfg.Wallet.KeyHex = v
	}
}
