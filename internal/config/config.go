// Package config holds daemon configuration: the YAML config file, the
// environment overrides, and the closed set of supported chains and
// protocol contract addresses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the vaultswapd daemon.
type Config struct {
	// Server settings (public HTTP API).
	Server ServerConfig `yaml:"server"`

	// Storage settings.
	Storage StorageConfig `yaml:"storage"`

	// Vault settings (master key).
	Vault VaultConfig `yaml:"vault"`

	// Chains holds per-chain settings, keyed by chain name ("ethereum", "base").
	Chains map[string]*ChainConfig `yaml:"chains"`

	// Slippage oracle settings.
	Slippage SlippageConfig `yaml:"slippage"`

	// Swap lifecycle settings.
	Swap SwapConfig `yaml:"swap"`

	// Metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// RequestTimeout is the per-request budget in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`

	// DatabaseURL is the SQLite database path. Empty means
	// <data_dir>/vaultswap.db.
	DatabaseURL string `yaml:"database_url"`
}

// VaultConfig holds master-key settings.
type VaultConfig struct {
	// KeyPath is the path to the 32-byte master key file (64 hex chars,
	// with or without 0x).
	KeyPath string `yaml:"key_path"`
}

// ChainConfig holds per-chain settings.
type ChainConfig struct {
	// ChainID is the EVM chain ID.
	ChainID uint64 `yaml:"chain_id"`

	// RPCURL is the JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url"`

	// OrderbookURL is the settlement orderbook base URL for this chain.
	OrderbookURL string `yaml:"orderbook_url"`

	// PollingInterval is the deposit poll period in seconds.
	PollingInterval int `yaml:"polling_interval"`
}

// SlippageConfig holds slippage oracle settings.
type SlippageConfig struct {
	// APIURL is the per-market slippage endpoint base URL. Empty disables
	// lookups; the default tolerance is used instead.
	APIURL string `yaml:"api_url"`

	// DefaultBps is the tolerance used when the endpoint is unavailable.
	DefaultBps int64 `yaml:"default_bps"`

	// CacheTTL is the per-market cache lifetime in seconds.
	CacheTTL int `yaml:"cache_ttl"`
}

// SwapConfig holds swap lifecycle settings.
type SwapConfig struct {
	// DepositTTL is how long a vault waits for a deposit, in seconds.
	DepositTTL int `yaml:"deposit_ttl"`

	// OrderValidFor is the signed order validity window in seconds.
	OrderValidFor int `yaml:"order_valid_for"`

	// SettlementInterval is the settlement poll period in seconds.
	SettlementInterval int `yaml:"settlement_interval"`

	// StuckGrace is how long an executing swap may sit without an order
	// UID before it is swept to failed, in seconds.
	StuckGrace int `yaml:"stuck_grace"`

	// HTTPTimeout is the orderbook/slippage HTTP client timeout in seconds.
	HTTPTimeout int `yaml:"http_timeout"`
}

// MetricsConfig holds optional Grafana Cloud push settings.
type MetricsConfig struct {
	PushURL      string `yaml:"push_url"`
	PushUsername string `yaml:"push_username"`
	PushAPIKey   string `yaml:"push_api_key"`

	// PushInterval is the push period in seconds.
	PushInterval int `yaml:"push_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults. RPC endpoints and
// the master key path have no defaults; they must come from the config file
// or environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8880,
			RequestTimeout: 30,
		},
		Storage: StorageConfig{
			DataDir: "~/.vaultswap",
		},
		Vault: VaultConfig{},
		Chains: map[string]*ChainConfig{
			ChainNameEthereum: {
				ChainID:         ChainIDEthereum,
				OrderbookURL:    chains[ChainIDEthereum].DefaultOrderbookURL,
				PollingInterval: 24,
			},
			ChainNameBase: {
				ChainID:         ChainIDBase,
				OrderbookURL:    chains[ChainIDBase].DefaultOrderbookURL,
				PollingInterval: 12,
			},
		},
		Slippage: SlippageConfig{
			DefaultBps: 50,
			CacheTTL:   30,
		},
		Swap: SwapConfig{
			DepositTTL:         86400,
			OrderValidFor:      86400,
			SettlementInterval: 30,
			StuckGrace:         600,
			HTTPTimeout:        30,
		},
		Metrics: MetricsConfig{
			PushInterval: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// Load loads configuration from <dataDir>/config.yaml, creating the file
// with defaults if it does not exist, then applies environment overrides.
func Load(dataDir string) (*Config, error) {
	expandedDir := ExpandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		cfg.ApplyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# VaultSwap Coordinator Configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv applies environment variable overrides. Environment takes
// precedence over the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := os.Getenv("SERVER_KEY_PATH"); v != "" {
		c.Vault.KeyPath = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ETH_RPC_URL"); v != "" {
		if ch := c.Chains[ChainNameEthereum]; ch != nil {
			ch.RPCURL = v
		}
	}
	if v := os.Getenv("BASE_RPC_URL"); v != "" {
		if ch := c.Chains[ChainNameBase]; ch != nil {
			ch.RPCURL = v
		}
	}
	if v := os.Getenv("GRAFANA_CLOUD_URL"); v != "" {
		c.Metrics.PushURL = v
	}
	if v := os.Getenv("GRAFANA_CLOUD_USERNAME"); v != "" {
		c.Metrics.PushUsername = v
	}
	if v := os.Getenv("GRAFANA_CLOUD_API_KEY"); v != "" {
		c.Metrics.PushAPIKey = v
	}
}

// Validate checks that the configuration is complete enough to start.
func (c *Config) Validate() error {
	if c.Vault.KeyPath == "" {
		return fmt.Errorf("vault key path not configured (set vault.key_path or SERVER_KEY_PATH)")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}
	for name, ch := range c.Chains {
		if ch == nil {
			return fmt.Errorf("chain %s: empty config", name)
		}
		if !IsSupportedChain(ch.ChainID) {
			return fmt.Errorf("chain %s: unsupported chain id %d", name, ch.ChainID)
		}
		if ch.RPCURL == "" {
			return fmt.Errorf("chain %s: rpc url not configured", name)
		}
		if ch.OrderbookURL == "" {
			reg, _ := ChainByID(ch.ChainID)
			ch.OrderbookURL = reg.DefaultOrderbookURL
		}
		if ch.PollingInterval <= 0 {
			return fmt.Errorf("chain %s: polling interval must be positive", name)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database path, defaulting to
// <data_dir>/vaultswap.db.
func (c *Config) DatabasePath() string {
	if c.Storage.DatabaseURL != "" {
		return ExpandPath(c.Storage.DatabaseURL)
	}
	return filepath.Join(ExpandPath(c.Storage.DataDir), "vaultswap.db")
}

// ConfigPath returns the full path to the config file for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(ExpandPath(dataDir), ConfigFileName)
}

// ExpandPath expands ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
