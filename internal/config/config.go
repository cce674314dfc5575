package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jgoulah/gridbill/internal/logging"
)

// Config holds the application configuration
type Config struct {
	DataDir  string       `yaml:"data_dir,omitempty"` // record store root (fallback: ./data)
	Database string       `yaml:"database,omitempty"` // sqlite bill history (fallback: <data_dir>/gridbill.db)
	Log      LogConfig    `yaml:"log,omitempty"`
	Ticker   TickerConfig `yaml:"ticker,omitempty"`
	MQTT     MQTTConfig   `yaml:"mqtt,omitempty"`
}

// LogConfig selects where diagnostics go
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // console or json
	Output string `yaml:"output,omitempty"` // stdout, stderr or a file path
}

// TickerConfig controls the `run` loop
type TickerConfig struct {
	CheckInterval string `yaml:"check_interval,omitempty"` // e.g. "1m"
	TickEvery     int    `yaml:"tick_every,omitempty"`     // checks per period advance
	SyncHistory   bool   `yaml:"sync_history,omitempty"`   // mirror each new report into sqlite
	Publish       bool   `yaml:"publish,omitempty"`        // publish each new report over MQTT
}

// MQTTConfig holds broker settings for bill publishing
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`                 // host:port
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: gridbill
	ClientID    string `yaml:"client_id,omitempty"`    // fallback: gridbill
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// 0600: the file may carry broker credentials
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetDataDir returns the record store root, defaulting to ./data
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return "data"
	}
	return c.DataDir
}

// GetDatabasePath returns the sqlite path, defaulting to a file in the data directory
func (c *Config) GetDatabasePath() string {
	if c.Database == "" {
		return filepath.Join(c.GetDataDir(), "gridbill.db")
	}
	return c.Database
}

// GetLogging returns the logger configuration
func (c *Config) GetLogging() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Log.Level != "" {
		cfg.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		cfg.Format = c.Log.Format
	}
	if c.Log.Output != "" {
		cfg.Output = c.Log.Output
	}
	return cfg
}

// GetCheckInterval returns the run loop check interval with a default of one minute
func (c *Config) GetCheckInterval() (time.Duration, error) {
	if c.Ticker.CheckInterval == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(c.Ticker.CheckInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing ticker.check_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ticker.check_interval must be positive, got %s", d)
	}
	return d, nil
}

// GetTickEvery returns the number of checks per period advance with a default of 10
func (c *Config) GetTickEvery() int {
	if c.Ticker.TickEvery <= 0 {
		return 10
	}
	return c.Ticker.TickEvery
}

// GetTopicPrefix returns the MQTT topic prefix with a default of "gridbill"
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "gridbill"
	}
	return m.TopicPrefix
}

// GetClientID returns the MQTT client id with a default of "gridbill"
func (m MQTTConfig) GetClientID() string {
	if m.ClientID == "" {
		return "gridbill"
	}
	return m.ClientID
}
