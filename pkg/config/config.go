package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ETLCONSOLE_"

// Defaults
const (
	DefaultServerURL      = "http://localhost:5000"
	DefaultPollInterval   = 700 * time.Millisecond
	DefaultJoinDelay      = 20 * time.Millisecond
	DefaultSettleDelay    = 800 * time.Millisecond
	DefaultRequestTimeout = 5 * time.Minute
	DefaultLogLevel       = "info"
)

// Config holds the console settings
type Config struct {
	// ServerURL is the base URL of the NL2SQL/ETL backend
	ServerURL string `yaml:"server_url"`

	PollInterval time.Duration `yaml:"poll_interval"`
	JoinDelay    time.Duration `yaml:"join_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay"`

	// RequestTimeout bounds each HTTP request. /ask can take minutes.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// DataDir holds the local history database
	DataDir string `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// MetricsAddr serves /metrics when set
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		PollInterval:   DefaultPollInterval,
		JoinDelay:      DefaultJoinDelay,
		SettleDelay:    DefaultSettleDelay,
		RequestTimeout: DefaultRequestTimeout,
		DataDir:        defaultDataDir(),
		LogLevel:       DefaultLogLevel,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".etlconsole"
	}
	return filepath.Join(home, ".etlconsole")
}

// Load builds the configuration from defaults, the YAML file at path (if
// any), the env file and finally the process environment. An empty envFile
// loads ./.env when it exists. Variables already set in the environment
// are not overridden by the env file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("SERVER_URL"); ok {
		c.ServerURL = v
	}
	if v, ok := lookup("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup("LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sLOG_JSON %q: %w", EnvPrefix, v, err)
		}
		c.LogJSON = b
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":   &c.PollInterval,
		"JOIN_DELAY":      &c.JoinDelay,
		"SETTLE_DELAY":    &c.SettleDelay,
		"REQUEST_TIMEOUT": &c.RequestTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = d
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Validate checks the configuration for values the console cannot run with
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url %q must start with http:// or https://", c.ServerURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.JoinDelay < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("join_delay and settle_delay cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}
