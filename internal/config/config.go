package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Authentication modes.
const (
	AuthModePassword = "password"
	AuthModeIAM      = "iam"
)

// MaxPoolConns bounds pool_max_conns; pgx pool sizes are int32.
const MaxPoolConns = math.MaxInt32

// Probe operations.
const (
	OperationSmoke      = "smoke"
	OperationHasTable   = "has-table"
	OperationCreateUser = "create-user"
)

// Config represents the root configuration structure
type Config struct {
	// Region is the cloud region used for secret and token lookups.
	Region string `mapstructure:"region"`

	// SecretID is the name or ARN of the connection secret.
	SecretID string `mapstructure:"secret_id"`

	// ProxyEndpoint, when set, replaces the secret's host as the dial target
	// and forces TLS.
	ProxyEndpoint string `mapstructure:"proxy_endpoint"`

	// AuthMode is "password" (static secret password) or "iam" (issued token).
	AuthMode string `mapstructure:"auth_mode"`

	// SSLMode applies to direct connections only.
	SSLMode string `mapstructure:"sslmode"`

	PoolMaxConns    int    `mapstructure:"pool_max_conns"`
	ApplicationName string `mapstructure:"application_name"`

	Probe   ProbeConfig   `mapstructure:"probe"`
	History HistoryConfig `mapstructure:"history"`

	Debug   bool   `mapstructure:"debug"`
	LogFile string `mapstructure:"log_file"`
}

// ProbeConfig selects the statement run after connecting.
type ProbeConfig struct {
	Operation string `mapstructure:"operation"`
	TableName string `mapstructure:"table_name"`
	UserName  string `mapstructure:"user_name"`
}

// HistoryConfig configures the local run history database (CLI only).
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var (
	validAuthModes  = []string{AuthModePassword, AuthModeIAM}
	validSSLModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	validOperations = []string{OperationSmoke, OperationHasTable, OperationCreateUser}
)

// LoadConfigFromPath loads and validates configuration from a specific path.
// If configPath is empty, it searches default locations. A missing config file
// is not an error; environment and defaults still apply.
func LoadConfigFromPath(configPath string) (*Config, error) {
	cfg, err := ReadConfigFromPath(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfigFromPath is LoadConfigFromPath without validation, for callers
// that apply overrides first or only need part of the configuration.
func ReadConfigFromPath(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "rdsprobe"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "rdsprobe"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return configFromViper(v)
}

// LoadFromEnv loads configuration from environment variables and defaults only.
// This is what the function entrypoint uses.
func LoadFromEnv() (*Config, error) {
	cfg, err := configFromViper(newViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvPrefix("RDSPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	applyDefaults(v)

	// The function environment uses these names.
	_ = v.BindEnv("region", "RDSPROBE_REGION", "AWS_REGION", "AWS_DEFAULT_REGION")
	_ = v.BindEnv("secret_id", "RDSPROBE_SECRET_ID", "RDS_SECRET_NAME")
	_ = v.BindEnv("proxy_endpoint", "RDSPROBE_PROXY_ENDPOINT", "PROXY_ENDPOINT")

	return v
}

// configFromViper extracts the config from a viper instance.
func configFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	cfg.ProxyEndpoint = strings.TrimSpace(cfg.ProxyEndpoint)
	cfg.History.Path = expandPath(cfg.History.Path)
	cfg.LogFile = expandPath(cfg.LogFile)

	return &cfg, nil
}

// applyDefaults sets default configuration values
func applyDefaults(v *viper.Viper) {
	v.SetDefault("region", "")
	v.SetDefault("secret_id", "")
	v.SetDefault("proxy_endpoint", "")
	v.SetDefault("auth_mode", AuthModePassword)
	v.SetDefault("sslmode", "prefer")
	v.SetDefault("pool_max_conns", 1)
	v.SetDefault("application_name", "rdsprobe")

	v.SetDefault("probe.operation", OperationSmoke)
	v.SetDefault("probe.table_name", "test_table")
	v.SetDefault("probe.user_name", "test_user")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", DefaultHistoryPath())

	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required (set AWS_REGION or region)")
	}
	if c.SecretID == "" {
		return fmt.Errorf("secret_id is required (set RDS_SECRET_NAME or secret_id)")
	}
	if !contains(validAuthModes, c.AuthMode) {
		return fmt.Errorf("auth_mode must be one of: %v, got %q", validAuthModes, c.AuthMode)
	}
	if !contains(validSSLModes, c.SSLMode) {
		return fmt.Errorf("sslmode must be one of: %v, got %q", validSSLModes, c.SSLMode)
	}
	if c.PoolMaxConns < 1 || c.PoolMaxConns > MaxPoolConns {
		return fmt.Errorf("pool_max_conns must be between 1 and %d, got %d", MaxPoolConns, c.PoolMaxConns)
	}

	switch c.Probe.Operation {
	case OperationSmoke:
	case OperationHasTable:
		if c.Probe.TableName == "" {
			return fmt.Errorf("probe.table_name is required for %s", OperationHasTable)
		}
	case OperationCreateUser:
		if c.Probe.UserName == "" {
			return fmt.Errorf("probe.user_name is required for %s", OperationCreateUser)
		}
	default:
		return fmt.Errorf("probe.operation must be one of: %v, got %q", validOperations, c.Probe.Operation)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	return nil
}

// ValidateHistory checks only what reading the local run history needs.
func (c *Config) ValidateHistory() error {
	if c.History.Path == "" {
		return fmt.Errorf("history.path is required")
	}
	return nil
}

// Proxied reports whether connections go through the proxy endpoint.
func (c *Config) Proxied() bool {
	return c.ProxyEndpoint != ""
}

// DefaultHistoryPath returns the default location of the run history database.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "rdsprobe", "history.db")
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
