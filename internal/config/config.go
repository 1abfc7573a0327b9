// Package config loads databridge's configuration: the database DSN,
// per-source credentials, and job tunables. It follows the teacher's
// cmd/bd/config.go pattern of a viper instance reading a YAML file with
// environment-variable overrides, plus a viper-free direct YAML loader for
// call sites that need config before the root command initializes viper.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// TDXConfig carries both TDX auth styles seen in original_source: a bearer
// API token, or BEID + web-services-key admin credentials.
type TDXConfig struct {
	BaseURL         string `yaml:"base-url" mapstructure:"base-url"`
	AppID           string `yaml:"app-id" mapstructure:"app-id"`
	APIToken        string `yaml:"api-token" mapstructure:"api-token"`
	Username        string `yaml:"username" mapstructure:"username"`
	Password        string `yaml:"password" mapstructure:"password"`
	BEID            string `yaml:"beid" mapstructure:"beid"`
	WebServicesKey  string `yaml:"web-services-key" mapstructure:"web-services-key"`
}

// LDAPConfig is shared by the AD and MCommunity ingesters.
type LDAPConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	BindDN       string `yaml:"bind-dn" mapstructure:"bind-dn"`
	BindPassword string `yaml:"bind-password" mapstructure:"bind-password"`
	BaseDN       string `yaml:"base-dn" mapstructure:"base-dn"`
	// IncludeAlumni is a config knob for MCommunity alumni inclusion, not a
	// hardcoded policy (spec.md §9 open question). No ingester reads it, so
	// MCommunity ingestion does not filter alumni either way.
	IncludeAlumni bool `yaml:"include-alumni" mapstructure:"include-alumni"`
}

// IdentityAPIConfig is the institutional identity API (umich_api).
type IdentityAPIConfig struct {
	BaseURL    string `yaml:"base-url" mapstructure:"base-url"`
	ServiceKey string `yaml:"service-key" mapstructure:"service-key"`
}

// InventoryConfig is the per-NIC inventory agent feed.
type InventoryConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string `yaml:"api-key" mapstructure:"api-key"`
}

// CSVConfig is the lab-awards CSV export, discovered by newest-mtime glob.
type CSVConfig struct {
	Glob string `yaml:"glob" mapstructure:"glob"`
}

// Config is the full databridge configuration.
type Config struct {
	DatabaseDSN string `yaml:"database-dsn" mapstructure:"database-dsn" validate:"required"`
	LogDir      string `yaml:"log-dir" mapstructure:"log-dir"`

	TDX         TDXConfig         `yaml:"tdx" mapstructure:"tdx"`
	AD          LDAPConfig        `yaml:"ad" mapstructure:"ad"`
	MCommunity  LDAPConfig        `yaml:"mcommunity" mapstructure:"mcommunity"`
	IdentityAPI IdentityAPIConfig `yaml:"identity-api" mapstructure:"identity-api"`
	Inventory   InventoryConfig   `yaml:"inventory" mapstructure:"inventory"`
	CSV         CSVConfig         `yaml:"csv" mapstructure:"csv"`

	BatchSize  int           `yaml:"batch-size" mapstructure:"batch-size" validate:"gte=1"`
	MaxWorkers int           `yaml:"max-workers" mapstructure:"max-workers" validate:"gte=1"`
	APIDelay   time.Duration `yaml:"api-delay" mapstructure:"api-delay"`

	PoolSize     int `yaml:"pool-size" mapstructure:"pool-size" validate:"gte=1"`
	PoolOverflow int `yaml:"pool-overflow" mapstructure:"pool-overflow" validate:"gte=0"`
}

// Defaults mirrors spec.md §5's stated defaults (pool 5+10, batch 500,
// max_workers 10).
func Defaults() Config {
	return Config{
		LogDir:       "/var/log/databridge",
		BatchSize:    500,
		MaxWorkers:   10,
		PoolSize:     5,
		PoolOverflow: 10,
	}
}

var validate = validator.New()

// Load reads databridge.yaml from configPath (if non-empty) via viper,
// applies DATABRIDGE_* environment overrides, and validates the result.
// Mirrors cmd/bd/config.go's `viper.New(); v.SetConfigType("yaml");
// v.SetConfigFile(path)` pattern.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("DATABRIDGE")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadLocalConfig reads configPath directly with yaml.Unmarshal, bypassing
// the viper singleton. Used by call sites (status checks, pre-run
// diagnostics) that need to peek at config before the root command
// initializes viper, mirroring internal/config/local_config.go's
// LoadLocalConfig in the teacher.
func LoadLocalConfig(configPath string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(configPath) // #nosec G304 - operator-supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	return &cfg, nil
}
