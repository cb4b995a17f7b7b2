// Package config loads the platform configuration via viper, from a YAML
// file plus FAAS_-prefixed environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level configuration tree.
type Config struct {
	General  GeneralConfig            `mapstructure:"general"`
	Storage  StorageConfig            `mapstructure:"storage"`
	Runtime  RuntimeConfig            `mapstructure:"runtime"`
	Sources  SourcesConfig            `mapstructure:"sources"`
	Services map[string]ServiceConfig `mapstructure:"services"`
	API      APIConfig                `mapstructure:"api"`
	Logging  LoggingConfig            `mapstructure:"logging"`
}

type GeneralConfig struct {
	Environment string `mapstructure:"environment"`
	DataDir     string `mapstructure:"data_dir"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"` // memory | persistent
}

type RuntimeConfig struct {
	JS      JSRuntimeConfig `mapstructure:"js"`
	Sandbox SandboxConfig   `mapstructure:"sandbox"`
}

type JSRuntimeConfig struct {
	MaxMemoryMB        int  `mapstructure:"max_memory_mb"`
	MaxExecutionTimeMs int  `mapstructure:"max_execution_time_ms"`
	EnableJIT          bool `mapstructure:"enable_jit"`
}

type SandboxConfig struct {
	EnableNetwork     bool     `mapstructure:"enable_network"`
	EnableFilesystem  bool     `mapstructure:"enable_filesystem"`
	EnableEnvironment bool     `mapstructure:"enable_environment"`
	AllowedDomains    []string `mapstructure:"allowed_domains"`
}

// SourcesConfig carries the per-source adapter settings.
type SourcesConfig struct {
	Neo      SourceConfig       `mapstructure:"neo"`
	Ethereum SourceConfig       `mapstructure:"ethereum"`
	Time     SourceConfig       `mapstructure:"time"`
	Market   MarketSourceConfig `mapstructure:"market"`
	HTTP     HTTPSourceConfig   `mapstructure:"http"`
}

type SourceConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	EndpointURL  string        `mapstructure:"endpoint_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type MarketSourceConfig struct {
	SourceConfig `mapstructure:",squash"`
	AssetPairs   []string `mapstructure:"asset_pairs"`
}

type HTTPSourceConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ListenAddr        string  `mapstructure:"listen_addr"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	GuardExpression   string  `mapstructure:"guard_expression"`
}

type ServiceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// APIConfig is retained as an inert passthrough for the API collaborator;
// nothing in the core reads it beyond handing it over.
type APIConfig struct {
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	EnableCORS         bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	EnableAuth         bool     `mapstructure:"enable_auth"`
	JWTSecret          string   `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
	File   string `mapstructure:"file"`
}

// Default returns the baseline configuration applied before file and
// environment overrides.
func Default() *Config {
	return &Config{
		General: GeneralConfig{Environment: "development", DataDir: "./data"},
		Storage: StorageConfig{Type: "memory"},
		Runtime: RuntimeConfig{
			JS: JSRuntimeConfig{MaxMemoryMB: 128, MaxExecutionTimeMs: 30000},
		},
		Sources: SourcesConfig{
			Neo:      SourceConfig{EndpointURL: "http://localhost:10332", PollInterval: 15 * time.Second},
			Ethereum: SourceConfig{EndpointURL: "http://localhost:8545", PollInterval: 15 * time.Second},
			Time:     SourceConfig{Enabled: true, PollInterval: 10 * time.Second},
			Market: MarketSourceConfig{
				SourceConfig: SourceConfig{EndpointURL: "https://api.binance.com/api/v3", PollInterval: 30 * time.Second},
				AssetPairs:   []string{"NEO/USD"},
			},
			HTTP: HTTPSourceConfig{ListenAddr: ":8090", RequestsPerSecond: 10, Burst: 20},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from path (optional) with environment
// overrides (FAAS_LOGGING_LEVEL etc.) on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}

// ServiceEnabled reports whether an optional collaborator is switched on;
// absent entries default to enabled.
func (c *Config) ServiceEnabled(name string) bool {
	svc, ok := c.Services[name]
	if !ok {
		return true
	}
	return svc.Enabled
}
