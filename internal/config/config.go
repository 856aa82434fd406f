package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/storage"
)

// Config holds the entire application configuration
type Config struct {
	// Application settings
	App AppConfig `yaml:"app"`

	// Database configuration
	Database storage.Config `yaml:"database"`

	// API server configuration
	API APIConfig `yaml:"api"`

	// Logging configuration
	Log logger.Config `yaml:"log"`

	// Managed-Kubernetes provider configuration
	Provider ProviderConfig `yaml:"provider"`

	// Pricing cache configuration
	Pricing PricingConfig `yaml:"pricing"`

	// Billing configuration
	Billing BillingConfig `yaml:"billing"`

	// Build event watcher configuration
	Watcher WatcherConfig `yaml:"watcher"`

	// Telemetry and usage sinks
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Kubernetes client configuration (build cluster)
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// AppConfig contains general application settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	DataDir     string `yaml:"data_dir"`
	Debug       bool   `yaml:"debug"`
}

// APIConfig contains REST API server settings
type APIConfig struct {
	Host              string  `yaml:"host"`
	Port              int     `yaml:"port"`
	ReadTimeout       string  `yaml:"read_timeout"`
	WriteTimeout      string  `yaml:"write_timeout"`
	TLSCertFile       string  `yaml:"tls_cert_file"`
	TLSKeyFile        string  `yaml:"tls_key_file"`
	AuthEnabled       bool    `yaml:"auth_enabled"`
	AuthSecret        string  `yaml:"auth_secret"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	RateLimitEnabled  bool    `yaml:"rate_limit_enabled"`
}

// ProviderConfig contains managed-Kubernetes provider API settings
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	// Token is the provider API credential; its absence is a fatal
	// configuration error, not a request failure
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"token_env"`

	// Defaults applied when a provision request omits them
	DefaultRegion    string `yaml:"default_region"`
	DefaultNodeSize  string `yaml:"default_node_size"`
	DefaultNodeCount int    `yaml:"default_node_count"`
	ClusterVersion   string `yaml:"cluster_version"`
}

// PricingConfig contains pricing cache settings
type PricingConfig struct {
	TTL string `yaml:"ttl"`
}

// BillingConfig contains cost calculation settings
type BillingConfig struct {
	MarkupPercent  float64 `yaml:"markup_percent"`
	HAMonthlyPrice float64 `yaml:"ha_monthly_price"`
}

// WatcherConfig contains build event watcher settings
type WatcherConfig struct {
	Namespace string `yaml:"namespace"`
	// EstablishRetryDelay applies when creating the subscription fails;
	// RunRetryDelay applies when an established subscription errors out
	EstablishRetryDelay string `yaml:"establish_retry_delay"`
	RunRetryDelay       string `yaml:"run_retry_delay"`
	AutoStart           bool   `yaml:"auto_start"`
}

// TelemetryConfig contains the fire-and-forget sink endpoints. An empty
// UsageURL disables usage tracking silently.
type TelemetryConfig struct {
	StatusURL string `yaml:"status_url"`
	UsageURL  string `yaml:"usage_url"`
	Timeout   string `yaml:"timeout"`
}

// KubernetesConfig contains Kubernetes client settings for the shared build
// cluster
type KubernetesConfig struct {
	ConfigPath string `yaml:"config_path"`
	InCluster  bool   `yaml:"in_cluster"`
	Namespace  string `yaml:"namespace"`
}

// Load loads configuration from YAML file with defaults
func Load(configPath string) (*Config, error) {
	config := getDefaults()

	var configFile string
	if configPath != "" {
		configFile = configPath
	} else {
		searchPaths := []string{
			"./fleet-controller.yaml",
			"./config/fleet-controller.yaml",
			"/etc/fleet-controller/fleet-controller.yaml",
			filepath.Join(os.Getenv("HOME"), ".fleet-controller", "fleet-controller.yaml"),
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	applyEnvOverrides(&config)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// validate validates the configuration and sets derived values
func (c *Config) validate() error {
	if c.App.DataDir != "" {
		if err := os.MkdirAll(c.App.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		if !filepath.IsAbs(c.Database.Path) {
			c.Database.Path = filepath.Join(c.App.DataDir, c.Database.Path)
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", c.API.Port)
	}

	// Resolve the provider token from the environment when configured
	// indirectly; validation of its presence happens at gateway construction
	if c.Provider.Token == "" && c.Provider.TokenEnv != "" {
		c.Provider.Token = os.Getenv(c.Provider.TokenEnv)
	}

	return nil
}

// getDefaults returns a Config struct with default values
func getDefaults() Config {
	return Config{
		App: AppConfig{
			Name:        "fleet-controller",
			Version:     "dev",
			Environment: "development",
			DataDir:     "./data",
			Debug:       false,
		},
		Database: storage.Config{
			Path:            "fleet-controller.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "5m",
			LogLevel:        "warn",
		},
		API: APIConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      "30s",
			WriteTimeout:     "30s",
			AuthEnabled:      true,
			RateLimitEnabled: true,
			RateLimitPerSec:  20,
			RateLimitBurst:   40,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Provider: ProviderConfig{
			BaseURL:          "https://api.digitalocean.com/v2",
			TokenEnv:         "DIGITALOCEAN_TOKEN",
			DefaultRegion:    "fra1",
			DefaultNodeSize:  "s-2vcpu-4gb",
			DefaultNodeCount: 2,
			ClusterVersion:   "latest",
		},
		Pricing: PricingConfig{
			TTL: "1h",
		},
		Billing: BillingConfig{
			MarkupPercent:  15,
			HAMonthlyPrice: 40,
		},
		Watcher: WatcherConfig{
			Namespace:           "build-pipelines",
			EstablishRetryDelay: "10s",
			RunRetryDelay:       "3s",
			AutoStart:           true,
		},
		Telemetry: TelemetryConfig{
			Timeout: "10s",
		},
		Kubernetes: KubernetesConfig{
			InCluster: true,
			Namespace: "build-pipelines",
		},
	}
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FLEET_CONTROLLER_API_PORT"); env != "" {
		if port := parseIntEnv(env); port > 0 {
			config.API.Port = port
		}
	}
	if env := os.Getenv("FLEET_CONTROLLER_API_HOST"); env != "" {
		config.API.Host = env
	}
	if env := os.Getenv("FLEET_CONTROLLER_LOG_LEVEL"); env != "" {
		config.Log.Level = env
	}
	if env := os.Getenv("FLEET_CONTROLLER_DEBUG"); env == "true" {
		config.App.Debug = true
	}
	if env := os.Getenv("FLEET_CONTROLLER_DATA_DIR"); env != "" {
		config.App.DataDir = env
	}
	if env := os.Getenv("FLEET_CONTROLLER_PROVIDER_TOKEN"); env != "" {
		config.Provider.Token = env
	}
}

// parseIntEnv safely parses an integer from environment variable
func parseIntEnv(env string) int {
	var i int
	if _, err := fmt.Sscanf(env, "%d", &i); err == nil {
		return i
	}
	return 0
}

// parseDuration parses a duration string, falling back when empty or invalid
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// CacheTTL returns the parsed pricing cache expiry
func (c *PricingConfig) CacheTTL() time.Duration {
	return parseDuration(c.TTL, time.Hour)
}

// EstablishDelay returns the parsed subscription-establish retry delay
func (c *WatcherConfig) EstablishDelay() time.Duration {
	return parseDuration(c.EstablishRetryDelay, 10*time.Second)
}

// RunDelay returns the parsed in-flight subscription retry delay
func (c *WatcherConfig) RunDelay() time.Duration {
	return parseDuration(c.RunRetryDelay, 3*time.Second)
}

// RequestTimeout returns the parsed telemetry request timeout
func (c *TelemetryConfig) RequestTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// GetReadTimeout returns the parsed HTTP server read timeout
func (c *APIConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the parsed HTTP server write timeout
func (c *APIConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// GetAddress returns the formatted address for the API server
func (c *APIConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsTLSEnabled returns true if TLS is configured for the API server
func (c *APIConfig) IsTLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
