// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for both binaries.
// The mapstructure tags double as the environment variable names (upper-cased).
type Config struct {
	Environment string `mapstructure:"node_env"`
	LogLevel    string `mapstructure:"log_level"`
	// TracingEnabled turns on the stdout span exporter.
	TracingEnabled bool `mapstructure:"tracing_enabled"`

	// Worker
	HttpListenAddr    string        `mapstructure:"http_listen_addr"`
	GrpcListenAddr    string        `mapstructure:"grpc_listen_addr"`
	AdvertiseHTTPURL  string        `mapstructure:"advertise_http_url"`
	AdvertiseGRPCAddr string        `mapstructure:"advertise_grpc_addr"`
	ApiHost           string        `mapstructure:"api_host"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`

	// Gateway
	GatewayListenAddr string        `mapstructure:"gateway_listen_addr"`
	WorkerURL         string        `mapstructure:"py_worker_url"`
	WorkerGRPCAddr    string        `mapstructure:"worker_grpc_addr"`
	WorkerTransport   string        `mapstructure:"worker_transport"`
	ForwardTimeout    time.Duration `mapstructure:"forward_timeout"`
	ForwardMaxRetries int           `mapstructure:"forward_max_retries"`
	ForwardBackoff    time.Duration `mapstructure:"forward_backoff"`
	GatewayRateLimit  float64       `mapstructure:"gateway_rate_limit"`
	GatewayRateBurst  int           `mapstructure:"gateway_rate_burst"`
	CorsOrigins       []string      `mapstructure:"cors_origins"`

	// Discovery; empty endpoints disables etcd entirely.
	EtcdEndpoints   []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout     time.Duration `mapstructure:"etcd_timeout"`
	RegistrationTTL time.Duration `mapstructure:"registration_ttl"`
}

// Load reads configFile if given, otherwise configs/config.yaml or ./config.yaml
// when present, then overlays environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("node_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("http_listen_addr", ":5001")
	v.SetDefault("grpc_listen_addr", ":50052")
	v.SetDefault("advertise_http_url", "")
	v.SetDefault("advertise_grpc_addr", "")
	v.SetDefault("api_host", "http://api-server:3000")
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("heartbeat_timeout", "5s")
	v.SetDefault("gateway_listen_addr", ":3000")
	v.SetDefault("py_worker_url", "http://localhost:5001")
	v.SetDefault("worker_grpc_addr", "localhost:50052")
	v.SetDefault("worker_transport", "http")
	v.SetDefault("forward_timeout", "15s")
	v.SetDefault("forward_max_retries", 0)
	v.SetDefault("forward_backoff", "500ms")
	v.SetDefault("gateway_rate_limit", 0)
	v.SetDefault("gateway_rate_burst", 20)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("etcd_endpoints", []string{})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("registration_ttl", "10s")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: defaults and env vars only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the binaries cannot start with.
func (c *Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat_timeout must be positive")
	}
	if c.WorkerTransport != "http" && c.WorkerTransport != "grpc" {
		return fmt.Errorf("worker_transport must be http or grpc, got %q", c.WorkerTransport)
	}
	if c.ForwardMaxRetries < 0 || c.ForwardMaxRetries > 10 {
		return fmt.Errorf("forward_max_retries must be between 0 and 10")
	}
	if c.GatewayRateLimit < 0 {
		return fmt.Errorf("gateway_rate_limit must not be negative")
	}
	return nil
}

// DiscoveryEnabled reports whether etcd endpoints were configured.
func (c *Config) DiscoveryEnabled() bool {
	return len(c.EtcdEndpoints) > 0
}
