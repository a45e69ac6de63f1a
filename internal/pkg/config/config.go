package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mapbox    MapboxConfig    `mapstructure:"mapbox"`
	Session   SessionConfig   `mapstructure:"session"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	RequestTimeout int    `mapstructure:"request_timeout"`
	AllowOrigins   string `mapstructure:"allow_origins"`
}

// MapboxConfig configures the geocoding and directions client.
type MapboxConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// SessionConfig holds session timings. Second-based fields are plain ints,
// millisecond-based ones carry the unit in their name.
type SessionConfig struct {
	LocateTimeoutMS int `mapstructure:"locate_timeout_ms"`
	RouteTimeoutMS  int `mapstructure:"route_timeout_ms"`
	IdleTTL         int `mapstructure:"idle_ttl"`
	SweepInterval   int `mapstructure:"sweep_interval"`
}

func (s SessionConfig) LocateTimeout() time.Duration {
	return time.Duration(s.LocateTimeoutMS) * time.Millisecond
}

func (s SessionConfig) RouteTimeout() time.Duration {
	return time.Duration(s.RouteTimeoutMS) * time.Millisecond
}

func (s SessionConfig) IdleTTLDuration() time.Duration {
	return time.Duration(s.IdleTTL) * time.Second
}

func (s SessionConfig) SweepEvery() time.Duration {
	return time.Duration(s.SweepInterval) * time.Second
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	return load(v)
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("mapbox.token", "")
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("mapbox.timeout", 10)
	v.SetDefault("session.locate_timeout_ms", 5000)
	v.SetDefault("session.route_timeout_ms", 8000)
	v.SetDefault("session.idle_ttl", 1800)
	v.SetDefault("session.sweep_interval", 60)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func load(v *viper.Viper) (*Config, error) {
	// Environment variables: WAYFINDER_MAPBOX_TOKEN → mapbox.token
	v.SetEnvPrefix("WAYFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if c.Mapbox.Token == "" {
		errs = append(errs, "mapbox.token is required (set WAYFINDER_MAPBOX_TOKEN)")
	}
	if u, err := url.Parse(c.Mapbox.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mapbox.base_url must be an absolute URL, got %q", c.Mapbox.BaseURL))
	}
	if c.Mapbox.Timeout <= 0 {
		errs = append(errs, "mapbox.timeout must be positive")
	}
	if c.Session.LocateTimeoutMS <= 0 {
		errs = append(errs, "session.locate_timeout_ms must be positive")
	}
	if c.Session.RouteTimeoutMS <= 0 {
		errs = append(errs, "session.route_timeout_ms must be positive")
	}
	if c.Session.IdleTTL < 0 {
		errs = append(errs, "session.idle_ttl must not be negative")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
