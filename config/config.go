package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all application configuration. It is immutable once Load
// returns.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Search    SearchConfig    `mapstructure:"search"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	// Env selects per-environment defaults. NODE_ENV is honoured as well.
	Env string `mapstructure:"env" validate:"oneof=development production test"` // default: "development"

	Host string `mapstructure:"host"`                           // default: "0.0.0.0"
	Port int    `mapstructure:"port" validate:"min=1,max=65535"` // default: 3000 (dev), 8080 (prod)

	// Mode is the gin mode.
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"` // default: "debug" (dev), "release" (prod)

	// AllowedOrigins lists CORS origins. "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// PublicBaseURL is the externally reachable base URL, used to build the
	// absolute placeholder image URL.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"` // default: "http://localhost:<port>"
}

// BrowserConfig controls the shared Rod browser.
type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless"`   // default: true
	NoSandbox bool   `mapstructure:"no_sandbox"` // default: true
	Bin       string `mapstructure:"bin"`
	Proxy     string `mapstructure:"proxy"`

	// Stealth injects the go-rod/stealth script into every page.
	Stealth bool `mapstructure:"stealth"` // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string `mapstructure:"blocked_resource_types" validate:"dive,oneof=Image Stylesheet Font Media Script"`

	BlockAds bool `mapstructure:"block_ads"` // default: true

	// LaunchTimeout bounds a single launch attempt.
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" validate:"gt=0"` // default: 60s
}

// SearchConfig controls aggregation.
type SearchConfig struct {
	// DefaultPlatforms is used when a request names no platforms.
	// default: ["amazon", "jiomart", "myntra", "ajio"]
	DefaultPlatforms []string `mapstructure:"default_platforms" validate:"min=1,dive,oneof=amazon jiomart myntra ajio flipkart"`

	// FetchMode picks the page source: "browser", "http", or "auto"
	// (browser first, plain HTTP when the browser cannot start).
	FetchMode string `mapstructure:"fetch_mode" validate:"oneof=browser http auto"` // default: "browser"

	// SampleFallback returns canned records, uncached, when every site
	// comes back empty.
	SampleFallback bool `mapstructure:"sample_fallback"` // default: false

	// UserAgent overrides the extractors' desktop user agent.
	UserAgent string `mapstructure:"user_agent"`
}

// CacheConfig controls the search result cache.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`            // default: 1h (dev), 2h (prod)
	MaxEntries    int           `mapstructure:"max_entries" validate:"min=1"`   // default: 1000
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"` // default: 5m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `mapstructure:"enabled"` // default: false

	APIKeys []string `mapstructure:"api_keys"`
}

// RateLimitConfig controls per-identity rate limiting. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"` // default: 2
	Burst             int     `mapstructure:"burst" validate:"gte=0"`               // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"` // default: "debug" (dev), "info" (prod)
	Format string `mapstructure:"format" validate:"oneof=json text"`           // default: "text" (dev), "json" (prod)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PlaceholderImageURL is the absolute URL extractors emit for listings
// without an image.
func (c *Config) PlaceholderImageURL() string {
	return strings.TrimRight(c.Server.PublicBaseURL, "/") + "/api/placeholder/60/60"
}

// Load reads configuration from an optional .env file, an optional
// dealscout.yaml and DEALSCOUT_* environment variables, on top of
// per-environment defaults. envFiles defaults to ".env"; missing files are
// ignored.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading env file: %w", err)
	}

	env := environment()

	v := viper.New()
	v.SetConfigName("dealscout")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("DEALSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("server.port", "DEALSCOUT_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.allowed_origins", "DEALSCOUT_SERVER_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")

	setDefaults(v, env)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Server.Env = env

	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// environment resolves the deployment environment before defaults are set.
func environment() string {
	for _, key := range []string{"DEALSCOUT_SERVER_ENV", "DEALSCOUT_ENV", "NODE_ENV"} {
		if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v != "" {
			return v
		}
	}
	return EnvDevelopment
}

func setDefaults(v *viper.Viper, env string) {
	prod := env == EnvProduction

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.public_base_url", "")
	if prod {
		v.SetDefault("server.port", 8080)
		v.SetDefault("server.mode", "release")
		v.SetDefault("server.allowed_origins", []string{"https://your-domain.com"})
	} else {
		v.SetDefault("server.port", 3000)
		v.SetDefault("server.mode", "debug")
		v.SetDefault("server.allowed_origins", []string{"http://localhost:8080", "http://127.0.0.1:8080"})
	}
	if env == EnvTest {
		v.SetDefault("server.mode", "test")
	}

	// Browser
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.blocked_resource_types", []string{"Font", "Media"})
	v.SetDefault("browser.block_ads", true)
	v.SetDefault("browser.launch_timeout", "60s")

	// Search
	v.SetDefault("search.default_platforms", []string{"amazon", "jiomart", "myntra", "ajio"})
	v.SetDefault("search.fetch_mode", "browser")
	v.SetDefault("search.sample_fallback", false)
	v.SetDefault("search.user_agent", "")

	// Cache
	if prod {
		v.SetDefault("cache.ttl", "2h")
	} else {
		v.SetDefault("cache.ttl", "1h")
	}
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.sweep_interval", "5m")

	// Auth and rate limiting
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("ratelimit.requests_per_second", 2.0)
	v.SetDefault("ratelimit.burst", 5)

	// Logging
	if prod {
		v.SetDefault("log.level", "info")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
}

var validate = func() func(*Config) error {
	vd := validator.New(validator.WithRequiredStructEnabled())
	return func(cfg *Config) error {
		if err := vd.Struct(cfg); err != nil {
			return err
		}
		if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
			return errors.New("auth is enabled but no API keys are configured (set DEALSCOUT_AUTH_API_KEYS)")
		}
		return nil
	}
}()
