package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
)

// Search providers
const (
	SearchBrowser = "browser"
	SearchProxy   = "proxy"
	SearchDataAPI = "data_api"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Search    SearchConfig    `toml:"search"`
	Scraper   ScraperConfig   `toml:"scraper"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Jobs      JobsConfig      `toml:"jobs"`
	Log       LogConfig       `toml:"log"`
}

// DatabaseConfig contains job store connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SupabaseConfig contains the REST endpoint and service key for the supabase driver.
type SupabaseConfig struct {
	URL            string `toml:"url"`
	ServiceRoleKey string `toml:"service_role_key"`
}

// SearchConfig selects and configures the track search provider.
type SearchConfig struct {
	Provider string   `toml:"provider"`
	ProxyURL string   `toml:"proxy_url"`
	APIKey   string   `toml:"api_key"`
	Timeout  Duration `toml:"timeout"`
}

// ScraperConfig contains headless browser settings.
type ScraperConfig struct {
	Headless       bool     `toml:"headless"`
	ChromePath     string   `toml:"chrome_path"`
	WaitTimeout    Duration `toml:"wait_timeout"`
	ConsentTimeout Duration `toml:"consent_timeout"`
}

// ResolverConfig contains track resolution pacing.
type ResolverConfig struct {
	Delay Duration `toml:"delay"`
}

// SchedulerConfig controls how often reconciliation passes run.
type SchedulerConfig struct {
	Interval   Duration `toml:"interval"`
	Tick       Duration `toml:"tick"`
	RunOnStart bool     `toml:"run_on_start"`
	LockPath   string   `toml:"lock_path"`
}

// JobsConfig holds job policy defaults.
type JobsConfig struct {
	DefaultMaxRetries int `toml:"default_max_retries"`
}

// LogConfig controls logger level and output format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a [time.Duration] written as a string ("10s", "2h") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads envFile (when present) into the process environment and overlays secrets onto the config.
//
// A missing env file is not an error.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	c.Supabase.URL = getEnv("SUPABASE_URL", getEnv("NEXT_PUBLIC_SUPABASE_URL", c.Supabase.URL))
	c.Supabase.ServiceRoleKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.Supabase.ServiceRoleKey)
	c.Database.DSN = getEnv("WAVECRAWL_DATABASE_DSN", c.Database.DSN)
	c.Search.APIKey = getEnv("YT_API_KEY", c.Search.APIKey)
	return nil
}

// Validate checks that the selected drivers have what they need to start.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for postgres", ErrMissingCredentials)
		}
	case DriverSupabase:
		if c.Supabase.URL == "" || c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("%w: supabase url and service role key are required", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Search.Provider {
	case SearchBrowser:
	case SearchProxy:
		if c.Search.ProxyURL == "" {
			return fmt.Errorf("%w: search.proxy_url is required for the proxy provider", ErrInvalidConfig)
		}
	case SearchDataAPI:
		if c.Search.APIKey == "" {
			return fmt.Errorf("%w: search.api_key is required for the data_api provider", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown search provider %q", ErrInvalidConfig, c.Search.Provider)
	}

	if c.Scheduler.Interval.Duration <= 0 || c.Scheduler.Tick.Duration <= 0 {
		return fmt.Errorf("%w: scheduler interval and tick must be positive", ErrInvalidConfig)
	}
	if c.Jobs.DefaultMaxRetries <= 0 {
		return fmt.Errorf("%w: jobs.default_max_retries must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
