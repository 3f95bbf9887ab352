package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected sqlite driver, got %s", config.Database.Driver)
		}

		if config.Database.Path != "./wavecrawl.db" {
			t.Errorf("expected database path ./wavecrawl.db, got %s", config.Database.Path)
		}

		if config.Scheduler.Interval.Duration != 2*time.Hour {
			t.Errorf("expected 2h interval, got %s", config.Scheduler.Interval)
		}

		if config.Scheduler.Tick.Duration != time.Minute {
			t.Errorf("expected 60s tick, got %s", config.Scheduler.Tick)
		}

		if config.Resolver.Delay.Duration != 2*time.Second {
			t.Errorf("expected 2s resolver delay, got %s", config.Resolver.Delay)
		}

		if config.Jobs.DefaultMaxRetries != 3 {
			t.Errorf("expected 3 default retries, got %d", config.Jobs.DefaultMaxRetries)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
driver = "postgres"
dsn = "postgres://crawler@localhost:5432/wavecrawl"

[search]
provider = "proxy"
proxy_url = "http://localhost:9090"

[scheduler]
interval = "30m"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != DriverPostgres {
			t.Errorf("expected postgres driver, got %s", config.Database.Driver)
		}

		if config.Scheduler.Interval.Duration != 30*time.Minute {
			t.Errorf("expected 30m interval, got %s", config.Scheduler.Interval)
		}

		if config.Scheduler.Tick.Duration != time.Minute {
			t.Errorf("unset tick should keep default, got %s", config.Scheduler.Tick)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("LoadConfig with bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[resolver]\ndelay = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		env := "NEXT_PUBLIC_SUPABASE_URL=https://project.supabase.co\nSUPABASE_SERVICE_ROLE_KEY=service-key\n"
		if err := os.WriteFile(envPath, []byte(env), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() {
			os.Unsetenv("NEXT_PUBLIC_SUPABASE_URL")
			os.Unsetenv("SUPABASE_SERVICE_ROLE_KEY")
		})

		config := DefaultConfig()
		config.Database.Driver = DriverSupabase
		if err := config.ApplyEnv(envPath); err != nil {
			t.Fatalf("ApplyEnv failed: %v", err)
		}

		if config.Supabase.URL != "https://project.supabase.co" {
			t.Errorf("expected supabase url from env, got %q", config.Supabase.URL)
		}
		if config.Supabase.ServiceRoleKey != "service-key" {
			t.Errorf("expected service key from env, got %q", config.Supabase.ServiceRoleKey)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid supabase config, got %v", err)
		}
	})

	t.Run("ApplyEnv with missing file", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Errorf("missing env file should be ignored, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
			want   error
		}{
			{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, ErrInvalidConfig},
			{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres; c.Database.DSN = "" }, ErrMissingCredentials},
			{"supabase without key", func(c *Config) {
				c.Database.Driver = DriverSupabase
				c.Supabase.URL = "https://x.supabase.co"
				c.Supabase.ServiceRoleKey = ""
			}, ErrMissingCredentials},
			{"data api without key", func(c *Config) { c.Search.Provider = SearchDataAPI; c.Search.APIKey = "" }, ErrMissingCredentials},
			{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }, ErrInvalidConfig},
			{"zero interval", func(c *Config) { c.Scheduler.Interval.Duration = 0 }, ErrInvalidConfig},
			{"zero retries", func(c *Config) { c.Jobs.DefaultMaxRetries = 0 }, ErrInvalidConfig},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}
