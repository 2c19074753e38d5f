// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Search, Notes, Redis, Logging, Metrics).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Notes   NotesConfig   `yaml:"notes"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// IndexConfig says where the full-text index is built.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

// SearchConfig controls query limits.
type SearchConfig struct {
	MaxResults   int `yaml:"maxResults"`
	DefaultLimit int `yaml:"defaultLimit"`
}

// NotesConfig locates the notes to index and the rendered files to serve.
// Either SummaryFile or Dir must be set; SummaryFile wins when both are.
type NotesConfig struct {
	SummaryFile string `yaml:"summaryFile"`
	Dir         string `yaml:"dir"`
	HTMLDir     string `yaml:"htmlDir"`
	StaticDir   string `yaml:"staticDir"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Index: IndexConfig{
			Dir: "./.index",
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 20,
		},
		Notes: NotesConfig{
			StaticDir: "static",
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	if err := validPort("server.port", c.Server.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Enabled {
		if err := validPort("metrics.port", c.Metrics.Port); err != nil {
			errs = append(errs, err)
		}
		if c.Metrics.Port == c.Server.Port {
			errs = append(errs, fmt.Errorf("metrics.port must differ from server.port (%d)", c.Server.Port))
		}
	}
	if c.Index.Dir == "" {
		errs = append(errs, errors.New("index.dir is required"))
	}
	if c.Search.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("search.maxResults must be positive, got %d", c.Search.MaxResults))
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxResults {
		errs = append(errs, fmt.Errorf("search.defaultLimit must be between 1 and %d, got %d",
			c.Search.MaxResults, c.Search.DefaultLimit))
	}
	if c.Redis.Enabled && c.Redis.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("redis.poolSize must be positive, got %d", c.Redis.PoolSize))
	}
	return errors.Join(errs...)
}

// Validate checks that a note source is configured and that every
// configured path exists.
func (n NotesConfig) Validate() error {
	if n.SummaryFile == "" && n.Dir == "" {
		return errors.New("one of notes.summaryFile or notes.dir is required")
	}
	for _, p := range []struct{ name, path string }{
		{"notes.summaryFile", n.SummaryFile},
		{"notes.dir", n.Dir},
		{"notes.htmlDir", n.HTMLDir},
	} {
		if p.path == "" {
			continue
		}
		if _, err := os.Stat(p.path); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// applyEnvOverrides reads NS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NS_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("NS_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := os.Getenv("NS_NOTES_SUMMARY_FILE"); v != "" {
		cfg.Notes.SummaryFile = v
	}
	if v := os.Getenv("NS_NOTES_DIR"); v != "" {
		cfg.Notes.Dir = v
	}
	if v := os.Getenv("NS_NOTES_HTML_DIR"); v != "" {
		cfg.Notes.HTMLDir = v
	}
	if v := os.Getenv("NS_NOTES_STATIC_DIR"); v != "" {
		cfg.Notes.StaticDir = v
	}
	if v := os.Getenv("NS_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("NS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("NS_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if v := os.Getenv("NS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
