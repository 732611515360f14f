// Package config loads client settings from TOML files, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Default values.
const (
	DefaultAPIURL   = "http://localhost:8080"
	DefaultPageSize = 20
	DefaultDebounce = 600 * time.Millisecond
	DefaultTimeout  = 15 * time.Second
	DefaultSortBy   = "created_at"
	DefaultOrder    = "desc"
	DefaultTheme    = "classic"
	DefaultLogLevel = "info"
	DefaultListen   = ":8080"

	projectFileName = "tada.toml"
	userFileName    = "config.toml"
	envPrefix       = "TADA_"
)

// Duration decodes TOML strings such as "600ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds every client setting.
type Config struct {
	APIURL   string   `toml:"api_url"`
	PageSize int      `toml:"page_size"`
	Debounce Duration `toml:"debounce"`
	Timeout  Duration `toml:"timeout"`
	SortBy   string   `toml:"sort_by"`
	Order    string   `toml:"order"`
	Theme    string   `toml:"theme"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	// Listen is the address of `todo serve`.
	Listen string `toml:"listen"`

	// Files lists the config files that were applied, in order.
	Files []string `toml:"-"`
}

// Defaults returns a config with every default applied.
func Defaults() *Config {
	return &Config{
		APIURL:   DefaultAPIURL,
		PageSize: DefaultPageSize,
		Debounce: Duration{DefaultDebounce},
		Timeout:  Duration{DefaultTimeout},
		SortBy:   DefaultSortBy,
		Order:    DefaultOrder,
		Theme:    DefaultTheme,
		LogLevel: DefaultLogLevel,
		Listen:   DefaultListen,
	}
}

// Load reads configuration in priority order:
//  1. defaults
//  2. user file (~/.config/tada/config.toml or ~/.tada/config.toml)
//  3. project file (./tada.toml)
//  4. explicit file, when non-empty
//  5. .env in the working directory (never overrides the real environment)
//  6. TADA_* environment variables
func Load(explicit string) (*Config, error) {
	var files []string
	if p := userConfigFile(); p != "" {
		files = append(files, p)
	}
	if fileExists(projectFileName) {
		files = append(files, projectFileName)
	}
	if explicit != "" {
		if !fileExists(explicit) {
			return nil, fmt.Errorf("config file %s: %w", explicit, os.ErrNotExist)
		}
		files = append(files, explicit)
	}

	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return load(files, os.Getenv)
}

func load(files []string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	for _, path := range files {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		cfg.Files = append(cfg.Files, path)
	}
	if err := loadFromEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	str("API_URL", &cfg.APIURL)
	str("SORT_BY", &cfg.SortBy)
	str("ORDER", &cfg.Order)
	str("THEME", &cfg.Theme)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("LOG_FILE", &cfg.LogFile)
	str("LISTEN", &cfg.Listen)

	if v := strings.TrimSpace(getenv(envPrefix + "PAGE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_SIZE: %w", envPrefix, err)
		}
		cfg.PageSize = n
	}
	for key, dst := range map[string]*Duration{"DEBOUNCE": &cfg.Debounce, "TIMEOUT": &cfg.Timeout} {
		if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
		}
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q is not an absolute URL", c.APIURL))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.Debounce.Duration < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative"))
	}
	switch strings.ToLower(c.Order) {
	case "asc", "desc":
	default:
		errs = append(errs, fmt.Errorf("order must be asc or desc, got %q", c.Order))
	}
	switch c.SortBy {
	case "created_at", "update_at", "name":
	default:
		errs = append(errs, fmt.Errorf("sort_by must be created_at, update_at or name, got %q", c.SortBy))
	}
	return errors.Join(errs...)
}

func userConfigFile() string {
	var candidates []string
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "tada", userFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".tada", userFileName))
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
