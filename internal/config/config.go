// Package config loads yarrd's optional on-disk configuration file. Every
// field has a sane default, so a config file is never required to run the
// engine or the REPL.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lindeneg/yarrd/internal/logging"
	"github.com/lindeneg/yarrd/internal/xerr"
)

// Config holds the ambient, non-domain settings a deployment may want to
// override: where the default database lives, how big the REPL's page
// cache is, where new databases store their table files by default, and
// how the engine logs.
type Config struct {
	DatabasePath     string `yaml:"database_path"`
	PageCacheSize    int    `yaml:"page_cache_size"`
	DefaultTablesDir string `yaml:"default_tables_dir"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
}

// DefaultPageCacheSize is the page cache capacity used when a config file
// is absent or leaves page_cache_size unset.
const DefaultPageCacheSize = 10

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{DatabasePath: "", PageCacheSize: DefaultPageCacheSize, LogLevel: "info", LogFormat: "text"}
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, xerr.IO)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, xerr.Schema)
	}
	return cfg, nil
}

// Level maps the configured log level string onto logging.Level, defaulting
// to Info for an unrecognised value.
func (c Config) Level() logging.Level {
	switch c.LogLevel {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// LogFmt maps the configured log format string onto logging.Format,
// defaulting to text for an unrecognised value.
func (c Config) LogFmt() logging.Format {
	if c.LogFormat == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

// CacheCapacity returns the configured page cache size, defaulting to
// DefaultPageCacheSize for a non-positive value.
func (c Config) CacheCapacity() int {
	if c.PageCacheSize <= 0 {
		return DefaultPageCacheSize
	}
	return c.PageCacheSize
}
