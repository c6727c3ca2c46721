// Package config loads intlsense settings.
//
// Settings are layered: built-in defaults, then the project file
// .intlsense.toml, then INTLSENSE_* variables from the project's .env file,
// then the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jward/intlsense/internal/schedule"
	"github.com/jward/intlsense/internal/watch"
)

const (
	// FileName is the project configuration file at the project root.
	FileName = ".intlsense.toml"
	// EnvFileName is the optional dotenv file at the project root.
	EnvFileName = ".env"

	envPrefix = "INTLSENSE_"
)

// Duration is a time.Duration decoded from strings like "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds the tunables of an engine.
type Config struct {
	// Debounce is the quiet period before the usage queue drains.
	Debounce Duration `toml:"debounce"`
	// DrainYield is the pause between drained entries.
	DrainYield Duration `toml:"drain_yield"`
	LogLevel   string   `toml:"log_level"`
	// WatchIgnore lists directory names the watcher and the cold-start scan
	// skip.
	WatchIgnore []string `toml:"watch_ignore"`
	// DisableWhenAddon turns the engine off for projects that depend on
	// els-intl-addon, which ships its own provider.
	DisableWhenAddon bool `toml:"disable_when_addon"`
	// Workers bounds the cold-start extraction pool.
	Workers int `toml:"workers"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Debounce:         Duration{schedule.DefaultDebounce},
		DrainYield:       Duration{schedule.DefaultYield},
		LogLevel:         "info",
		WatchIgnore:      slices.Clone(watch.DefaultIgnore),
		DisableWhenAddon: true,
		Workers:          runtime.NumCPU(),
	}
}

// Load reads the configuration for the project at root. Missing files are
// not an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, FileName)
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	dotenv, err := godotenv.Read(filepath.Join(root, EnvFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", EnvFileName, err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "DEBOUNCE"); ok {
		if err := c.Debounce.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: %sDEBOUNCE: %w", envPrefix, err)
		}
	}
	if v, ok := lookup(envPrefix + "DRAIN_YIELD"); ok {
		if err := c.DrainYield.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: %sDRAIN_YIELD: %w", envPrefix, err)
		}
	}
	if v, ok := lookup(envPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(envPrefix + "WATCH_IGNORE"); ok {
		c.WatchIgnore = splitList(v)
	}
	if v, ok := lookup(envPrefix + "DISABLE_WHEN_ADDON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sDISABLE_WHEN_ADDON: %w", envPrefix, err)
		}
		c.DisableWhenAddon = b
	}
	if v, ok := lookup(envPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sWORKERS: %w", envPrefix, err)
		}
		c.Workers = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Debounce.Duration < 0 {
		return fmt.Errorf("config: negative debounce %s", c.Debounce)
	}
	if c.DrainYield.Duration < 0 {
		return fmt.Errorf("config: negative drain yield %s", c.DrainYield)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// Level returns the parsed log level, or info when unset.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
