// Package config loads stylextract settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stylextract/internal/logging"
	"stylextract/pagestyle"
)

var (
	ErrUnknownEngine   = errors.New("unknown engine")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidLimit    = errors.New("invalid limit")
)

// Config captures all tunable settings for the CLI and the daemon.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	// Listen address, e.g. ":8081" or "127.0.0.1:8081".
	Addr string `yaml:"addr"`
	// Grace period for in-flight requests on shutdown (e.g. "10s").
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ExtractorConfig tunes page loading.
type ExtractorConfig struct {
	// static (in-process cascade) or browser (headless Chrome).
	Engine string `yaml:"engine"`
	// Bound on the wait for the page load signal (e.g. "10s").
	LoadTimeout    string `yaml:"load_timeout"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	MaxStylesheets int    `yaml:"max_stylesheets"`
	MaxImages      int    `yaml:"max_images"`
	Concurrency    int    `yaml:"concurrency"`
	// Chrome binary for the browser engine; empty searches PATH.
	ChromePath string `yaml:"chrome_path"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
}

// DefaultConfig provides the defaults used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8081",
			ShutdownTimeout: "10s",
		},
		Extractor: ExtractorConfig{
			Engine:         string(pagestyle.EngineStatic),
			LoadTimeout:    pagestyle.DefaultLoadTimeout.String(),
			ViewportWidth:  1024,
			ViewportHeight: 768,
			MaxStylesheets: 16,
			MaxImages:      64,
			Concurrency:    6,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads YAML config from path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

// ApplyEnv overlays STYLEXTRACT_* variables. PORT, when set, replaces the
// listen address with ":<PORT>".
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Addr, "STYLEXTRACT_ADDR")
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		c.Server.Addr = ":" + port
	}
	set(&c.Extractor.Engine, "STYLEXTRACT_ENGINE")
	set(&c.Extractor.LoadTimeout, "STYLEXTRACT_LOAD_TIMEOUT")
	set(&c.Extractor.ChromePath, "STYLEXTRACT_CHROME_PATH")
	set(&c.Log.Level, "STYLEXTRACT_LOG_LEVEL")
	if getenv("NO_COLOR") != "" {
		c.Log.NoColor = true
	}
}

// Validate checks every field that would otherwise fail at first use.
func (c Config) Validate() error {
	switch pagestyle.Engine(strings.ToLower(c.Extractor.Engine)) {
	case pagestyle.EngineStatic, pagestyle.EngineBrowser:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Extractor.Engine)
	}
	if _, err := positiveDuration(c.Extractor.LoadTimeout); err != nil {
		return fmt.Errorf("extractor.load_timeout: %w", err)
	}
	if c.Server.ShutdownTimeout != "" {
		if _, err := positiveDuration(c.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("server.shutdown_timeout: %w", err)
		}
	}
	for name, v := range map[string]int{
		"viewport_width":  c.Extractor.ViewportWidth,
		"viewport_height": c.Extractor.ViewportHeight,
		"max_stylesheets": c.Extractor.MaxStylesheets,
		"max_images":      c.Extractor.MaxImages,
		"concurrency":     c.Extractor.Concurrency,
	} {
		if v < 0 {
			return fmt.Errorf("extractor.%s: %w: %d", name, ErrInvalidLimit, v)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func positiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidDuration, s)
	}
	return d, nil
}

// ShutdownTimeout returns the parsed grace period, 10s when unset.
func (c Config) ShutdownTimeout() time.Duration {
	d, err := positiveDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Logger builds the process logger from the log section.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(w, level, c.Log.NoColor)
}

// ExtractorOptions converts the extractor section. Call Validate first.
func (c Config) ExtractorOptions(logger *slog.Logger) pagestyle.Options {
	o := pagestyle.DefaultOptions()
	o.Engine = pagestyle.Engine(strings.ToLower(c.Extractor.Engine))
	if d, err := positiveDuration(c.Extractor.LoadTimeout); err == nil {
		o.LoadTimeout = d
	}
	if c.Extractor.ViewportWidth > 0 && c.Extractor.ViewportHeight > 0 {
		o.Viewport = pagestyle.Viewport{Width: c.Extractor.ViewportWidth, Height: c.Extractor.ViewportHeight}
	}
	if c.Extractor.MaxStylesheets > 0 {
		o.MaxStylesheets = c.Extractor.MaxStylesheets
	}
	if c.Extractor.MaxImages > 0 {
		o.MaxImages = c.Extractor.MaxImages
	}
	if c.Extractor.Concurrency > 0 {
		o.Concurrency = c.Extractor.Concurrency
	}
	o.ChromePath = c.Extractor.ChromePath
	o.Logger = logger
	return o
}
