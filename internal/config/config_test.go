package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stylextract/pagestyle"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stylextract.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	o := cfg.ExtractorOptions(nil)
	require.Equal(t, pagestyle.EngineStatic, o.Engine)
	require.Equal(t, pagestyle.DefaultLoadTimeout, o.LoadTimeout)
	require.Equal(t, pagestyle.Viewport{Width: 1024, Height: 768}, o.Viewport)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
extractor:
  engine: browser
  load_timeout: 3s
  viewport_width: 390
  viewport_height: 844
log:
  level: debug
`)
	t.Setenv("PORT", "")
	t.Setenv("STYLEXTRACT_ADDR", "")
	t.Setenv("STYLEXTRACT_ENGINE", "")
	t.Setenv("STYLEXTRACT_LOAD_TIMEOUT", "")
	t.Setenv("STYLEXTRACT_LOG_LEVEL", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 6, cfg.Extractor.Concurrency, "unset keys keep defaults")

	o := cfg.ExtractorOptions(nil)
	require.Equal(t, pagestyle.EngineBrowser, o.Engine)
	require.Equal(t, 3*time.Second, o.LoadTimeout)
	require.Equal(t, pagestyle.Viewport{Width: 390, Height: 844}, o.Viewport)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "extractor: [not, a, map]"))
	require.Error(t, err)

	t.Setenv("STYLEXTRACT_ENGINE", "")
	_, err = Load(writeConfig(t, "extractor:\n  engine: lynx\n"))
	require.True(t, errors.Is(err, ErrUnknownEngine))
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"STYLEXTRACT_ADDR":         ":7000",
		"PORT":                     "8088",
		"STYLEXTRACT_ENGINE":       "browser",
		"STYLEXTRACT_LOAD_TIMEOUT": "250ms",
		"STYLEXTRACT_LOG_LEVEL":    "warn",
		"NO_COLOR":                 "1",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	require.Equal(t, ":8088", cfg.Server.Addr, "PORT wins over STYLEXTRACT_ADDR")
	require.Equal(t, "browser", cfg.Extractor.Engine)
	require.Equal(t, "250ms", cfg.Extractor.LoadTimeout)
	require.Equal(t, "warn", cfg.Log.Level)
	require.True(t, cfg.Log.NoColor)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"engine", func(c *Config) { c.Extractor.Engine = "phantom" }, ErrUnknownEngine},
		{"engine case", func(c *Config) { c.Extractor.Engine = "Browser" }, nil},
		{"zero timeout", func(c *Config) { c.Extractor.LoadTimeout = "0s" }, ErrInvalidDuration},
		{"negative timeout", func(c *Config) { c.Extractor.LoadTimeout = "-1s" }, ErrInvalidDuration},
		{"garbage timeout", func(c *Config) { c.Extractor.LoadTimeout = "soon" }, ErrInvalidDuration},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = "x" }, ErrInvalidDuration},
		{"limit", func(c *Config) { c.Extractor.Concurrency = -2 }, ErrInvalidLimit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}

	bad := DefaultConfig()
	bad.Log.Level = "loud"
	require.Error(t, bad.Validate())
}
