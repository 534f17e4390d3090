// Package config loads the compose service settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wudi/pdfoverlay/security"
)

// Config is the file layout. Missing keys keep their Default values.
type Config struct {
	Listen  string `toml:"listen"`
	DataDir string `toml:"data_dir"`
	TempDir string `toml:"temp_dir"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Strict fails a compose run on any overlay problem instead of dropping
	// or clamping.
	Strict              bool  `toml:"strict"`
	BackgroundThreshold uint8 `toml:"background_threshold"`
	// Magick is the image converter binary. Empty looks one up on PATH;
	// "off" disables conversion.
	Magick string `toml:"magick"`

	MDNS   MDNS            `toml:"mdns"`
	Limits security.Limits `toml:"limits"`
}

type MDNS struct {
	Enabled  bool   `toml:"enabled"`
	Instance string `toml:"instance"`
}

func Default() Config {
	return Config{
		Listen:              "127.0.0.1:8080",
		LogLevel:            "info",
		LogFormat:           "text",
		BackgroundThreshold: 235,
		Limits:              security.DefaultLimits(),
	}
}

// Load reads path over the defaults. Unknown keys are an error so typos do
// not pass silently.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not text or json", c.LogFormat))
	}
	if err := c.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WorkDir returns TempDir, or the OS temp dir when it is unset.
func (c Config) WorkDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}
