package config

import (
	"github.com/wudi/pdfoverlay/compose"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/raster"
	"github.com/wudi/pdfoverlay/recovery"
)

// ComposeOptions translates the compose settings into compositor options.
func (c Config) ComposeOptions(log observability.Logger) []compose.Option {
	opts := []compose.Option{
		compose.WithLogger(log),
		compose.WithTempDir(c.TempDir),
		compose.WithBackgroundThreshold(c.BackgroundThreshold),
		compose.WithLimits(c.Limits),
	}
	if c.Strict {
		opts = append(opts, compose.WithStrategy(recovery.Strict()))
	}
	switch c.Magick {
	case "off":
	case "":
		if m, err := raster.LookupMagick(); err == nil {
			opts = append(opts, compose.WithConverter(m))
		} else {
			log.Info("no image converter on PATH; only native formats are accepted")
		}
	default:
		opts = append(opts, compose.WithConverter(&raster.Magick{Binary: c.Magick}))
	}
	return opts
}
