package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"ccdline/config"
	"ccdline/core"
)

// loadSettings reads the --config file, if any, and applies flag overrides
func loadSettings(c *cli.Context) (config.Settings, error) {
	settings := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if settings, err = config.Load(path); err != nil {
			return config.Settings{}, err
		}
	}

	if c.IsSet(flagLogLevel) {
		settings.LogLevel = c.String(flagLogLevel)
	}
	if c.IsSet(flagDevice) {
		settings.Link.Device = c.String(flagDevice)
	}
	if c.IsSet(flagStore) {
		settings.Store = c.String(flagStore)
	}
	if c.IsSet(flagSource) {
		settings.Sensor.Source = strings.ToLower(c.String(flagSource))
	}
	if c.IsSet(flagTau) {
		settings.Core.Tau = uint32(c.Uint64(flagTau))
	}
	if c.IsSet(flagPolicy) {
		p, err := core.ParseBufferPolicy(c.String(flagPolicy))
		if err != nil {
			return config.Settings{}, err
		}
		settings.Core.Policy = p
	}
	if c.IsSet(flagFraming) {
		f, err := core.ParseFraming(c.String(flagFraming))
		if err != nil {
			return config.Settings{}, err
		}
		settings.Core.Framing = f
	}
	return settings, settings.Validate()
}

// newLogger writes human-readable console logs to stderr, leaving stdout
// free for frame output
func newLogger(app, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
}
