// Package config loads ccdline settings from a TOML file. Keys absent from
// the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ccdline/core"
	"ccdline/protocol"
	"ccdline/sensor"
)

// ErrUnknownKey is returned for keys the file defines but nothing reads
var ErrUnknownKey = errors.New("unknown config key")

// Sensor sources
const (
	SourceModel = "model" // TSL1401 + ADCS7476 models
	SourceSPI   = "spi"   // ADCS7476 on a Linux spidev port
)

// Link sinks
const (
	SinkUART   = "uart"   // Bit-level transmitter, completed bytes forwarded to the port
	SinkWriter = "writer" // Bytes forwarded to the port as accepted
)

// SensorSettings selects and configures the sensor bus device
type SensorSettings struct {
	Source  string
	Pattern string
	Peak    float64 // Counts per cycle at the brightest pixel
	SPI     sensor.SPIConfig
}

// LinkSettings configures the serial link
type LinkSettings struct {
	Sink        string
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// ScheduleSettings drives the scan and dump triggers in cycles
type ScheduleSettings struct {
	ScanPeriod uint64 // Zero scans once
	DumpEvery  uint64 // Dump after every n-th completed line, zero disables
}

// Settings is the complete ccdline configuration
type Settings struct {
	Core     core.Config
	ClockHz  float64
	Sensor   SensorSettings
	Link     LinkSettings
	Schedule ScheduleSettings
	Store    string
	LogLevel string
}

// Default returns the settings used when no file is given
func Default() Settings {
	return Settings{
		Core:    core.DefaultConfig(),
		ClockHz: core.DefaultClockHz,
		Sensor: SensorSettings{
			Source:  SourceModel,
			Pattern: "ramp",
			Peak:    0.02,
			SPI:     sensor.SPIConfig{Hz: 1000000, Mode: 3},
		},
		Link: LinkSettings{
			Sink:        SinkWriter,
			Baud:        115200,
			ReadTimeout: 100 * time.Millisecond,
		},
		Schedule: ScheduleSettings{
			ScanPeriod: 0,
			DumpEvery:  1,
		},
		Store:    "lines.db",
		LogLevel: "info",
	}
}

type fileCore struct {
	Pixels         int     `toml:"pixels"`
	Width          int     `toml:"width"`
	Tau            uint32  `toml:"tau"`
	TauMS          float64 `toml:"tau_ms"`
	SyncByte       int     `toml:"sync_byte"`
	ADC            string  `toml:"adc"`
	Policy         string  `toml:"policy"`
	Framing        string  `toml:"framing"`
	WatchdogCycles uint64  `toml:"watchdog_cycles"`
	ClockHz        float64 `toml:"clock_hz"`
}

type fileSensor struct {
	Source  string  `toml:"source"`
	Pattern string  `toml:"pattern"`
	Peak    float64 `toml:"peak"`
	SPIPort string  `toml:"spi_port"`
	SPIHz   int64   `toml:"spi_hz"`
	SPIMode int     `toml:"spi_mode"`
}

type fileLink struct {
	Sink        string `toml:"sink"`
	Device      string `toml:"device"`
	Baud        int    `toml:"baud"`
	ReadTimeout string `toml:"read_timeout"`
}

type fileSchedule struct {
	ScanPeriod uint64 `toml:"scan_period"`
	DumpEvery  uint64 `toml:"dump_every"`
}

type fileConfig struct {
	Core     fileCore     `toml:"core"`
	Sensor   fileSensor   `toml:"sensor"`
	Link     fileLink     `toml:"link"`
	Schedule fileSchedule `toml:"schedule"`
	Store    struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load reads path over the defaults and validates the result
func Load(path string) (Settings, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Settings{}, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}

	if meta.IsDefined("core", "pixels") {
		cfg.Core.Pixels = raw.Core.Pixels
	}
	if meta.IsDefined("core", "width") {
		cfg.Core.Width = raw.Core.Width
	}
	if meta.IsDefined("core", "clock_hz") {
		cfg.ClockHz = raw.Core.ClockHz
	}
	if meta.IsDefined("core", "tau") {
		cfg.Core.Tau = raw.Core.Tau
	}
	if meta.IsDefined("core", "tau_ms") {
		tau, err := core.TauFromMillis(raw.Core.TauMS, cfg.ClockHz)
		if err != nil {
			return Settings{}, fmt.Errorf("parse tau_ms: %w", err)
		}
		cfg.Core.Tau = tau
	}
	if meta.IsDefined("core", "sync_byte") {
		if raw.Core.SyncByte < 0 || raw.Core.SyncByte > 0xFF {
			return Settings{}, fmt.Errorf("%w: sync_byte %#x", core.ErrInvalidConfig, raw.Core.SyncByte)
		}
		cfg.Core.SyncByte = byte(raw.Core.SyncByte)
	}
	if meta.IsDefined("core", "adc") {
		if cfg.Core.ADC, err = core.ParseADCProtocol(raw.Core.ADC); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("core", "policy") {
		if cfg.Core.Policy, err = core.ParseBufferPolicy(raw.Core.Policy); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("core", "framing") {
		if cfg.Core.Framing, err = core.ParseFraming(raw.Core.Framing); err != nil {
			return Settings{}, err
		}
	}
	if meta.IsDefined("core", "watchdog_cycles") {
		cfg.Core.WatchdogCycles = raw.Core.WatchdogCycles
	}

	if meta.IsDefined("sensor", "source") {
		cfg.Sensor.Source = strings.ToLower(strings.TrimSpace(raw.Sensor.Source))
	}
	if meta.IsDefined("sensor", "pattern") {
		cfg.Sensor.Pattern = strings.TrimSpace(raw.Sensor.Pattern)
	}
	if meta.IsDefined("sensor", "peak") {
		cfg.Sensor.Peak = raw.Sensor.Peak
	}
	if meta.IsDefined("sensor", "spi_port") {
		cfg.Sensor.SPI.Port = strings.TrimSpace(raw.Sensor.SPIPort)
	}
	if meta.IsDefined("sensor", "spi_hz") {
		cfg.Sensor.SPI.Hz = raw.Sensor.SPIHz
	}
	if meta.IsDefined("sensor", "spi_mode") {
		cfg.Sensor.SPI.Mode = raw.Sensor.SPIMode
	}

	if meta.IsDefined("link", "sink") {
		cfg.Link.Sink = strings.ToLower(strings.TrimSpace(raw.Link.Sink))
	}
	if meta.IsDefined("link", "device") {
		cfg.Link.Device = strings.TrimSpace(raw.Link.Device)
	}
	if meta.IsDefined("link", "baud") {
		cfg.Link.Baud = raw.Link.Baud
	}
	if meta.IsDefined("link", "read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Link.ReadTimeout))
		if err != nil {
			return Settings{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.Link.ReadTimeout = d
	}

	if meta.IsDefined("schedule", "scan_period") {
		cfg.Schedule.ScanPeriod = raw.Schedule.ScanPeriod
	}
	if meta.IsDefined("schedule", "dump_every") {
		cfg.Schedule.DumpEvery = raw.Schedule.DumpEvery
	}
	if meta.IsDefined("store", "path") {
		cfg.Store = strings.TrimSpace(raw.Store.Path)
	}
	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.TrimSpace(raw.Log.Level)
	}

	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Validate checks the settings as a whole
func (s Settings) Validate() error {
	if err := s.Core.Validate(); err != nil {
		return err
	}
	if s.ClockHz <= 0 {
		return fmt.Errorf("%w: clock_hz must be positive", core.ErrInvalidConfig)
	}
	switch s.Sensor.Source {
	case SourceModel, SourceSPI:
	default:
		return fmt.Errorf("%w: unknown sensor source %q", core.ErrInvalidConfig, s.Sensor.Source)
	}
	if s.Sensor.SPI.Mode < 0 || s.Sensor.SPI.Mode > 3 {
		return fmt.Errorf("%w: spi_mode %d", core.ErrInvalidConfig, s.Sensor.SPI.Mode)
	}
	switch s.Link.Sink {
	case SinkUART, SinkWriter:
	default:
		return fmt.Errorf("%w: unknown link sink %q", core.ErrInvalidConfig, s.Link.Sink)
	}
	if s.Link.Baud <= 0 {
		return fmt.Errorf("%w: baud must be positive", core.ErrInvalidConfig)
	}
	return nil
}

// Format returns the frame format the core produces
func (s Settings) Format() protocol.Format {
	return protocol.Format{
		SyncByte:  s.Core.SyncByte,
		Depth:     s.Core.Pixels,
		ByteWidth: (s.Core.Width + 7) / 8,
		CRC:       s.Core.Framing == core.FramingCRC,
	}
}
