//go:build !tinygo

package sensor

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphSource is an SPISource on a periph.io port
type PeriphSource struct {
	*SPISource
	port spi.PortCloser
}

// OpenSPI initialises the host drivers and connects to the converter
func OpenSPI(cfg SPIConfig) (*PeriphSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.Port, err)
	}
	conn, err := port.Connect(physic.Hertz*physic.Frequency(cfg.Hz), spi.Mode(cfg.Mode), 8)
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("connect spi port %q: %w", cfg.Port, err), port.Close())
	}
	return &PeriphSource{SPISource: NewSPISource(conn), port: port}, nil
}

// Close releases the port
func (p *PeriphSource) Close() error {
	return p.port.Close()
}
