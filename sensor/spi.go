package sensor

import (
	"sync"

	"tinygo.org/x/drivers"
)

// Conn is a full-duplex SPI connection. periph.io's spi.Conn and TinyGo's
// drivers.SPI both satisfy it.
type Conn interface {
	Tx(w, r []byte) error
}

// SelectedBus is a shared drivers.SPI bus with a software chip select.
// CS receives the pin level: low for the length of each transfer.
type SelectedBus struct {
	Bus drivers.SPI
	CS  func(high bool)
}

// NewSelectedBus parks chip select high and returns the connection
func NewSelectedBus(bus drivers.SPI, cs func(high bool)) *SelectedBus {
	cs(true)
	return &SelectedBus{Bus: bus, CS: cs}
}

// Tx performs one transfer with chip select held low
func (b *SelectedBus) Tx(w, r []byte) error {
	b.CS(false)
	defer b.CS(true)
	return b.Bus.Tx(w, r)
}

// SPIConfig selects the SPI port of the converter
type SPIConfig struct {
	Port string // spireg name, e.g. "/dev/spidev0.0" or "" for the first port
	Hz   int64  // Serial clock
	Mode int    // SPI mode 0..3
}

// SPISource replays conversions from a real ADCS7476 on an SPI bus. Each
// chip select falling edge performs one 16-bit transfer; the received frame
// is then presented bit by bit exactly like the model does. A failed
// transfer presents an all-zero frame.
type SPISource struct {
	conn   Conn
	tx, rx [2]byte
	frame  uint16
	pos    uint8
	active bool

	mu        sync.Mutex
	transfers uint64
	errors    uint64
	lastErr   error
}

// NewSPISource reads frames through conn
func NewSPISource(conn Conn) *SPISource {
	return &SPISource{conn: conn}
}

// SDATA returns the bit of the last transferred frame for this clock
func (s *SPISource) SDATA() bool {
	if !s.active {
		return false
	}
	return s.frame>>(15-s.pos)&1 == 1
}

// Tick advances one serial clock with chip select at nCS
func (s *SPISource) Tick(nCS bool) {
	if nCS {
		s.active = false
		return
	}
	if !s.active || s.pos == 15 {
		s.transfer()
		return
	}
	s.pos++
}

func (s *SPISource) transfer() {
	s.active = true
	s.pos = 0
	err := s.conn.Tx(s.tx[:], s.rx[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers++
	if err != nil {
		s.errors++
		s.lastErr = err
		s.frame = 0
		return
	}
	s.frame = uint16(s.rx[0])<<8 | uint16(s.rx[1])
}

// Stats returns the number of transfers, failed transfers and the last error
func (s *SPISource) Stats() (transfers, failed uint64, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers, s.errors, s.lastErr
}
