package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Register errors
var (
	ErrUnknownRegister = errors.New("unknown register")
	ErrReadOnly        = errors.New("register is read-only")
	ErrWriteOnly       = errors.New("register is write-only")
)

// RegisterReader returns the current register value
type RegisterReader func() uint32

// RegisterWriter stores a new register value
type RegisterWriter func(v uint32) error

// Register is one named control/status register
type Register struct {
	ID    uint16
	Name  string
	Width int
	Read  RegisterReader // nil for write-only registers
	Write RegisterWriter // nil for read-only registers
}

// Mode returns "rw", "ro" or "wo"
func (r *Register) Mode() string {
	switch {
	case r.Read != nil && r.Write != nil:
		return "rw"
	case r.Write != nil:
		return "wo"
	}
	return "ro"
}

// RegisterFile is the controller's view of the core: named registers with
// stable IDs in registration order
type RegisterFile struct {
	mu       sync.RWMutex
	regs     map[uint16]*Register
	nameToID map[string]uint16
	nextID   uint16
	csv      string // Register map for host tooling
}

// NewRegisterFile creates an empty register file
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{
		regs:     make(map[uint16]*Register),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a register. Registering a name twice returns the first ID.
func (f *RegisterFile) Register(name string, width int, read RegisterReader, write RegisterWriter) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, exists := f.nameToID[name]; exists {
		return id
	}

	id := f.nextID
	f.nextID++

	f.regs[id] = &Register{
		ID:    id,
		Name:  name,
		Width: width,
		Read:  read,
		Write: write,
	}
	f.nameToID[name] = id

	f.rebuildCSV()

	return id
}

// Lookup retrieves a register by name
func (f *RegisterFile) Lookup(name string) (*Register, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.nameToID[name]
	if !ok {
		return nil, false
	}
	return f.regs[id], true
}

// Count returns the number of registers
func (f *RegisterFile) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.regs)
}

// Names returns the register names sorted alphabetically
func (f *RegisterFile) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.nameToID))
	for name := range f.nameToID {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read returns the value of a register
func (f *RegisterFile) Read(name string) (uint32, error) {
	reg, ok := f.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}
	if reg.Read == nil {
		return 0, fmt.Errorf("%w: %s", ErrWriteOnly, name)
	}
	return reg.Read(), nil
}

// Write stores a value, truncated to the register width
func (f *RegisterFile) Write(name string, v uint32) error {
	reg, ok := f.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}
	if reg.Write == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	if reg.Width < 32 {
		v &= 1<<reg.Width - 1
	}
	if err := reg.Write(v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CSV returns the register map as "csr_register,name,id,width,mode" lines
func (f *RegisterFile) CSV() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.csv
}

// rebuildCSV rebuilds the register map
// Must be called with lock held
func (f *RegisterFile) rebuildCSV() {
	var b strings.Builder
	for i := uint16(0); i < f.nextID; i++ {
		if reg, ok := f.regs[i]; ok {
			fmt.Fprintf(&b, "csr_register,%s,%d,%d,%s\n", reg.Name, reg.ID, reg.Width, reg.Mode())
		}
	}
	f.csv = b.String()
}
