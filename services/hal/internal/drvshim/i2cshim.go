package drvshim

import (
	"sync"

	"tinygo.org/x/drivers"
)

// I2C serialises transactions on a shared bus. Every device built on the same
// bus id gets a shim holding the same lock, so a two-phase register read from
// one device is never interleaved with traffic from another.
type I2C struct {
	bus drivers.I2C
	mu  *sync.Mutex
}

var (
	locksMu sync.Mutex
	locks   = map[drivers.I2C]*sync.Mutex{}
)

// NewI2C returns a shim for bus, sharing the lock of any earlier shim made
// for the same bus.
func NewI2C(bus drivers.I2C) I2C {
	locksMu.Lock()
	defer locksMu.Unlock()
	mu, ok := locks[bus]
	if !ok {
		mu = new(sync.Mutex)
		locks[bus] = mu
	}
	return I2C{bus: bus, mu: mu}
}

// Tx performs the write then repeated-start read while holding the bus lock.
func (s I2C) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, w, r)
}
