//go:build linux

package platform

import (
	"strconv"
	"strings"
	"sync"

	"camsensor-go/services/hal/internal/halcore"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var (
	initOnce sync.Once
	initErr  error
)

// hostInit loads the periph host drivers once per process.
func hostInit() error {
	initOnce.Do(func() { _, initErr = host.Init() })
	return initErr
}

// DefaultI2CFactory opens Linux I²C adapters through periph. Bus ids are
// "i2c<N>" (or a bare periph name) and map to /dev/i2c-<N>.
func DefaultI2CFactory() halcore.I2CBusFactory {
	return &periphI2CFactory{open: map[string]i2c.BusCloser{}}
}

// DefaultPinFactory resolves GPIO numbers through periph's registry.
func DefaultPinFactory() halcore.PinFactory { return periphPinFactory{} }

type periphI2CFactory struct {
	mu   sync.Mutex
	open map[string]i2c.BusCloser
}

func (f *periphI2CFactory) ByID(id string) (drivers.I2C, bool) {
	if hostInit() != nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.open[id]; ok {
		return b, true
	}
	b, err := i2creg.Open(busName(id))
	if err != nil {
		return nil, false
	}
	f.open[id] = b
	return b, true
}

// busName turns "i2c1" into periph's "1"; other names pass through.
func busName(id string) string {
	if n := strings.TrimPrefix(id, "i2c"); n != id && n != "" {
		if _, err := strconv.Atoi(n); err == nil {
			return n
		}
	}
	return id
}

type periphPinFactory struct{}

func (periphPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	if hostInit() != nil {
		return nil, false
	}
	p := gpioreg.ByName(strconv.Itoa(n))
	if p == nil {
		return nil, false
	}
	return &periphPin{p: p}, true
}

type periphPin struct {
	p gpio.PinIO
}

func (g *periphPin) ConfigureOutput(initial bool) error { return g.p.Out(gpio.Level(initial)) }
func (g *periphPin) Set(level bool) error              { return g.p.Out(gpio.Level(level)) }
