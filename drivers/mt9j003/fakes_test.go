package mt9j003

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*fakeI2C)(nil)

var errBus = errors.New("nack")

// fakeI2C is a scripted register file speaking the 16-bit big-endian protocol.
type fakeI2C struct {
	regs   map[uint16]uint16
	writes []regValue
	reads  []uint16
	addrs  map[uint16]bool

	failReads   bool
	failWriteAt int // 1-based write index to fail once; 0 = never

	lastW []byte
	lastR int
}

func newFakeI2C() *fakeI2C {
	return &fakeI2C{
		regs:  map[uint16]uint16{regModelID: ChipVersion},
		addrs: map[uint16]bool{},
	}
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.addrs[addr] = true
	f.lastW = append(f.lastW[:0], w...)
	f.lastR = len(r)
	switch {
	case len(w) == 2 && len(r) == 2:
		reg := uint16(w[0])<<8 | uint16(w[1])
		f.reads = append(f.reads, reg)
		if f.failReads {
			return errBus
		}
		v := f.regs[reg]
		r[0], r[1] = byte(v>>8), byte(v)
		return nil
	case len(w) == 4 && len(r) == 0:
		reg := uint16(w[0])<<8 | uint16(w[1])
		val := uint16(w[2])<<8 | uint16(w[3])
		if f.failWriteAt > 0 && len(f.writes)+1 == f.failWriteAt {
			f.failWriteAt = 0
			return errBus
		}
		f.writes = append(f.writes, regValue{reg, val})
		f.regs[reg] = val
		return nil
	}
	return errors.New("unexpected transaction shape")
}

func (f *fakeI2C) resetLog() {
	f.writes = nil
	f.reads = nil
}

func (f *fakeI2C) countWrites(reg uint16) int {
	n := 0
	for _, w := range f.writes {
		if w.reg == reg {
			n++
		}
	}
	return n
}

// fakePower records every level driven onto the line.
type fakePower struct {
	valid  bool
	levels []bool
	err    error
}

func (p *fakePower) Valid() bool { return p.valid }

func (p *fakePower) Set(active bool) error {
	if p.err != nil {
		return p.err
	}
	p.levels = append(p.levels, active)
	return nil
}

func (p *fakePower) level() bool {
	if len(p.levels) == 0 {
		return false
	}
	return p.levels[len(p.levels)-1]
}

type sleepLog struct{ d []time.Duration }

func (s *sleepLog) sleep(d time.Duration) { s.d = append(s.d, d) }

func (s *sleepLog) total() time.Duration {
	var t time.Duration
	for _, d := range s.d {
		t += d
	}
	return t
}

// newTestDevice returns an undetected device on fakes with recorded sleeps.
func newTestDevice() (*Device, *fakeI2C, *fakePower, *sleepLog) {
	bus := newFakeI2C()
	pwr := &fakePower{valid: true}
	sl := &sleepLog{}
	cfg := DefaultConfig()
	cfg.Sleep = sl.sleep
	return New(bus, pwr, cfg), bus, pwr, sl
}
