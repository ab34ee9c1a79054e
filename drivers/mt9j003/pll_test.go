package mt9j003

import (
	"errors"
	"testing"
)

func TestDefaultPLLClocks(t *testing.T) {
	p := DefaultPLL()
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := p.ArrayClockHz(); got != 80_000_000 {
		t.Fatalf("array clock = %d", got)
	}
	if got := p.OutputClockHz(); got != 40_000_000 {
		t.Fatalf("output clock = %d", got)
	}
}

func TestPLLValidateZeroDivider(t *testing.T) {
	p := DefaultPLL()
	p.OPSysClkDiv = 0
	if err := p.Validate(); !errors.Is(err, ErrInvalidPLL) {
		t.Fatalf("want ErrInvalidPLL, got %v", err)
	}
	if p.OutputClockHz() != 0 {
		t.Fatalf("zero divider should yield 0 Hz")
	}
}

func TestConfigurePLL_WriteOrder(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	if err := d.configurePLL(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	want := []regValue{
		{0x0300, 4},
		{0x0302, 1},
		{0x0304, 1},
		{0x0306, 32},
		{0x0308, 8},
		{0x030A, 1},
		{0x3016, 0x0101},
	}
	if len(bus.writes) != len(want) {
		t.Fatalf("writes = %d, want %d", len(bus.writes), len(want))
	}
	for i, w := range want {
		if bus.writes[i] != w {
			t.Fatalf("write %d = %#04x:%#04x, want %#04x:%#04x", i, bus.writes[i].reg, bus.writes[i].val, w.reg, w.val)
		}
	}
	if len(bus.reads) != 0 {
		t.Fatalf("PLL setup should not read back")
	}
}

func TestConfigurePLL_AbortsOnFailure(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	bus.failWriteAt = 4
	err := d.configurePLL()
	var te *TransferError
	if !errors.As(err, &te) || te.Reg != regPLLMultiplier || te.Op != OpWrite {
		t.Fatalf("want write TransferError on multiplier, got %v", err)
	}
	if len(bus.writes) != 3 {
		t.Fatalf("writes after abort = %d, want 3", len(bus.writes))
	}
}
