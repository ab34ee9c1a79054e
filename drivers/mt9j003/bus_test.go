package mt9j003

import (
	"errors"
	"testing"
)

func TestReadRegister_TwoPhaseBigEndian(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	bus.regs[0x3056] = 0xABCD

	v, err := d.ReadRegister(0x3056)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0xABCD {
		t.Fatalf("value = %#04x, want 0xABCD", v)
	}
	if len(bus.lastW) != 2 || bus.lastW[0] != 0x30 || bus.lastW[1] != 0x56 || bus.lastR != 2 {
		t.Fatalf("unexpected transaction w=% x r=%d", bus.lastW, bus.lastR)
	}
	if !bus.addrs[AddressDefault] || len(bus.addrs) != 1 {
		t.Fatalf("unexpected addresses %v", bus.addrs)
	}
}

func TestWriteRegister_SinglePayload(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	if err := d.WriteRegister(0x301A, 0x10DC); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []byte{0x30, 0x1A, 0x10, 0xDC}
	if string(bus.lastW) != string(want) || bus.lastR != 0 {
		t.Fatalf("payload = % x, want % x", bus.lastW, want)
	}
}

func TestTransferErrorWrapsCause(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	bus.failReads = true
	_, err := d.ReadRegister(regModelID)
	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("want *TransferError, got %T %v", err, err)
	}
	if te.Op != OpRead || te.Reg != regModelID || !errors.Is(err, errBus) {
		t.Fatalf("unexpected transfer error %+v", te)
	}
	if got := te.Error(); got != "mt9j003: i2c read 0x3000: nack" {
		t.Fatalf("message = %q", got)
	}

	bus.failWriteAt = 1
	err = d.WriteRegister(0x0300, 4)
	if !errors.As(err, &te) || te.Op != OpWrite || te.Reg != 0x0300 {
		t.Fatalf("write error = %v", err)
	}
}

func TestRemovedDeviceNotReady(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	d.Remove()
	if _, err := d.ReadRegister(regModelID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("read after remove: %v", err)
	}
	if err := d.SetStream(true); !errors.Is(err, ErrNotReady) {
		t.Fatalf("stream after remove: %v", err)
	}
	if _, err := d.SetFormat(720, 480); !errors.Is(err, ErrNotReady) {
		t.Fatalf("format after remove: %v", err)
	}
	if len(bus.reads)+len(bus.writes) != 0 {
		t.Fatalf("bus touched after remove")
	}
}
