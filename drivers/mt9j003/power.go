package mt9j003

import "errors"

// PowerLine drives the sensor supply enable. It is provided by the platform
// (typically a GPIO) and must be configured before use.
type PowerLine interface {
	// Valid reports whether the line can be driven.
	Valid() bool
	// Set drives the line active (true) or inactive (false).
	Set(active bool) error
}

// PowerOn asserts the power line and waits for the supply to settle.
// Calling it while already on re-asserts the level.
func (d *Device) PowerOn() error {
	if d.pwr == nil || !d.pwr.Valid() {
		return ErrNotReady
	}
	if err := d.pwr.Set(true); err != nil {
		return errors.Join(ErrNotReady, err)
	}
	d.sleep(d.cfg.PowerSettle)
	d.power = PowerOn
	return nil
}

// PowerOff deasserts the power line and waits for the supply to settle.
// A sensor without power cannot stream, so the stream state drops to idle.
func (d *Device) PowerOff() error {
	if d.pwr == nil || !d.pwr.Valid() {
		return ErrNotReady
	}
	if err := d.pwr.Set(false); err != nil {
		return errors.Join(ErrNotReady, err)
	}
	d.sleep(d.cfg.PowerSettle)
	d.power = PowerOff
	d.stream = StreamIdle
	return nil
}
