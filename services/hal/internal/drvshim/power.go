package drvshim

import "camsensor-go/services/hal/internal/halcore"

// PowerPin drives a sensor supply enable from a claimed GPIO output.
type PowerPin struct {
	pin       halcore.GPIOPin
	activeLow bool
}

// NewPowerPin configures pin as an output at its inactive level.
func NewPowerPin(pin halcore.GPIOPin, activeLow bool) (*PowerPin, error) {
	p := &PowerPin{pin: pin, activeLow: activeLow}
	if pin == nil {
		return p, nil
	}
	if err := pin.ConfigureOutput(activeLow); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PowerPin) Valid() bool { return p != nil && p.pin != nil }

func (p *PowerPin) Set(active bool) error {
	return p.pin.Set(active != p.activeLow)
}
