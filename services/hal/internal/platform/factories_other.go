//go:build !linux

package platform

import (
	"camsensor-go/services/hal/internal/halcore"

	"tinygo.org/x/drivers"
)

// Without periph host support nothing is configured; tests inject fakes.
func DefaultI2CFactory() halcore.I2CBusFactory { return noI2CFactory{} }
func DefaultPinFactory() halcore.PinFactory    { return noPinFactory{} }

type noI2CFactory struct{}

func (noI2CFactory) ByID(string) (drivers.I2C, bool) { return nil, false }

type noPinFactory struct{}

func (noPinFactory) ByNumber(int) (halcore.GPIOPin, bool) { return nil, false }
