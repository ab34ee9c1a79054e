package mt9j003dev

import (
	"time"

	"camsensor-go/drivers/mt9j003"
	"camsensor-go/services/hal/internal/drvshim"
	"camsensor-go/services/hal/internal/halerr"
	"camsensor-go/services/hal/internal/registry"
	"camsensor-go/services/hal/internal/util"
)

// Register this device type with the registry.
func init() {
	registry.RegisterBuilder("mt9j003", builder{})
}

// Params is the "params" object of an mt9j003 device in config/hal.
type Params struct {
	Addr           int  `json:"addr"`      // default 0x10
	PowerPin       *int `json:"power_pin"` // default 30
	PowerActiveLow bool `json:"power_active_low"`
	MirrorRow      bool `json:"mirror_row"`
	MirrorCol      bool `json:"mirror_col"`
	BinSum         bool `json:"bin_sum"`
	StreamRetries  int  `json:"stream_retries"`
	SampleMS       int  `json:"sample_ms"` // 0 = default 5 s, <0 = off
}

const (
	defaultPowerPin = 30
	defaultSample   = 5 * time.Second
)

// sleep backs the driver's settle delays.
var sleep = time.Sleep

type builder struct{}

func (builder) Build(in registry.BuildInput) (registry.BuildOutput, error) {
	if in.BusRefType != "i2c" || in.BusRefID == "" {
		return registry.BuildOutput{}, halerr.ErrMissingBusRef
	}
	i2c, ok := in.Buses.ByID(in.BusRefID)
	if !ok {
		return registry.BuildOutput{}, halerr.ErrUnknownBus
	}
	p, err := util.Payload[Params](in.ParamsJSON)
	if err != nil {
		return registry.BuildOutput{}, halerr.ErrInvalidParams
	}

	pinNo := defaultPowerPin
	if p.PowerPin != nil {
		pinNo = *p.PowerPin
	}
	pin, ok := in.Pins.ByNumber(pinNo)
	if !ok {
		return registry.BuildOutput{}, halerr.ErrUnknownPin
	}
	pwr, err := drvshim.NewPowerPin(pin, p.PowerActiveLow)
	if err != nil {
		return registry.BuildOutput{}, err
	}

	cfg := mt9j003.DefaultConfig()
	if p.Addr != 0 {
		cfg.Address = uint16(p.Addr)
	}
	cfg.BinSum = p.BinSum
	cfg.Sleep = sleep
	if p.StreamRetries > 0 {
		cfg.StreamRetries = p.StreamRetries
	}

	dev, err := mt9j003.Probe(drvshim.NewI2C(i2c), pwr, cfg)
	if err != nil {
		return registry.BuildOutput{}, codeOf(err)
	}
	if err := dev.SetControl(mt9j003.CIDVFlip, b2i(p.MirrorRow)); err != nil {
		return registry.BuildOutput{}, codeOf(err)
	}
	if err := dev.SetControl(mt9j003.CIDHFlip, b2i(p.MirrorCol)); err != nil {
		return registry.BuildOutput{}, codeOf(err)
	}

	every := defaultSample
	switch {
	case p.SampleMS < 0:
		every = 0
	case p.SampleMS > 0:
		every = time.Duration(p.SampleMS) * time.Millisecond
	}
	return registry.BuildOutput{
		Adaptor:     newAdaptor(in.DeviceID, dev, cfg.PLL),
		BusID:       in.BusRefID,
		SampleEvery: every,
	}, nil
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
