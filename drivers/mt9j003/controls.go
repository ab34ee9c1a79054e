package mt9j003

// ControlID identifies a sensor control. Standard ids follow the V4L2 user
// class; the per-channel gains live in the driver-private range.
type ControlID uint32

const (
	CIDExposure ControlID = 0x00980911
	CIDHFlip    ControlID = 0x00980914
	CIDVFlip    ControlID = 0x00980915

	CIDExposureAuto ControlID = 0x009A0901

	cidPrivateBase ControlID = 0x00981900

	CIDRedGain    = cidPrivateBase + 1
	CIDBlueGain   = cidPrivateBase + 2
	CIDGreen1Gain = cidPrivateBase + 3
	CIDGreen2Gain = cidPrivateBase + 4
)

// ControlKind is the presentation type of a control.
type ControlKind uint8

const (
	KindBoolean ControlKind = iota + 1
	KindInteger
	KindSlider
)

func (k ControlKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindSlider:
		return "slider"
	default:
		return "unknown"
	}
}

// ControlDescriptor is the immutable metadata of one control.
type ControlDescriptor struct {
	ID      ControlID
	Name    string
	Kind    ControlKind
	Min     int32
	Max     int32
	Step    int32
	Default int32
}

// Validate checks v against the descriptor bounds and step.
func (c ControlDescriptor) Validate(v int32) error {
	if v < c.Min || v > c.Max || (c.Step > 1 && (v-c.Min)%c.Step != 0) {
		return &RangeError{ID: c.ID, Value: v, Min: c.Min, Max: c.Max}
	}
	return nil
}

// GainChannel indexes the four Bayer analog gains.
type GainChannel uint8

const (
	GainRed GainChannel = iota
	GainBlue
	GainGreen1
	GainGreen2

	numGainChannels = 4
)

var gainRegs = [numGainChannels]uint16{
	GainRed:    regRedGain,
	GainBlue:   regBlueGain,
	GainGreen1: regGreen1Gain,
	GainGreen2: regGreen2Gain,
}

// defaultGainRaw seeds all four gain registers on stream enable.
const defaultGainRaw = 0x10CD

var exposureDescriptor = ControlDescriptor{
	ID: CIDExposure, Name: "Exposure", Kind: KindSlider,
	Min: 1, Max: 255, Step: 1, Default: 255,
}

func gainDescriptor(id ControlID, name string) ControlDescriptor {
	return ControlDescriptor{
		ID: id, Name: name, Kind: KindSlider,
		Min: 0, Max: 127, Step: 1, Default: 64,
	}
}

var controls = [...]ControlDescriptor{
	{ID: CIDVFlip, Name: "Flip Vertically", Kind: KindBoolean, Min: 0, Max: 1, Step: 1},
	{ID: CIDHFlip, Name: "Flip Horizontally", Kind: KindBoolean, Min: 0, Max: 1, Step: 1},
	exposureDescriptor,
	{ID: CIDExposureAuto, Name: "Automatic Exposure", Kind: KindBoolean, Min: 0, Max: 1, Step: 1, Default: 1},
	gainDescriptor(CIDRedGain, "Red Gain"),
	gainDescriptor(CIDBlueGain, "Blue Gain"),
	gainDescriptor(CIDGreen1Gain, "Green 1 Gain"),
	gainDescriptor(CIDGreen2Gain, "Green 2 Gain"),
}

// Controls returns a copy of the control descriptor table.
func Controls() []ControlDescriptor {
	out := controls
	return out[:]
}

// LookupControl returns the descriptor for id.
func LookupControl(id ControlID) (ControlDescriptor, bool) {
	for _, c := range controls {
		if c.ID == id {
			return c, true
		}
	}
	return ControlDescriptor{}, false
}

func gainChannelOf(id ControlID) (GainChannel, bool) {
	switch id {
	case CIDRedGain:
		return GainRed, true
	case CIDBlueGain:
		return GainBlue, true
	case CIDGreen1Gain:
		return GainGreen1, true
	case CIDGreen2Gain:
		return GainGreen2, true
	}
	return 0, false
}

// DecodeGain maps a raw analog gain register onto the linear control scale:
//
//	raw & 0x7F40 == 0:  raw
//	raw & 0x7F00 == 0:  (raw & 0x003F) << 1
//	otherwise:          ((raw & 0xFF00) >> 5) + 64
func DecodeGain(raw uint16) int32 {
	switch {
	case raw&0x7F40 == 0:
		return int32(raw)
	case raw&0x7F00 == 0:
		return int32(raw&0x003F) << 1
	default:
		return int32((raw&0xFF00)>>5) + 64
	}
}

// GetControl returns the current value of a control. Gains are read back
// from the sensor and decoded; flips and exposure settings come from driver
// state.
func (d *Device) GetControl(id ControlID) (int32, error) {
	if _, ok := LookupControl(id); !ok {
		return 0, ErrUnsupported
	}
	switch id {
	case CIDVFlip:
		return b2i(d.mirrorRow), nil
	case CIDHFlip:
		return b2i(d.mirrorCol), nil
	case CIDExposure:
		return d.exposure, nil
	case CIDExposureAuto:
		return b2i(d.autoExposure), nil
	}
	ch, _ := gainChannelOf(id)
	raw, err := d.readReg(gainRegs[ch])
	if err != nil {
		return 0, err
	}
	v := DecodeGain(raw)
	d.gain[ch] = v
	return v, nil
}

// SetControl validates v against the control's descriptor and applies it.
// Out-of-range values fail with a RangeError before any bus traffic, and a
// failed write leaves the cached state untouched.
//
// Gains are written to the register as given; the nonlinear encoding read
// back by GetControl is not inverted. Flips take effect at the next geometry
// programming. Automatic exposure selects the seed written by the next
// stream enable. Exposure has no register mapping yet and returns
// ErrUnimplemented.
func (d *Device) SetControl(id ControlID, v int32) error {
	desc, ok := LookupControl(id)
	if !ok {
		return ErrUnsupported
	}
	if err := desc.Validate(v); err != nil {
		return err
	}
	switch id {
	case CIDVFlip:
		d.mirrorRow = v != 0
		return nil
	case CIDHFlip:
		d.mirrorCol = v != 0
		return nil
	case CIDExposureAuto:
		d.autoExposure = v != 0
		return nil
	case CIDExposure:
		// TODO: map exposure onto COARSE_INTEGRATION_TIME once the row time
		// unit for the control is settled.
		return ErrUnimplemented
	}
	ch, _ := gainChannelOf(id)
	if err := d.writeReg(gainRegs[ch], uint16(v)); err != nil {
		return err
	}
	d.gain[ch] = v
	d.gainRaw[ch] = uint16(v)
	return nil
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
