// Package mt9j003 provides a driver for the Aptina MT9J003 10 Mp CMOS image
// sensor. It covers the control plane only: power sequencing, identity check,
// PLL setup, output format negotiation, sensor controls and the streaming
// state machine. Pixel data leaves the sensor on the parallel port and is
// owned by the capture framework.
//
// The register interface is I2C with 16-bit big-endian sub-addresses and
// 16-bit big-endian data:
//
//	read:  W[addr_hi addr_lo]  R[val_hi val_lo]   (repeated start)
//	write: W[addr_hi addr_lo val_hi val_lo]
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
//
// The driver does no locking. Callers serialise all calls on one Device;
// every register access and settle delay blocks the caller.
package mt9j003

import (
	"time"

	"tinygo.org/x/drivers"
)

// PowerState of the sensor supply.
type PowerState uint8

const (
	PowerOff PowerState = iota
	PowerOn
)

func (p PowerState) String() string {
	if p == PowerOn {
		return "on"
	}
	return "off"
}

// StreamState of the streaming state machine.
type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamConfiguring
	StreamStreaming
)

func (s StreamState) String() string {
	switch s {
	case StreamConfiguring:
		return "configuring"
	case StreamStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// Config controls non-geometry behaviour. Zero fields take defaults.
type Config struct {
	// Address defaults to 0x10 if zero.
	Address uint16
	// PowerSettle is the wait after each power line transition. Default 20 ms.
	PowerSettle time.Duration
	// StreamSettle is the wait after the start/reset strobe. Default 300 ms.
	StreamSettle time.Duration
	// DetectRetries bounds the extra MODEL_ID reads after a mismatch. Default 5.
	DetectRetries int
	// DetectRetryDelay separates detection attempts. Default 5 ms.
	DetectRetryDelay time.Duration
	// StreamRetries bounds consecutive failed stream enables. Default 3.
	StreamRetries int

	PLL PLL

	// Row timing. Defaults: 2300 pixel clocks per line, 56 blank lines,
	// coarse integration 0x0200 rows (capped to the frame), fine 522, fine
	// correction 72.
	LineLengthPck     uint16
	FrameBlankLines   uint16
	CoarseIntegration uint16
	FineIntegration   uint16
	FineCorrection    uint16

	// BinSum selects summing instead of averaging when binning.
	BinSum bool
	// DisableLowPowerBinning clears the low-power binning bit.
	DisableLowPowerBinning bool

	// Sleep blocks for settle delays. Default time.Sleep.
	Sleep func(time.Duration)
}

// DefaultConfig returns the settings used by the reference board.
func DefaultConfig() Config {
	return Config{
		Address:           AddressDefault,
		PowerSettle:       20 * time.Millisecond,
		StreamSettle:      300 * time.Millisecond,
		DetectRetries:     5,
		DetectRetryDelay:  5 * time.Millisecond,
		StreamRetries:     3,
		PLL:               DefaultPLL(),
		LineLengthPck:     2300,
		FrameBlankLines:   56,
		CoarseIntegration: 0x0200,
		FineIntegration:   522,
		FineCorrection:    72,
		Sleep:             time.Sleep,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Address == 0 {
		c.Address = def.Address
	}
	if c.PowerSettle <= 0 {
		c.PowerSettle = def.PowerSettle
	}
	if c.StreamSettle <= 0 {
		c.StreamSettle = def.StreamSettle
	}
	if c.DetectRetries <= 0 {
		c.DetectRetries = def.DetectRetries
	}
	if c.DetectRetryDelay <= 0 {
		c.DetectRetryDelay = def.DetectRetryDelay
	}
	if c.StreamRetries <= 0 {
		c.StreamRetries = def.StreamRetries
	}
	if c.PLL == (PLL{}) {
		c.PLL = def.PLL
	}
	if c.LineLengthPck == 0 {
		c.LineLengthPck = def.LineLengthPck
	}
	if c.FrameBlankLines == 0 {
		c.FrameBlankLines = def.FrameBlankLines
	}
	if c.CoarseIntegration == 0 {
		c.CoarseIntegration = def.CoarseIntegration
	}
	if c.FineIntegration == 0 {
		c.FineIntegration = def.FineIntegration
	}
	if c.FineCorrection == 0 {
		c.FineCorrection = def.FineCorrection
	}
	if c.Sleep == nil {
		c.Sleep = def.Sleep
	}
	return c
}

// Device is one MT9J003 instance. It exclusively owns its bus handle and
// power line for its lifetime.
type Device struct {
	i2c  drivers.I2C
	pwr  PowerLine
	addr uint16
	cfg  Config

	power  PowerState
	stream StreamState
	model  uint16

	// Geometry. curX/curY are the top-left of the active window.
	curX, curY int
	window     Window
	limits     Limits
	mirrorRow  bool
	mirrorCol  bool

	// Last-known control values, indexed by GainChannel.
	gain     [numGainChannels]int32
	gainRaw  [numGainChannels]uint16
	exposure int32

	autoExposure bool

	resetBase      uint16 // last RESET_REGISTER mode written
	enableFailures int

	// Fixed buffers to avoid per-call heap allocations.
	w [4]byte
	r [2]byte
}

// New creates a Device. The bus and power line must already be configured by
// the platform. New does not touch the hardware.
func New(bus drivers.I2C, pwr PowerLine, cfg Config) *Device {
	cfg = cfg.withDefaults()
	d := &Device{
		i2c:  bus,
		pwr:  pwr,
		addr: cfg.Address,
		cfg:  cfg,
		curX: ColumnStartDefault,
		curY: RowStartDefault,
	}
	d.window, d.limits = d.Negotiate(WindowWidthDefault, WindowHeightDefault)
	for ch := range d.gainRaw {
		d.gainRaw[ch] = defaultGainRaw
		d.gain[ch] = DecodeGain(defaultGainRaw)
	}
	d.exposure = exposureDescriptor.Default
	d.autoExposure = true
	return d
}

// Probe powers the sensor, verifies its identity and powers it back off.
// On failure no Device is returned.
func Probe(bus drivers.I2C, pwr PowerLine, cfg Config) (*Device, error) {
	if bus == nil || pwr == nil {
		return nil, ErrNotReady
	}
	d := New(bus, pwr, cfg)
	if err := d.Detect(); err != nil {
		return nil, err
	}
	return d, nil
}

// Remove detaches the bus and power line. It does not quiesce the hardware;
// call SetStream(false) first. Subsequent calls fail with ErrNotReady.
func (d *Device) Remove() {
	d.i2c = nil
	d.pwr = nil
	d.stream = StreamIdle
	d.enableFailures = 0
}

// Address returns the 7-bit I2C address in use.
func (d *Device) Address() uint16 { return d.addr }

// Model returns the MODEL_ID read during detection (0 before detection).
func (d *Device) Model() uint16 { return d.model }

// State is a snapshot of the sensor state.
type State struct {
	CurrentX, CurrentY int
	Width, Height      int
	XSkip, YSkip       int
	XBin, YBin         int
	Limits             Limits
	MirrorRow          bool
	MirrorCol          bool
	Gain               [numGainChannels]int32
	Exposure           int32
	AutoExposure       bool
	Power              PowerState
	Stream             StreamState
}

func (d *Device) State() State {
	return State{
		CurrentX:     d.curX,
		CurrentY:     d.curY,
		Width:        d.window.Width,
		Height:       d.window.Height,
		XSkip:        d.window.Skip,
		YSkip:        d.window.Skip,
		XBin:         d.window.Bin,
		YBin:         d.window.Bin,
		Limits:       d.limits,
		MirrorRow:    d.mirrorRow,
		MirrorCol:    d.mirrorCol,
		Gain:         d.gain,
		Exposure:     d.exposure,
		AutoExposure: d.autoExposure,
		Power:        d.power,
		Stream:       d.stream,
	}
}

// Window returns the active capture window.
func (d *Device) Window() Window { return d.window }

// Format describes an output pixel format.
type Format struct {
	Description string
	FourCC      uint32
}

// PixFmtSGRBG10 is 10-bit Bayer GRBG, one sample per 16-bit word.
const PixFmtSGRBG10 = uint32('B') | uint32('A')<<8 | uint32('1')<<16 | uint32('0')<<24

var formats = [...]Format{
	{Description: "Bayer (sRGB) 10 bit", FourCC: PixFmtSGRBG10},
}

// Formats lists the supported output formats.
func Formats() []Format {
	out := formats
	return out[:]
}

func (d *Device) sleep(t time.Duration) {
	if t > 0 {
		d.cfg.Sleep(t)
	}
}
