package mt9j003

// Register map and fixed sensor geometry. Addresses are the 16-bit
// sub-addresses used on the wire (big-endian).

const (
	// 7-bit I2C address (CMOS sensor strapped low).
	AddressDefault = 0x10

	// MODEL_ID value reported by a genuine part.
	ChipVersion = 0x2C01

	// Native pixel array.
	PixelArrayWidth  = 3856
	PixelArrayHeight = 2764

	// Default active window origin.
	ColumnStartDefault = 112
	RowStartDefault    = 8
	ColumnStartMin     = 0
	RowStartMin        = 0

	// Output window limits at skip 1.
	WindowWidthDefault  = 720
	WindowHeightDefault = 480
	WindowWidthMax      = 3664
	WindowHeightMax     = 2748
	WindowWidthMin      = 2
	WindowHeightMin     = 2

	// Largest skip/bin factor considered by format negotiation.
	MaxSkip = 8

	// Largest skip READ_MODE encodes on both axes. x_odd_inc is three bits
	// wide, so the column increment stops at 7 (skip 4).
	MaxEncodedSkip = (rmXOddIncMask + 1) / 2
)

const (
	regModelID       = 0x3000
	regResetRegister = 0x301A

	// PLL
	regVTPixClkDiv   = 0x0300
	regVTSysClkDiv   = 0x0302
	regPrePLLClkDiv  = 0x0304
	regPLLMultiplier = 0x0306
	regOPPixClkDiv   = 0x0308
	regOPSysClkDiv   = 0x030A
	regRowSpeed      = 0x3016

	// FOV from array
	regYAddrStart = 0x3002
	regXAddrStart = 0x3004
	regYAddrEnd   = 0x3006
	regXAddrEnd   = 0x3008

	// Read mode: binning/summing, odd increments, mirror
	regReadMode = 0x3040

	// Scaling and cropping
	regScalingMode = 0x0400
	regMScale      = 0x0404
	regXOutputSize = 0x034C
	regYOutputSize = 0x034E

	// Row timing
	regFrameLengthLines = 0x0340
	regLineLengthPck    = 0x0342
	regCoarseIntTime    = 0x0202
	regFineCorrection   = 0x3010
	regFineIntTime      = 0x3014
	regExtraDelay       = 0x3018

	regDatapathSelect = 0x306E
	regColumnSample   = 0x30D4
	regLowPowerTiming = 0x3170
	regAnalogControl  = 0x3ECC // undocumented, required before the recommended table
	regSerialFormat   = 0x31AE
	regDACControl     = 0x3EDC
	regAnalogControl8 = 0x3178

	// Per-channel analog gain
	regGreen1Gain = 0x3056
	regBlueGain   = 0x3058
	regRedGain    = 0x305A
	regGreen2Gain = 0x305C
)

// RESET_REGISTER (0x301A) values.
const (
	resetStrobe         = 0x0001
	resetRestartFrame   = 1 << 1
	resetStreamParallel = 0x10DC // streaming, parallel interface, lock registers off
	resetStreamOff      = 0x0018
)

// READ_MODE (0x3040) bit fields.
const (
	rmYOddIncShift = 0
	rmYOddIncMask  = 0x3F
	rmXOddIncShift = 6
	rmXOddIncMask  = 0x07
	rmLowPower     = 1 << 9
	rmXYBinEnable  = 1 << 10
	rmXBinEnable   = 1 << 11
	rmBinSum       = 1 << 12
	rmYSumEnable   = 1 << 13
	rmHorizMirror  = 1 << 14
	rmVertFlip     = 1 << 15
)

// Fixed values written during geometry programming.
const (
	scalingModeNoSample = 0x0002
	datapathDefault     = 0x9080
	columnSampleDefault = 0x9080
	lowPowerTimingValue = 0x0071
	mScaleUnity         = 16
	analogControlValue  = 0x0FE4
)

// regValue is one entry of an ordered register write sequence.
type regValue struct {
	reg uint16
	val uint16
}

// recommendedRegs is the vendor "recommended default settings" table.
// Written in order, each write independent, no read-back.
var recommendedRegs = [...]regValue{
	{0x316C, 0x0429},
	{0x3174, 0x8000},
	{0x3E40, 0xDC05},
	{0x3E42, 0x6E22},
	{0x3E44, 0xDC22},
	{0x3E46, 0xFF00},
	{0x3ED4, 0xF998},
	{0x3ED6, 0x9789},
	{0x3EDE, 0xE41A},
	{0x3EE0, 0xA43F},
	{0x3EE2, 0xA4BF},
	{0x3EEC, 0x1C21},
}

// encodingRegs adjusts the data pedestal and output encoding.
var encodingRegs = [...]regValue{
	{regSerialFormat, 0x0301},
	{regDACControl, 1 << 7},
	{regAnalogControl8, 0x0000},
}
