package mt9j003

import "camsensor-go/x/mathx"

// readModeValue packs READ_MODE for a window: odd-pixel increments for the
// skip, bin enables, sum mode, low-power binning and the mirror bits.
// Windows from Negotiate never exceed MaxEncodedSkip, so both increments
// carry the same skip.
func (d *Device) readModeValue(w Window) uint16 {
	inc := uint16(2*w.Skip - 1)
	v := mathx.Min(inc, rmXOddIncMask)<<rmXOddIncShift |
		mathx.Min(inc, rmYOddIncMask)<<rmYOddIncShift
	if w.Bin > 1 {
		v |= rmXYBinEnable | rmXBinEnable
		if d.cfg.BinSum {
			v |= rmBinSum | rmYSumEnable
		}
	}
	if !d.cfg.DisableLowPowerBinning {
		v |= rmLowPower
	}
	if d.mirrorCol {
		v |= rmHorizMirror
	}
	if d.mirrorRow {
		v |= rmVertFlip
	}
	return v
}

// frameLength returns FRAME_LENGTH_LINES for an output height.
func (d *Device) frameLength(w Window) uint16 {
	return uint16(w.Height) + d.cfg.FrameBlankLines
}

// applyWindow programs a negotiated window. The sequence is fixed; the first
// failed write aborts it and earlier writes are not undone.
func (d *Device) applyWindow(w Window) error {
	frameLen := d.frameLength(w)
	coarse := mathx.Min(d.cfg.CoarseIntegration, frameLen-1)

	seq := [...]regValue{
		// Disable sampling and reset the datapath before reconfiguring.
		{regScalingMode, scalingModeNoSample},
		{regDatapathSelect, datapathDefault},

		// FOV of array
		{regXAddrStart, uint16(w.Left)},
		{regXAddrEnd, uint16(w.Left + w.ArrayWidth() - 1)},
		{regYAddrStart, uint16(w.Top)},
		{regYAddrEnd, uint16(w.Top + w.ArrayHeight() - 1)},

		{regLowPowerTiming, lowPowerTimingValue},

		// Binning and summing
		{regReadMode, d.readModeValue(w)},

		// Scaling and cropping
		{regScalingMode, 0},
		{regMScale, mScaleUnity},
		{regXOutputSize, uint16(w.Width)},
		{regYOutputSize, uint16(w.Height)},

		// Row timing
		{regLineLengthPck, d.cfg.LineLengthPck},
		{regFrameLengthLines, frameLen},
		{regFineCorrection, d.cfg.FineCorrection},
		{regFineIntTime, d.cfg.FineIntegration},
		{regCoarseIntTime, coarse},
		{regExtraDelay, 0},

		{regColumnSample, columnSampleDefault},

		// Restart frame
		{regResetRegister, d.resetBase | resetRestartFrame},
	}
	return d.writeRegs(seq[:])
}
