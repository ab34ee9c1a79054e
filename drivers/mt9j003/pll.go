package mt9j003

import "camsensor-go/x/mathx"

// PLL holds the clock tree dividers. With the default 10 MHz input:
//
//	vco    = extclk / pre_pll_clk_div * pll_multiplier   = 320 MHz
//	vt_pix = vco / (vt_sys_clk_div * vt_pix_clk_div)     =  80 MHz (array)
//	op_pix = vco / (op_sys_clk_div * op_pix_clk_div)     =  40 MHz (output)
type PLL struct {
	ExtClkHz     uint32
	VTPixClkDiv  uint16
	VTSysClkDiv  uint16
	PrePLLClkDiv uint16
	Multiplier   uint16
	OPPixClkDiv  uint16
	OPSysClkDiv  uint16
	RowSpeed     uint16
}

// DefaultPLL is the 80 MHz array clock configuration.
func DefaultPLL() PLL {
	return PLL{
		ExtClkHz:     10_000_000,
		VTPixClkDiv:  4,
		VTSysClkDiv:  1,
		PrePLLClkDiv: 1,
		Multiplier:   32,
		OPPixClkDiv:  8,
		OPSysClkDiv:  1,
		RowSpeed:     1<<0 | 1<<8,
	}
}

// Validate rejects zero dividers.
func (p PLL) Validate() error {
	if p.VTPixClkDiv == 0 || p.VTSysClkDiv == 0 || p.PrePLLClkDiv == 0 ||
		p.Multiplier == 0 || p.OPPixClkDiv == 0 || p.OPSysClkDiv == 0 {
		return ErrInvalidPLL
	}
	return nil
}

func (p PLL) vcoHz() uint64 {
	if p.PrePLLClkDiv == 0 {
		return 0
	}
	return uint64(p.ExtClkHz) / uint64(p.PrePLLClkDiv) * uint64(p.Multiplier)
}

// ArrayClockHz returns the pixel array (video timing) clock.
func (p PLL) ArrayClockHz() uint32 {
	return uint32(mathx.RoundDiv(p.vcoHz(), uint64(p.VTSysClkDiv)*uint64(p.VTPixClkDiv)))
}

// OutputClockHz returns the output pixel clock.
func (p PLL) OutputClockHz() uint32 {
	return uint32(mathx.RoundDiv(p.vcoHz(), uint64(p.OPSysClkDiv)*uint64(p.OPPixClkDiv)))
}

// configurePLL writes the divider registers in order. No read-back; a failed
// write aborts the rest and leaves the PLL partially configured.
func (d *Device) configurePLL() error {
	p := d.cfg.PLL
	if err := p.Validate(); err != nil {
		return err
	}
	seq := [...]regValue{
		{regVTPixClkDiv, p.VTPixClkDiv},
		{regVTSysClkDiv, p.VTSysClkDiv},
		{regPrePLLClkDiv, p.PrePLLClkDiv},
		{regPLLMultiplier, p.Multiplier},
		{regOPPixClkDiv, p.OPPixClkDiv},
		{regOPSysClkDiv, p.OPSysClkDiv},
		{regRowSpeed, p.RowSpeed},
	}
	return d.writeRegs(seq[:])
}
