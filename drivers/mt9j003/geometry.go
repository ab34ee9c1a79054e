package mt9j003

import "camsensor-go/x/mathx"

// Window is a negotiated readout window. Left/Top are sensor-array
// coordinates; Width/Height are output pixels. The array extent read out is
// Width*Skip by Height*Skip. Skip and Bin apply to both axes.
type Window struct {
	Left, Top     int
	Width, Height int
	Skip          int
	Bin           int
}

// ArrayWidth returns the number of array columns covered by the window.
func (w Window) ArrayWidth() int { return w.Width * w.Skip }

// ArrayHeight returns the number of array rows covered by the window.
func (w Window) ArrayHeight() int { return w.Height * w.Skip }

// Limits are the geometry bounds for one skip factor. Widths and heights are
// in output pixels and always even.
type Limits struct {
	XMin, YMin          int
	WidthMin, HeightMin int
	WidthMax, HeightMax int
}

// TryFormat clamps a requested output size to the native limits and forces
// both dimensions even. It does not touch the hardware.
func TryFormat(width, height int) (int, int) {
	w := mathx.Even(mathx.Clamp(width, WindowWidthMin, WindowWidthMax))
	h := mathx.Even(mathx.Clamp(height, WindowHeightMin, WindowHeightMax))
	return w, h
}

// selectSkip returns the largest skip in MaxSkip..1 for which req*skip still
// fits in limit. Requests wider than limit fall through to 1.
func selectSkip(req, limit int) int {
	for s := MaxSkip; s > 1; s-- {
		if req*s <= limit {
			return s
		}
	}
	return 1
}

// limitsFor computes the geometry bounds for skip.
func limitsFor(skip int) Limits {
	align := 2 * skip
	return Limits{
		XMin:      mathx.AlignUp(ColumnStartMin, align),
		YMin:      mathx.AlignUp(RowStartMin, align),
		WidthMin:  mathx.AlignUp(WindowWidthMin, align) / skip,
		HeightMin: mathx.AlignUp(WindowHeightMin, align) / skip,
		WidthMax:  mathx.Even(WindowWidthMax / skip),
		HeightMax: mathx.Even(WindowHeightMax / skip),
	}
}

// binFor derives the binning factor from the lowest set bit of skip.
func binFor(skip int) int {
	switch {
	case skip&1 != 0:
		return 1
	case skip&2 != 0:
		return 2
	case skip&4 != 0:
		return 4
	default:
		return 8
	}
}

// Negotiate derives the skip/bin factors and readout window for a requested
// output size. It does not touch the hardware or the device state, so the
// same request always yields the same result.
//
// Each axis picks its own skip; when they disagree the smaller one is used
// for both. The smaller skip is not re-checked against the other axis's
// limit, the window is only clamped to the resulting limits. The result is
// capped at MaxEncodedSkip so the column and row increments programmed into
// READ_MODE match the window's array extent.
func (d *Device) Negotiate(width, height int) (Window, Limits) {
	sx := selectSkip(width, WindowWidthMax)
	sy := selectSkip(height, WindowHeightMax)
	skip := mathx.Min(mathx.Min(sx, sy), MaxEncodedSkip)

	lim := limitsFor(skip)
	bin := binFor(skip)

	win := Window{
		Width:  mathx.Even(mathx.Clamp(width, lim.WidthMin, lim.WidthMax)),
		Height: mathx.Even(mathx.Clamp(height, lim.HeightMin, lim.HeightMax)),
		Skip:   skip,
		Bin:    bin,
	}
	win.Left = alignOrigin(d.curX, lim.XMin, bin, d.mirrorCol, PixelArrayWidth-win.ArrayWidth())
	win.Top = alignOrigin(d.curY, lim.YMin, bin, d.mirrorRow, PixelArrayHeight-win.ArrayHeight())
	return win, lim
}

// alignOrigin aligns v down to a 2*bin boundary, offsets it by bin when the
// axis is mirrored, then steps back whole 2*bin units until the window fits
// below maxStart.
func alignOrigin(v, lo, bin int, mirrored bool, maxStart int) int {
	step := 2 * bin
	o := mathx.AlignDown(mathx.Max(v, lo), step)
	if mirrored {
		o += bin
	}
	if o > maxStart {
		o -= mathx.AlignUp(o-maxStart, step)
	}
	return o
}

// SetFormat negotiates a window for the requested output size and programs
// it. The request is first passed through TryFormat.
//
// While the sensor is powered off the window is only recorded; it is
// programmed by the next SetStream(true). On a bus error the registers
// written so far stay written and the previous window is kept.
func (d *Device) SetFormat(width, height int) (Window, error) {
	if d.i2c == nil {
		return Window{}, ErrNotReady
	}
	w, h := TryFormat(width, height)
	win, lim := d.Negotiate(w, h)
	if d.power == PowerOn {
		if err := d.applyWindow(win); err != nil {
			return Window{}, err
		}
	}
	d.window = win
	d.limits = lim
	d.curX, d.curY = win.Left, win.Top
	return win, nil
}

// SetOrigin moves the top-left of the active window for the next SetFormat.
// Values are clamped to the array.
func (d *Device) SetOrigin(x, y int) {
	d.curX = mathx.Clamp(x, ColumnStartMin, PixelArrayWidth-WindowWidthMin)
	d.curY = mathx.Clamp(y, RowStartMin, PixelArrayHeight-WindowHeightMin)
}
