package mt9j003

import "testing"

func TestTryFormat_EvenAndWithinNativeLimits(t *testing.T) {
	check := func(w, h int) {
		gw, gh := TryFormat(w, h)
		if gw%2 != 0 || gh%2 != 0 {
			t.Fatalf("TryFormat(%d,%d) = %d,%d not even", w, h, gw, gh)
		}
		if gw < WindowWidthMin || gw > WindowWidthMax || gh < WindowHeightMin || gh > WindowHeightMax {
			t.Fatalf("TryFormat(%d,%d) = %d,%d out of limits", w, h, gw, gh)
		}
	}
	for w := 2; w <= WindowWidthMax; w += 37 {
		for h := 2; h <= WindowHeightMax; h += 53 {
			check(w, h)
		}
	}
	for _, c := range [][2]int{{2, 2}, {3, 3}, {3664, 2748}, {3663, 2747}, {0, 0}, {-5, 9999}, {100000, 1}} {
		check(c[0], c[1])
	}
	if w, h := TryFormat(721, 481); w != 720 || h != 480 {
		t.Fatalf("odd sizes not rounded down: %d,%d", w, h)
	}
}

func TestSelectSkip(t *testing.T) {
	cases := []struct{ req, limit, want int }{
		{720, WindowWidthMax, 5},
		{480, WindowHeightMax, 5},
		{3664, WindowWidthMax, 1},
		{1832, WindowWidthMax, 2},
		{1000, WindowWidthMax, 3},
		{458, WindowWidthMax, 8},
		{2, WindowWidthMax, 8},
		{4000, WindowWidthMax, 1},
	}
	for _, c := range cases {
		if got := selectSkip(c.req, c.limit); got != c.want {
			t.Fatalf("selectSkip(%d,%d) = %d, want %d", c.req, c.limit, got, c.want)
		}
	}
}

func TestBinFromSkipBits(t *testing.T) {
	want := map[int]int{1: 1, 2: 2, 3: 1, 4: 4, 5: 1, 6: 2, 7: 1, 8: 8}
	for skip, bin := range want {
		if got := binFor(skip); got != bin {
			t.Fatalf("binFor(%d) = %d, want %d", skip, got, bin)
		}
	}
}

func TestLimitsFor(t *testing.T) {
	for skip := 1; skip <= MaxSkip; skip++ {
		l := limitsFor(skip)
		if l.XMin != 0 || l.YMin != 0 {
			t.Fatalf("skip %d: origin minimum %d,%d", skip, l.XMin, l.YMin)
		}
		if l.WidthMin != 2 || l.HeightMin != 2 {
			t.Fatalf("skip %d: minimum %dx%d", skip, l.WidthMin, l.HeightMin)
		}
		if l.WidthMax%2 != 0 || l.HeightMax%2 != 0 {
			t.Fatalf("skip %d: odd maximum %dx%d", skip, l.WidthMax, l.HeightMax)
		}
		if l.WidthMax*skip > WindowWidthMax || l.HeightMax*skip > WindowHeightMax {
			t.Fatalf("skip %d: maximum exceeds array", skip)
		}
	}
	if l := limitsFor(5); l.WidthMax != 732 || l.HeightMax != 548 {
		t.Fatalf("skip 5 limits = %+v", l)
	}
}

func TestNegotiate_DefaultRequest(t *testing.T) {
	d, _, _, _ := newTestDevice()
	win, lim := d.Negotiate(720, 480)
	want := Window{Left: 112, Top: 8, Width: 720, Height: 480, Skip: 4, Bin: 4}
	if win != want {
		t.Fatalf("window = %+v, want %+v", win, want)
	}
	if lim != limitsFor(4) {
		t.Fatalf("limits = %+v", lim)
	}
}

func TestNegotiate_AxesDisagreeUseSmallerSkip(t *testing.T) {
	d, _, _, _ := newTestDevice()
	win, _ := d.Negotiate(1832, 480) // x fits skip 2, y fits skip 5
	if win.Skip != 2 || win.Bin != 2 {
		t.Fatalf("skip/bin = %d/%d, want 2/2", win.Skip, win.Bin)
	}
	if win.Width != 1832 || win.Height != 480 {
		t.Fatalf("size = %dx%d", win.Width, win.Height)
	}
	if win.Left%4 != 0 || win.Top%4 != 0 {
		t.Fatalf("origin %d,%d not aligned to 2*bin", win.Left, win.Top)
	}
}

func TestNegotiate_MirrorOffsetsByBin(t *testing.T) {
	d, _, _, _ := newTestDevice()
	if err := d.SetControl(CIDHFlip, 1); err != nil {
		t.Fatal(err)
	}
	win, _ := d.Negotiate(1832, 480)
	if win.Left != 114 || win.Top != 8 {
		t.Fatalf("mirrored origin = %d,%d, want 114,8", win.Left, win.Top)
	}
	if err := d.SetControl(CIDVFlip, 1); err != nil {
		t.Fatal(err)
	}
	win, _ = d.Negotiate(1832, 480)
	if win.Top != 10 {
		t.Fatalf("flipped top = %d, want 10", win.Top)
	}
}

func TestNegotiate_WindowKeptInsideArray(t *testing.T) {
	d, _, _, _ := newTestDevice()
	d.SetOrigin(3000, 2000)
	win, _ := d.Negotiate(3664, 2748)
	if win.Left != 192 || win.Top != 16 {
		t.Fatalf("origin = %d,%d, want 192,16", win.Left, win.Top)
	}
}

func TestNegotiate_Properties(t *testing.T) {
	d, _, _, _ := newTestDevice()
	for w := 2; w <= WindowWidthMax; w += 61 {
		for h := 2; h <= WindowHeightMax; h += 47 {
			rw, rh := TryFormat(w, h)
			a, la := d.Negotiate(rw, rh)
			b, lb := d.Negotiate(rw, rh)
			if a != b || la != lb {
				t.Fatalf("negotiate(%d,%d) not idempotent: %+v vs %+v", rw, rh, a, b)
			}
			if a.Skip < 1 || a.Skip > MaxEncodedSkip {
				t.Fatalf("skip %d out of range", a.Skip)
			}
			if a.Width < la.WidthMin || a.Width > la.WidthMax || a.Height < la.HeightMin || a.Height > la.HeightMax {
				t.Fatalf("window %+v outside limits %+v", a, la)
			}
			if a.Width%2 != 0 || a.Height%2 != 0 {
				t.Fatalf("window %+v not even", a)
			}
			if a.Left < 0 || a.Top < 0 || a.Left+a.ArrayWidth() > PixelArrayWidth || a.Top+a.ArrayHeight() > PixelArrayHeight {
				t.Fatalf("window %+v outside pixel array", a)
			}
			if a.Left%(2*a.Bin) != 0 || a.Top%(2*a.Bin) != 0 {
				t.Fatalf("window %+v not aligned to 2*bin", a)
			}
		}
	}
}

func TestNegotiate_SkipCappedToReadModeField(t *testing.T) {
	d, _, _, _ := newTestDevice()
	for _, c := range []struct{ w, h int }{{720, 480}, {458, 342}, {2, 2}, {600, 2748}} {
		win, _ := d.Negotiate(c.w, c.h)
		if win.Skip > MaxEncodedSkip {
			t.Fatalf("negotiate(%d,%d) skip %d exceeds %d", c.w, c.h, win.Skip, MaxEncodedSkip)
		}
	}
	if win, _ := d.Negotiate(1000, 900); win.Skip != 3 || win.Bin != 1 {
		t.Fatalf("skip 3 request = %+v", win)
	}
}

func TestSetFormat_PoweredOffRecordsOnly(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	win, err := d.SetFormat(1832, 480)
	if err != nil {
		t.Fatalf("set format: %v", err)
	}
	if len(bus.writes) != 0 {
		t.Fatalf("powered-off set format wrote %d registers", len(bus.writes))
	}
	st := d.State()
	if st.Width != win.Width || st.Height != win.Height || st.XSkip != st.YSkip || st.XSkip != 2 || st.XBin != 2 {
		t.Fatalf("state = %+v", st)
	}
	if st.CurrentX != win.Left || st.CurrentY != win.Top {
		t.Fatalf("origin not tracked: %+v", st)
	}
}

func TestSetFormat_PoweredProgramsWindow(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	if err := d.PowerOn(); err != nil {
		t.Fatal(err)
	}
	win, err := d.SetFormat(721, 481)
	if err != nil {
		t.Fatalf("set format: %v", err)
	}
	if win.Width != 720 || win.Height != 480 {
		t.Fatalf("window = %+v", win)
	}
	if bus.regs[regXOutputSize] != 720 || bus.regs[regYOutputSize] != 480 {
		t.Fatalf("output size registers = %d x %d", bus.regs[regXOutputSize], bus.regs[regYOutputSize])
	}
	if len(bus.writes) != 20 {
		t.Fatalf("writes = %d, want 20", len(bus.writes))
	}
}

func TestSetFormat_FailureKeepsPreviousWindow(t *testing.T) {
	d, bus, _, _ := newTestDevice()
	if err := d.PowerOn(); err != nil {
		t.Fatal(err)
	}
	before := d.Window()
	bus.failWriteAt = 5
	if _, err := d.SetFormat(3664, 2748); err == nil {
		t.Fatalf("expected transfer error")
	}
	if d.Window() != before {
		t.Fatalf("window changed on failure")
	}
	if len(bus.writes) != 4 {
		t.Fatalf("writes before abort = %d, want 4", len(bus.writes))
	}
}
