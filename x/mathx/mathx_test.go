package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("Clamp high = %d", got)
	}
	if got := Clamp(-1, 0, 3); got != 0 {
		t.Fatalf("Clamp low = %d", got)
	}
	if got := Clamp(2, 3, 0); got != 2 {
		t.Fatalf("Clamp swapped bounds = %d", got)
	}
}

func TestAlign(t *testing.T) {
	cases := []struct {
		v, a, down, up int
	}{
		{0, 2, 0, 0},
		{1, 2, 0, 2},
		{112, 4, 112, 112},
		{113, 4, 112, 116},
		{15, 16, 0, 16},
		{9, 0, 9, 9},
	}
	for _, c := range cases {
		if got := AlignDown(c.v, c.a); got != c.down {
			t.Fatalf("AlignDown(%d,%d) = %d, want %d", c.v, c.a, got, c.down)
		}
		if got := AlignUp(c.v, c.a); got != c.up {
			t.Fatalf("AlignUp(%d,%d) = %d, want %d", c.v, c.a, got, c.up)
		}
	}
}

func TestEven(t *testing.T) {
	for in, want := range map[int]int{0: 0, 1: 0, 2: 2, 1221: 1220} {
		if got := Even(in); got != want {
			t.Fatalf("Even(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ a, b, want uint64 }{
		{320_000_000, 4, 80_000_000},
		{10, 4, 3},
		{9, 4, 2},
		{7, 0, 0},
	}
	for _, c := range cases {
		if got := RoundDiv(c.a, c.b); got != c.want {
			t.Errorf("RoundDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
