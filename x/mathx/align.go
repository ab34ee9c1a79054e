package mathx

import "golang.org/x/exp/constraints"

// AlignDown rounds v down to a multiple of a. a <= 0 returns v unchanged.
// Intended for non-negative v.
func AlignDown[T constraints.Integer](v, a T) T {
	if a <= 0 {
		return v
	}
	return v - v%a
}

// AlignUp rounds v up to a multiple of a. a <= 0 returns v unchanged.
func AlignUp[T constraints.Integer](v, a T) T {
	if a <= 0 {
		return v
	}
	if r := v % a; r != 0 {
		return v + a - r
	}
	return v
}

// Even clears bit 0, rounding non-negative v down to an even value.
func Even[T constraints.Integer](v T) T {
	return v &^ 1
}
