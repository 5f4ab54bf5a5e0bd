// Package mathx holds small integer helpers for fixed-point sensor maths.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. lo must not exceed hi.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundDiv returns a/b rounded half up. Division by zero yields 0.
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}
