package lfg

import "strconv"

// Bound is an optional participant limit. The zero value is unbounded.
type Bound struct {
	n   int
	set bool
}

// Unbounded returns a Bound with no limit.
func Unbounded() Bound {
	return Bound{}
}

// Limit returns a Bound of n. Non-positive limits are representable so that
// callers can pass raw input through, but every core entry point rejects them.
func Limit(n int) Bound {
	return Bound{n: n, set: true}
}

// Value returns the limit and whether one is set.
func (b Bound) Value() (int, bool) {
	return b.n, b.set
}

// IsSet reports whether b carries a limit.
func (b Bound) IsSet() bool {
	return b.set
}

func (b Bound) String() string {
	if !b.set {
		return "unbounded"
	}
	return strconv.Itoa(b.n)
}

// ValidateBounds checks that each set bound is positive and that max is not
// below min when both are set.
func ValidateBounds(min, max Bound) error {
	if min.set && min.n < 1 {
		return ErrInvalidBounds
	}
	if max.set && max.n < 1 {
		return ErrInvalidBounds
	}
	if min.set && max.set && max.n < min.n {
		return ErrInvalidBounds
	}
	return nil
}
