package dodec

import (
	"fmt"
	"math"
)

// Unit is a time-literal suffix tag.
type Unit uint8

const (
	Nanoseconds Unit = iota // ns
	Doziseconds             // ms (one twelfth of a second)
	Seconds                 // s
	Minutes                 // m
	Hours                   // h
)

// The language's "ms" is a dozisecond: one twelfth of a second, not
// the SI millisecond.
const doziNanos = 83333333

// unitNanos maps each unit to its nanosecond factor.
var unitNanos = [...]int64{
	Nanoseconds: 1,
	Doziseconds: doziNanos,
	Seconds:     1_000_000_000,
	Minutes:     60 * 1_000_000_000,
	Hours:       3600 * 1_000_000_000,
}

// Nanos returns the nanosecond factor for the unit.
func (u Unit) Nanos() int64 { return unitNanos[u] }

func (u Unit) String() string {
	switch u {
	case Nanoseconds:
		return "ns"
	case Doziseconds:
		return "ms"
	case Seconds:
		return "s"
	case Minutes:
		return "m"
	case Hours:
		return "h"
	}
	return fmt.Sprintf("Unit(%d)", uint8(u))
}

// LookupUnit maps a lexeme to its unit tag.
// Returns (0, false) for anything outside ns/ms/s/m/h.
func LookupUnit(s string) (Unit, bool) {
	switch s {
	case "ns":
		return Nanoseconds, true
	case "ms":
		return Doziseconds, true
	case "s":
		return Seconds, true
	case "m":
		return Minutes, true
	case "h":
		return Hours, true
	}
	return 0, false
}

// Duration is a signed nanosecond count.
type Duration int64

// FromParts builds a Duration from a magnitude and unit. The product
// saturates to MaxInt64/MinInt64 on overflow; callers report the
// saturation as a diagnostic rather than failing.
func FromParts(mag int64, u Unit) (Duration, bool) {
	f := unitNanos[u]
	if mag == 0 || f == 1 {
		return Duration(mag), true
	}
	if mag > math.MaxInt64/f {
		return Duration(math.MaxInt64), false
	}
	if mag < math.MinInt64/f {
		return Duration(math.MinInt64), false
	}
	return Duration(mag * f), true
}

// Nanoseconds returns the raw nanosecond count.
func (d Duration) Nanoseconds() int64 { return int64(d) }

// AsUnit converts the duration to whole units, truncating toward zero.
func (d Duration) AsUnit(u Unit) int64 { return int64(d) / unitNanos[u] }

func (d Duration) String() string {
	return fmt.Sprintf("%dns", int64(d))
}
