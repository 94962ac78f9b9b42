package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Range is an inclusive span of versions. A nil bound leaves that side unconstrained.
type Range struct {
	Min *Version
	Max *Version
}

// Exact returns a range covering a single declared version. A version written
// without a patch component ("8.1") covers the whole 8.1.x series.
func Exact(s string) Range {
	v := MustParse(s)
	return Range{Min: &v, Max: &v}
}

// Between returns the inclusive range [lower, upper].
func Between(lower, upper string) Range {
	lo, hi := MustParse(lower), MustParse(upper)
	return Range{Min: &lo, Max: &hi}
}

// AtLeast returns the range [lower, ∞).
func AtLeast(lower string) Range {
	lo := MustParse(lower)
	return Range{Min: &lo}
}

// AtMost returns the range (-∞, upper].
func AtMost(upper string) Range {
	hi := MustParse(upper)
	return Range{Max: &hi}
}

// Includes reports whether v lies inside r.
func (r Range) Includes(v Version) bool {
	if v.IsZero() {
		return false
	}
	if r.Min != nil && v.Compare(*r.Min) < 0 {
		return false
	}
	if r.Max != nil && !r.Max.covers(v) {
		return false
	}
	return true
}

// covers reports whether v <= bound when v is compared at bound's precision.
func (bound Version) covers(v Version) bool {
	return semver.Compare(v.truncate(bound.prec), bound.canon) <= 0
}

// Validate reports an error for ranges whose lower bound lies above the upper bound.
func (r Range) Validate() error {
	if r.Min != nil && r.Min.IsZero() {
		return fmt.Errorf("range %s: zero lower bound", r)
	}
	if r.Max != nil && r.Max.IsZero() {
		return fmt.Errorf("range %s: zero upper bound", r)
	}
	if r.Min != nil && r.Max != nil && !r.Max.covers(*r.Min) {
		return fmt.Errorf("range %s: lower bound above upper bound", r)
	}
	return nil
}

// Unbounded reports whether r places no constraint at all.
func (r Range) Unbounded() bool {
	return r.Min == nil && r.Max == nil
}

// Near reports whether v shares major.minor with one of r's bounds. It is used to
// flag installations that miss a range only by a patch release.
func (r Range) Near(v Version) bool {
	same := func(b *Version) bool {
		return b != nil && semver.MajorMinor(b.canon) == semver.MajorMinor(v.canon)
	}
	return same(r.Min) || same(r.Max)
}

func (r Range) String() string {
	if r.Min != nil && r.Max != nil && r.Min.Equal(*r.Max) && r.Min.prec == r.Max.prec {
		return r.Min.String()
	}
	lo, hi := "(*", "*)"
	if r.Min != nil {
		lo = "[" + r.Min.String()
	}
	if r.Max != nil {
		hi = r.Max.String() + "]"
	}
	return lo + ", " + hi
}

// MarshalText renders the range in its String form.
func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
