// Package version models product versions of an inspected installation and the
// inclusive ranges modules declare compatibility with.
//
// Versions are written as major.minor[.patch]. Ordering is delegated to
// golang.org/x/mod/semver on the canonical form, so "8.1" and "8.1.0" compare equal.
// A Version also remembers how many components it was written with; upper range
// bounds use that precision, which lets a bound of "8.2" cover every 8.2.x release.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a comparable major.minor[.patch] value. The zero value is invalid.
type Version struct {
	canon string // canonical semver form, e.g. "v8.1.0"
	prec  int    // number of components in the source text (2 or 3)
}

// Parse parses a version string such as "8.1", "8.1.3" or "v9.0".
// Surrounding whitespace and a leading "v" are ignored.
func Parse(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "v"), "V")
	if raw == "" {
		return Version{}, fmt.Errorf("parse version %q: empty", s)
	}

	parts := strings.Split(raw, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("parse version %q: want major.minor[.patch]", s)
	}
	for _, p := range parts {
		if p == "" {
			return Version{}, fmt.Errorf("parse version %q: empty component", s)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return Version{}, fmt.Errorf("parse version %q: non-numeric component %q", s, p)
			}
		}
	}

	v := "v" + raw
	if !semver.IsValid(v) {
		return Version{}, fmt.Errorf("parse version %q: invalid", s)
	}
	return Version{canon: semver.Canonical(v), prec: len(parts)}, nil
}

// MustParse is like Parse but panics on error. Intended for static module metadata.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero (unparsed) Version.
func (v Version) IsZero() bool {
	return v.canon == ""
}

// Major returns the major component.
func (v Version) Major() int { return v.component(0) }

// Minor returns the minor component.
func (v Version) Minor() int { return v.component(1) }

// Patch returns the patch component, 0 when it was omitted.
func (v Version) Patch() int { return v.component(2) }

func (v Version) component(i int) int {
	if v.canon == "" {
		return 0
	}
	parts := strings.Split(strings.TrimPrefix(v.canon, "v"), ".")
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.Atoi(parts[i])
	return n
}

// Precision returns the number of components v was written with.
func (v Version) Precision() int {
	return v.prec
}

// Compare returns -1, 0 or +1 depending on whether v is less than, equal to or
// greater than w. Precision is ignored: 8.1 == 8.1.0.
func (v Version) Compare(w Version) int {
	return semver.Compare(v.canon, w.canon)
}

// Equal reports whether v and w denote the same version.
func (v Version) Equal(w Version) bool {
	return v.Compare(w) == 0
}

// Less reports whether v orders before w.
func (v Version) Less(w Version) bool {
	return v.Compare(w) < 0
}

// truncate returns v's canonical form cut down to prec components.
func (v Version) truncate(prec int) string {
	switch prec {
	case 1:
		return semver.Major(v.canon)
	case 2:
		return semver.MajorMinor(v.canon)
	default:
		return v.canon
	}
}

// String returns the version in the precision it was written with, without the "v".
func (v Version) String() string {
	if v.canon == "" {
		return ""
	}
	return strings.TrimPrefix(v.truncate(v.prec), "v")
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
