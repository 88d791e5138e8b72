// Package version implements PEP 440 version parsing and comparison, the
// version algebra that underlies the resolver's requirement matching.
//
// Parsing and ordering are delegated to deps.dev/util/semver's PyPI system,
// which already implements the PEP 440 grammar (epoch, release segments,
// pre/post/dev segments, local version labels) and its total ordering; this
// package is a thin, Wiz-shaped facade over that engine, plus the one PEP
// 440 operator the engine declines to implement (see specifier.go): "===",
// arbitrary equality.
package version

import (
	"fmt"

	"deps.dev/util/semver"
)

// Version is an ordered PEP 440 version.
type Version struct {
	v *semver.Version
}

// Error reports a version string that could not be parsed as PEP 440.
type Error struct {
	Literal string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Literal, e.Reason)
}

// Zero is the implicit version ("0") used for definitions that do not
// declare one. It is orderable against every other version and compares
// equal to an explicitly declared "0".
var Zero = MustParse("0")

// Parse parses s as a PEP 440 version string.
func Parse(s string) (Version, error) {
	v, err := semver.PyPI.Parse(s)
	if err != nil {
		return Version{}, &Error{Literal: s, Reason: err.Error()}
	}
	return Version{v: v}, nil
}

// MustParse parses s and panics on error. Intended for tests and literal
// versions embedded in source.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version as it was originally spelled.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Compare returns -1, 0 or 1 as v orders before, the same as, or after w,
// per PEP 440's total ordering rules.
func (v Version) Compare(w Version) int {
	return v.v.Compare(w.v)
}

// Less reports whether v sorts strictly before w.
func (v Version) Less(w Version) bool { return v.Compare(w) < 0 }

// Equal reports whether v and w denote the same version, ignoring how they
// were originally spelled.
func (v Version) Equal(w Version) bool { return v.Compare(w) == 0 }

// IsPrerelease reports whether the version carries a pre-release or dev
// segment; post-releases alone do not count.
func (v Version) IsPrerelease() bool { return v.v.IsPrerelease() }
