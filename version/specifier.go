package version

import (
	"strings"

	"deps.dev/util/semver"
)

// SpecifierSet is a conjunction of PEP 440 specifiers, e.g. ">=1.2,!=1.3.*".
//
// Every operator except "===" (arbitrary equality) is parsed and matched by
// deps.dev/util/semver's PyPI constraint engine, which already implements
// the full PEP 440 comparison and wildcard-matching grammar. "===" is
// documented there as unimplemented (its interval builder has a standing
// TODO for the operator), so it is handled separately here as a plain
// string-equality side constraint, exactly as PEP 440 defines it: no
// version normalization, just the raw right-hand side compared verbatim.
type SpecifierSet struct {
	c         *semver.Constraint
	arbitrary []string
	raw       string
}

func (s SpecifierSet) String() string {
	return s.raw
}

// Empty reports whether the set carries no specifiers, matching every
// version.
func (s SpecifierSet) Empty() bool { return s.c == nil && len(s.arbitrary) == 0 }

// Match reports whether v satisfies every specifier in the set.
func (s SpecifierSet) Match(v Version) bool {
	for _, lit := range s.arbitrary {
		if v.String() != lit {
			return false
		}
	}
	if s.c == nil {
		return true
	}
	return s.c.MatchVersion(v.v)
}

// ParseSpecifierSet parses a comma-separated conjunction of specifiers.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return SpecifierSet{}, nil
	}

	var rest []string
	var arbitrary []string
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if lit, ok := strings.CutPrefix(part, "==="); ok {
			arbitrary = append(arbitrary, strings.TrimSpace(lit))
			continue
		}
		rest = append(rest, part)
	}

	set := SpecifierSet{raw: trimmed, arbitrary: arbitrary}
	if len(rest) > 0 {
		c, err := semver.PyPI.ParseConstraint(strings.Join(rest, ","))
		if err != nil {
			return SpecifierSet{}, &Error{Literal: s, Reason: err.Error()}
		}
		set.c = c
	}
	return set, nil
}

// Intersect returns the conjunction of a and b: every specifier present in
// either set must hold.
func Intersect(a, b SpecifierSet) SpecifierSet {
	out := SpecifierSet{
		raw:       joinRaw(a.raw, b.raw),
		arbitrary: append(append([]string{}, a.arbitrary...), b.arbitrary...),
	}
	switch {
	case a.c == nil:
		out.c = b.c
	case b.c == nil:
		out.c = a.c
	default:
		merged := a.c.Set()
		if err := merged.Intersect(b.c.Set()); err == nil {
			if c, err := semver.PyPI.ParseSetConstraint(merged.String()); err == nil {
				out.c = c
			}
		}
	}
	return out
}

func joinRaw(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "," + b
	}
}

// IsOverlapping reports whether the ranges implied by a and b could ever
// both match some version.
func IsOverlapping(a, b SpecifierSet) bool {
	if a.c != nil && b.c != nil {
		merged := a.c.Set()
		if err := merged.Intersect(b.c.Set()); err != nil || merged.Empty() {
			return false
		}
	}
	if len(a.arbitrary) == 0 && len(b.arbitrary) == 0 {
		return true
	}
	for _, lit := range a.arbitrary {
		if !b.matchLiteral(lit) {
			return false
		}
	}
	for _, lit := range b.arbitrary {
		if !a.matchLiteral(lit) {
			return false
		}
	}
	return true
}

// matchLiteral reports whether the literal version string lit (the
// right-hand side of an "===" specifier) satisfies s: every arbitrary
// literal s itself carries must equal lit exactly, and any ordinary
// constraint it carries must match the parsed version.
func (s SpecifierSet) matchLiteral(lit string) bool {
	for _, a := range s.arbitrary {
		if a != lit {
			return false
		}
	}
	if s.c == nil {
		return true
	}
	v, err := Parse(lit)
	if err != nil {
		return false
	}
	return s.c.MatchVersion(v.v)
}
