// Package requirement implements the requirement algebra: parsing,
// matching, intersection and conflict detection over version-bounded
// requests for namespaced, variant-capable definitions.
package requirement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/themill/wiz/version"
)

// NamespaceSeparator joins namespace components and separates a namespace
// prefix from the definition name, e.g. "maya::massive".
const NamespaceSeparator = "::"

// Requirement is a parsed request for a definition: an optional namespace,
// a name, at most one variant extra, and a specifier set.
type Requirement struct {
	Namespace string // empty if not specified
	Name      string
	Extra     string // variant identifier, empty if none requested
	Specifier version.SpecifierSet

	raw string
}

func (r Requirement) String() string {
	if r.raw != "" {
		return r.raw
	}
	var b strings.Builder
	if r.Namespace != "" {
		b.WriteString(r.Namespace)
		b.WriteString(NamespaceSeparator)
	}
	b.WriteString(r.Name)
	if r.Extra != "" {
		fmt.Fprintf(&b, "[%s]", r.Extra)
	}
	if !r.Specifier.Empty() {
		b.WriteByte(' ')
		b.WriteString(r.Specifier.String())
	}
	return b.String()
}

// QualifiedName returns the namespace-qualified definition name, suitable
// as a registry lookup key.
func (r Requirement) QualifiedName() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + NamespaceSeparator + r.Name
}

// Error reports a requirement string that failed to parse.
type Error struct {
	Literal string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid requirement %q: %s", e.Literal, e.Reason)
}

// identifierPattern matches "[ns1::[ns2::]]name", stopping before any
// specifier-set or extras suffix that follows the identifier.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+(?:::[A-Za-z0-9_.\-]+)*`)

var extrasPattern = regexp.MustCompile(`^\[([^\]]*)\]`)

// Parse parses a requirement string of the form
// "[ns1::[ns2::]]name[[variant]] specifier-set". A bracketed token with
// more than one comma-separated entry is a parse error: extras must be 0 or
// 1 variant identifiers.
func Parse(s string) (Requirement, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Requirement{}, &Error{Literal: s, Reason: "empty requirement"}
	}

	idMatch := identifierPattern.FindString(trimmed)
	if idMatch == "" {
		return Requirement{}, &Error{Literal: s, Reason: "missing identifier"}
	}
	rest := trimmed[len(idMatch):]

	namespace, name := splitNamespace(idMatch)

	extra := ""
	if m := extrasPattern.FindStringSubmatch(rest); m != nil {
		parts := strings.Split(m[1], ",")
		if len(m[1]) == 0 {
			parts = nil
		}
		if len(parts) > 1 {
			return Requirement{}, &Error{Literal: s, Reason: "multiple extras are not allowed, at most one variant may be requested"}
		}
		if len(parts) == 1 {
			extra = strings.TrimSpace(parts[0])
		}
		rest = rest[len(m[0]):]
	}

	specStr := strings.TrimSpace(rest)
	spec, err := version.ParseSpecifierSet(specStr)
	if err != nil {
		return Requirement{}, &Error{Literal: s, Reason: err.Error()}
	}

	return Requirement{
		Namespace: namespace,
		Name:      name,
		Extra:     extra,
		Specifier: spec,
		raw:       trimmed,
	}, nil
}

// MustParse parses s and panics on error. Intended for tests and literal
// requirements embedded in source.
func MustParse(s string) Requirement {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

func splitNamespace(identifier string) (namespace, name string) {
	idx := strings.LastIndex(identifier, NamespaceSeparator)
	if idx < 0 {
		return "", identifier
	}
	return identifier[:idx], identifier[idx+len(NamespaceSeparator):]
}

// Subject is anything a Requirement can be matched against: a materialized
// package identity. Kept minimal and interface-shaped so this package does
// not need to import the materialize package.
type Subject interface {
	SubjectNamespace() string
	SubjectName() string
	SubjectVariant() (id string, ok bool)
	SubjectVersion() version.Version
}

// Match reports whether pkg satisfies the requirement: name and namespace
// (when the requirement specifies one) must match exactly, the requested
// extra (if any) must equal the package's variant, and the specifier set
// must match the package's version.
func Match(r Requirement, pkg Subject) bool {
	if r.Name != pkg.SubjectName() {
		return false
	}
	if r.Namespace != "" && r.Namespace != pkg.SubjectNamespace() {
		return false
	}
	if r.Extra != "" {
		id, ok := pkg.SubjectVariant()
		if !ok || id != r.Extra {
			return false
		}
	}
	return r.Specifier.Match(pkg.SubjectVersion())
}

// Intersect returns the conjunction specifier set of two requirements that
// must share name (and namespace, where either sets one).
func Intersect(a, b Requirement) (version.SpecifierSet, error) {
	if a.Name != b.Name {
		return version.SpecifierSet{}, fmt.Errorf("cannot intersect requirements for different names %q and %q", a.Name, b.Name)
	}
	if a.Namespace != "" && b.Namespace != "" && a.Namespace != b.Namespace {
		return version.SpecifierSet{}, fmt.Errorf("cannot intersect requirements for different namespaces %q and %q", a.Namespace, b.Namespace)
	}
	return version.Intersect(a.Specifier, b.Specifier), nil
}

// IsOverlapping reports whether the version ranges of a and b could ever
// both match some version.
func IsOverlapping(a, b Requirement) bool {
	return version.IsOverlapping(a.Specifier, b.Specifier)
}

// Combine produces the conjunction requirement used when multiple parents
// require the same definition: it preserves the union of requested extras
// (in practice at most one, since multiple differing extras on the same
// definition are a variant conflict caught elsewhere) and intersects the
// specifier sets.
func Combine(reqs []Requirement) (Requirement, error) {
	if len(reqs) == 0 {
		return Requirement{}, fmt.Errorf("cannot combine zero requirements")
	}
	combined := reqs[0]
	combined.raw = ""
	for _, r := range reqs[1:] {
		spec, err := Intersect(combined, r)
		if err != nil {
			return Requirement{}, err
		}
		combined.Specifier = spec
		if combined.Namespace == "" {
			combined.Namespace = r.Namespace
		}
		if combined.Extra == "" {
			combined.Extra = r.Extra
		}
	}
	return combined, nil
}

// Conflict records that two requirements for the same definition cannot
// both be satisfied by any version.
type Conflict struct {
	DefinitionID string
	A, B         Requirement
}

// CheckConflicting compares the requirements two packages place on shared
// dependency definitions and returns a conflict record for every
// definition-id where their ranges do not overlap.
func CheckConflicting(aReqs, bReqs map[string]Requirement) []Conflict {
	var conflicts []Conflict
	for id, ra := range aReqs {
		rb, ok := bReqs[id]
		if !ok {
			continue
		}
		if !IsOverlapping(ra, rb) {
			conflicts = append(conflicts, Conflict{DefinitionID: id, A: ra, B: rb})
		}
	}
	return conflicts
}
