// Package registry builds the definition lookup index used by the
// resolver: given a stream of discovered definition records it produces a
// qualified-identifier-keyed, version-ordered index, a command reverse
// index, and the ordered list of implicit ("auto-use") package requests.
//
// Discovery and parsing of the registry directory tree itself (walking the
// filesystem, reading JSON files) is an external collaborator; this
// package only consumes the records it yields.
package registry

import (
	"fmt"
	"sort"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/requirement"
)

// Record pairs a definition with the registry path it was discovered
// under, the unit the external discovery collaborator streams to Build.
type Record struct {
	Definition definition.Definition
	Registry   string
}

// Index is the read-only, queryable view over a set of discovered
// definitions. It is safe for concurrent reads once built.
type Index struct {
	// byQualifiedName maps "namespace::identifier" (or bare identifier) to
	// its definitions, ordered by descending version.
	byQualifiedName map[string][]definition.Definition

	// commandIndex maps a command name to the qualified identifier of the
	// definition that last claimed it.
	commandIndex map[string]string

	// namespaceIndex maps a bare identifier to the set of namespaces it
	// has been seen under.
	namespaceIndex map[string]map[string]bool

	// namespaceCounter counts occurrences of each namespace across all
	// discovered definitions, used to break disambiguation ties.
	namespaceCounter map[string]int

	// ImplicitPackages holds the requirement for the latest version of
	// every auto-use definition, ordered with highest priority first
	// (reverse of discovery order, so later/deeper registries win ties).
	ImplicitPackages []requirement.Requirement

	// Registries lists every registry path seen, in discovery order.
	Registries []string
}

// DebugRecord captures a non-fatal event worth surfacing to a caller's
// logger, such as a command being claimed by a later registry.
type DebugRecord struct {
	Message string
}

// Build constructs an Index from a stream of discovered records. records
// must be presented in discovery order: later records for the same
// command override earlier ones.
func Build(records []Record) (*Index, []DebugRecord) {
	idx := &Index{
		byQualifiedName:  make(map[string][]definition.Definition),
		commandIndex:     make(map[string]string),
		namespaceIndex:   make(map[string]map[string]bool),
		namespaceCounter: make(map[string]int),
	}

	seenRegistries := make(map[string]bool)
	var implicitIDs []string
	implicitVersions := make(map[string]definition.Definition)

	var debug []DebugRecord

	for _, rec := range records {
		d := rec.Definition
		if !seenRegistries[rec.Registry] {
			seenRegistries[rec.Registry] = true
			idx.Registries = append(idx.Registries, rec.Registry)
		}

		qid := d.QualifiedIdentifier()
		idx.byQualifiedName[qid] = append(idx.byQualifiedName[qid], d)

		if d.Namespace != "" {
			if idx.namespaceIndex[d.Identifier] == nil {
				idx.namespaceIndex[d.Identifier] = make(map[string]bool)
			}
			idx.namespaceIndex[d.Identifier][d.Namespace] = true
			idx.namespaceCounter[d.Namespace]++
		}

		for _, cmd := range d.Command.Keys() {
			if prev, ok := idx.commandIndex[cmd]; ok && prev != qid {
				debug = append(debug, DebugRecord{
					Message: fmt.Sprintf("command %q reassigned from %s to %s", cmd, prev, qid),
				})
			}
			idx.commandIndex[cmd] = qid
		}

		if d.AutoUse {
			if _, ok := implicitVersions[qid]; !ok {
				implicitIDs = append(implicitIDs, qid)
			}
			if existing, ok := implicitVersions[qid]; !ok || versionLess(existing, d) {
				implicitVersions[qid] = d
			}
		}
	}

	for qid, versions := range idx.byQualifiedName {
		sort.Slice(versions, func(i, j int) bool {
			vi, _ := versions[i].ParsedVersion()
			vj, _ := versions[j].ParsedVersion()
			return vi.Compare(vj) > 0 // descending
		})
		idx.byQualifiedName[qid] = versions
	}

	// Implicit packages are emitted in reverse discovery order, giving
	// priority to the latest-discovered auto-use definitions.
	for i := len(implicitIDs) - 1; i >= 0; i-- {
		qid := implicitIDs[i]
		d := implicitVersions[qid]
		req, err := requirement.Parse(d.QualifiedIdentifier())
		if err != nil {
			continue
		}
		idx.ImplicitPackages = append(idx.ImplicitPackages, req)
	}

	return idx, debug
}

func versionLess(a, b definition.Definition) bool {
	va, _ := a.ParsedVersion()
	vb, _ := b.ParsedVersion()
	return va.Less(vb)
}

// Error reports a lookup failure in the registry.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func errAmbiguousNamespace(name string, namespaces []string) error {
	sort.Strings(namespaces)
	return &Error{Reason: fmt.Sprintf("ambiguous namespace for %q: %v", name, namespaces)}
}

func errNotFound(req requirement.Requirement) error {
	return &Error{Reason: fmt.Sprintf("no definition found for %q", req.String())}
}

// Fetch resolves req to a single definition, applying the namespace
// disambiguation algorithm and then selecting the highest version that
// satisfies req's specifier set (and, if req carries a variant extra,
// that declares that variant), restricted to versions compatible with
// descriptor's system.
//
// namespaceHints, when non-empty, biases disambiguation toward namespaces
// already seen among the caller's other requirements.
func (idx *Index) Fetch(req requirement.Requirement, namespaceHints map[string]bool, descriptor definition.Descriptor) (definition.Definition, error) {
	return idx.FetchExcluding(req, namespaceHints, descriptor, nil)
}

// FetchExcluding behaves like Fetch but skips any version present in
// excludedVersions (keyed by "qualified-identifier==version"), used by the
// resolver driver to force a downgrade past a version that was already
// tried and found to conflict.
func (idx *Index) FetchExcluding(req requirement.Requirement, namespaceHints map[string]bool, descriptor definition.Descriptor, excludedVersions map[string]bool) (definition.Definition, error) {
	qualifiedName, err := idx.resolveNamespace(req, namespaceHints)
	if err != nil {
		return definition.Definition{}, err
	}

	versions := idx.byQualifiedName[qualifiedName]
	if len(versions) == 0 {
		return definition.Definition{}, errNotFound(req)
	}

	for _, d := range versions {
		v, err := d.ParsedVersion()
		if err != nil {
			continue
		}
		if !req.Specifier.Match(v) {
			continue
		}
		if req.Extra != "" && !d.HasVariant(req.Extra) {
			continue
		}
		if excludedVersions[qualifiedName+"=="+v.String()] {
			continue
		}
		if d.System != nil {
			ok, err := d.System.Matches(descriptor)
			if err != nil {
				return definition.Definition{}, err
			}
			if !ok {
				continue
			}
		}
		return d, nil
	}
	return definition.Definition{}, errNotFound(req)
}

// HasSatisfyingExcluding reports whether the registry holds any version of
// the already-qualified definition qualifiedName that satisfies req's
// specifier set (and extra, if any) once excludedVersions is applied,
// restricted to descriptor's system. Unlike FetchExcluding it takes a
// qualified name directly rather than re-running namespace disambiguation,
// since the caller (the resolver driver, deciding whether a downgrade can
// make progress) already knows the definition-id it wants to check.
func (idx *Index) HasSatisfyingExcluding(qualifiedName string, req requirement.Requirement, descriptor definition.Descriptor, excludedVersions map[string]bool) bool {
	for _, d := range idx.byQualifiedName[qualifiedName] {
		v, err := d.ParsedVersion()
		if err != nil {
			continue
		}
		if !req.Specifier.Match(v) {
			continue
		}
		if req.Extra != "" && !d.HasVariant(req.Extra) {
			continue
		}
		if excludedVersions[qualifiedName+"=="+v.String()] {
			continue
		}
		if d.System != nil {
			ok, err := d.System.Matches(descriptor)
			if err != nil || !ok {
				continue
			}
		}
		return true
	}
	return false
}

func (idx *Index) resolveNamespace(req requirement.Requirement, hints map[string]bool) (string, error) {
	if req.Namespace != "" {
		return req.QualifiedName(), nil
	}

	known := idx.namespaceIndex[req.Name]
	if len(known) == 0 {
		// No namespace ever seen for this bare name; it may still exist
		// unqualified.
		return req.Name, nil
	}
	if len(known) == 1 {
		for ns := range known {
			return ns + requirement.NamespaceSeparator + req.Name, nil
		}
	}

	// More than one namespace is known. Prefer a namespace equal to the
	// bare name itself (e.g. "massive" over "maya::massive").
	if known[req.Name] {
		return req.Name + requirement.NamespaceSeparator + req.Name, nil
	}

	if len(hints) > 0 {
		var candidates []string
		for ns := range known {
			if hints[ns] {
				candidates = append(candidates, ns)
			}
		}
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool {
				ci, cj := idx.namespaceCounter[candidates[i]], idx.namespaceCounter[candidates[j]]
				if ci != cj {
					return ci > cj
				}
				return candidates[i] < candidates[j]
			})
			return candidates[0] + requirement.NamespaceSeparator + req.Name, nil
		}
	}

	var all []string
	for ns := range known {
		all = append(all, ns)
	}
	return "", errAmbiguousNamespace(req.Name, all)
}

// FetchFromCommand resolves a command name to the qualified identifier of
// the definition that provides it.
func (idx *Index) FetchFromCommand(command string) (string, bool) {
	qid, ok := idx.commandIndex[command]
	return qid, ok
}
