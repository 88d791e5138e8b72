// Package materialize turns a Definition, together with an optional
// variant selection, into a Package: the unit that is actually placed into
// the resolution graph.
package materialize

import (
	"fmt"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/requirement"
	"github.com/themill/wiz/version"
)

// Package is a materialized definition at a specific version with at most
// one variant selected.
type Package struct {
	Namespace  string
	Name       string
	VariantID  string // empty if the definition has no variants, or none chosen
	Version    version.Version

	Environ definition.Environ
	Command definition.Environ

	Requirements []requirement.Requirement
	Conditions   []requirement.Requirement

	Source definition.Definition
}

// SubjectNamespace, SubjectName, SubjectVariant and SubjectVersion
// implement requirement.Subject, letting requirement.Match operate on a
// Package without the requirement package importing this one.
func (p Package) SubjectNamespace() string { return p.Namespace }
func (p Package) SubjectName() string      { return p.Name }
func (p Package) SubjectVariant() (string, bool) {
	if p.VariantID == "" {
		return "", false
	}
	return p.VariantID, true
}
func (p Package) SubjectVersion() version.Version { return p.Version }

// QualifiedIdentifier renders "<namespace>::<name>[<variant>]==<version>",
// omitting the namespace and variant brackets when absent.
func (p Package) QualifiedIdentifier() string {
	s := ""
	if p.Namespace != "" {
		s += p.Namespace + requirement.NamespaceSeparator
	}
	s += p.Name
	if p.VariantID != "" {
		s += "[" + p.VariantID + "]"
	}
	s += "==" + p.Version.String()
	return s
}

// cache memoizes materialized packages by (definition identity, variant
// index), matching the spec's caching contract: packages are value-equal
// by qualified identifier plus definition source.
type cache struct {
	entries map[cacheKey]Package
}

type cacheKey struct {
	registryPath string
	filePath     string
	variant      string
	hasVariant   bool
}

// NewCache creates an empty materialization cache.
func NewCache() *cache {
	return &cache{entries: make(map[cacheKey]Package)}
}

// Materialize produces a Package from def, selecting variantIndex (an
// index into def.Variants) when non-negative. A negative variantIndex
// means "no variant selected", valid only for variant-less definitions;
// see IsAbstract for when a definition must instead be placed once per
// declared variant.
func (c *cache) Materialize(def definition.Definition, variantIndex int) (Package, error) {
	variantID := ""
	if variantIndex >= 0 {
		if variantIndex >= len(def.Variants) {
			return Package{}, fmt.Errorf("definition %s has no variant at index %d", def.QualifiedIdentifier(), variantIndex)
		}
		variantID = def.Variants[variantIndex].Identifier
	}

	key := cacheKey{
		registryPath: def.SourceRegistryPath,
		filePath:     def.SourceFilePath,
		variant:      variantID,
		hasVariant:   variantIndex >= 0,
	}
	if p, ok := c.entries[key]; ok {
		return p, nil
	}

	v, err := def.ParsedVersion()
	if err != nil {
		return Package{}, err
	}

	environ := toEnviron(def.Environ)
	command := toEnviron(def.Command)
	reqs, err := parseAll(def.Requirements)
	if err != nil {
		return Package{}, err
	}
	conds, err := parseAll(def.Conditions)
	if err != nil {
		return Package{}, err
	}

	if variantIndex >= 0 {
		variant := def.Variants[variantIndex]
		environ = environ.Overlay(toEnviron(variant.Environ))
		command = command.Overlay(toEnviron(variant.Command))
		variantReqs, err := parseAll(variant.Requirements)
		if err != nil {
			return Package{}, err
		}
		reqs = append(append([]requirement.Requirement{}, reqs...), variantReqs...)
	}

	p := Package{
		Namespace:    def.Namespace,
		Name:         def.Identifier,
		VariantID:    variantID,
		Version:      v,
		Environ:      environ,
		Command:      command,
		Requirements: reqs,
		Conditions:   conds,
		Source:       def,
	}
	c.entries[key] = p
	return p, nil
}

// IsAbstract reports whether def has variants but no particular one has
// been pinned by the request: the graph must then enumerate one node per
// declared variant, in declaration order, and track them as a variant
// group.
func IsAbstract(def definition.Definition, requestedExtra string) bool {
	return len(def.Variants) > 0 && requestedExtra == ""
}

func toEnviron(m interface {
	Keys() []string
	Get(string) (string, bool)
}) definition.Environ {
	var e definition.Environ
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		e.Set(k, v)
	}
	return e
}

func parseAll(raw []string) ([]requirement.Requirement, error) {
	reqs := make([]requirement.Requirement, 0, len(raw))
	for _, s := range raw {
		r, err := requirement.Parse(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}
