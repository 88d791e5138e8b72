package resolve

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/themill/wiz/graph"
)

// PackageSummary is the externally visible record for one resolved
// package.
type PackageSummary struct {
	QualifiedIdentifier string `json:"qualified-identifier"`
	Version             string `json:"version"`
	VariantID           string `json:"variant-id,omitempty"`
	DefinitionPath      string `json:"definition-path"`
	RegistryPath        string `json:"registry-path"`
}

// Context is the final output of a resolve call.
type Context struct {
	Packages   []PackageSummary `json:"packages"`
	Environ    map[string]string `json:"environ"`
	Command    map[string]string `json:"command"`
	Registries []string `json:"registries"`
}

// wizContextPayload is the shape encoded into the WIZ_CONTEXT environment
// variable: just enough to reconstitute the resolved state (registries
// and package ids) without rerunning the resolver.
type wizContextPayload struct {
	Registries []string `json:"registries"`
	PackageIDs []string `json:"package-ids"`
}

// EncodeWizContext renders packages and registries as the base64-encoded
// JSON payload placed in the WIZ_CONTEXT environment variable.
func EncodeWizContext(packages []PackageSummary, registries []string) string {
	ids := make([]string, len(packages))
	for i, p := range packages {
		ids[i] = p.QualifiedIdentifier
	}
	payload := wizContextPayload{Registries: registries, PackageIDs: ids}
	data, err := json.Marshal(payload)
	if err != nil {
		// payload is built entirely from plain strings; it cannot fail to
		// marshal.
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeWizContext reverses EncodeWizContext, returning the registries and
// package identifiers it was built from.
func DecodeWizContext(encoded string) (registries []string, packageIDs []string, err error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("decode WIZ_CONTEXT: %w", err)
	}
	var payload wizContextPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode WIZ_CONTEXT: %w", err)
	}
	return payload.Registries, payload.PackageIDs, nil
}

var substitutionPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substitute performs a single, non-recursive pass replacing ${X}
// references in value using accumulated, for the package contribution
// currently being folded into key. A self-reference (${key}) with
// nothing accumulated for it yet is the PATH-augmentation genesis case
// ("${PATH}" when nothing has set PATH so far) and resolves quietly to
// the empty string; any other unresolved reference is left as literal
// text and reported so the caller can warn.
func substitute(value, key string, accumulated map[string]string) (result string, unresolved []string) {
	result = substitutionPattern.ReplaceAllStringFunc(value, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := accumulated[name]; ok {
			return v
		}
		if name == key {
			return ""
		}
		unresolved = append(unresolved, name)
		return m
	})
	return result, unresolved
}

// foldEnviron merges a sequence of per-package key/value pairs into a
// single map, performing single-pass ${X} substitution against the
// accumulated map as each package's contribution is applied (so a key can
// reference its own prior value, e.g. for PATH-style augmentation).
// initial seeds the accumulated map before the first contribution is
// folded in, so the first package's reference to a variable can resolve
// against the caller's ambient environment rather than only earlier
// packages. contributions must be supplied in descending-distance order
// (the package farthest from the root folded first, the closest and
// therefore highest-priority package folded last), so that a high
// priority package's own augmentation ends up outermost in the final
// value, as in "projX prepends its own path ahead of whatever its more
// distant dependencies already contributed."
func foldEnviron(contributions []orderedPairs, initial map[string]string) (map[string]string, []string) {
	merged := make(map[string]string, len(initial))
	for k, v := range initial {
		merged[k] = v
	}
	var warnings []string
	for _, c := range contributions {
		for _, kv := range c.pairs {
			resolved, unresolved := substitute(kv.value, kv.key, merged)
			for _, u := range unresolved {
				warnings = append(warnings, fmt.Sprintf("unresolved reference ${%s} in %s", u, kv.key))
			}
			merged[kv.key] = resolved
		}
	}
	return merged, warnings
}

type orderedPairs struct {
	pairs []keyValue
}

type keyValue struct {
	key, value string
}

// buildPackageSummaries converts every node in ordered into its external
// summary form.
func buildPackageSummaries(g *graph.Graph, ordered []graph.NodeID) []PackageSummary {
	out := make([]PackageSummary, 0, len(ordered))
	for _, nid := range ordered {
		pkg := g.Nodes[nid].Package
		out = append(out, PackageSummary{
			QualifiedIdentifier: pkg.QualifiedIdentifier(),
			Version:             pkg.Version.String(),
			VariantID:           pkg.VariantID,
			DefinitionPath:      pkg.Source.SourceFilePath,
			RegistryPath:        pkg.Source.SourceRegistryPath,
		})
	}
	return out
}

func variantUniquenessHolds(g *graph.Graph, ordered []graph.NodeID) bool {
	seen := make(map[string]bool)
	for _, nid := range ordered {
		defID := g.Nodes[nid].DefinitionID
		if seen[defID] {
			return false
		}
		seen[defID] = true
	}
	return true
}
