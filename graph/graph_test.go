package graph

import (
	"testing"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/materialize"
	"github.com/themill/wiz/registry"
	"github.com/themill/wiz/requirement"
)

func mustDef(t *testing.T, identifier, version string, reqs ...string) definition.Definition {
	t.Helper()
	return definition.Definition{
		Identifier:         identifier,
		Version:            version,
		Requirements:       reqs,
		SourceRegistryPath: "test",
		SourceFilePath:     identifier + "-" + version + ".json",
	}
}

func buildIndex(t *testing.T, defs ...definition.Definition) *registry.Index {
	t.Helper()
	recs := make([]registry.Record, len(defs))
	for i, d := range defs {
		recs[i] = registry.Record{Definition: d, Registry: "test"}
	}
	idx, _ := registry.Build(recs)
	return idx
}

func TestExpandLinearChain(t *testing.T) {
	idx := buildIndex(t,
		mustDef(t, "app", "1.0.0", "lib >=1, <2"),
		mustDef(t, "lib", "1.2.0", "base >=1"),
		mustDef(t, "lib", "1.0.0", "base >=1"),
		mustDef(t, "base", "1.0.0"),
	)
	mat := materialize.NewCache()
	g := New(idx, mat, nil, definition.Descriptor{}, nil)

	root := requirement.MustParse("app")
	if err := g.Expand([]requirement.Requirement{root}, Root); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if err := g.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}

	ordered := g.OrderedNodes()
	var names []string
	for _, nid := range ordered {
		names = append(names, g.Nodes[nid].Package.Name)
	}
	want := []string{"app", "lib", "base"}
	if len(names) != len(want) {
		t.Fatalf("got nodes %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("position %d: got %q, want %q", i, names[i], n)
		}
	}

	libNode := ordered[1]
	if v := g.Nodes[libNode].Package.Version.String(); v != "1.2.0" {
		t.Errorf("lib resolved to %s, want 1.2.0", v)
	}
}

func TestExpandRecordsMissingDefinition(t *testing.T) {
	idx := buildIndex(t, mustDef(t, "app", "1.0.0", "missing >=1"))
	g := New(idx, materialize.NewCache(), nil, definition.Descriptor{}, nil)

	root := requirement.MustParse("app")
	if err := g.Expand([]requirement.Requirement{root}, Root); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if err := g.Err(); err == nil {
		t.Fatal("expected an error for the missing dependency")
	}
}

func TestVariantGroupYieldsOneCombinationPerVariant(t *testing.T) {
	variantDef := definition.Definition{
		Identifier: "plugin",
		Version:    "1.0.0",
		Variants: []definition.Variant{
			{Identifier: "py2"},
			{Identifier: "py3"},
		},
		SourceRegistryPath: "test",
		SourceFilePath:     "plugin-1.0.0.json",
	}
	idx := buildIndex(t,
		mustDef(t, "app", "1.0.0", "plugin"),
		variantDef,
	)
	g := New(idx, materialize.NewCache(), nil, definition.Descriptor{}, nil)

	root := requirement.MustParse("app")
	if err := g.Expand([]requirement.Requirement{root}, Root); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(g.VariantGroups) != 1 {
		t.Fatalf("got %d variant groups, want 1", len(g.VariantGroups))
	}

	combos := g.GenerateCombinations()
	if len(combos) != 2 {
		t.Fatalf("got %d combinations, want 2 (one per variant)", len(combos))
	}
	for _, c := range combos {
		if len(c.Graph.VariantGroups) != 0 {
			t.Errorf("pruned combination should have no remaining variant groups, got %v", c.Graph.VariantGroups)
		}
	}
}

func TestResolveConflictsCombinesAndDowngrades(t *testing.T) {
	idx := buildIndex(t,
		mustDef(t, "app", "1.0.0", "a >=1", "b >=1"),
		mustDef(t, "a", "1.0.0", "shared >=1, <2"),
		mustDef(t, "b", "1.0.0", "shared >=1.5, <1.8"),
		mustDef(t, "shared", "1.9.0"),
		mustDef(t, "shared", "1.6.0"),
		mustDef(t, "shared", "1.0.0"),
	)
	g := New(idx, materialize.NewCache(), nil, definition.Descriptor{}, nil)
	root := requirement.MustParse("app")
	if err := g.Expand([]requirement.Requirement{root}, Root); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	combos := g.GenerateCombinations()
	if len(combos) != 1 {
		t.Fatalf("got %d combinations, want 1 (no variants)", len(combos))
	}
	combo := combos[0]
	if err := combo.ResolveConflicts(); err != nil {
		t.Fatalf("ResolveConflicts: %v", err)
	}
	if err := combo.Validate(); err != nil {
		t.Fatalf("combination should validate cleanly: %v", err)
	}

	var sharedVersions []string
	for _, nid := range combo.Graph.OrderedNodes() {
		if n := combo.Graph.Nodes[nid]; n.Package.Name == "shared" {
			sharedVersions = append(sharedVersions, n.Package.Version.String())
		}
	}
	if len(sharedVersions) != 1 || sharedVersions[0] != "1.6.0" {
		t.Errorf("got shared versions %v, want a single node downgraded to 1.6.0", sharedVersions)
	}
}
