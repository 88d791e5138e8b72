package resolve

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/registry"
)

func mustParseDef(t *testing.T, jsonSrc, registryPath, filePath string) definition.Definition {
	t.Helper()
	d, err := definition.Parse([]byte(jsonSrc), registryPath, filePath)
	if err != nil {
		t.Fatalf("parsing fixture %s: %v", filePath, err)
	}
	return d
}

func buildTestIndex(defs ...definition.Definition) *registry.Index {
	recs := make([]registry.Record, len(defs))
	for i, d := range defs {
		recs[i] = registry.Record{Definition: d, Registry: d.SourceRegistryPath}
	}
	idx, _ := registry.Build(recs)
	return idx
}

func packageNames(ctx *Context) []string {
	names := make([]string, len(ctx.Packages))
	for i, p := range ctx.Packages {
		names[i] = p.QualifiedIdentifier
	}
	return names
}

// S1: single definition, environ substitution against an initial PATH.
func TestScenarioSingleDefinitionEnvironSubstitution(t *testing.T) {
	foo := mustParseDef(t, `{
		"identifier": "foo",
		"version": "0.1.0",
		"environ": {"PATH": "/a:${PATH}"},
		"command": {"foo": "foo-bin"}
	}`, "reg", "foo.json")

	idx := buildTestIndex(foo)
	opts := DefaultOptions(definition.Descriptor{})
	opts.InitialEnviron = map[string]string{"PATH": "/usr/bin"}

	ctx, err := Resolve(idx, []string{"foo"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := packageNames(ctx); len(got) != 1 || got[0] != "foo==0.1.0" {
		t.Fatalf("got packages %v, want [foo==0.1.0]", got)
	}
	if ctx.Environ["PATH"] != "/a:/usr/bin" {
		t.Errorf("PATH = %q, want %q", ctx.Environ["PATH"], "/a:/usr/bin")
	}
	if ctx.Command["foo"] != "foo-bin" {
		t.Errorf("command.foo = %q, want foo-bin", ctx.Command["foo"])
	}
}

// S2: a conflicting dependency is reconciled by downgrading the parent that
// pulled in the tighter range.
func TestScenarioConflictTriggersParentDowngrade(t *testing.T) {
	defs := []definition.Definition{
		{Identifier: "foo", Version: "1.0.0", Requirements: []string{"bar <2"}, SourceRegistryPath: "reg", SourceFilePath: "foo-1.0.0.json"},
		{Identifier: "foo", Version: "0.5.0", Requirements: []string{"bar <3"}, SourceRegistryPath: "reg", SourceFilePath: "foo-0.5.0.json"},
		{Identifier: "bar", Version: "1.5.0", SourceRegistryPath: "reg", SourceFilePath: "bar-1.5.0.json"},
		{Identifier: "bar", Version: "2.5.0", SourceRegistryPath: "reg", SourceFilePath: "bar-2.5.0.json"},
	}
	idx := buildTestIndex(defs...)
	opts := DefaultOptions(definition.Descriptor{})
	opts.IncludeImplicit = false

	ctx, err := Resolve(idx, []string{"foo", "bar==2.5.0"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := packageNames(ctx)
	want := []string{"bar==2.5.0", "foo==0.5.0"}
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved package set mismatch (-want +got):\n%s", diff)
	}
}

func numpyRegistry() []definition.Definition {
	return []definition.Definition{
		{
			Identifier: "numpy", Version: "1.16.6",
			Variants: []definition.Variant{
				{Identifier: "3.7", Requirements: []string{"python >=3.7, <3.8"}},
				{Identifier: "2.7", Requirements: []string{"python >=2.7, <2.8"}},
			},
			SourceRegistryPath: "reg", SourceFilePath: "numpy.json",
		},
		{Identifier: "python", Version: "3.7.8", SourceRegistryPath: "reg", SourceFilePath: "python-3.7.8.json"},
		{Identifier: "python", Version: "2.7.16", SourceRegistryPath: "reg", SourceFilePath: "python-2.7.16.json"},
	}
}

// S3: variant selection by precedence, and a conflicting explicit pin.
func TestScenarioVariantSelectionByPrecedence(t *testing.T) {
	idx := buildTestIndex(numpyRegistry()...)
	opts := DefaultOptions(definition.Descriptor{})
	opts.IncludeImplicit = false

	ctx, err := Resolve(idx, []string{"numpy"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !containsVariant(ctx, "numpy", "3.7") {
		t.Fatalf("expected numpy[3.7] in %v", packageNames(ctx))
	}

	ctx, err = Resolve(idx, []string{"numpy[2.7]"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !containsVariant(ctx, "numpy", "2.7") {
		t.Fatalf("expected numpy[2.7] in %v", packageNames(ctx))
	}
}

func TestScenarioVariantSelectionConflictingPin(t *testing.T) {
	idx := buildTestIndex(numpyRegistry()...)
	opts := DefaultOptions(definition.Descriptor{})
	opts.IncludeImplicit = false

	_, err := Resolve(idx, []string{"numpy[2.7]", "python==3.*"}, opts, nil)
	if err == nil {
		t.Fatal("expected a GraphResolutionError")
	}
	var resErr *GraphResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("got error %T (%v), want *GraphResolutionError", err, err)
	}
	found := false
	for _, c := range resErr.Conflicts {
		if strings.Contains(c.A.String(), "python") && strings.Contains(c.B.String(), "python") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a recorded python/python conflict, got %v", resErr.Conflicts)
	}
}

func containsVariant(ctx *Context, name, variant string) bool {
	for _, p := range ctx.Packages {
		if strings.HasPrefix(p.QualifiedIdentifier, name+"["+variant+"]==") {
			return true
		}
	}
	return false
}

// S4: conditional activation of an auto-use definition.
func TestScenarioConditionGatesAutoUsePackage(t *testing.T) {
	defs := []definition.Definition{
		{
			Identifier: "project", Version: "1.0.0", AutoUse: true,
			Conditions:   []string{"maya"},
			Requirements: []string{"tdsvn", "maya ==2016.*"},
			SourceRegistryPath: "reg", SourceFilePath: "project.json",
		},
		{Identifier: "maya", Version: "2016.1", SourceRegistryPath: "reg", SourceFilePath: "maya-2016.1.json"},
		{Identifier: "maya", Version: "2018.0", SourceRegistryPath: "reg", SourceFilePath: "maya-2018.0.json"},
		{Identifier: "tdsvn", Version: "1.0.0", SourceRegistryPath: "reg", SourceFilePath: "tdsvn.json"},
		{Identifier: "noise", Version: "1.0.0", SourceRegistryPath: "reg", SourceFilePath: "noise.json"},
	}
	idx := buildTestIndex(defs...)
	opts := DefaultOptions(definition.Descriptor{})

	ctx, err := Resolve(idx, []string{"noise"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := packageNames(ctx); len(got) != 1 || got[0] != "noise==1.0.0" {
		t.Fatalf("got %v, want [noise==1.0.0] (project's condition unmet)", got)
	}

	ctx, err = Resolve(idx, []string{"maya"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := packageNames(ctx)
	wantSorted := []string{"maya==2016.1", "project==1.0.0", "tdsvn==1.0.0"}
	gotSorted := append([]string(nil), got...)
	sort.Strings(gotSorted)
	if diff := cmp.Diff(wantSorted, gotSorted); diff != "" {
		t.Errorf("resolved package set mismatch (-want +got):\n%s", diff)
	}
	if got[0] != "project==1.0.0" {
		t.Errorf("expected project (auto-use) first, at the lowest distance, got order %v", got)
	}
}

// S5: a bare name disambiguates to the namespace matching its own name.
func TestScenarioNamespaceDisambiguation(t *testing.T) {
	defs := []definition.Definition{
		{Identifier: "massive", Namespace: "massive", Version: "1.0.0", SourceRegistryPath: "reg", SourceFilePath: "massive-massive.json"},
		{Identifier: "massive", Namespace: "maya", Version: "1.0.0", SourceRegistryPath: "reg", SourceFilePath: "maya-massive.json"},
	}
	idx := buildTestIndex(defs...)
	opts := DefaultOptions(definition.Descriptor{})
	opts.IncludeImplicit = false

	ctx, err := Resolve(idx, []string{"massive"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := packageNames(ctx); len(got) != 1 || got[0] != "massive::massive==1.0.0" {
		t.Fatalf("got %v, want [massive::massive==1.0.0]", got)
	}
}

// S6: an implicit, auto-use package is prepended ahead of the explicit
// request, so it sits closer to the root and its environ contribution is
// folded in last, ending up outermost in the final value.
func TestScenarioImplicitPackagePrependedForEnviron(t *testing.T) {
	projX := mustParseDef(t, `{
		"identifier": "projX",
		"version": "1.0.0",
		"auto-use": true,
		"environ": {"SHADER_PATH": "/p:${SHADER_PATH}"}
	}`, "reg", "projX.json")
	mtoa := mustParseDef(t, `{
		"identifier": "mtoa",
		"version": "1.0.0",
		"environ": {"SHADER_PATH": "/m:${SHADER_PATH}"}
	}`, "reg", "mtoa.json")

	idx := buildTestIndex(projX, mtoa)
	opts := DefaultOptions(definition.Descriptor{})

	ctx, err := Resolve(idx, []string{"mtoa"}, opts, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.Environ["SHADER_PATH"] != "/p:/m:" {
		t.Errorf("SHADER_PATH = %q, want %q", ctx.Environ["SHADER_PATH"], "/p:/m:")
	}
}

