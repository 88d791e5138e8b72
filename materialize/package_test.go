package materialize

import (
	"testing"

	"github.com/themill/wiz/definition"
)

func parseDef(t *testing.T, raw string) definition.Definition {
	t.Helper()
	d, err := definition.Parse([]byte(raw), "/registries/studio", "/registries/studio/def.json")
	if err != nil {
		t.Fatalf("definition.Parse: %v", err)
	}
	return d
}

func TestMaterializeVariantless(t *testing.T) {
	d := parseDef(t, `{"identifier": "python", "version": "3.9.0", "environ": {"PYTHONPATH": "/lib"}}`)
	c := NewCache()
	pkg, err := c.Materialize(d, -1)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if pkg.QualifiedIdentifier() != "python==3.9.0" {
		t.Errorf("QualifiedIdentifier() = %q, want python==3.9.0", pkg.QualifiedIdentifier())
	}
	if v, ok := pkg.Environ.Get("PYTHONPATH"); !ok || v != "/lib" {
		t.Errorf("Environ[PYTHONPATH] = %q, %v", v, ok)
	}
}

func TestMaterializeVariantOverlaysEnviron(t *testing.T) {
	d := parseDef(t, `{
		"identifier": "maya",
		"version": "2016.1",
		"environ": {"PATH": "/base"},
		"variants": [
			{"identifier": "2016.1", "environ": {"PATH": "/2016"}}
		]
	}`)
	c := NewCache()
	pkg, err := c.Materialize(d, 0)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if v, _ := pkg.Environ.Get("PATH"); v != "/2016" {
		t.Errorf("variant overlay PATH = %q, want /2016", v)
	}
	if pkg.VariantID != "2016.1" {
		t.Errorf("VariantID = %q, want 2016.1", pkg.VariantID)
	}
}

func TestMaterializeCachesByDefinitionAndVariant(t *testing.T) {
	d := parseDef(t, `{"identifier": "maya", "version": "2016.1", "variants": [{"identifier": "2016.1"}]}`)
	c := NewCache()
	p1, err := c.Materialize(d, 0)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	p2, err := c.Materialize(d, 0)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if p1.QualifiedIdentifier() != p2.QualifiedIdentifier() {
		t.Errorf("expected cached materialization to be stable")
	}
}

func TestMaterializeRejectsOutOfRangeVariant(t *testing.T) {
	d := parseDef(t, `{"identifier": "maya", "version": "2016.1"}`)
	c := NewCache()
	if _, err := c.Materialize(d, 0); err == nil {
		t.Errorf("Materialize: expected error for out-of-range variant index")
	}
}

func TestIsAbstract(t *testing.T) {
	d := parseDef(t, `{
		"identifier": "maya",
		"variants": [{"identifier": "2016.1"}, {"identifier": "2017.1"}]
	}`)
	if !IsAbstract(d, "") {
		t.Errorf("expected a variant-bearing definition with no requested extra to be abstract")
	}
	if IsAbstract(d, "2016.1") {
		t.Errorf("expected a requested extra to make the definition concrete")
	}
	variantless := parseDef(t, `{"identifier": "python"}`)
	if IsAbstract(variantless, "") {
		t.Errorf("expected a variant-less definition to never be abstract")
	}
}
