package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/themill/wiz/definition"
)

// marshalRecords is used only by tests to seed a fixture registry tree.
func marshalRecords(defs []definition.Definition) ([][]byte, error) {
	out := make([][]byte, 0, len(defs))
	for _, d := range defs {
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func writeFixture(t *testing.T, dir string, defs []definition.Definition) {
	t.Helper()
	blobs, err := marshalRecords(defs)
	if err != nil {
		t.Fatalf("marshalRecords: %v", err)
	}
	for i, b := range blobs {
		name := filepath.Join(dir, defs[i].Identifier+".json")
		if err := os.WriteFile(name, b, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestWalkParsesEveryDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, dir, []definition.Definition{{Identifier: "foo", Version: "1.0.0"}})
	writeFixture(t, filepath.Join(dir, "nested"), []definition.Definition{{Identifier: "bar", Version: "2.0.0"}})

	records, errs := Walk(dir)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	var ids []string
	for _, r := range records {
		ids = append(ids, r.Definition.Identifier)
		if r.Registry != dir {
			t.Errorf("record %s: registry = %q, want %q", r.Definition.Identifier, r.Registry, dir)
		}
	}
	if ids[0] != "bar" || ids[1] != "foo" {
		t.Errorf("expected lexical path order [bar foo], got %v", ids)
	}
}

func TestWalkSkipsInvalidDefinitionsButReportsThem(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"identifier": ""}`), 0o644); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, dir, []definition.Definition{{Identifier: "good", Version: "1.0.0"}})

	records, errs := Walk(dir)
	if len(records) != 1 || records[0].Definition.Identifier != "good" {
		t.Fatalf("expected only the valid definition, got %+v", records)
	}
	if len(errs) != 1 {
		t.Fatalf("want 1 error, got %d", len(errs))
	}
}

func TestFetchConcatenatesRegistriesInOrder(t *testing.T) {
	shared := t.TempDir()
	project := t.TempDir()
	writeFixture(t, shared, []definition.Definition{{Identifier: "common", Version: "1.0.0"}})
	writeFixture(t, project, []definition.Definition{{Identifier: "local", Version: "1.0.0"}})

	records, errs := Fetch([]string{shared, project})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].Registry != shared || records[1].Registry != project {
		t.Fatalf("registries not in call order: %+v", records)
	}
}
