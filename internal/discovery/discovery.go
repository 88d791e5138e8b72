// Package discovery walks a registry directory tree and parses the
// definition files found there into registry.Record values, the external
// collaborator the resolver core deliberately does not depend on.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/registry"
)

// Walk parses every ".json" file under root, recursively, and returns one
// Record per definition found. Files are visited in lexical path order so
// that discovery is deterministic across platforms. A file that fails to
// parse is skipped and appended to the returned error list rather than
// aborting the whole walk, since a single malformed definition in a large
// registry shouldn't prevent using the rest of it.
func Walk(root string) ([]registry.Record, []error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, []error{fmt.Errorf("walking registry %s: %w", root, err)}
	}
	sort.Strings(paths)

	var records []registry.Record
	var errs []error
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", path, err))
			continue
		}
		def, err := definition.Parse(data, root, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, registry.Record{Definition: def, Registry: root})
	}
	return records, errs
}

// Fetch parses every registry path in order, concatenating their records.
// Since registry.Build treats later records for the same command as
// overriding earlier ones, and gives later auto-use definitions higher
// implicit-package priority, paths should be ordered from lowest to highest
// priority (the same convention the original tool used: shared registries
// first, a per-project registry next, the user's local registry last).
func Fetch(paths []string) ([]registry.Record, []error) {
	var records []registry.Record
	var errs []error
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		recs, werrs := Walk(p)
		records = append(records, recs...)
		errs = append(errs, werrs...)
	}
	return records, errs
}

// LocalRegistry returns the user-local registry path (~/.wiz/registry) when
// it exists and is a directory, mirroring the original tool's "local registry".
func LocalRegistry() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(home, ".wiz", "registry")
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}
