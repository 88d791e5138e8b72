package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBudgets(t *testing.T) {
	cfg := Default()
	if cfg.Resolver.MaxAttempts != 15 || cfg.Resolver.MaxCombinations != 10000 || !cfg.Resolver.IncludeImplicit {
		t.Errorf("Default() = %+v, want MaxAttempts=15 MaxCombinations=10000 IncludeImplicit=true", cfg.Resolver)
	}
}

func TestLoadOverlaysExtraPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
registries = ["/studio/registry"]

[resolver]
max_attempts = 5

[environ]
initial = {PATH = "/usr/bin"}
passthrough = ["HOME"]
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Registries) != 1 || cfg.Registries[0] != "/studio/registry" {
		t.Errorf("Registries = %v, want [/studio/registry]", cfg.Registries)
	}
	if cfg.Resolver.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5 (overlay)", cfg.Resolver.MaxAttempts)
	}
	if cfg.Resolver.MaxCombinations != 10000 {
		t.Errorf("MaxCombinations = %d, want 10000 (default preserved)", cfg.Resolver.MaxCombinations)
	}
	if cfg.Environ.Initial["PATH"] != "/usr/bin" {
		t.Errorf("Environ.Initial[PATH] = %q, want /usr/bin", cfg.Environ.Initial["PATH"])
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Errorf("Load: expected missing config file to be ignored, got %v", err)
	}
}

func TestInitialEnvironPrecedence(t *testing.T) {
	t.Setenv("WIZ_TEST_PASSTHROUGH", "from-shell")
	e := Environ{
		Initial:     map[string]string{"PATH": "/usr/bin", "WIZ_TEST_PASSTHROUGH": "from-initial"},
		Passthrough: []string{"WIZ_TEST_PASSTHROUGH"},
	}
	got := e.InitialEnviron(map[string]string{"PATH": "/override/bin"})
	if got["PATH"] != "/override/bin" {
		t.Errorf("PATH = %q, want override to win", got["PATH"])
	}
	if got["WIZ_TEST_PASSTHROUGH"] != "from-shell" {
		t.Errorf("WIZ_TEST_PASSTHROUGH = %q, want passthrough to beat initial", got["WIZ_TEST_PASSTHROUGH"])
	}
}
