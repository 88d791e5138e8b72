// Package config loads the user-facing wiz configuration: default registry
// paths and resolver budgets, layered from the built-in defaults in
// Default() and an optional per-user override file, following the same
// layered-TOML-config shape the original tool used.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Resolver holds the resolver budgets a config file may override.
type Resolver struct {
	MaxAttempts     int  `toml:"max_attempts"`
	MaxCombinations int  `toml:"max_combinations"`
	IncludeImplicit bool `toml:"include_implicit"`
}

// Environ configures the minimal environment mapping a resolution is
// seeded with before any package's contribution is folded in: Initial is a
// fixed set of values, Passthrough names variables to copy from the
// process's own environment when set.
type Environ struct {
	Initial     map[string]string `toml:"initial"`
	Passthrough []string          `toml:"passthrough"`
}

// Config is the top-level configuration mapping.
type Config struct {
	Registries []string `toml:"registries"`
	Resolver   Resolver `toml:"resolver"`
	Environ    Environ  `toml:"environ"`
}

// Default returns the built-in configuration used when no file overrides it.
func Default() Config {
	return Config{
		Resolver: Resolver{
			MaxAttempts:     15,
			MaxCombinations: 10000,
			IncludeImplicit: true,
		},
	}
}

// Load layers the built-in configuration from Default() with each of
// extraPaths, in order, and then the user's "~/.wiz/config.toml", which is
// applied last and so wins over the extra paths; each file is applied only for
// the fields it actually sets (a zero value in the file keeps the prior
// layer's value for Resolver; Registries is replaced wholesale since it has
// no sensible per-field merge).
func Load(extraPaths ...string) (Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	paths := extraPaths
	if err == nil {
		paths = append(paths, filepath.Join(home, ".wiz", "config.toml"))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return cfg, err
		}
		var overlay Config
		if _, err := toml.Decode(string(data), &overlay); err != nil {
			return cfg, err
		}
		applyOverlay(&cfg, overlay)
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, overlay Config) {
	if len(overlay.Registries) > 0 {
		cfg.Registries = overlay.Registries
	}
	if overlay.Resolver.MaxAttempts != 0 {
		cfg.Resolver.MaxAttempts = overlay.Resolver.MaxAttempts
	}
	if overlay.Resolver.MaxCombinations != 0 {
		cfg.Resolver.MaxCombinations = overlay.Resolver.MaxCombinations
	}
	cfg.Resolver.IncludeImplicit = overlay.Resolver.IncludeImplicit || cfg.Resolver.IncludeImplicit
	for k, v := range overlay.Environ.Initial {
		if cfg.Environ.Initial == nil {
			cfg.Environ.Initial = make(map[string]string)
		}
		cfg.Environ.Initial[k] = v
	}
	for _, key := range overlay.Environ.Passthrough {
		present := false
		for _, existing := range cfg.Environ.Passthrough {
			if existing == key {
				present = true
				break
			}
		}
		if !present {
			cfg.Environ.Passthrough = append(cfg.Environ.Passthrough, key)
		}
	}
}

// InitialEnviron builds the seed environment for a resolution: e.Initial's
// values, overridden by any of e.Passthrough's variables the process
// environment actually sets, overridden in turn by the caller-supplied
// overrides.
func (e Environ) InitialEnviron(overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(e.Initial)+len(overrides))
	for k, v := range e.Initial {
		merged[k] = v
	}
	for _, key := range e.Passthrough {
		if v, ok := os.LookupEnv(key); ok {
			merged[key] = v
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
