// Package definition models the declarative, immutable record loaded from a
// registry's JSON files: a definition describes a package (possibly with
// mutually exclusive variants), its environment and command contributions,
// its own requirements and activation conditions.
//
// Discovery and parsing of the registry directory tree itself is an
// external collaborator's job (see internal/discovery); this package
// only defines the record shape, its JSON encoding and its validation.
package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/themill/wiz/requirement"
	"github.com/themill/wiz/version"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("wizidentifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pep440", func(fl validator.FieldLevel) bool {
		_, err := version.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("pep440specifier", func(fl validator.FieldLevel) bool {
		_, err := version.ParseSpecifierSet(fl.Field().String())
		return err == nil
	})
	return v
}

// System constrains a definition to platforms matching the given
// specifiers. Any field left empty imposes no constraint.
type System struct {
	Platform string `json:"platform,omitempty"`
	Arch     string `json:"arch,omitempty"`
	OS       string `json:"os,omitempty" validate:"omitempty,pep440specifier"`
}

// Matches reports whether the system constraint is satisfied by the given
// descriptor of the current system.
func (s System) Matches(d Descriptor) (bool, error) {
	if s.Platform != "" && s.Platform != d.Platform {
		return false, nil
	}
	if s.Arch != "" && s.Arch != d.Arch {
		return false, nil
	}
	if s.OS != "" {
		spec, err := version.ParseSpecifierSet(s.OS)
		if err != nil {
			return false, fmt.Errorf("system os constraint %q: %w", s.OS, err)
		}
		v, err := version.Parse(d.OSVersion)
		if err != nil {
			return false, fmt.Errorf("system os version %q: %w", d.OSVersion, err)
		}
		if !spec.Match(v) {
			return false, nil
		}
	}
	return true, nil
}

// Descriptor identifies the system a resolution is being performed for.
type Descriptor struct {
	Platform  string
	Arch      string
	OSVersion string
}

// Variant is a declared sub-configuration of a definition, overlaying the
// definition's environ, command and requirements when selected.
type Variant struct {
	Identifier      string   `json:"identifier" validate:"required,wizidentifier"`
	Environ         orderMap `json:"environ,omitempty"`
	Command         orderMap `json:"command,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`
	InstallLocation string   `json:"install-location,omitempty"`
}

// orderMap preserves the key order found in the source JSON object, since
// Go's encoding/json does not guarantee map iteration order and the spec's
// overlay semantics are order-sensitive for display purposes (though not
// for the last-writer-wins merge itself).
type orderMap struct {
	keys   []string
	values map[string]string
}

func (m orderMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m.values[k])
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func (m *orderMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object")
	}
	m.values = make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return err
		}
		m.keys = append(m.keys, key)
		m.values[key] = val
	}
	return nil
}

func (m orderMap) Keys() []string { return m.keys }

func (m orderMap) Get(k string) (string, bool) {
	v, ok := m.values[k]
	return v, ok
}

// Definition is the immutable record loaded from a registry JSON file.
type Definition struct {
	Identifier  string  `json:"identifier" validate:"required,wizidentifier"`
	Namespace   string  `json:"namespace,omitempty"`
	Version     string  `json:"version,omitempty" validate:"omitempty,pep440"`
	Description string  `json:"description,omitempty"`
	System      *System `json:"system,omitempty"`

	Environ orderMap `json:"environ,omitempty"`
	Command orderMap `json:"command,omitempty"`

	Requirements []string  `json:"requirements,omitempty"`
	Conditions   []string  `json:"conditions,omitempty"`
	Variants     []Variant `json:"variants,omitempty"`

	AutoUse bool `json:"auto-use,omitempty"`
	Disabled bool `json:"disabled,omitempty"`

	InstallLocation string `json:"install-location,omitempty"`
	InstallRoot     string `json:"install-root,omitempty"`

	// Populated by the registry loader, not by the JSON file itself.
	SourceRegistryPath string `json:"-"`
	SourceFilePath     string `json:"-"`
}

// QualifiedIdentifier returns "namespace::identifier", or bare identifier
// when no namespace is set.
func (d Definition) QualifiedIdentifier() string {
	if d.Namespace == "" {
		return d.Identifier
	}
	return d.Namespace + requirement.NamespaceSeparator + d.Identifier
}

// ParsedVersion returns the definition's version, defaulting to the zero
// version ("0!0") when none was declared. Definitions without an explicit
// version are still orderable and a later "latest wins" comparison still
// applies.
func (d Definition) ParsedVersion() (version.Version, error) {
	if d.Version == "" {
		return version.Zero, nil
	}
	return version.Parse(d.Version)
}

// HasVariant reports whether the definition declares a variant with the
// given identifier.
func (d Definition) HasVariant(identifier string) bool {
	for _, v := range d.Variants {
		if v.Identifier == identifier {
			return true
		}
	}
	return false
}

// Variant looks up a declared variant by identifier.
func (d Definition) Variant(identifier string) (Variant, bool) {
	for _, v := range d.Variants {
		if v.Identifier == identifier {
			return v, true
		}
	}
	return Variant{}, false
}

// errInvalid wraps a validation failure with the offending file path when
// known.
type errInvalid struct {
	path string
	err  error
}

func (e *errInvalid) Error() string {
	if e.path == "" {
		return fmt.Sprintf("invalid definition: %v", e.err)
	}
	return fmt.Sprintf("invalid definition %s: %v", e.path, e.err)
}

func (e *errInvalid) Unwrap() error { return e.err }

// Parse decodes and validates a single definition from JSON bytes, the
// definition's source registry and file path. Unknown top-level keys are
// rejected, as are out-of-grammar "identifier" fields.
func Parse(data []byte, registryPath, filePath string) (Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var d Definition
	if err := dec.Decode(&d); err != nil {
		return Definition{}, &errInvalid{path: filePath, err: err}
	}
	if err := validate.Struct(d); err != nil {
		return Definition{}, &errInvalid{path: filePath, err: err}
	}
	for _, v := range d.Variants {
		if err := validate.Struct(v); err != nil {
			return Definition{}, &errInvalid{path: filePath, err: err}
		}
	}
	d.SourceRegistryPath = registryPath
	d.SourceFilePath = filePath
	return d, nil
}
