// FILE: lixenwraith/classconfig/declarations.go
package classconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// ExtensionsKey is the reserved configuration key listing the extensions applied to a class
const ExtensionsKey = "extensions"

// ClassKind distinguishes ordinary classes from extension types
type ClassKind int

const (
	// KindClass is an ordinary class
	KindClass ClassKind = iota
	// KindExtension is a type that may be applied to other classes
	KindExtension
)

func (k ClassKind) String() string {
	if k == KindExtension {
		return "extension"
	}
	return "class"
}

// ExtraConfigProvider is implemented by extension types whose contributed
// configuration depends on how they were attached. host is the class the
// extension is applied to, extension is the applied extension's name and args
// are the call-spec arguments.
type ExtraConfigProvider interface {
	ExtraConfig(host, extension string, args []any) (map[string]any, error)
}

// ExtraConfigFunc adapts a function to ExtraConfigProvider
type ExtraConfigFunc func(host, extension string, args []any) (map[string]any, error)

// ExtraConfig calls f
func (f ExtraConfigFunc) ExtraConfig(host, extension string, args []any) (map[string]any, error) {
	return f(host, extension, args)
}

// classDecl is a single declared type
type classDecl struct {
	parent   string
	kind     ClassKind
	provider ExtraConfigProvider
}

// Declarations is an immutable, validated snapshot of a class system: its
// hierarchy, extension types and the raw configuration declared directly on
// each class. It is safe for concurrent use.
type Declarations struct {
	classes     map[string]classDecl
	raw         map[string]map[string]any
	names       []string
	fingerprint string
	// specs holds every call-spec found in raw, parsed once per snapshot
	specs map[string]ExtensionSpec
}

// newDeclarations validates the hierarchy and computes the fingerprint.
// It takes ownership of classes and raw.
func newDeclarations(classes map[string]classDecl, raw map[string]map[string]any) (*Declarations, error) {
	d := &Declarations{
		classes: classes,
		raw:     raw,
		names:   make([]string, 0, len(classes)),
	}
	for name := range classes {
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)

	for _, name := range d.names {
		if _, err := d.Ancestry(name); err != nil {
			return nil, err
		}
	}
	for name := range raw {
		if _, ok := classes[name]; !ok {
			return nil, fmt.Errorf("configuration declared for undeclared class: %w", &ClassNotFoundError{Class: name})
		}
	}

	if err := d.parseSpecs(); err != nil {
		return nil, err
	}

	fp, err := d.computeFingerprint()
	if err != nil {
		return nil, err
	}
	d.fingerprint = fp
	return d, nil
}

// parseSpecs parses the extensions of every class so resolution only looks
// them up. A malformed extensions value fails the snapshot.
func (d *Declarations) parseSpecs() error {
	d.specs = make(map[string]ExtensionSpec)
	for _, name := range d.names {
		value, ok := d.raw[name][ExtensionsKey]
		if !ok {
			continue
		}
		raw, err := extensionStrings(value)
		if err != nil {
			return fmt.Errorf("class %q: %w", name, err)
		}
		for _, s := range raw {
			if _, seen := d.specs[s]; seen {
				continue
			}
			spec, err := ParseCallSpec(s)
			if err != nil {
				return fmt.Errorf("class %q: %w", name, err)
			}
			d.specs[s] = spec
		}
	}
	return nil
}

// extensionSpecs returns the parsed call-specs of an extensions value,
// parsing only those not declared in the snapshot
func (d *Declarations) extensionSpecs(value any) ([]ExtensionSpec, error) {
	raw, err := extensionStrings(value)
	if err != nil {
		return nil, err
	}
	specs := make([]ExtensionSpec, 0, len(raw))
	for _, s := range raw {
		spec, ok := d.specs[s]
		if !ok {
			if spec, err = ParseCallSpec(s); err != nil {
				return nil, err
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Has reports whether class is declared
func (d *Declarations) Has(class string) bool {
	_, ok := d.classes[class]
	return ok
}

// Classes returns all declared class names in sorted order
func (d *Declarations) Classes() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Kind returns the kind of a declared class
func (d *Declarations) Kind(class string) (ClassKind, error) {
	decl, ok := d.classes[class]
	if !ok {
		return KindClass, &ClassNotFoundError{Class: class}
	}
	return decl.kind, nil
}

// Parent returns the direct parent of class, or "" for a root class
func (d *Declarations) Parent(class string) (string, error) {
	decl, ok := d.classes[class]
	if !ok {
		return "", &ClassNotFoundError{Class: class}
	}
	return decl.parent, nil
}

// Ancestry returns the ancestors of class from the root class to class itself.
func (d *Declarations) Ancestry(class string) ([]string, error) {
	if _, ok := d.classes[class]; !ok {
		return nil, &ClassNotFoundError{Class: class}
	}

	var chain []string
	seen := make(map[string]bool)
	for current := class; current != ""; {
		if seen[current] {
			return nil, &CyclicAncestryError{Class: class, Chain: append(chain, current)}
		}
		seen[current] = true

		decl, ok := d.classes[current]
		if !ok {
			return nil, &ClassNotFoundError{Class: current, Referrer: chain[len(chain)-1]}
		}
		chain = append(chain, current)
		current = decl.parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Raw returns a copy of the configuration declared directly on class, with
// no inherited or extension-contributed values.
func (d *Declarations) Raw(class string) (ClassConfig, error) {
	if _, ok := d.classes[class]; !ok {
		return nil, &ClassNotFoundError{Class: class}
	}
	return ClassConfig(deepCopyMap(d.raw[class])), nil
}

// extension returns the declaration of an extension type
func (d *Declarations) extension(name string) (classDecl, bool) {
	decl, ok := d.classes[name]
	if !ok || decl.kind != KindExtension {
		return classDecl{}, false
	}
	return decl, true
}

// Fingerprint identifies the content of the snapshot. Snapshots with equal
// declarations have equal fingerprints.
func (d *Declarations) Fingerprint() string {
	return d.fingerprint
}

// fingerprintClass is the msgpack shape hashed for one class
type fingerprintClass struct {
	Name        string         `msgpack:"name"`
	Parent      string         `msgpack:"parent"`
	Kind        int            `msgpack:"kind"`
	HasProvider bool           `msgpack:"provider"`
	Raw         map[string]any `msgpack:"raw"`
}

func (d *Declarations) computeFingerprint() (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)

	for _, name := range d.names {
		decl := d.classes[name]
		entry := fingerprintClass{
			Name:        name,
			Parent:      decl.parent,
			Kind:        int(decl.kind),
			HasProvider: decl.provider != nil,
			Raw:         d.raw[name],
		}
		if err := enc.Encode(&entry); err != nil {
			return "", fmt.Errorf("failed to encode declarations of %q: %w", name, err)
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// withExtension returns a copy of d with specs appended to the extensions of
// class. The receiver is not modified.
func (d *Declarations) withExtension(class string, specs []string) (*Declarations, error) {
	if _, ok := d.classes[class]; !ok {
		return nil, &ClassNotFoundError{Class: class}
	}

	classes := make(map[string]classDecl, len(d.classes))
	for k, v := range d.classes {
		classes[k] = v
	}
	raw := make(map[string]map[string]any, len(d.raw))
	for k, v := range d.raw {
		raw[k] = v
	}

	inherited, err := d.inheritedExtensions(class)
	if err != nil {
		return nil, err
	}
	merged, err := appendExtensions(inherited, specs)
	if err != nil {
		return nil, fmt.Errorf("class %q: %w", class, err)
	}

	own := deepCopyMap(d.raw[class])
	own[ExtensionsKey] = merged
	raw[class] = own

	return newDeclarations(classes, raw)
}

// inheritedExtensions returns the extensions value class sees after
// inheritance, before any new extension is applied.
func (d *Declarations) inheritedExtensions(class string) (any, error) {
	ancestry, err := d.Ancestry(class)
	if err != nil {
		return nil, err
	}
	acc := make(map[string]any)
	for _, ancestor := range ancestry {
		if v, ok := d.raw[ancestor][ExtensionsKey]; ok {
			mergeInto(acc, map[string]any{ExtensionsKey: v})
		}
	}
	return acc[ExtensionsKey], nil
}
