// FILE: lixenwraith/classconfig/registry.go
package classconfig

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// fragmentSet holds the configuration declared on one class, per source
type fragmentSet map[Source]map[string]any

// Registry collects class declarations and their configuration fragments
// during initialization. Snapshot freezes it into immutable Declarations.
// All methods are safe for concurrent use.
type Registry struct {
	classes    map[string]classDecl
	fragments  map[string]fragmentSet
	options    LoadOptions
	tagName    string
	fileFormat string
	files      []string
	mutex      sync.RWMutex
}

// NewRegistry creates an empty Registry with default load options
func NewRegistry() *Registry {
	return NewRegistryWithOptions(DefaultLoadOptions())
}

// NewRegistryWithOptions creates an empty Registry with custom load options
func NewRegistryWithOptions(opts LoadOptions) *Registry {
	if len(opts.Sources) == 0 {
		opts.Sources = DefaultLoadOptions().Sources
	}
	return &Registry{
		classes:    make(map[string]classDecl),
		fragments:  make(map[string]fragmentSet),
		options:    opts,
		tagName:    "toml",
		fileFormat: "auto",
	}
}

// SetTagName sets the struct tag RegisterStruct reads key names from
func (r *Registry) SetTagName(tag string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if tag != "" {
		r.tagName = tag
	}
}

// SetLoadOptions replaces the source precedence and loading options
func (r *Registry) SetLoadOptions(opts LoadOptions) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(opts.Sources) == 0 {
		opts.Sources = DefaultLoadOptions().Sources
	}
	r.options = opts
}

// DeclareClass declares class with an optional parent. Re-declaring a class
// with the same parent is a no-op.
func (r *Registry) DeclareClass(name, parent string) error {
	return r.declare(name, parent, KindClass, nil)
}

// DeclareExtension declares an extension type. provider may be nil. Declaring
// an already known extension with the same parent attaches provider to it.
func (r *Registry) DeclareExtension(name, parent string, provider ExtraConfigProvider) error {
	return r.declare(name, parent, KindExtension, provider)
}

func (r *Registry) declare(name, parent string, kind ClassKind, provider ExtraConfigProvider) error {
	if !isValidClassName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidClassName, name)
	}
	if parent != "" && !isValidClassName(parent) {
		return fmt.Errorf("%w: parent %q of %q", ErrInvalidClassName, parent, name)
	}
	if parent == name {
		return &CyclicAncestryError{Class: name, Chain: []string{name, name}}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.classes[name]; ok {
		if existing.parent != parent || existing.kind != kind {
			return fmt.Errorf("%w: %q already declared as %s extending %q",
				ErrConflictingDeclaration, name, existing.kind, existing.parent)
		}
		if provider != nil {
			existing.provider = provider
			r.classes[name] = existing
		}
		return nil
	}

	r.classes[name] = classDecl{parent: parent, kind: kind, provider: provider}
	return nil
}

// Classes returns the declared class names in sorted order
func (r *Registry) Classes() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the declaration files loaded so far, in load order
func (r *Registry) Files() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]string(nil), r.files...)
}

// SetConfig merges fragment into the configuration declared on class by source.
// Keys already present for that source are overridden by fragment.
func (r *Registry) SetConfig(class string, source Source, fragment map[string]any) error {
	if !isValidClassName(class) {
		return fmt.Errorf("%w: %q", ErrInvalidClassName, class)
	}
	normalized, err := normalizeMap(fragment)
	if err != nil {
		return fmt.Errorf("config of %q: %w", class, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	fs := r.fragmentsFor(class)
	if fs[source] == nil {
		fs[source] = make(map[string]any)
	}
	mergeInto(fs[source], normalized)
	return nil
}

// Set sets a dot-notation path on class in the runtime source
func (r *Registry) Set(class, path string, value any) error {
	return r.SetSource(class, SourceRuntime, path, value)
}

// SetSource sets a dot-notation path on class for a specific source
func (r *Registry) SetSource(class string, source Source, path string, value any) error {
	if !isValidClassName(class) {
		return fmt.Errorf("%w: %q", ErrInvalidClassName, class)
	}
	if !validatePath(path) {
		return fmt.Errorf("invalid path %q for class %q", path, class)
	}
	normalized, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("value of %s.%s: %w", class, path, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	fs := r.fragmentsFor(class)
	if fs[source] == nil {
		fs[source] = make(map[string]any)
	}
	setNestedValue(fs[source], path, normalized)
	return nil
}

// Unset removes a dot-notation path of class from every source
func (r *Registry) Unset(class, path string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := false
	for _, fragment := range r.fragments[class] {
		if deletePath(fragment, path) {
			removed = true
		}
	}
	if !removed {
		return fmt.Errorf("path %q not set on class %q", path, class)
	}
	return nil
}

// ResetSource discards every fragment of source
func (r *Registry) ResetSource(source Source) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, fs := range r.fragments {
		delete(fs, source)
	}
	if source == SourceFile {
		r.files = nil
	}
}

// RegisterStruct declares default configuration for class from a struct.
// Field keys come from the struct tag (`toml` unless changed with SetTagName);
// nested structs become nested mappings.
func (r *Registry) RegisterStruct(class string, defaults any) error {
	v := reflect.ValueOf(defaults)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("RegisterStruct requires a non-nil struct pointer or value")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("RegisterStruct requires a struct or struct pointer, got %T", defaults)
	}

	r.mutex.RLock()
	tagName := r.tagName
	r.mutex.RUnlock()

	fragment := make(map[string]any)
	var errs []string
	registerFields(v, tagName, fragment, "", &errs)
	if len(errs) > 0 {
		return fmt.Errorf("failed to register %d field(s): %s", len(errs), strings.Join(errs, "; "))
	}

	return r.SetConfig(class, SourceDefault, fragment)
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// registerFields walks exported fields of v into target
func registerFields(v reflect.Value, tagName string, target map[string]any, fieldPath string, errs *[]string) {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get(tagName)
		if tag == "-" {
			continue
		}

		key := field.Name
		if tag != "" {
			if name := strings.Split(tag, ",")[0]; name != "" {
				key = name
			}
		}
		if !isValidKeySegment(key) {
			*errs = append(*errs, fmt.Sprintf("field %s%s: invalid key %q", fieldPath, field.Name, key))
			continue
		}

		fieldType := fieldValue.Type()
		isStruct := fieldValue.Kind() == reflect.Struct
		isPtrToStruct := fieldValue.Kind() == reflect.Ptr && fieldType.Elem().Kind() == reflect.Struct
		isLeaf := fieldType.Implements(textMarshalerType) || reflect.PointerTo(fieldType).Implements(textMarshalerType)

		if (isStruct || isPtrToStruct) && !isLeaf {
			nestedValue := fieldValue
			if isPtrToStruct {
				if fieldValue.IsNil() {
					continue
				}
				nestedValue = fieldValue.Elem()
			}

			nested := make(map[string]any)
			registerFields(nestedValue, tagName, nested, fieldPath+field.Name+".", errs)
			target[key] = nested
			continue
		}

		value, err := normalizeValue(fieldValue.Interface())
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("field %s%s: %v", fieldPath, field.Name, err))
			continue
		}
		target[key] = value
	}
}

// ApplyExtension appends extension call-specs to class. The new list extends
// the extensions class currently sees after inheritance, so extensions
// applied to ancestors stay in effect.
func (r *Registry) ApplyExtension(class string, specs ...string) error {
	if !isValidClassName(class) {
		return fmt.Errorf("%w: %q", ErrInvalidClassName, class)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	inherited := make(map[string]any)
	for _, ancestor := range r.looseAncestry(class) {
		if v, ok := r.rawFor(ancestor)[ExtensionsKey]; ok {
			mergeInto(inherited, map[string]any{ExtensionsKey: v})
		}
	}

	merged, err := appendExtensions(inherited[ExtensionsKey], specs)
	if err != nil {
		return fmt.Errorf("class %q: %w", class, err)
	}

	fs := r.fragmentsFor(class)
	if fs[SourceRuntime] == nil {
		fs[SourceRuntime] = make(map[string]any)
	}
	fs[SourceRuntime][ExtensionsKey] = merged
	return nil
}

// Raw returns the configuration currently declared directly on class
func (r *Registry) Raw(class string) ClassConfig {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return ClassConfig(r.rawFor(class))
}

// Snapshot validates the declarations and freezes them
func (r *Registry) Snapshot() (*Declarations, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	classes := make(map[string]classDecl, len(r.classes))
	for name, decl := range r.classes {
		classes[name] = decl
	}

	raw := make(map[string]map[string]any, len(r.fragments))
	for class := range r.fragments {
		if merged := r.rawFor(class); len(merged) > 0 {
			raw[class] = merged
		}
	}

	return newDeclarations(classes, raw)
}

// Clone creates a deep copy of the registry
func (r *Registry) Clone() *Registry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	clone := &Registry{
		classes:    make(map[string]classDecl, len(r.classes)),
		fragments:  make(map[string]fragmentSet, len(r.fragments)),
		options:    r.options,
		tagName:    r.tagName,
		fileFormat: r.fileFormat,
		files:      append([]string(nil), r.files...),
	}
	for name, decl := range r.classes {
		clone.classes[name] = decl
	}
	for class, fs := range r.fragments {
		cfs := make(fragmentSet, len(fs))
		for source, fragment := range fs {
			cfs[source] = deepCopyMap(fragment)
		}
		clone.fragments[class] = cfs
	}
	return clone
}

// Debug returns a formatted string showing every class and its per-source fragments
func (r *Registry) Debug() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Declarations Debug Info:\n")
	b.WriteString(fmt.Sprintf("Precedence: %v\n", r.options.Sources))
	for _, name := range names {
		decl := r.classes[name]
		b.WriteString(fmt.Sprintf("  %s (%s", name, decl.kind))
		if decl.parent != "" {
			b.WriteString(" extends " + decl.parent)
		}
		b.WriteString("):\n")
		for _, source := range r.options.Sources {
			if fragment, ok := r.fragments[name][source]; ok {
				b.WriteString(fmt.Sprintf("    %s: %v\n", source, fragment))
			}
		}
	}
	return b.String()
}

// fragmentsFor returns the fragment set of class, creating it. Caller holds the write lock.
func (r *Registry) fragmentsFor(class string) fragmentSet {
	fs, ok := r.fragments[class]
	if !ok {
		fs = make(fragmentSet)
		r.fragments[class] = fs
	}
	return fs
}

// rawFor merges the fragments of class from the lowest to the highest
// precedence source. Caller holds a lock.
func (r *Registry) rawFor(class string) map[string]any {
	merged := make(map[string]any)
	fs := r.fragments[class]
	for i := len(r.options.Sources) - 1; i >= 0; i-- {
		if fragment, ok := fs[r.options.Sources[i]]; ok {
			mergeInto(merged, fragment)
		}
	}
	return merged
}

// looseAncestry walks declared parents root first, stopping at unknown
// classes or loops. Caller holds a lock.
func (r *Registry) looseAncestry(class string) []string {
	var chain []string
	seen := make(map[string]bool)
	for current := class; current != "" && !seen[current]; {
		seen[current] = true
		chain = append(chain, current)
		decl, ok := r.classes[current]
		if !ok {
			break
		}
		current = decl.parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// deletePath removes a dot-notation path from nested, reporting whether it existed
func deletePath(nested map[string]any, path string) bool {
	segments := strings.Split(path, ".")
	current := nested
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	last := segments[len(segments)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
