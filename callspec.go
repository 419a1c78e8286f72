// FILE: lixenwraith/classconfig/callspec.go
package classconfig

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtensionSpec is a parsed extension call-spec such as `Versioned("Stage", 2)`
type ExtensionSpec struct {
	Name string
	Args []any
	// Spec is the call-spec text the extension was declared with
	Spec string
}

// ParseCallSpec parses `Name` or `Name(arg, ...)`. Arguments are YAML flow
// scalars or collections, so `'live'`, `"live"`, `2`, `true` and `[a, b]` are
// all accepted.
func ParseCallSpec(spec string) (ExtensionSpec, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return ExtensionSpec{}, fmt.Errorf("%w: empty call-spec", ErrInvalidCallSpec)
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if !isValidClassName(s) {
			return ExtensionSpec{}, fmt.Errorf("%w: invalid extension name %q", ErrInvalidCallSpec, s)
		}
		return ExtensionSpec{Name: s, Spec: s}, nil
	}

	if !strings.HasSuffix(s, ")") {
		return ExtensionSpec{}, fmt.Errorf("%w: unterminated argument list in %q", ErrInvalidCallSpec, s)
	}
	name := strings.TrimSpace(s[:open])
	if !isValidClassName(name) {
		return ExtensionSpec{}, fmt.Errorf("%w: invalid extension name %q", ErrInvalidCallSpec, name)
	}

	result := ExtensionSpec{Name: name, Spec: s}
	argText := strings.TrimSpace(s[open+1 : len(s)-1])
	if argText == "" {
		return result, nil
	}

	var args []any
	if err := yaml.Unmarshal([]byte("["+argText+"]"), &args); err != nil {
		return ExtensionSpec{}, fmt.Errorf("%w: arguments of %q: %w", ErrInvalidCallSpec, s, err)
	}
	for i, arg := range args {
		na, err := normalizeValue(arg)
		if err != nil {
			return ExtensionSpec{}, fmt.Errorf("%w: argument %d of %q: %w", ErrInvalidCallSpec, i, s, err)
		}
		args[i] = na
	}
	result.Args = args
	return result, nil
}

// extensionStrings reads the extensions key of a class config. A sequence is
// applied in order; a mapping is applied in sorted key order and nil values are
// skipped so a subclass can remove an inherited keyed extension.
func extensionStrings(value any) ([]string, error) {
	var raw []string

	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		raw = append(raw, v...)
	case []any:
		for i, e := range v {
			if e == nil {
				continue
			}
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d has type %T", ErrInvalidExtensions, i, e)
			}
			raw = append(raw, s)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v[k] == nil {
				continue
			}
			s, ok := v[k].(string)
			if !ok {
				return nil, fmt.Errorf("%w: key %q has type %T", ErrInvalidExtensions, k, v[k])
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidExtensions, value)
	}
	return raw, nil
}

// appendExtensions returns existing with specs added, preserving its form.
// Specs already present are not added twice.
func appendExtensions(existing any, specs []string) (any, error) {
	parsed := make([]ExtensionSpec, 0, len(specs))
	for _, s := range specs {
		spec, err := ParseCallSpec(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, spec)
	}

	switch v := existing.(type) {
	case nil:
		out := make([]any, 0, len(parsed))
		for _, spec := range parsed {
			out = appendUnique(out, spec.Spec)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(v)+len(parsed))
		for _, s := range v {
			out = append(out, s)
		}
		for _, spec := range parsed {
			out = appendUnique(out, spec.Spec)
		}
		return out, nil
	case []any:
		out := make([]any, len(v), len(v)+len(parsed))
		copy(out, v)
		for _, spec := range parsed {
			out = appendUnique(out, spec.Spec)
		}
		return out, nil
	case map[string]any:
		out := deepCopyMap(v)
		for _, spec := range parsed {
			out[spec.Name] = spec.Spec
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidExtensions, existing)
	}
}

func appendUnique(list []any, spec string) []any {
	for _, e := range list {
		if s, ok := e.(string); ok && strings.TrimSpace(s) == spec {
			return list
		}
	}
	return append(list, spec)
}
