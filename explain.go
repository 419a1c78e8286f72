// FILE: lixenwraith/classconfig/explain.go
package classconfig

import (
	"fmt"
	"sort"
	"strings"
)

// Stage names a pipeline step a value came from
type Stage string

const (
	StageOwn       Stage = "own"
	StageInherited Stage = "inherited"
	StageExtension Stage = "extension"
)

// Contribution is one value a class, ancestor or extension declared for a path
type Contribution struct {
	Stage     Stage
	Class     string // class the fragment was declared on
	Extension string // applied extension, for StageExtension
	Value     any
}

// Explanation describes how the effective configuration of a class was built.
// Provenance chains are ordered base to override; the last entry is the
// value in effect. A chain starts at the last contribution that replaced an
// enclosing mapping or scalar. Only the built-in stages are traced.
type Explanation struct {
	Class      string
	Flags      DisableFlags
	Ancestry   []string
	Extensions []ExtensionSpec
	Effective  ClassConfig
	Provenance map[string][]Contribution
}

// Explain resolves class and records, per leaf path, every contribution
func (r *Resolver) Explain(class string, flags DisableFlags) (*Explanation, error) {
	decl := r.decl.Load()

	effective, err := r.resolve(decl, class, flags)
	if err != nil {
		return nil, err
	}

	e := &Explanation{
		Class:      class,
		Flags:      flags,
		Effective:  effective,
		Provenance: make(map[string][]Contribution),
	}

	if flags.Has(DisableInheritance) {
		e.Ancestry = []string{class}
	} else if e.Ancestry, err = decl.Ancestry(class); err != nil {
		return nil, err
	}

	for _, ancestor := range e.Ancestry {
		raw, err := decl.Raw(ancestor)
		if err != nil {
			return nil, err
		}
		stage := StageInherited
		if ancestor == class {
			stage = StageOwn
		}
		e.record(raw, Contribution{Stage: stage, Class: ancestor})
	}

	if !flags.Has(DisableExtensions) {
		p := newPass(decl, r.chain, r.logger, r.maxDepth)
		base, err := p.Resolve(class, flags|DisableExtensions)
		if err != nil {
			return nil, err
		}
		if e.Extensions, err = decl.extensionSpecs(base[ExtensionsKey]); err != nil {
			return nil, fmt.Errorf("class %q: %w", class, err)
		}
		err = eachExtensionFragment(p, class, base[ExtensionsKey], flags, func(spec ExtensionSpec, source string, fragment map[string]any) {
			e.record(fragment, Contribution{Stage: StageExtension, Class: source, Extension: spec.Spec})
		})
		if err != nil {
			return nil, err
		}
	}

	// Drop chains for paths a later mapping or scalar replaced
	leaves := flattenMap(effective, "")
	for path := range e.Provenance {
		if _, ok := leaves[path]; !ok {
			delete(e.Provenance, path)
		}
	}
	return e, nil
}

// record appends the leaves of fragment to their chains. A non-mapping value
// replaces a whole mapping, so chains below its path restart; a mapping
// replaces a scalar, so the chains of the paths above it restart.
func (e *Explanation) record(fragment map[string]any, c Contribution) {
	for path, value := range flattenMap(fragment, "") {
		if _, isMap := value.(map[string]any); !isMap {
			for traced := range e.Provenance {
				if strings.HasPrefix(traced, path+".") {
					delete(e.Provenance, traced)
				}
			}
		}
		for i := strings.IndexByte(path, '.'); i >= 0; i = nextDot(path, i) {
			delete(e.Provenance, path[:i])
		}

		entry := c
		entry.Value = deepCopyValue(value)
		e.Provenance[path] = append(e.Provenance[path], entry)
	}
}

// nextDot returns the index of the first '.' in path after i, or -1
func nextDot(path string, i int) int {
	j := strings.IndexByte(path[i+1:], '.')
	if j < 0 {
		return -1
	}
	return i + 1 + j
}

// Paths returns the traced leaf paths in order
func (e *Explanation) Paths() []string {
	paths := make([]string, 0, len(e.Provenance))
	for path := range e.Provenance {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Winner returns the contribution in effect at path
func (e *Explanation) Winner(path string) (Contribution, bool) {
	chain := e.Provenance[path]
	if len(chain) == 0 {
		return Contribution{}, false
	}
	return chain[len(chain)-1], true
}

// String renders the explanation as an indented report
func (e *Explanation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (disabled: %s)\n", e.Class, e.Flags)
	fmt.Fprintf(&b, "  ancestry: %s\n", strings.Join(e.Ancestry, " -> "))
	if len(e.Extensions) > 0 {
		specs := make([]string, len(e.Extensions))
		for i, s := range e.Extensions {
			specs[i] = s.Spec
		}
		fmt.Fprintf(&b, "  extensions: %s\n", strings.Join(specs, ", "))
	}

	for _, path := range e.Paths() {
		value, _ := e.Effective.Get(path)
		fmt.Fprintf(&b, "  %s = %v\n", path, value)
		for _, c := range e.Provenance[path] {
			from := c.Class
			if c.Extension != "" && c.Extension != c.Class {
				from = c.Extension + " via " + c.Class
			}
			fmt.Fprintf(&b, "    <- %-9s %s: %v\n", c.Stage, from, c.Value)
		}
	}
	return b.String()
}
