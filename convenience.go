// File: lixenwraith/classconfig/convenience.go
package classconfig

import (
	"fmt"
	"os"
	"strings"
)

// Quick builds a Resolver from declaration files, environment variables with
// envPrefix and the process command-line arguments, using the standard
// precedence: Runtime > CLI > Env > File > Default
func Quick(envPrefix string, files ...string) (*Resolver, error) {
	return NewBuilder().
		WithFiles(files...).
		WithEnvPrefix(envPrefix).
		WithArgs(os.Args[1:]).
		Build()
}

// QuickCustom builds a Resolver with custom load options
func QuickCustom(opts LoadOptions, files ...string) (*Resolver, error) {
	b := NewBuilder().WithFiles(files...).WithArgs(os.Args[1:])
	b.opts = opts
	if len(b.opts.Sources) == 0 {
		b.opts.Sources = DefaultLoadOptions().Sources
	}
	return b.Build()
}

// MustQuick is like Quick but panics on error
func MustQuick(envPrefix string, files ...string) *Resolver {
	r, err := Quick(envPrefix, files...)
	if err != nil && !onlyNotFound(err) {
		panic(fmt.Sprintf("class config initialization failed: %v", err))
	}
	return r
}

// Require checks that the effective configuration of class holds a non-nil
// value at every path
func (r *Resolver) Require(class string, paths ...string) error {
	cfg, err := r.Resolve(class, 0)
	if err != nil {
		return err
	}

	var missing []string
	for _, path := range paths {
		if v, ok := cfg.Get(path); !ok || v == nil {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("class %q is missing required configuration: %s", class, strings.Join(missing, ", "))
	}
	return nil
}
