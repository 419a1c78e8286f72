// FILE: lixenwraith/classconfig/extension.go
package classconfig

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ExtensionMiddleware merges the configuration of each extension applied to a
// class over the class's own configuration.
type ExtensionMiddleware struct {
	bit DisableFlags
}

// NewExtensionMiddleware returns the extension stage owning DisableExtensions
func NewExtensionMiddleware() *ExtensionMiddleware {
	return &ExtensionMiddleware{bit: DisableExtensions}
}

func (m *ExtensionMiddleware) Name() string      { return "extensions" }
func (m *ExtensionMiddleware) Bit() DisableFlags { return m.bit }

// ClassConfig reads the extensions key of next(class) and merges every
// fragment contributed by those extensions, each overriding what came before.
func (m *ExtensionMiddleware) ClassConfig(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error) {
	base, err := next(class, flags)
	if err != nil {
		return nil, err
	}
	if flags.Has(m.bit) {
		return base, nil
	}

	err = eachExtensionFragment(p, class, base[ExtensionsKey], flags, func(_ ExtensionSpec, _ string, fragment map[string]any) {
		mergeInto(base, fragment)
	})
	if err != nil {
		return nil, err
	}
	return base, nil
}

// eachExtensionFragment yields, in merge order, every configuration fragment
// the extensions listed in value contribute to host. source is the extension
// ancestor the fragment was declared on.
func eachExtensionFragment(p *Pass, host string, value any, flags DisableFlags, yield func(spec ExtensionSpec, source string, fragment map[string]any)) error {
	specs, err := p.Declarations.extensionSpecs(value)
	if err != nil {
		return fmt.Errorf("class %q: %w", host, err)
	}

	for _, spec := range specs {
		if _, ok := p.Declarations.extension(spec.Name); !ok {
			e := &UnknownExtensionError{Host: host, Extension: spec.Name}
			if p.Declarations.Has(spec.Name) {
				e.Reason = "declared as an ordinary class"
			}
			return e
		}

		ancestry, err := p.Declarations.Ancestry(spec.Name)
		if err != nil {
			return err
		}

		for _, ancestor := range ancestry {
			p.log.WithFields(logrus.Fields{
				"class":     host,
				"extension": spec.Name,
				"ancestor":  ancestor,
			}).Debug("merging extension config")

			own, err := p.Resolve(ancestor, flags|DisableInheritance|DisableExtensions)
			if err != nil {
				return err
			}
			delete(own, ExtensionsKey)
			yield(spec, ancestor, own)

			provider := p.Declarations.classes[ancestor].provider
			if provider == nil {
				continue
			}
			p.providers = true
			args := make([]any, len(spec.Args))
			for i, a := range spec.Args {
				args[i] = deepCopyValue(a)
			}
			extra, err := provider.ExtraConfig(host, spec.Name, args)
			if err != nil {
				return fmt.Errorf("extra config of %q for %q: %w", ancestor, host, err)
			}
			if len(extra) == 0 {
				continue
			}
			normalized, err := normalizeMap(extra)
			if err != nil {
				return fmt.Errorf("extra config of %q for %q: %w", ancestor, host, err)
			}
			delete(normalized, ExtensionsKey)
			yield(spec, ancestor, normalized)
		}
	}
	return nil
}
