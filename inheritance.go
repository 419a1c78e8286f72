// FILE: lixenwraith/classconfig/inheritance.go
package classconfig

// InheritanceMiddleware merges the configuration of every ancestor of a class,
// root first, so that more derived classes override their ancestors.
type InheritanceMiddleware struct {
	bit DisableFlags
}

// NewInheritanceMiddleware returns the inheritance stage owning DisableInheritance
func NewInheritanceMiddleware() *InheritanceMiddleware {
	return &InheritanceMiddleware{bit: DisableInheritance}
}

func (m *InheritanceMiddleware) Name() string      { return "inheritance" }
func (m *InheritanceMiddleware) Bit() DisableFlags { return m.bit }

// ClassConfig merges next(ancestor) for each ancestor of class.
func (m *InheritanceMiddleware) ClassConfig(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error) {
	if flags.Has(m.bit) {
		return next(class, flags)
	}

	ancestry, err := p.Declarations.Ancestry(class)
	if err != nil {
		return nil, err
	}
	if len(ancestry) == 1 {
		return next(class, flags)
	}

	acc := make(map[string]any)
	for _, ancestor := range ancestry {
		cfg, err := next(ancestor, flags)
		if err != nil {
			return nil, err
		}
		mergeInto(acc, cfg)
	}
	return ClassConfig(acc), nil
}
