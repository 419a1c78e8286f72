// FILE: lixenwraith/classconfig/middleware.go
package classconfig

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NextFunc resolves the configuration of class through the remaining stages of the pipeline
type NextFunc func(class string, flags DisableFlags) (ClassConfig, error)

// Middleware is one stage of the resolution pipeline. It wraps next and must
// delegate straight to it when flags has its Bit set.
type Middleware interface {
	// Name identifies the stage in logs and explanations
	Name() string
	// Bit is the disable flag owned by the stage. It must be non-zero.
	Bit() DisableFlags
	// ClassConfig returns the configuration of class. Implementations must
	// return a value the caller may mutate.
	ClassConfig(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error)
}

// MiddlewareFunc is the function form of Middleware.ClassConfig
type MiddlewareFunc func(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error)

// NewMiddleware wraps fn into a Middleware owning bit.
// fn is not called when bit is disabled.
func NewMiddleware(name string, bit DisableFlags, fn MiddlewareFunc) Middleware {
	return &funcMiddleware{name: name, bit: bit, fn: fn}
}

type funcMiddleware struct {
	name string
	bit  DisableFlags
	fn   MiddlewareFunc
}

func (m *funcMiddleware) Name() string      { return m.name }
func (m *funcMiddleware) Bit() DisableFlags { return m.bit }

func (m *funcMiddleware) ClassConfig(p *Pass, class string, flags DisableFlags, next NextFunc) (ClassConfig, error) {
	if flags.Has(m.bit) {
		return next(class, flags)
	}
	return m.fn(p, class, flags, next)
}

// validateChain checks that every middleware owns a distinct non-zero bit
func validateChain(chain []Middleware) error {
	var used DisableFlags
	for _, mw := range chain {
		bit := mw.Bit()
		if bit == 0 {
			return fmt.Errorf("%w: middleware %q has no bit", ErrInvalidMiddlewareBit, mw.Name())
		}
		if used&bit != 0 {
			return fmt.Errorf("%w: middleware %q bit %d overlaps another stage", ErrInvalidMiddlewareBit, mw.Name(), uint(bit))
		}
		used |= bit
	}
	return nil
}

// Pass is the state of a single top-level resolution. Middleware use it to
// reach the declarations snapshot and to re-enter the pipeline.
type Pass struct {
	// Declarations is the snapshot the resolution runs against
	Declarations *Declarations

	log      logrus.FieldLogger
	run      NextFunc
	maxDepth int
	stack    []string

	// providers is set once an ExtraConfigProvider contributed to the result
	providers bool
}

func newPass(decl *Declarations, chain []Middleware, log logrus.FieldLogger, maxDepth int) *Pass {
	p := &Pass{
		Declarations: decl,
		log:          log,
		maxDepth:     maxDepth,
	}

	// Right fold: chain[0] is the outermost stage, the raw store is the innermost.
	next := NextFunc(func(class string, _ DisableFlags) (ClassConfig, error) {
		return decl.Raw(class)
	})
	for i := len(chain) - 1; i >= 0; i-- {
		mw, inner := chain[i], next
		next = func(class string, flags DisableFlags) (ClassConfig, error) {
			if flags.Has(mw.Bit()) {
				return inner(class, flags)
			}
			p.log.WithFields(logrus.Fields{
				"class": class,
				"flags": flags.String(),
				"stage": mw.Name(),
			}).Debug("entering middleware")
			return mw.ClassConfig(p, class, flags, inner)
		}
	}
	p.run = next
	return p
}

// Resolve runs class through the whole pipeline with flags. Middleware call it
// to fetch configuration of other classes.
func (p *Pass) Resolve(class string, flags DisableFlags) (ClassConfig, error) {
	if flags == DisableAll {
		return p.Declarations.Raw(class)
	}
	if len(p.stack) >= p.maxDepth {
		chain := append(append([]string(nil), p.stack...), class)
		return nil, &CyclicAncestryError{Class: class, Chain: chain}
	}

	p.stack = append(p.stack, class)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	return p.run(class, flags)
}

// Logger returns the logger of the resolution
func (p *Pass) Logger() logrus.FieldLogger {
	return p.log
}
