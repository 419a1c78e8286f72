// FILE: lixenwraith/classconfig/resolver.go
package classconfig

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxDepth bounds pipeline re-entry within one resolution
const DefaultMaxDepth = 64

// Store persists resolved configuration between processes. Keys embed the
// declarations fingerprint. Results that consulted an ExtraConfigProvider or
// hold values without a stable encoding (durations, times, structs) are
// never written, since the fingerprint cannot capture them.
type Store interface {
	Get(key string) (map[string]any, bool, error)
	Put(key string, cfg map[string]any) error
	Close() error
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger used for resolution tracing and reload events
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMiddleware adds stages outside the built-in extension stage. The first
// middleware given is the outermost. Each must own a bit not used by any other stage.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Resolver) {
		r.chain = append(append([]Middleware(nil), mw...), r.chain...)
	}
}

// WithStore sets a persistent store consulted after the in-memory memo
func WithStore(s Store) Option {
	return func(r *Resolver) {
		r.store = s
	}
}

// WithMetrics records resolution metrics
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithMaxDepth bounds pipeline re-entry within one resolution
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithoutMemo disables the in-memory cache of resolved configuration
func WithoutMemo() Option {
	return func(r *Resolver) {
		r.memo = nil
	}
}

// Resolver computes effective class configuration from a declarations
// snapshot. The pipeline order is fixed: extension stage, then inheritance
// stage, then the raw store. Extension-contributed values therefore override
// values declared on the host class and on any of its ancestors.
//
// A Resolver is safe for concurrent use. The snapshot can be replaced at any
// time with Swap or AddExtension; in-flight resolutions finish against the
// snapshot they started with.
type Resolver struct {
	decl     atomic.Pointer[Declarations]
	chain    []Middleware
	logger   logrus.FieldLogger
	metrics  *Metrics
	store    Store
	memo     *memo
	maxDepth int

	mutex   sync.RWMutex // guards watcher
	watcher *watcher
}

// New creates a Resolver over decl
func New(decl *Declarations, opts ...Option) (*Resolver, error) {
	if decl == nil {
		return nil, fmt.Errorf("declarations snapshot cannot be nil")
	}

	r := &Resolver{
		chain:    []Middleware{NewExtensionMiddleware(), NewInheritanceMiddleware()},
		logger:   discardLogger(),
		memo:     newMemo(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := validateChain(r.chain); err != nil {
		return nil, err
	}

	r.decl.Store(decl)
	return r, nil
}

// discardLogger is the default logger; it formats nothing
func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// Declarations returns the current snapshot
func (r *Resolver) Declarations() *Declarations {
	return r.decl.Load()
}

// Swap replaces the snapshot used by subsequent resolutions
func (r *Resolver) Swap(decl *Declarations) {
	if decl == nil {
		return
	}
	old := r.decl.Swap(decl)
	r.memo.reset()
	if old == nil || old.Fingerprint() != decl.Fingerprint() {
		r.logger.WithFields(logrus.Fields{
			"classes":     len(decl.names),
			"fingerprint": shortFingerprint(decl.Fingerprint()),
		}).Info("declarations snapshot replaced")
	}
}

// AddExtension applies extension call-specs to class. The snapshot is
// replaced copy-on-write; concurrent readers are not blocked.
func (r *Resolver) AddExtension(class string, specs ...string) error {
	for {
		old := r.decl.Load()
		updated, err := old.withExtension(class, specs)
		if err != nil {
			return err
		}
		if r.decl.CompareAndSwap(old, updated) {
			r.memo.reset()
			r.logger.WithFields(logrus.Fields{
				"class":      class,
				"extensions": specs,
			}).Info("extension applied")
			return nil
		}
	}
}

// Ancestry returns the ancestry of class, root first
func (r *Resolver) Ancestry(class string) ([]string, error) {
	return r.decl.Load().Ancestry(class)
}

// Raw returns the configuration declared directly on class
func (r *Resolver) Raw(class string) (ClassConfig, error) {
	return r.decl.Load().Raw(class)
}

// Resolve returns the effective configuration of class. flags selects stages
// to skip; DisableAll returns the raw configuration. The result is a fresh
// value owned by the caller.
func (r *Resolver) Resolve(class string, flags DisableFlags) (ClassConfig, error) {
	start := time.Now()
	cfg, err := r.resolve(r.decl.Load(), class, flags)
	r.metrics.observeResolve(err, time.Since(start))
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"class": class,
			"flags": flags.String(),
		}).WithError(err).Debug("resolution failed")
	}
	return cfg, err
}

func (r *Resolver) resolve(decl *Declarations, class string, flags DisableFlags) (ClassConfig, error) {
	if flags == DisableAll {
		return decl.Raw(class)
	}

	key := memoKey{class: class, flags: flags}
	if cfg, ok := r.memo.get(decl.Fingerprint(), key); ok {
		r.metrics.cacheEvent("memo", "hit")
		return cfg.Clone(), nil
	}
	r.metrics.cacheEvent("memo", "miss")

	storeKey := storeKeyFor(decl, class, flags)
	if r.store != nil {
		stored, ok, err := r.store.Get(storeKey)
		switch {
		case err != nil:
			r.metrics.cacheEvent("store", "error")
			r.logger.WithField("key", storeKey).WithError(err).Warn("resolved config store read failed")
		case ok:
			r.metrics.cacheEvent("store", "hit")
			cfg := ClassConfig(stored)
			r.memo.put(decl.Fingerprint(), key, cfg.Clone())
			return cfg, nil
		default:
			r.metrics.cacheEvent("store", "miss")
		}
	}

	p := newPass(decl, r.chain, r.logger, r.maxDepth)
	cfg, err := p.Resolve(class, flags)
	if err != nil {
		return nil, err
	}

	r.memo.put(decl.Fingerprint(), key, cfg.Clone())
	if r.store != nil && !p.providers && storable(cfg) {
		if err := r.store.Put(storeKey, cfg.Clone()); err != nil {
			r.metrics.cacheEvent("store", "error")
			r.logger.WithField("key", storeKey).WithError(err).Warn("resolved config store write failed")
		}
	}
	return cfg, nil
}

// Get resolves class and returns the value at a dot-notation path
func (r *Resolver) Get(class, path string) (any, bool, error) {
	cfg, err := r.Resolve(class, 0)
	if err != nil {
		return nil, false, err
	}
	v, ok := cfg.Get(path)
	return v, ok, nil
}

// ResolveAll resolves classes concurrently against one snapshot. An empty
// classes list resolves every declared class. The first failure cancels the
// remaining work.
func (r *Resolver) ResolveAll(ctx context.Context, classes []string, flags DisableFlags) (map[string]ClassConfig, error) {
	decl := r.decl.Load()
	if len(classes) == 0 {
		classes = decl.Classes()
	}

	results := make([]ClassConfig, len(classes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), max(len(classes), 1)))

	for i, class := range classes {
		i, class := i, class
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			cfg, err := r.resolve(decl, class, flags)
			if err != nil {
				return err
			}
			results[i] = cfg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]ClassConfig, len(classes))
	for i, class := range classes {
		out[class] = results[i]
	}
	return out, nil
}

// Warm resolves classes so later calls are served from the caches
func (r *Resolver) Warm(ctx context.Context, classes []string, flags DisableFlags) error {
	_, err := r.ResolveAll(ctx, classes, flags)
	return err
}

// Close stops any file watcher and closes the persistent store
func (r *Resolver) Close() error {
	r.StopWatching()
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

func storeKeyFor(decl *Declarations, class string, flags DisableFlags) string {
	return decl.Fingerprint() + "/" + class + "/" + strconv.FormatUint(uint64(flags), 10)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// memoKey identifies one resolution within a snapshot
type memoKey struct {
	class string
	flags DisableFlags
}

// memo caches resolved configuration for the current snapshot
type memo struct {
	mu          sync.RWMutex
	fingerprint string
	entries     map[memoKey]ClassConfig
}

func newMemo() *memo {
	return &memo{entries: make(map[memoKey]ClassConfig)}
}

func (m *memo) get(fingerprint string, key memoKey) (ClassConfig, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fingerprint != fingerprint {
		return nil, false
	}
	cfg, ok := m.entries[key]
	return cfg, ok
}

func (m *memo) put(fingerprint string, key memoKey, cfg ClassConfig) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fingerprint != fingerprint {
		m.fingerprint = fingerprint
		m.entries = make(map[memoKey]ClassConfig)
	}
	m.entries[key] = cfg
}

func (m *memo) reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fingerprint = ""
	m.entries = make(map[memoKey]ClassConfig)
}
