// File: lixenwraith/classconfig/builder.go
package classconfig

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ValidatorFunc validates a built Resolver. It runs once at the end of Build.
type ValidatorFunc func(r *Resolver) error

// Builder provides a fluent interface for building a Resolver from code
// declarations, declaration files, environment and command-line overrides
type Builder struct {
	reg          *Registry
	opts         LoadOptions
	files        []string
	args         []string
	fileFormat   string
	resolverOpts []Option
	validators   []ValidatorFunc
	watch        *WatchOptions
	err          error
}

// NewBuilder creates a new builder. Command-line arguments are only read
// when set with WithArgs.
func NewBuilder() *Builder {
	return &Builder{
		reg:  NewRegistry(),
		opts: DefaultLoadOptions(),
	}
}

// WithClass declares a class with an optional parent
func (b *Builder) WithClass(name, parent string) *Builder {
	if b.err == nil {
		b.err = b.reg.DeclareClass(name, parent)
	}
	return b
}

// WithExtensionType declares an extension type. provider may be nil.
func (b *Builder) WithExtensionType(name, parent string, provider ExtraConfigProvider) *Builder {
	if b.err == nil {
		b.err = b.reg.DeclareExtension(name, parent, provider)
	}
	return b
}

// WithDefaults registers default configuration of class from a struct
func (b *Builder) WithDefaults(class string, defaults any) *Builder {
	if b.err == nil {
		if err := b.reg.RegisterStruct(class, defaults); err != nil {
			b.err = fmt.Errorf("failed to register defaults of %q: %w", class, err)
		}
	}
	return b
}

// WithConfig declares a default configuration fragment on class
func (b *Builder) WithConfig(class string, fragment map[string]any) *Builder {
	if b.err == nil {
		b.err = b.reg.SetConfig(class, SourceDefault, fragment)
	}
	return b
}

// WithTagName sets the struct tag WithDefaults reads key names from
func (b *Builder) WithTagName(tag string) *Builder {
	b.reg.SetTagName(tag)
	return b
}

// WithFiles adds declaration files; later files override earlier ones
func (b *Builder) WithFiles(paths ...string) *Builder {
	b.files = append(b.files, paths...)
	return b
}

// WithDirectory adds every declaration file found in dir, in lexical order
func (b *Builder) WithDirectory(dir string) *Builder {
	if b.err != nil {
		return b
	}
	files, err := DirFiles(dir)
	if err != nil {
		b.err = err
		return b
	}
	b.files = append(b.files, files...)
	return b
}

// WithFileDiscovery adds declaration files found by DiscoverFiles.
// Finding nothing is not an error.
func (b *Builder) WithFileDiscovery(opts FileDiscoveryOptions) *Builder {
	b.files = append(b.files, DiscoverFiles(opts, b.args)...)
	return b
}

// WithFileFormat forces the declaration file format
func (b *Builder) WithFileFormat(format string) *Builder {
	b.fileFormat = format
	return b
}

// WithEnvPrefix sets the environment variable prefix
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.opts.EnvPrefix = prefix
	return b
}

// WithEnvTransform sets a custom environment variable transformer
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	b.opts.EnvTransform = fn
	return b
}

// WithEnvWhitelist limits which `Class.key.path` paths are checked for env vars
func (b *Builder) WithEnvWhitelist(paths ...string) *Builder {
	if b.opts.EnvWhitelist == nil {
		b.opts.EnvWhitelist = make(map[string]bool)
	}
	for _, path := range paths {
		b.opts.EnvWhitelist[path] = true
	}
	return b
}

// WithArgs sets the command-line arguments
func (b *Builder) WithArgs(args []string) *Builder {
	b.args = args
	return b
}

// WithSources sets the precedence order of sources (first = highest)
func (b *Builder) WithSources(sources ...Source) *Builder {
	b.opts.Sources = sources
	return b
}

// WithLogger sets the resolver logger
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.resolverOpts = append(b.resolverOpts, WithLogger(l))
	return b
}

// WithStore sets the persistent resolved config store
func (b *Builder) WithStore(s Store) *Builder {
	b.resolverOpts = append(b.resolverOpts, WithStore(s))
	return b
}

// WithMetrics records resolution metrics
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.resolverOpts = append(b.resolverOpts, WithMetrics(m))
	return b
}

// WithMiddleware adds custom pipeline stages
func (b *Builder) WithMiddleware(mw ...Middleware) *Builder {
	b.resolverOpts = append(b.resolverOpts, WithMiddleware(mw...))
	return b
}

// WithOptions passes resolver options through
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.resolverOpts = append(b.resolverOpts, opts...)
	return b
}

// WithValidator adds a validation function that runs at the end of the build process
// Multiple validators can be added and are executed in the order they are added
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// WithWatch starts watching the declaration files after Build
func (b *Builder) WithWatch(opts WatchOptions) *Builder {
	b.watch = &opts
	return b
}

// Build loads every source, freezes the declarations and creates the Resolver.
// A missing declaration file is not fatal: the Resolver is returned together
// with an error matching ErrConfigNotFound.
func (b *Builder) Build() (*Resolver, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.fileFormat != "" {
		if err := b.reg.SetFileFormat(b.fileFormat); err != nil {
			return nil, err
		}
	}

	reload := b.loader()
	decl, loadErr := b.load()
	if decl == nil {
		return nil, loadErr
	}

	r, err := New(decl, b.resolverOpts...)
	if err != nil {
		return nil, err
	}

	for _, validator := range b.validators {
		if err := validator(r); err != nil {
			return nil, fmt.Errorf("class configuration validation failed: %w", err)
		}
	}

	if b.watch != nil && len(b.files) > 0 {
		if err := r.WatchFiles(reload, b.files, *b.watch); err != nil {
			return nil, err
		}
	}

	// ErrConfigNotFound or nil
	return r, loadErr
}

// loader returns the function rebuilding the snapshot from a fresh copy of
// the code declarations
func (b *Builder) loader() ReloadFunc {
	base := b.reg.Clone()
	files := append([]string(nil), b.files...)
	args := append([]string(nil), b.args...)
	opts := b.opts

	return func() (*Declarations, error) {
		reg := base.Clone()
		if err := reg.LoadWithOptions(files, args, opts); err != nil && !onlyNotFound(err) {
			return nil, err
		}
		return reg.Snapshot()
	}
}

// load performs the initial load into the builder's registry
func (b *Builder) load() (*Declarations, error) {
	loadErr := b.reg.LoadWithOptions(b.files, b.args, b.opts)
	if loadErr != nil && !onlyNotFound(loadErr) {
		return nil, loadErr
	}

	decl, err := b.reg.Snapshot()
	if err != nil {
		return nil, err
	}
	return decl, loadErr
}

// Registry returns the registry the builder populates
func (b *Builder) Registry() *Registry {
	return b.reg
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Resolver {
	r, err := b.Build()
	if err != nil {
		// Missing files are not fatal; the resolver runs on the remaining sources
		if !onlyNotFound(err) {
			panic(fmt.Sprintf("class config build failed: %v", err))
		}
	}
	return r
}

// BuildAndScan builds and decodes the effective configuration of class into target
func (b *Builder) BuildAndScan(class string, target any) (*Resolver, error) {
	r, err := b.Build()
	if err != nil && !onlyNotFound(err) {
		return nil, err
	}

	if scanErr := r.Scan(class, "", target); scanErr != nil {
		return nil, fmt.Errorf("failed to scan class %q into target: %w", class, scanErr)
	}

	// ErrConfigNotFound or nil
	return r, err
}

// onlyNotFound reports whether err consists only of ErrConfigNotFound errors
func onlyNotFound(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !onlyNotFound(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, ErrConfigNotFound)
}
