// FILE: lixenwraith/classconfig/loader.go
package classconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Source represents a configuration source, used to define fragment precedence
type Source string

const (
	// SourceDefault represents defaults declared in code, e.g. with RegisterStruct
	SourceDefault Source = "default"
	// SourceFile represents values loaded from declaration files
	SourceFile Source = "file"
	// SourceEnv represents values loaded from environment variables
	SourceEnv Source = "env"
	// SourceCLI represents values loaded from command-line arguments
	SourceCLI Source = "cli"
	// SourceRuntime represents values set programmatically after loading
	SourceRuntime Source = "runtime"
)

// DefaultMaxFileSize bounds the size of a declaration file
const DefaultMaxFileSize int64 = 1 << 20

// EnvTransformFunc converts a `Class.key.path` to an environment variable name
type EnvTransformFunc func(path string) string

// LoadOptions configures how declaration fragments are loaded and layered
type LoadOptions struct {
	// Sources defines the precedence order (first = highest priority)
	// Default: [SourceRuntime, SourceCLI, SourceEnv, SourceFile, SourceDefault]
	Sources []Source

	// EnvPrefix is prepended to environment variable names
	// Example: "APP_" transforms "Bird.legs" to "APP_BIRD_LEGS"
	EnvPrefix string

	// EnvTransform customizes how paths map to environment variables
	// If nil, uses default transformation (dots to underscores, uppercase)
	EnvTransform EnvTransformFunc

	// EnvWhitelist limits which `Class.key.path` paths are checked for env vars (nil = all)
	EnvWhitelist map[string]bool

	// MaxFileSize bounds each declaration file (0 = DefaultMaxFileSize)
	MaxFileSize int64

	// PreventPathTraversal rejects relative file paths escaping the working directory
	PreventPathTraversal bool
}

// DefaultLoadOptions returns the standard load options
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Sources:     []Source{SourceRuntime, SourceCLI, SourceEnv, SourceFile, SourceDefault},
		MaxFileSize: DefaultMaxFileSize,
	}
}

// SetFileFormat forces the declaration file format: toml, json, yaml or auto
func (r *Registry) SetFileFormat(format string) error {
	switch format {
	case "toml", "json", "yaml", "auto":
	default:
		return fmt.Errorf("unsupported file format %q", format)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.fileFormat = format
	return nil
}

// LoadWithOptions loads declaration files, environment and command-line
// fragments, processing sources from the lowest to the highest precedence.
// A missing file is reported as ErrConfigNotFound joined with other non-fatal errors.
func (r *Registry) LoadWithOptions(files []string, args []string, opts LoadOptions) error {
	r.SetLoadOptions(opts)
	opts = r.loadOptions()

	var loadErrors []error

	for i := len(opts.Sources) - 1; i >= 0; i-- {
		switch opts.Sources[i] {
		case SourceDefault, SourceRuntime:
			// Declared in code
			continue

		case SourceFile:
			for _, file := range files {
				if err := r.LoadFile(file); err != nil {
					if errors.Is(err, ErrConfigNotFound) {
						loadErrors = append(loadErrors, fmt.Errorf("%s: %w", file, err))
					} else {
						return err
					}
				}
			}

		case SourceEnv:
			if err := r.loadEnv(opts); err != nil {
				loadErrors = append(loadErrors, err)
			}

		case SourceCLI:
			if len(args) > 0 {
				if err := r.LoadCLI(args); err != nil {
					loadErrors = append(loadErrors, err)
				}
			}
		}
	}

	return errors.Join(loadErrors...)
}

// LoadFiles loads declaration files in order; later files override earlier ones
func (r *Registry) LoadFiles(files ...string) error {
	for _, file := range files {
		if err := r.LoadFile(file); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnv loads environment overrides for every declared leaf path
func (r *Registry) LoadEnv(prefix string) error {
	opts := r.loadOptions()
	opts.EnvPrefix = prefix
	return r.loadEnv(opts)
}

func (r *Registry) loadOptions() LoadOptions {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.options
}

// LoadFile reads a TOML, JSON or YAML declaration document
func (r *Registry) LoadFile(path string) error {
	opts := r.loadOptions()

	if opts.PreventPathTraversal {
		cleanPath := filepath.Clean(path)
		if strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) || cleanPath == ".." {
			return fmt.Errorf("potential path traversal detected in declaration path: %s", path)
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to stat declaration file '%s': %w", path, err)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if fileInfo.Size() > maxSize {
		return fmt.Errorf("declaration file '%s' exceeds maximum size %d bytes", path, maxSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open declaration file '%s': %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize))
	if err != nil {
		return fmt.Errorf("failed to read declaration file '%s': %w", path, err)
	}

	r.mutex.RLock()
	format := r.fileFormat
	r.mutex.RUnlock()

	doc, err := parseDocument(path, data, format)
	if err != nil {
		return err
	}
	if err := r.applyDocument(doc); err != nil {
		return fmt.Errorf("declaration file '%s': %w", path, err)
	}

	r.mutex.Lock()
	r.files = append(r.files, path)
	r.mutex.Unlock()
	return nil
}

// LoadBytes parses a declaration document held in memory
func (r *Registry) LoadBytes(data []byte, format string) error {
	doc, err := parseDocument("", data, format)
	if err != nil {
		return err
	}
	return r.applyDocument(doc)
}

// parseDocument decodes data in the given or detected format
func parseDocument(path string, data []byte, format string) (map[string]any, error) {
	if format == "" || format == "auto" {
		format = detectFileFormat(path)
		if format == "" {
			format = detectFormatFromContent(data)
		}
	}

	doc := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML declaration file '%s': %w", path, err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON declaration file '%s': %w", path, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML declaration file '%s': %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unable to determine format of declaration file '%s'", path)
	}

	return normalizeMap(doc)
}

// applyDocument declares the classes and config of a parsed document.
//
//	classes:
//	  Bird: {extends: Animal}
//	  Migratory: {extension: true}
//	config:
//	  Bird: {legs: 2, extensions: [Migratory]}
func (r *Registry) applyDocument(doc map[string]any) error {
	for key := range doc {
		if key != "classes" && key != "config" {
			return fmt.Errorf("unknown top-level key %q", key)
		}
	}

	classes, err := asMapping(doc["classes"], "classes")
	if err != nil {
		return err
	}
	for _, name := range sortedKeys(classes) {
		if err := r.applyClassSpec(name, classes[name]); err != nil {
			return err
		}
	}

	configs, err := asMapping(doc["config"], "config")
	if err != nil {
		return err
	}
	for _, class := range sortedKeys(configs) {
		fragment, err := asMapping(configs[class], "config."+class)
		if err != nil {
			return err
		}
		if err := r.SetConfig(class, SourceFile, fragment); err != nil {
			return err
		}
	}
	return nil
}

// applyClassSpec accepts `Name: Parent`, `Name: {}` or
// `Name: {extends: Parent, extension: true, config: {...}}`
func (r *Registry) applyClassSpec(name string, spec any) error {
	if parent, ok := spec.(string); ok {
		return r.DeclareClass(name, parent)
	}

	fields, err := asMapping(spec, "classes."+name)
	if err != nil {
		return err
	}

	var parent string
	var isExtension bool
	for key, value := range fields {
		switch key {
		case "extends", "parent":
			s, ok := value.(string)
			if !ok && value != nil {
				return fmt.Errorf("classes.%s.%s must be a string, got %T", name, key, value)
			}
			parent = s
		case "extension":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("classes.%s.extension must be a boolean, got %T", name, value)
			}
			isExtension = b
		case "config":
		default:
			return fmt.Errorf("unknown key %q in classes.%s", key, name)
		}
	}

	if isExtension {
		err = r.DeclareExtension(name, parent, nil)
	} else {
		err = r.DeclareClass(name, parent)
	}
	if err != nil {
		return err
	}

	if inline, ok := fields["config"]; ok {
		fragment, err := asMapping(inline, "classes."+name+".config")
		if err != nil {
			return err
		}
		return r.SetConfig(name, SourceFile, fragment)
	}
	return nil
}

func asMapping(v any, where string) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	default:
		return nil, fmt.Errorf("%s must be a mapping, got %T", where, v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// loadEnv overrides declared leaf paths from environment variables
func (r *Registry) loadEnv(opts LoadOptions) error {
	transform := opts.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(opts.EnvPrefix)
	}

	// -- 1. Collect declared leaf paths (Read-Lock)
	r.mutex.RLock()
	paths := make([]string, 0)
	for class := range r.classes {
		for path := range flattenMap(r.rawFor(class), "") {
			if path == ExtensionsKey || strings.HasPrefix(path, ExtensionsKey+".") {
				continue
			}
			paths = append(paths, class+"."+path)
		}
	}
	r.mutex.RUnlock()

	// -- 2. Look up env vars (No Lock)
	found := make(map[string]string)
	for _, path := range paths {
		if opts.EnvWhitelist != nil && !opts.EnvWhitelist[path] {
			continue
		}
		if value, exists := os.LookupEnv(transform(path)); exists {
			if len(value) > MaxValueSize {
				return fmt.Errorf("%w: %s", ErrValueSize, transform(path))
			}
			found[path] = value
		}
	}
	if len(found) == 0 {
		return nil
	}

	// -- 3. Replace the env fragments (Write-Lock)
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, fs := range r.fragments {
		delete(fs, SourceEnv)
	}
	for path, value := range found {
		class, keyPath, _ := strings.Cut(path, ".")
		fs := r.fragmentsFor(class)
		if fs[SourceEnv] == nil {
			fs[SourceEnv] = make(map[string]any)
		}
		setNestedValue(fs[SourceEnv], keyPath, parseValue(value))
	}
	return nil
}

// LoadCLI loads `--Class.key.path=value` overrides
func (r *Registry) LoadCLI(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCLIParse, err)
	}

	for _, class := range sortedKeys(parsed) {
		fragment := parsed[class].(map[string]any)
		if err := r.SetConfig(class, SourceCLI, fragment); err != nil {
			return fmt.Errorf("%w: %w", ErrCLIParse, err)
		}
	}
	return nil
}

// DiscoverEnv returns the `Class.key.path` -> env var name of every declared
// leaf path whose environment variable is set
func (r *Registry) DiscoverEnv(prefix string) map[string]string {
	transform := r.loadOptions().EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	discovered := make(map[string]string)
	for class := range r.classes {
		for path := range flattenMap(r.rawFor(class), "") {
			full := class + "." + path
			envVar := transform(full)
			if _, exists := os.LookupEnv(envVar); exists {
				discovered[full] = envVar
			}
		}
	}
	return discovered
}

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	return func(path string) string {
		env := strings.NewReplacer(".", "_", `\`, "_", "-", "_").Replace(path)
		env = strings.ToUpper(env)
		if prefix != "" {
			env = prefix + env
		}
		return env
	}
}

// parseValue converts a textual override into a bool, int64, float64 or string
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err == nil {
		switch tv := v.(type) {
		case bool, string, float64:
			return tv
		case int:
			return int64(tv)
		}
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseArgs processes command-line arguments into class -> nested map.
// The first path segment names the class.
func parseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			i++
			continue
		}

		var keyPath, valueStr string
		if before, after, found := strings.Cut(argContent, "="); found {
			keyPath, valueStr = before, after
			i++
		} else {
			keyPath = argContent
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		class, path, ok := strings.Cut(keyPath, ".")
		if !ok || path == "" {
			return nil, fmt.Errorf("command-line key %q must have the form Class.key", keyPath)
		}
		if !isValidClassName(class) {
			return nil, fmt.Errorf("invalid class %q in command-line key %q", class, keyPath)
		}
		for _, segment := range strings.Split(path, ".") {
			if !isValidKeySegment(segment) {
				return nil, fmt.Errorf("invalid command-line key segment %q in path %q", segment, keyPath)
			}
		}

		fragment, _ := result[class].(map[string]any)
		if fragment == nil {
			fragment = make(map[string]any)
			result[class] = fragment
		}
		setNestedValue(fragment, path, parseValue(valueStr))
	}

	return result, nil
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) string {
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	// TOML before YAML: most TOML documents are not valid YAML, but a
	// YAML mapping is rarely valid TOML
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	return ""
}
