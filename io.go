// File: lixenwraith/classconfig/io.go
package classconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Save writes the effective configuration of class to path. The format
// follows the file extension (TOML when unknown). It performs an atomic
// write using a temporary file.
func (r *Resolver) Save(class, path string) error {
	cfg, err := r.Resolve(class, 0)
	if err != nil {
		return err
	}

	format := detectFileFormat(path)
	if format == "" {
		format = "toml"
	}

	var buf bytes.Buffer
	if err := encode(&buf, map[string]any(cfg), format); err != nil {
		return fmt.Errorf("failed to encode class %q: %w", class, err)
	}
	return atomicWriteFile(path, buf.Bytes())
}

// Dump writes the effective configuration of class to w in format
// (toml, json or yaml)
func (r *Resolver) Dump(w io.Writer, class string, flags DisableFlags, format string) error {
	cfg, err := r.Resolve(class, flags)
	if err != nil {
		return err
	}
	return encode(w, map[string]any(cfg), format)
}

// SaveDeclarations writes the current snapshot as a declaration document
// that LoadFile reads back into an equivalent class system
func (r *Resolver) SaveDeclarations(path string) error {
	format := detectFileFormat(path)
	if format == "" {
		format = "toml"
	}

	var buf bytes.Buffer
	if err := encode(&buf, r.decl.Load().Document(), format); err != nil {
		return fmt.Errorf("failed to encode declarations: %w", err)
	}
	return atomicWriteFile(path, buf.Bytes())
}

// Document renders the snapshot in the declaration file layout:
// a `classes` mapping and a `config` mapping
func (d *Declarations) Document() map[string]any {
	classes := make(map[string]any, len(d.names))
	for _, name := range d.names {
		decl := d.classes[name]
		spec := make(map[string]any)
		if decl.parent != "" {
			spec["extends"] = decl.parent
		}
		if decl.kind == KindExtension {
			spec["extension"] = true
		}
		classes[name] = spec
	}

	config := make(map[string]any, len(d.raw))
	for class, raw := range d.raw {
		config[class] = deepCopyMap(raw)
	}

	doc := map[string]any{"classes": classes}
	if len(config) > 0 {
		doc["config"] = config
	}
	return doc
}

// ExportEnv returns the environment variables that would reproduce the
// effective leaf values of class, keyed by variable name
func (r *Resolver) ExportEnv(class, prefix string) (map[string]string, error) {
	cfg, err := r.Resolve(class, 0)
	if err != nil {
		return nil, err
	}

	transform := defaultEnvTransform(prefix)
	exports := make(map[string]string)
	for path, value := range flattenMap(cfg, "") {
		if path == ExtensionsKey {
			continue
		}
		switch value.(type) {
		case map[string]any, []any, nil:
			continue
		}
		exports[transform(class+"."+path)] = fmt.Sprint(value)
	}
	return exports, nil
}

func encode(w io.Writer, v map[string]any, format string) error {
	switch format {
	case "toml", "":
		return toml.NewEncoder(w).Encode(v)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
