// File: lixenwraith/classconfig/doc.go

// Package classconfig resolves configuration declared on classes of a
// single-inheritance class system. A class's effective configuration is its
// own declared mapping merged over the mappings of its ancestors, with the
// configuration contributed by applied extension types merged on top.
//
// Resolution runs through a fixed pipeline of middleware:
//
//	extensions -> inheritance -> raw store
//
// Each stage owns one DisableFlags bit and skips itself when that bit is set,
// so callers can ask for the uninherited or extension-free view of a class.
// Resolving with DisableAll returns the raw declared mapping.
//
// Merge rules:
//   - Keys of the higher-priority mapping win
//   - Nested mappings merge recursively
//   - Sequences and scalars replace wholesale
//
// Quick Start:
//
//	r, err := classconfig.NewBuilder().
//	    WithClass("Animal", "").
//	    WithClass("Bird", "Animal").
//	    WithExtensionType("Migratory", "", nil).
//	    WithFiles("classes.yaml").
//	    WithEnvPrefix("ZOO_").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, _ := r.Resolve("Bird", 0)
//	legs, _ := cfg.Int64("legs")
//
// Declaration files (TOML, JSON or YAML) carry two top-level mappings:
//
//	classes:
//	  Bird: {extends: Animal}
//	  Migratory: {extension: true}
//	config:
//	  Animal: {legs: 4}
//	  Bird: {legs: 2, extensions: [Migratory]}
//
// Integers are stored as int64 whatever format or API supplied them.
//
// Default source precedence (highest to lowest):
//  1. Runtime values (Registry.Set, ApplyExtension)
//  2. Command-line arguments (--Bird.legs=3)
//  3. Environment variables (ZOO_BIRD_LEGS=3)
//  4. Declaration files
//  5. Defaults declared in code
//
// Thread Safety:
// Registry and Resolver are safe for concurrent use. A Resolver reads an
// immutable Declarations snapshot; Swap and AddExtension replace it
// copy-on-write, so resolutions never block each other.
package classconfig
