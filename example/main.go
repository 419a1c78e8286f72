// FILE: lixenwraith/classconfig/example/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/classconfig"
)

// BirdConfig is the typed view of the Bird class configuration
type BirdConfig struct {
	Legs     int           `toml:"legs"`
	CanFly   bool          `toml:"canFly"`
	Migrates bool          `toml:"migrates"`
	Season   string        `toml:"season"`
	Rest     time.Duration `toml:"rest"`
}

const declarations = `
classes:
  Animal: {}
  Bird: {extends: Animal}
  Migratory: {extension: true}

config:
  Animal:
    legs: 4
    rest: 8h
  Bird:
    legs: 2
    canFly: true
    extensions: [Migratory]
  Migratory:
    migrates: true
`

func main() {
	// =========================================================================
	// PART 1: Write a declaration file
	// =========================================================================
	dir, err := os.MkdirTemp("", "classconfig-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "zoo.yaml")
	if err := os.WriteFile(path, []byte(declarations), 0644); err != nil {
		log.Fatal(err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	// =========================================================================
	// PART 2: Build a resolver; Seasonal contributes config computed from its arguments
	// =========================================================================
	seasonal := classconfig.ExtraConfigFunc(func(host, extension string, args []any) (map[string]any, error) {
		if len(args) == 0 {
			return nil, nil
		}
		return map[string]any{"season": fmt.Sprint(args[0])}, nil
	})

	r, err := classconfig.NewBuilder().
		WithExtensionType("Seasonal", "", seasonal).
		WithFiles(path).
		WithEnvPrefix("ZOO_").
		WithLogger(logger).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	// =========================================================================
	// PART 3: Resolve with and without stages
	// =========================================================================
	for _, flags := range []classconfig.DisableFlags{0, classconfig.DisableExtensions, classconfig.DisableInheritance, classconfig.DisableAll} {
		cfg, err := r.Resolve("Bird", flags)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Bird (disabled: %s): %v\n", flags, cfg)
	}

	// =========================================================================
	// PART 4: Apply an extension at runtime and decode into a struct
	// =========================================================================
	if err := r.AddExtension("Bird", `Seasonal("autumn")`); err != nil {
		log.Fatal(err)
	}

	var bird BirdConfig
	if err := r.Scan("Bird", "", &bird); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Bird: %+v\n", bird)

	explanation, err := r.Explain("Bird", 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(explanation)
}
