// FILE: lixenwraith/classconfig/discovery.go
package classconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// declarationExtensions are the file extensions DirFiles picks up
var declarationExtensions = []string{".toml", ".json", ".yaml", ".yml"}

// FileDiscoveryOptions configures automatic declaration file discovery
type FileDiscoveryOptions struct {
	// Base name of declaration files (without extension)
	Name string

	// Extensions to try (in order)
	Extensions []string

	// Custom search paths, searched after the system and user directories
	Paths []string

	// Environment variable holding an explicit path list
	EnvVar string

	// CLI flag holding an explicit path (e.g., "--classes")
	CLIFlag string

	// Whether to search in XDG config directories
	UseXDG bool

	// Whether to search in current directory
	UseCurrentDir bool
}

// DefaultDiscoveryOptions returns sensible defaults
func DefaultDiscoveryOptions(appName string) FileDiscoveryOptions {
	return FileDiscoveryOptions{
		Name:          appName,
		Extensions:    []string{".toml", ".yaml", ".yml", ".json"},
		EnvVar:        strings.ToUpper(appName) + "_CLASSES",
		CLIFlag:       "--classes",
		UseXDG:        true,
		UseCurrentDir: true,
	}
}

// DiscoverFiles returns the declaration files to load, lowest precedence
// first. An explicit CLI flag or env var path list wins over searching.
// Otherwise system XDG directories come before the user directory, custom
// paths and the working directory, so later, more specific files override.
func DiscoverFiles(opts FileDiscoveryOptions, args []string) []string {
	if opts.CLIFlag != "" {
		for i, arg := range args {
			if arg == opts.CLIFlag && i+1 < len(args) {
				return []string{args[i+1]}
			}
			if strings.HasPrefix(arg, opts.CLIFlag+"=") {
				return []string{strings.TrimPrefix(arg, opts.CLIFlag+"=")}
			}
		}
	}

	if opts.EnvVar != "" {
		if list := os.Getenv(opts.EnvVar); list != "" {
			return filepath.SplitList(list)
		}
	}

	var searchPaths []string
	if opts.UseXDG {
		searchPaths = append(searchPaths, getXDGConfigPaths(opts.Name)...)
	}
	searchPaths = append(searchPaths, opts.Paths...)
	if opts.UseCurrentDir {
		if cwd, err := os.Getwd(); err == nil {
			searchPaths = append(searchPaths, cwd)
		}
	}

	var found []string
	seen := make(map[string]bool)
	for _, dir := range searchPaths {
		for _, ext := range opts.Extensions {
			path := filepath.Join(dir, opts.Name+ext)
			if seen[path] {
				continue
			}
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				seen[path] = true
				found = append(found, path)
				break // One file per directory
			}
		}
	}
	return found
}

// DirFiles lists the declaration files directly inside dir in lexical order
func DirFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration directory '%s': %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, known := range declarationExtensions {
			if ext == known {
				files = append(files, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// getXDGConfigPaths returns XDG-compliant config search paths, system first
func getXDGConfigPaths(appName string) []string {
	var paths []string

	if xdgDirs := os.Getenv("XDG_CONFIG_DIRS"); xdgDirs != "" {
		dirs := filepath.SplitList(xdgDirs)
		// XDG_CONFIG_DIRS lists the most important directory first
		for i := len(dirs) - 1; i >= 0; i-- {
			paths = append(paths, filepath.Join(dirs[i], appName))
		}
	} else {
		paths = append(paths,
			filepath.Join("/etc", appName),
			filepath.Join("/etc/xdg", appName),
		)
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		paths = append(paths, filepath.Join(xdgHome, appName))
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", appName))
	}

	return paths
}
