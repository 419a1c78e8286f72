// FILE: lixenwraith/classconfig/cmd/classconfig/main.go
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/classconfig"
	"github.com/lixenwraith/classconfig/internal/cache"
)

const appName = "classconfig"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Inspect class configuration resolved through inheritance and extensions",
	Long: `classconfig loads class declarations from TOML, JSON or YAML files and
prints the effective configuration of classes, their ancestry and where
every value came from.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(globalFlags.color) {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		case "auto":
		default:
			return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", globalFlags.color)
		}
		return nil
	},
}

var globalFlags struct {
	files     []string
	dirs      []string
	sets      []string
	envPrefix string
	logLevel  string
	cacheDir  string
	cacheKind string
	color     string
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringArrayVarP(&globalFlags.files, "file", "f", nil, "declaration file (repeatable, later files override)")
	pf.StringArrayVar(&globalFlags.dirs, "dir", nil, "directory of declaration files (repeatable)")
	pf.StringArrayVar(&globalFlags.sets, "set", nil, "override Class.key=value (repeatable)")
	pf.StringVar(&globalFlags.envPrefix, "env-prefix", "", "environment variable prefix for overrides")
	pf.StringVar(&globalFlags.logLevel, "log-level", "warning", "log level (debug|info|warning|error)")
	pf.StringVar(&globalFlags.cacheDir, "cache-dir", "", "resolved config cache directory (default $XDG_CACHE_HOME/classconfig)")
	pf.StringVar(&globalFlags.cacheKind, "cache", "none", "resolved config cache (none|file|bolt)")
	pf.StringVar(&globalFlags.color, "color", "auto", "colorize output (auto|on|off)")
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(ancestryCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger returns a stderr logger at the --log-level level
func newLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(globalFlags.logLevel)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l, nil
}

// openStore opens the cache selected by --cache
func openStore() (classconfig.Store, error) {
	kind := strings.ToLower(globalFlags.cacheKind)
	if kind == "none" || kind == "" {
		return nil, nil
	}

	dir := globalFlags.cacheDir
	if dir == "" {
		d, err := cache.DefaultDir(appName)
		if err != nil {
			return nil, err
		}
		dir = d
	}

	switch kind {
	case "file":
		return cache.OpenFileStore(dir)
	case "bolt":
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return cache.OpenBoltStore(filepath.Join(dir, "resolved.db"))
	default:
		return nil, fmt.Errorf("unsupported cache %q (must be none, file or bolt)", globalFlags.cacheKind)
	}
}

// setArgs turns --set Class.key=value into command-line overrides
func setArgs() ([]string, error) {
	args := make([]string, 0, len(globalFlags.sets))
	for _, s := range globalFlags.sets {
		if !strings.Contains(s, "=") {
			return nil, fmt.Errorf("--set %q must have the form Class.key=value", s)
		}
		args = append(args, "--"+s)
	}
	return args, nil
}

// newBuilder prepares a builder from the global flags
func newBuilder() (*classconfig.Builder, *logrus.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	args, err := setArgs()
	if err != nil {
		return nil, nil, err
	}

	b := classconfig.NewBuilder().
		WithLogger(logger).
		WithEnvPrefix(globalFlags.envPrefix).
		WithArgs(args)
	for _, dir := range globalFlags.dirs {
		b.WithDirectory(dir)
	}
	b.WithFiles(globalFlags.files...)
	if len(globalFlags.files) == 0 && len(globalFlags.dirs) == 0 {
		b.WithFileDiscovery(classconfig.DefaultDiscoveryOptions(appName))
	}

	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		b.WithStore(store)
	}
	return b, logger, nil
}

// buildResolver builds a resolver from the global flags. Missing files are
// logged and skipped.
func buildResolver() (*classconfig.Resolver, error) {
	b, logger, err := newBuilder()
	if err != nil {
		return nil, err
	}
	r, err := b.Build()
	if err != nil {
		if r == nil || !errors.Is(err, classconfig.ErrConfigNotFound) {
			return nil, err
		}
		logger.WithError(err).Warn("some declaration files were not found")
	}
	return r, nil
}
