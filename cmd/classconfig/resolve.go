// FILE: lixenwraith/classconfig/cmd/classconfig/resolve.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/classconfig"
)

var resolveFlags struct {
	disable string
	flags   uint
	format  string
	path    string
	all     bool
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.disable, "disable", "", "stages to skip: inheritance, extensions, all (comma-separated)")
	resolveCmd.Flags().UintVar(&resolveFlags.flags, "flags", 0, "raw disable bitmask, combined with --disable")
	resolveCmd.Flags().StringVar(&resolveFlags.format, "format", "yaml", "output format (toml|json|yaml)")
	resolveCmd.Flags().StringVar(&resolveFlags.path, "path", "", "print only the value at this dot-notation path")
	resolveCmd.Flags().BoolVar(&resolveFlags.all, "all", false, "resolve every declared class")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [class...]",
	Short: "Print the effective configuration of classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !resolveFlags.all {
			return fmt.Errorf("name at least one class or pass --all")
		}
		flags, err := classconfig.ParseDisableFlags(resolveFlags.disable)
		if err != nil {
			return err
		}
		flags |= classconfig.DisableFlags(resolveFlags.flags)

		format := strings.ToLower(resolveFlags.format)
		switch format {
		case "toml", "json", "yaml":
		default:
			return fmt.Errorf("unsupported format %q (must be toml, json or yaml)", resolveFlags.format)
		}

		r, err := buildResolver()
		if err != nil {
			return err
		}
		defer r.Close()

		if len(args) == 1 && !resolveFlags.all {
			cfg, err := r.Resolve(args[0], flags)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), cfg, resolveFlags.path, format)
		}

		results, err := r.ResolveAll(context.Background(), args, flags)
		if err != nil {
			return err
		}
		out := make(map[string]any, len(results))
		for class, cfg := range results {
			if resolveFlags.path == "" {
				out[class] = map[string]any(cfg)
				continue
			}
			if v, ok := cfg.Get(resolveFlags.path); ok {
				out[class] = v
			}
		}
		return writeFormatted(cmd.OutOrStdout(), out, format)
	},
}

func printValue(w io.Writer, cfg classconfig.ClassConfig, path, format string) error {
	if path == "" {
		return writeFormatted(w, map[string]any(cfg), format)
	}
	v, ok := cfg.Get(path)
	if !ok {
		return fmt.Errorf("path %q not found", path)
	}
	if m, isMap := v.(map[string]any); isMap {
		return writeFormatted(w, m, format)
	}
	_, err := fmt.Fprintln(w, v)
	return err
}

func writeFormatted(w io.Writer, v map[string]any, format string) error {
	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(v)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}
