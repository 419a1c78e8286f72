// FILE: lixenwraith/classconfig/cmd/classconfig/ancestry.go
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/classconfig"
)

var (
	classColor     = color.New(color.FgCyan, color.Bold)
	extensionColor = color.New(color.FgMagenta, color.Bold)
	arrowColor     = color.New(color.FgHiBlack)
)

var ancestryCmd = &cobra.Command{
	Use:   "ancestry class...",
	Short: "Print the ancestry of classes, root first",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildResolver()
		if err != nil {
			return err
		}
		defer r.Close()

		for _, class := range args {
			chain, err := r.Ancestry(class)
			if err != nil {
				return err
			}
			printChain(cmd.OutOrStdout(), r.Declarations(), chain)
		}
		return nil
	},
}

func printChain(w io.Writer, decl *classconfig.Declarations, chain []string) {
	parts := make([]string, len(chain))
	for i, name := range chain {
		parts[i] = colorize(decl, name)
	}
	fmt.Fprintln(w, strings.Join(parts, arrowColor.Sprint(" -> ")))
}

func colorize(decl *classconfig.Declarations, name string) string {
	if kind, err := decl.Kind(name); err == nil && kind == classconfig.KindExtension {
		return extensionColor.Sprint(name)
	}
	return classColor.Sprint(name)
}

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List declared classes with their parent and kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildResolver()
		if err != nil {
			return err
		}
		defer r.Close()

		decl := r.Declarations()
		out := cmd.OutOrStdout()
		for _, name := range decl.Classes() {
			kind, _ := decl.Kind(name)
			parent, _ := decl.Parent(name)
			line := fmt.Sprintf("%-30s %-9s", colorize(decl, name), kind)
			if parent != "" {
				line += " extends " + colorize(decl, parent)
			}
			fmt.Fprintln(out, strings.TrimRight(line, " "))
		}
		fmt.Fprintf(out, "%s %s\n", arrowColor.Sprint("fingerprint"), shortFingerprint(decl.Fingerprint()))
		return nil
	},
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
