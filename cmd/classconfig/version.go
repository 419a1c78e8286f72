// FILE: lixenwraith/classconfig/cmd/classconfig/version.go
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)
)

// Set at build time via -ldflags
var (
	versionMajor = "0"
	versionMinor = "1"
	versionPatch = "0"
	gitCommit    = ""
)

var version = versionMajor + "." + versionMinor + "." + versionPatch

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the classconfig version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s.%s.%s\n", appName,
			versionMajorColor.Sprint(versionMajor),
			versionMinorColor.Sprint(versionMinor),
			versionPatchColor.Sprint(versionPatch))
		if gitCommit != "" {
			fmt.Fprintf(out, "commit: %s\n", gitCommit)
		}
	},
}
