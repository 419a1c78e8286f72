// FILE: lixenwraith/classconfig/cmd/classconfig/explain.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/classconfig"
)

var explainDisable string

func init() {
	explainCmd.Flags().StringVar(&explainDisable, "disable", "", "stages to skip: inheritance, extensions (comma-separated)")
}

var explainCmd = &cobra.Command{
	Use:   "explain class",
	Short: "Show where every effective value of a class came from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags, err := classconfig.ParseDisableFlags(explainDisable)
		if err != nil {
			return err
		}

		r, err := buildResolver()
		if err != nil {
			return err
		}
		defer r.Close()

		e, err := r.Explain(args[0], flags)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), e.String())
		return err
	},
}
