// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/tripwire-cli/internal/definition"
	"github.com/xkilldash9x/tripwire-cli/internal/runner"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>",
		Short: "Decode a flow definition and print its steps without launching a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := definition.Load(args[0])
			if err != nil {
				return &runner.ConfigError{Err: err}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", args[0], displayName(def))
			if def.Description != "" {
				fmt.Fprintf(out, "  %s\n", def.Description)
			}
			if def.BaseURL != "" {
				fmt.Fprintf(out, "  base URL: %s\n", def.BaseURL)
			}
			for i, step := range def.Steps {
				fmt.Fprintf(out, "  %3d  %s\n", i, step)
			}
			if def.Tolerate != nil {
				fmt.Fprintln(out, "  declares a tolerance policy")
			}
			fmt.Fprintf(out, "%d step(s), OK\n", len(def.Steps))
			return nil
		},
	}
}
