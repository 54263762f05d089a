package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "backends",
		Short:       "List available remote backends",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runBackends,
	}
}

// backendJSON is the JSON output schema for one backend.
type backendJSON struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

func runBackends(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	def := cc.Registry.Default()
	names := cc.Registry.Names()

	if cc.Flags.JSON {
		out := make([]backendJSON, 0, len(names))
		for _, n := range names {
			out = append(out, backendJSON{Name: n, Default: n == def})
		}

		return writeJSON(cmd.OutOrStdout(), out)
	}

	for _, n := range names {
		marker := " "
		if n == def {
			marker = "*"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
	}

	return nil
}
