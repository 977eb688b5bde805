package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/patchmatrix/internal/matrix"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the catalog's variants and tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			m := matrix.New(cat)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Patch %s", cat.Patch.ID)
			if cat.Patch.Author != "" {
				fmt.Fprintf(out, " by %s", cat.Patch.Author)
			}
			fmt.Fprintln(out)
			if desc := strings.TrimSpace(cat.Patch.Description); desc != "" {
				fmt.Fprintf(out, "  %s\n", desc)
			}
			fmt.Fprintf(out, "\n%d variants, %d distinct tasks\n", m.Len(), len(m.AllTasks()))
			for _, v := range m.Variants() {
				fmt.Fprintf(out, "  %s (%s): %s\n", v.DisplayName, v.ID, strings.Join(v.Tasks(), ", "))
			}
			return nil
		},
	}
}
