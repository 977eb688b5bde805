package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotificationsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notes"},
		Short:   "Print recent submission notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()
			if e.journal == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Notification journal is disabled")
				return nil
			}
			lines, total := e.journal.Tail(limit)
			if total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifications")
				return nil
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if total > len(lines) {
				fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d shown)\n", len(lines), total)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "lines", "n", 20, "number of entries to show")
	return cmd
}
