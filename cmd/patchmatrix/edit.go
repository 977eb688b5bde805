package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/patchmatrix/internal/notify"
	"github.com/kingrea/patchmatrix/internal/submission"
	"github.com/kingrea/patchmatrix/internal/tui"
)

func newEditCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the matrix interactively and submit it",
		Long: `Open the matrix editor. Click a variant to select it, ctrl+click to add
or remove one, shift+click to select a range. Task checkboxes on the right
apply to every selected variant. Press s to submit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := e.newClient(opts)
			if err != nil {
				return err
			}
			recorder := &notify.Recorder{}
			var versionURL string
			submitter := submission.NewSubmitter(client,
				submission.WithNotifier(notify.Multi{recorder, e.journal}),
				submission.WithNavigator(submission.NavigatorFunc(func(path string) error {
					versionURL = client.BaseURL() + path
					return nil
				})),
				submission.WithLogger(e.logger.Named("submission")),
			)
			app := tui.NewApp(cat, submitter,
				tui.WithLogger(e.logger.Named("tui")),
				tui.WithNotifications(recorder),
				tui.WithContext(cmd.Context()),
			)
			program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run editor: %w", err)
			}
			if app.Version() != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Created version %s\n%s\n", app.Version(), versionURL)
			}
			return nil
		},
	}
}
