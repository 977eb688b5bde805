package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/patchmatrix/internal/matrix"
	"github.com/kingrea/patchmatrix/internal/notify"
	"github.com/kingrea/patchmatrix/internal/submission"
)

type submitOptions struct {
	cells  []string
	dryRun bool
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	sopts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Check cells non-interactively and submit them",
		Long: `Build the matrix from the catalog, check the cells given with --cell and
submit the result. Each --cell selects one variant and checks the listed
tasks on it:

  patchmatrix submit -f catalog.yaml --cell linux=compile,test --cell windows=compile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			m := matrix.New(cat)
			if err := applyCells(m, sopts.cells); err != nil {
				return err
			}
			payload := submission.Build(m)
			out := cmd.OutOrStdout()
			if sopts.dryRun {
				data, err := json.MarshalIndent(payload, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
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
			notifier := notify.Multi{notify.NewWriter(cmd.ErrOrStderr()), e.journal}
			if payload.Empty() {
				notifier.Notify("no tasks checked; submitting an empty patch", notify.ClassWarning)
			}
			submitter := submission.NewSubmitter(client,
				submission.WithNotifier(notifier),
				submission.WithNavigator(submission.NavigatorFunc(func(path string) error {
					_, err := fmt.Fprintln(out, client.BaseURL()+path)
					return err
				})),
				submission.WithLogger(e.logger.Named("submission")),
			)
			result, err := submitter.SubmitPayload(cmd.Context(), cat.Patch.ID, payload)
			if err != nil {
				return err
			}
			notifier.Notify(fmt.Sprintf("Patch %s submitted as version %s (%d tasks)", cat.Patch.ID, result.Version, payload.Len()), notify.ClassInfo)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sopts.cells, "cell", nil, "variant=task1,task2 to check (repeatable)")
	cmd.Flags().BoolVar(&sopts.dryRun, "dry-run", false, "print the payload instead of submitting it")
	return cmd
}

// applyCells drives the matrix the way the editor does: select the variant
// on its own, then check each task through the aggregator.
func applyCells(m *matrix.Matrix, cells []string) error {
	for _, cell := range cells {
		variant, tasks, ok := strings.Cut(cell, "=")
		variant = strings.TrimSpace(variant)
		if !ok || variant == "" {
			return fmt.Errorf("invalid --cell %q: want variant=task1,task2", cell)
		}
		if err := m.SelectID(variant, matrix.Modifiers{}); err != nil {
			return fmt.Errorf("--cell %q: %w", cell, err)
		}
		agg := m.Aggregator()
		for _, task := range strings.Split(tasks, ",") {
			task = strings.TrimSpace(task)
			if task == "" {
				continue
			}
			if agg.Set(task, true) == 0 {
				return fmt.Errorf("--cell %q: variant %q has no task %q", cell, variant, task)
			}
		}
	}
	m.ClearSelection()
	return nil
}
