package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/patchmatrix/internal/catalog"
	"github.com/kingrea/patchmatrix/internal/config"
	"github.com/kingrea/patchmatrix/internal/logging"
	"github.com/kingrea/patchmatrix/internal/notify"
	"github.com/kingrea/patchmatrix/internal/transport"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	projectDir  string
	catalogPath string
	serverURL   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "patchmatrix",
		Short: "Choose which tasks run on which build variants for a patch",
		Long: `patchmatrix edits a variant x task selection matrix for a patch and
submits the checked cells to a patch server.

Select one or more variants, then check or uncheck tasks; a task checkbox
writes to every selected variant that defines it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.projectDir, "project", "C", "", "project directory holding .patchmatrix/ (default: current directory)")
	root.PersistentFlags().StringVarP(&opts.catalogPath, "catalog", "f", "", "catalog file (YAML or JSON) describing the patch and its variants")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "patch server base URL (overrides config)")

	root.AddCommand(
		newEditCmd(opts),
		newSubmitCmd(opts),
		newServeCmd(opts),
		newShowCmd(opts),
		newConfigCmd(opts),
		newNotificationsCmd(opts),
	)
	return root
}

// env is what a subcommand needs at run time.
type env struct {
	cfg     *config.Config
	logger  *logging.Logger
	journal *notify.Journal
}

func (e *env) Close() {
	if e != nil {
		_ = e.logger.Close()
	}
}

// loadEnv prepares .patchmatrix/, loads the config and opens the log and
// notification journal.
func loadEnv(opts *rootOptions) (*env, error) {
	dir := strings.TrimSpace(opts.projectDir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = cwd
	}
	if err := config.InitProjectDir(dir); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", config.ProjectDirName, err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(dir)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	if cfg.JournalEnabled() {
		journal, err := notify.NewJournal(cfg.JournalPath())
		if err != nil {
			_ = logger.Close()
			return nil, err
		}
		e.journal = journal
	}
	return e, nil
}

func (o *rootOptions) loadCatalog() (catalog.Catalog, error) {
	path := strings.TrimSpace(o.catalogPath)
	if path == "" {
		return catalog.Catalog{}, errors.New("--catalog is required")
	}
	return catalog.LoadFile(path)
}

// baseURL resolves the patch server: flag, then config.
func (o *rootOptions) baseURL(cfg *config.Config) string {
	if url := strings.TrimSpace(o.serverURL); url != "" {
		return url
	}
	return cfg.Project.Server.BaseURL
}

func (e *env) newClient(opts *rootOptions) (*transport.Client, error) {
	server := e.cfg.Project.Server
	return transport.NewClient(transport.Config{
		BaseURL:     opts.baseURL(e.cfg),
		Timeout:     server.Timeout,
		MaxAttempts: server.MaxAttempts,
		Logger:      e.logger.Named("transport"),
	})
}
