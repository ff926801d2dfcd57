package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/towerworks/foundation-core/internal/designd"
	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	logLevel  string
	logFormat string
	dbPath    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "foundations",
		Short: "Design transmission-tower foundations",
		Long: `foundations searches the geometry space of footings, drilled piers,
piles and micropiles for every tower of a site, keeps the cheapest designs
that pass the geotechnical checks, and groups micropile towers into shared
installations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to the parameter file's log_level")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database for run history (in-memory when empty)")

	root.AddCommand(newOptimizeCmd(opts), newGroupCmd(opts), newServeCmd(opts))
	return root
}

// setupLogger installs the process logger. An explicit flag wins over the
// level carried by the parameter set.
func (o *globalOptions) setupLogger(cmd *cobra.Command, fallbackLevel string) (*slog.Logger, error) {
	level := o.logLevel
	if level == "" {
		level = fallbackLevel
	}
	log, err := logger.NewFormat(o.logFormat, level, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

func (o *globalOptions) openStore() (store.Store, error) {
	if o.dbPath == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(o.dbPath)
}

type runOptions struct {
	sitePath   string
	paramsPath string
	kind       string
	runID      string
}

func (r *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.sitePath, "site", "", "site YAML with towers, soil profiles and loads")
	cmd.Flags().StringVar(&r.paramsPath, "params", "", "engineering parameters YAML")
	cmd.Flags().StringVar(&r.runID, "run-id", "", "run identifier (generated when empty)")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("params")
}

func newOptimizeCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Find the best foundations of one kind for every tower of a site",
		Example: `  foundations optimize --site config/site.yaml --params config/params.yaml --kind pile
  foundations optimize --site site.yaml --params params.yaml --kind footing --db runs.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, ro, store.ModeOptimize)
		},
	}
	ro.bind(cmd)
	cmd.Flags().StringVar(&ro.kind, "kind", "", "foundation kind ("+kindList()+")")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newGroupCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:     "group",
		Short:   "Cover a site's micropile towers with shared installations",
		Example: `  foundations group --site config/site.yaml --params config/params.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, ro, store.ModeGroup)
		},
	}
	ro.bind(cmd)
	return cmd
}

// runJob executes one job synchronously and prints its result as JSON.
func runJob(cmd *cobra.Command, opts *globalOptions, ro *runOptions, mode store.Mode) error {
	params, err := config.LoadParameters(ro.paramsPath)
	if err != nil {
		return err
	}
	log, err := opts.setupLogger(cmd, params.LogLevel)
	if err != nil {
		return err
	}
	s, err := config.LoadSite(ro.sitePath)
	if err != nil {
		return err
	}
	job := designd.Job{Mode: mode, Site: s, Params: params}
	if ro.kind != "" {
		if job.Kind, err = config.ParseKind(ro.kind); err != nil {
			return err
		}
	}
	if err := job.Validate(); err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID := ro.runID
	if runID == "" {
		runID = utils.GenerateRunID()
	}
	rec, err := job.Record(runID)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := st.Create(ctx, rec); err != nil {
		return err
	}
	if _, err := st.SetStatus(ctx, runID, store.StatusRunning, ""); err != nil {
		return err
	}

	res, err := job.Execute(ctx, runID, st, log)
	if err != nil {
		status := store.StatusFailed
		if ctx.Err() != nil {
			status = store.StatusCancelled
		}
		if _, setErr := st.SetStatus(context.WithoutCancel(ctx), runID, status, err.Error()); setErr != nil {
			log.Error("failed to set run status", "run_id", runID, "error", setErr)
		}
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if _, err := st.SetStatus(ctx, runID, store.StatusCompleted, ""); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func kindList() string {
	names := make([]string, len(models.Kinds))
	for i, k := range models.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
