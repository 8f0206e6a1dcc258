// Package main provides the command line host for the study analytics engine.
// It loads a study dataset into an in-memory store and answers comparison and
// analytics queries against it as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/study-analytics-engine/internal/analytics"
	"github.com/study-analytics-engine/internal/config"
	"github.com/study-analytics-engine/internal/dataset"
	"github.com/study-analytics-engine/internal/logging"
	"github.com/study-analytics-engine/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configFile  string
	datasetPath string
	asOf        string
}

// app is the wiring shared by every subcommand.
type app struct {
	manager *config.Manager
	logger  *logrus.Logger
	closer  io.Closer
	store   *store.MemoryStore
	loader  *dataset.Loader
	engine  *analytics.Engine
	dataset string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "study-analytics",
		Short:        "Longitudinal comparison and agreement analytics for imaging studies",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default searches ./study-analytics.yaml)")
	flags.StringVar(&opts.datasetPath, "dataset", "", "YAML study dataset to load (overrides dataset.path)")
	flags.StringVar(&opts.asOf, "as-of", "", "evaluate date ranges as of this RFC3339 time or date instead of now")

	rootCmd.AddCommand(
		patientsCmd(a),
		diseasesCmd(a),
		seriesCmd(a),
		trendCmd(a),
		viewCmd(a),
		monthlyCmd(a),
		distributionCmd(a),
		topDiseaseCmd(a),
		summaryCmd(a),
		exportCmd(a),
		watchCmd(a),
	)
	return rootCmd
}

func (a *app) init(opts *options) error {
	manager, err := config.NewManager(opts.configFile)
	if err != nil {
		return err
	}
	if err := manager.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := manager.GetConfig()

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	engineCfg := *manager.GetEngineConfig()
	loc, err := time.LoadLocation(engineCfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	var engineOpts []analytics.Option
	if opts.asOf != "" {
		at, err := parseAsOf(opts.asOf, loc)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, analytics.WithClock(func() time.Time { return at }))
	}

	s := store.NewMemoryStore(logger)
	engine, err := analytics.NewEngine(s, engineCfg, logger, engineOpts...)
	if err != nil {
		return err
	}

	a.manager = manager
	a.logger = logger
	a.closer = closer
	a.store = s
	a.loader = dataset.NewLoader(loc, logger)
	a.engine = engine

	a.dataset = cfg.Dataset.Path
	if opts.datasetPath != "" {
		a.dataset = opts.datasetPath
	}
	if a.dataset != "" {
		if err := a.load(); err != nil {
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"config_file": manager.ConfigFileUsed(),
		"dataset":     a.dataset,
		"studies":     s.Len(),
		"environment": cfg.Environment,
	}).Debug("Study analytics initialized")
	return nil
}

// load reads the dataset file and upserts it into the store.
func (a *app) load() error {
	studies, err := a.loader.LoadFile(a.dataset)
	if err != nil {
		return err
	}
	added, updated, err := dataset.Import(a.store, studies)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"added":            added,
		"updated":          updated,
		"snapshot_version": a.store.Version(),
	}).Info("Dataset imported")
	return nil
}

func parseAsOf(v string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --as-of value %q", v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
