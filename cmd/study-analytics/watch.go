package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/study-analytics-engine/internal/logging"
	"github.com/study-analytics-engine/internal/refresh"
)

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the dataset on change and print a fresh summary after each reload",
		Args:  cobra.NoArgs,
	}
	parse := rangeFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		r, err := parse()
		if err != nil {
			return err
		}
		if a.dataset == "" {
			return fmt.Errorf("watch requires --dataset or dataset.path")
		}

		out := cmd.OutOrStdout()
		refresher, err := refresh.NewRefresher(a.store, a.manager.GetConfig().Watch,
			func(ctx context.Context, version uint64) error {
				summary, err := a.engine.GetSummary(r)
				if err != nil {
					return err
				}
				return writeJSON(out, summary)
			}, a.logger)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error { return refresher.Run(ctx) })
		g.Go(func() error { return a.watchFile(ctx) })
		return g.Wait()
	}
	return cmd
}

// watchFile re-imports the dataset whenever it is written or replaced. The
// parent directory is watched so editors that swap files atomically are seen.
func (a *app) watchFile(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(a.dataset)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	log := logging.Component(a.logger, "watch").WithField("path", target)
	log.Info("Watching dataset")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := a.load(); err != nil {
				// a half-written file is retried on the next event
				log.WithError(err).Warn("Dataset reload failed")
				continue
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("File watcher error")
		}
	}
}
