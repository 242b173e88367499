package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modchain/internal/watch"
)

// watchCmd hot-loads containers from the configured directories until
// interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Watch directories and hot-load module containers",
	Long: `Sweeps the given directories (or watch.dirs from the config file),
loading every container found, then keeps watching for new, changed, and
deleted files. Ctrl-C stops the watcher.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := args
		if len(dirs) == 0 {
			dirs = cfg.Watch.Dirs
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no directories to watch: pass them as arguments or set watch.dirs")
		}

		strat, order, err := loadStrategy()
		if err != nil {
			return err
		}

		r := newResolver()
		if _, err := loadModules(r); err != nil {
			return err
		}

		w, err := watch.New(r, dirs,
			watch.WithStrategy(strat),
			watch.WithMergeOrder(order),
			watch.WithDebounce(cfg.GetWatchDebounce()),
			watch.WithWatchLogger(logger))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if err := w.Start(ctx); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		w.Stop()
		stats := w.Snapshot()
		fmt.Printf("watcher stopped: loaded=%d reloaded=%d unloaded=%d errors=%d\n",
			stats.FilesLoaded, stats.FilesReloaded, stats.FilesUnloaded, stats.Errors)
		return nil
	},
}
