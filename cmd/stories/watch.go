package main

import (
	"context"
	"time"

	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
)

var watchDrafts bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Render the site and re-render it on every change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := renderSite(cmd.Context(), watchDrafts); err != nil {
			return err
		}
		return rerenderOnChange(cmd.Context(), watchDrafts)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchDrafts, "drafts", false, "Include posts and pages with the draft flag")
}

// rerenderOnChange blocks until ctx is done. A failed render is logged and
// the watcher keeps going so the next save can fix it.
func rerenderOnChange(ctx context.Context, drafts bool) error {
	w := watcher.New()
	w.SetMaxEvents(1)

	for _, dir := range conf.SourceDirs() {
		if err := w.AddRecursive(dir); err != nil {
			logger.Warn("cannot watch", "dir", dir, "err", err)
			continue
		}
		logger.Info("watching for changes", "dir", dir)
	}

	go func() {
		for {
			select {
			case ev := <-w.Event:
				logger.Info("change detected", "path", ev.Path, "op", ev.Op.String())
				if err := renderSite(ctx, drafts); err != nil {
					logger.Error("render failed", "err", err)
				}
			case err := <-w.Error:
				logger.Error("watcher", "err", err)
			case <-ctx.Done():
				w.Close()
				return
			case <-w.Closed:
				return
			}
		}
	}()

	return w.Start(time.Millisecond * 200)
}
