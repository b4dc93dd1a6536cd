package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/Hookline/core/errors"
	"github.com/FocuswithJustin/Hookline/core/story"
	"github.com/FocuswithJustin/Hookline/internal/logging"
)

// WatchCmd re-runs a change every time its input file is written.
type WatchCmd struct {
	ChangeCmd `embed:""`
}

// Run executes the watch command until interrupted.
func (c *WatchCmd) Run(g *Globals) error {
	cfg, err := g.Setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchFile(ctx, c.Path, func() error {
		doc, err := c.apply(cfg)
		if err != nil {
			// A half-written file is normal while an editor saves.
			logging.Warn("watch_render_failed", "path", c.Path, "error", err.Error())
			return nil
		}
		if err := doc.Render(out); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return nil
	})
}

// watchFile calls fn once immediately and again after every write that
// changes the content of path, until ctx is done or fn fails.
func watchFile(ctx context.Context, path string, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return errors.NewIO("watch", path, err)
	}

	last := fileDigest(path)
	if err := fn(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only re-run on write or create events
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			digest := fileDigest(path)
			if digest != "" && digest == last {
				continue
			}
			last = digest
			logging.Debug("watch_event", "path", event.Name, "op", event.Op.String())
			if err := fn(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("watch_error", "path", path, "error", err.Error())
		}
	}
}

// fileDigest returns the content digest of path, or "" if it cannot be read.
func fileDigest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return story.Digest(data)
}
