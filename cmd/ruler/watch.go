package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rulerbuild/ruler/internal/build"
	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/rule"
	"github.com/rulerbuild/ruler/internal/system"
)

const watchDebounce = 150 * time.Millisecond

// watchAndBuild runs an initial build, then watches every source leaf
// for changes and re-runs the whole scheduler on each debounced burst
// of events. This is intentionally a thin, non-incremental
// re-invocation — the scheduler itself already skips unchanged work
// via the resolution engine, so watch mode doesn't need its own
// dependency tracking.
func watchAndBuild(sys system.System, opts build.Options) error {
	if err := runBuild(sys, opts); err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addLeavesToWatcher(sys, opts, watcher); err != nil {
		return err
	}

	var timer *time.Timer
	rebuild := make(chan struct{}, 1)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case rebuild <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			}
		}
	}()

	for range rebuild {
		if err := runBuild(sys, opts); err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		}
	}
	return nil
}

func addLeavesToWatcher(sys system.System, opts build.Options, watcher *fsnotify.Watcher) error {
	files := make([]rule.FileContent, 0, len(opts.RuleFiles))
	for _, rf := range opts.RuleFiles {
		f, err := sys.Open(rf)
		if err != nil {
			return err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		files = append(files, rule.FileContent{Filename: rf, Content: string(content)})
		if err := watcher.Add(rf); err != nil {
			return err
		}
	}

	rules, err := rule.ParseAll(files)
	if err != nil {
		return err
	}

	pack, err := graph.Sort(rules, opts.Goal)
	if err != nil {
		return err
	}

	for _, leaf := range pack.Leaves {
		if sys.IsFile(leaf) {
			watcher.Add(leaf)
		}
	}
	return nil
}
