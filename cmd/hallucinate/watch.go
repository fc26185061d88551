package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// watchOfflineIndexes warns on stderr if an offline index file changes on
// disk while a run is in progress. The engine's backend list is immutable
// for the run — this is advisory only, so the operator knows a restart is
// needed to pick up a rebuilt index. It never blocks the caller; a failure
// to create the watcher is logged, and a path that cannot be watched is
// skipped without a message.
func watchOfflineIndexes(paths ...string) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not watch offline index files: %v\n", err)
		return func() {}
	}

	watched := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err == nil {
			watched++
		}
	}
	if watched == 0 {
		watcher.Close()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					fmt.Fprintf(os.Stderr, "warning: offline index %s changed on disk; restart to pick up the rebuilt index\n", ev.Name)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}
}
