// Package watcher triggers incremental ingestion runs when the watched
// repository's refs move. It looks only at the git dir (HEAD, refs,
// packed-refs); working-tree churn is irrelevant until it is committed.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow collapses the burst of ref writes a single git operation
// produces into one trigger.
const debounceWindow = 500 * time.Millisecond

// Watcher monitors a repository's git dir and invokes onChange, debounced,
// whenever a ref update lands.
type Watcher struct {
	gitDir    string
	onChange  func()
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
}

// New creates a Watcher for the repository at repoPath.
func New(repoPath string, onChange func()) *Watcher {
	return &Watcher{
		gitDir:   filepath.Join(repoPath, ".git"),
		onChange: onChange,
	}
}

// Start begins watching. It blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()

	w.debouncer = NewDebouncer(debounceWindow, w.onChange)
	defer w.debouncer.Stop()

	// HEAD and packed-refs live directly in the git dir; loose refs under
	// refs/heads. Missing subdirectories (fresh repos) are fine.
	for _, dir := range []string{
		w.gitDir,
		filepath.Join(w.gitDir, "refs"),
		filepath.Join(w.gitDir, "refs", "heads"),
	} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			log.Printf("watcher: watch %s: %v", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if refChange(w.gitDir, ev.Name) {
				w.debouncer.Trigger()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: %v", err)
		}
	}
}
