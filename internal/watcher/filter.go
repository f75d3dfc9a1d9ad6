package watcher

import (
	"path/filepath"
	"strings"
)

// refChange reports whether a path change inside the git dir indicates a
// ref update worth re-ingesting for. Git's transient files (lock files,
// the index, object writes) are noise: they churn on every command without
// the history having moved.
func refChange(gitDir, path string) bool {
	rel, err := filepath.Rel(gitDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if strings.HasSuffix(rel, ".lock") {
		return false
	}

	if rel == "HEAD" || rel == "packed-refs" {
		return true
	}
	return strings.HasPrefix(rel, "refs"+string(filepath.Separator))
}
