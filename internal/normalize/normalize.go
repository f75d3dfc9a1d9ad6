// Package normalize assembles reader and summarizer output into the rows
// of the two output relations. It is deterministic: identical input history
// always yields identical rows.
//
// Author identity is deliberately left as the free-text string recorded in
// the history. One person may appear under several names or emails;
// canonicalizing that is an operator/query-side policy decision, and doing
// it silently here would make attribution results unexplainable.
package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/anthropic/githist/internal/diffstat"
	"github.com/anthropic/githist/internal/gitlog"
)

// Commit is one row of the commits relation.
type Commit struct {
	ID          string
	Summary     string
	AuthorName  string
	AuthorEmail string
	AuthorWhen  time.Time
}

// CommitFile is one row of the commit_files relation.
type CommitFile struct {
	CommitID string
	Name     string
	Added    int
	Deleted  int
}

// SkippedCommit marks a commit whose diff could not be summarized. It is
// recorded instead of rows so run totals stay auditable.
type SkippedCommit struct {
	ID     string
	Reason string
}

// BuildCommit maps a raw record to a commits row: summary trimmed to the
// first message line, author timestamp coerced to UTC.
func BuildCommit(rec *gitlog.Record) Commit {
	return Commit{
		ID:          rec.Hash,
		Summary:     firstLine(rec.Message),
		AuthorName:  rec.AuthorName,
		AuthorEmail: rec.AuthorEmail,
		AuthorWhen:  rec.AuthorWhen.UTC(),
	}
}

// BuildFiles maps summarizer output to commit_files rows, sorted by path
// so row sets are byte-identical across runs.
func BuildFiles(commitID string, stats []diffstat.FileStat) []CommitFile {
	files := make([]CommitFile, 0, len(stats))
	for _, st := range stats {
		files = append(files, CommitFile{
			CommitID: commitID,
			Name:     st.Path,
			Added:    st.Added,
			Deleted:  st.Deleted,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// firstLine returns the first line of a commit message, trimmed.
func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return strings.TrimSpace(message)
}
