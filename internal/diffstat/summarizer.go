// Package diffstat computes per-file added/deleted line counts for a commit
// relative to its parents. Counts are what the downstream relations store,
// so the rules here (merge attribution, rename folding, binary handling)
// directly decide whether aggregate queries over-count.
package diffstat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FileStat is one touched path in a commit. Binary files carry zero counts
// but are still reported, so file-level hotspot queries see the touch.
type FileStat struct {
	Path    string
	Added   int
	Deleted int
	Binary  bool
}

// DiffError wraps a failure to compute a commit's diff. The commit it names
// is skipped and recorded, never silently dropped.
type DiffError struct {
	Hash string
	Err  error
}

func (e *DiffError) Error() string {
	return fmt.Sprintf("diff for %s: %v", shortHash(e.Hash), e.Err)
}

func (e *DiffError) Unwrap() error { return e.Err }

// Summarizer computes FileStats for commits.
type Summarizer struct {
	// RenameScore is go-git's 0-100 similarity threshold. A rename at or
	// above it folds into one entry under the new path with only the
	// changed lines counted; below it the old and new paths are reported
	// as independent delete/add entries.
	RenameScore uint

	// Timeout bounds the work spent on one commit. Pathological merges
	// can be arbitrarily expensive; a timed-out commit is skipped.
	Timeout time.Duration
}

// Summarize returns the touched paths of c with line counts relative to its
// parent set: 0 parents = root (everything added), 1 = two-way diff,
// >=2 = merge (only lines absent from every parent are attributed).
// Results are sorted by path.
func (s *Summarizer) Summarize(ctx context.Context, c *object.Commit) ([]FileStat, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var (
		stats []FileStat
		err   error
	)
	switch c.NumParents() {
	case 0:
		stats, err = s.rootStats(ctx, c)
	case 1:
		stats, err = s.parentStats(ctx, c)
	default:
		stats, err = s.mergeStats(ctx, c)
	}
	if err != nil {
		return nil, &DiffError{Hash: c.Hash.String(), Err: err}
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats, nil
}

// rootStats counts every file in the tree as fully added.
func (s *Summarizer) rootStats(ctx context.Context, c *object.Commit) ([]FileStat, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	var stats []FileStat
	err = tree.Files().ForEach(func(f *object.File) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		binary, err := f.IsBinary()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		if binary {
			stats = append(stats, FileStat{Path: f.Name, Binary: true})
			return nil
		}

		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		stats = append(stats, FileStat{Path: f.Name, Added: countLines(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// parentStats is the standard two-way diff against the single parent.
func (s *Summarizer) parentStats(ctx context.Context, c *object.Commit) ([]FileStat, error) {
	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, s.diffOptions())
	if err != nil {
		return nil, err
	}

	var stats []FileStat
	for _, change := range changes {
		st, err := changeStat(ctx, change)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// changeStat turns one tree change into a FileStat. Renames detected by
// go-git arrive as a single change whose patch covers only the changed
// lines; the stat is reported under the new path.
func changeStat(ctx context.Context, change *object.Change) (FileStat, error) {
	path := change.To.Name
	if path == "" {
		path = change.From.Name
	}
	st := FileStat{Path: path}

	patch, err := change.PatchContext(ctx)
	if err != nil {
		return st, fmt.Errorf("patch %s: %w", path, err)
	}

	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			st.Binary = true
			continue
		}
		for _, chunk := range fp.Chunks() {
			n := countLines(chunk.Content())
			switch chunk.Type() {
			case fdiff.Add:
				st.Added += n
			case fdiff.Delete:
				st.Deleted += n
			}
		}
	}
	return st, nil
}

func (s *Summarizer) diffOptions() *object.DiffTreeOptions {
	return &object.DiffTreeOptions{
		DetectRenames: true,
		RenameScore:   s.RenameScore,
	}
}

// countLines counts newline-terminated lines plus a final unterminated line.
func countLines(content string) int {
	n := strings.Count(content, "\n")
	if len(content) > 0 && content[len(content)-1] != '\n' {
		n++
	}
	return n
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}
