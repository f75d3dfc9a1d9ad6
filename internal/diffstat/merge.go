package diffstat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// mergeStats attributes to a merge commit only the content it introduced
// itself. A line counts as added only if a line-level diff against every
// parent's version of the path reports it inserted; deletions are the
// mirror image. Lines that arrived from either branch are already counted
// at their original commits, so counting them again here would inflate
// every sum(added)+sum(deleted) aggregate by the size of the merged branch.
func (s *Summarizer) mergeStats(ctx context.Context, c *object.Commit) ([]FileStat, error) {
	primary, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	primaryTree, err := primary.Tree()
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	// Touched paths come from the diff against the primary parent, same
	// as git's own default merge rendering.
	changes, err := object.DiffTreeWithOptions(ctx, primaryTree, tree, s.diffOptions())
	if err != nil {
		return nil, err
	}

	parents := make([]*object.Commit, 0, c.NumParents())
	for i := 0; i < c.NumParents(); i++ {
		p, err := c.Parent(i)
		if err != nil {
			return nil, err
		}
		parents = append(parents, p)
	}

	var stats []FileStat
	for _, change := range changes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		path := change.To.Name
		if path == "" {
			path = change.From.Name
		}

		result, binary, err := fileContent(c, path)
		if err != nil {
			return nil, err
		}

		versions := make([]string, 0, len(parents))
		for _, p := range parents {
			v, pbin, err := fileContent(p, path)
			if err != nil {
				return nil, err
			}
			binary = binary || pbin
			versions = append(versions, v)
		}

		if binary {
			// Touch signal only; line counts are meaningless for binaries.
			stats = append(stats, FileStat{Path: path, Binary: true})
			continue
		}

		added, deleted := mergeAttribution(result, versions)
		if added == 0 && deleted == 0 {
			// Nothing the merge introduced itself; the path is not
			// reported at all (a clean merge contributes zero rows).
			continue
		}
		stats = append(stats, FileStat{Path: path, Added: added, Deleted: deleted})
	}
	return stats, nil
}

// mergeAttribution diffs result against each parent version in line mode
// and intersects the outcomes: a line is added only if every parent diff
// inserts it, deleted only if every parent diff removes it. Counts are
// per-occurrence, so duplicated lines are handled as multisets.
func mergeAttribution(result string, parents []string) (added, deleted int) {
	if len(parents) == 0 {
		return 0, 0
	}

	var addedCounts, deletedCounts map[string]int
	for i, parent := range parents {
		ins, del := lineDiffCounts(parent, result)
		if i == 0 {
			addedCounts, deletedCounts = ins, del
			continue
		}
		addedCounts = intersectCounts(addedCounts, ins)
		deletedCounts = intersectCounts(deletedCounts, del)
	}

	for _, n := range addedCounts {
		added += n
	}
	for _, n := range deletedCounts {
		deleted += n
	}
	return added, deleted
}

// lineDiffCounts runs a line-mode diff from parent to result and returns
// per-line occurrence counts of insertions and deletions.
func lineDiffCounts(parent, result string) (inserted, deleted map[string]int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(parent, result)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	inserted = make(map[string]int)
	deleted = make(map[string]int)
	for _, d := range diffs {
		var counts map[string]int
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			counts = inserted
		case diffmatchpatch.DiffDelete:
			counts = deleted
		default:
			continue
		}
		for _, line := range splitLines(d.Text) {
			counts[line]++
		}
	}
	return inserted, deleted
}

// intersectCounts keeps each line at the minimum of its two counts.
func intersectCounts(a, b map[string]int) map[string]int {
	out := make(map[string]int)
	for line, n := range a {
		if m := b[line]; m > 0 {
			if m < n {
				n = m
			}
			out[line] = n
		}
	}
	return out
}

// splitLines splits diff text into lines, tolerating a missing final newline.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// fileContent returns the content of path as of commit c. A path absent
// from the commit's tree is an empty version, not an error.
func fileContent(c *object.Commit, path string) (content string, binary bool, err error) {
	f, err := c.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s at %s: %w", path, shortHash(c.Hash.String()), err)
	}

	binary, err = f.IsBinary()
	if err != nil {
		return "", false, fmt.Errorf("read %s at %s: %w", path, shortHash(c.Hash.String()), err)
	}
	if binary {
		return "", true, nil
	}

	content, err = f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("read %s at %s: %w", path, shortHash(c.Hash.String()), err)
	}
	return content, false, nil
}
