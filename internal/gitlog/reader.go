// Package gitlog reads raw commit records from a git repository using go-git.
// It is strictly read-only: the repository is never mutated.
package gitlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrSourceUnavailable means the repository could not be opened or read.
	ErrSourceUnavailable = errors.New("source repository unavailable")

	// ErrHistoryTruncated means the repository is a shallow clone, so part
	// of the history is missing. Callers decide whether to proceed.
	ErrHistoryTruncated = errors.New("history truncated (shallow clone)")
)

// Record is one raw commit as read from the history, before normalization.
type Record struct {
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorWhen  time.Time
	Parents     []string

	commit *object.Commit
}

// Object returns the underlying go-git commit for diff computation.
func (r *Record) Object() *object.Commit {
	return r.commit
}

// Reader walks a repository's commit history in a deterministic order.
type Reader struct {
	repo *git.Repository
	path string
}

// Open opens an existing git repository at repoPath.
func Open(repoPath string) (*Reader, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, repoPath, err)
	}
	return &Reader{repo: repo, path: repoPath}, nil
}

// Shallow reports whether the repository has shallow roots, meaning the
// walk will not reach the true beginning of history.
func (r *Reader) Shallow() (bool, error) {
	roots, err := r.repo.Storer.Shallow()
	if err != nil {
		return false, fmt.Errorf("read shallow roots: %w", err)
	}
	return len(roots) > 0, nil
}

// Head returns the commit hash HEAD currently points at.
func (r *Reader) Head() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: resolve HEAD: %v", ErrSourceUnavailable, err)
	}
	return head.Hash().String(), nil
}

// Walk streams commit records from HEAD in committer-time order, newest
// first. The order is deterministic for a fixed HEAD, so incremental runs
// are reproducible. If resume is non-empty, every commit reachable from it
// is excluded, so history merged in after the resume point is still
// visited even when its committer timestamps predate the resume commit.
func (r *Reader) Walk(ctx context.Context, resume string, fn func(*Record) error) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("%w: resolve HEAD: %v", ErrSourceUnavailable, err)
	}

	ingested, err := r.reachableFrom(resume)
	if err != nil {
		return err
	}

	iter, err := r.repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return fmt.Errorf("%w: git log: %v", ErrSourceUnavailable, err)
	}
	defer iter.Close()

	return iter.ForEach(func(c *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if ingested[c.Hash] {
			return nil
		}

		return fn(newRecord(c))
	})
}

// reachableFrom collects every commit reachable from the given hash by
// following parent links. A resume hash that no longer resolves (rewritten
// history) yields an empty set, so the full history is walked again;
// missing parents in shallow clones bound the set at the shallow roots.
func (r *Reader) reachableFrom(hash string) (map[plumbing.Hash]bool, error) {
	if hash == "" {
		return nil, nil
	}

	start, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve resume point %s: %w", hash, err)
	}

	seen := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(start, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil && !errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("walk resume history from %s: %w", hash, err)
	}
	return seen, nil
}

// newRecord extracts the raw fields the pipeline needs from a commit.
// Empty author fields become "<none>" so attribution queries never group
// on the empty string.
func newRecord(c *object.Commit) *Record {
	name := c.Author.Name
	if name == "" {
		name = "<none>"
	}
	email := c.Author.Email
	if email == "" {
		email = "<none>"
	}

	parents := make([]string, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}

	return &Record{
		Hash:        c.Hash.String(),
		Message:     c.Message,
		AuthorName:  name,
		AuthorEmail: email,
		AuthorWhen:  c.Author.When,
		Parents:     parents,
		commit:      c,
	}
}
