// Package ingest runs one pass of the pipeline: walk the history, summarize
// diffs on a bounded worker pool, and persist normalized rows through a
// single writer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/anthropic/githist/internal/config"
	"github.com/anthropic/githist/internal/diffstat"
	"github.com/anthropic/githist/internal/gitlog"
	"github.com/anthropic/githist/internal/normalize"
	"github.com/anthropic/githist/internal/store"
)

// State keys used in ingest_state.
const (
	StateLastHead  = "last_ingested_head"
	StateTruncated = "history_truncated"
)

// Summary reports what one run did. Skips and overwrites are always
// surfaced here and persisted; nothing is silently swallowed.
type Summary struct {
	Head        string
	Ingested    int
	Unchanged   int
	Overwritten int
	Skipped     []normalize.SkippedCommit
	Truncated   bool
	Elapsed     time.Duration
}

// Runner wires a reader and a store into one ingestion pass.
type Runner struct {
	cfg    *config.Config
	reader *gitlog.Reader
	store  *store.Store
}

// New creates a Runner.
func New(cfg *config.Config, reader *gitlog.Reader, st *store.Store) *Runner {
	return &Runner{cfg: cfg, reader: reader, store: st}
}

// result carries one commit's rows (or its skip marker) from a worker to
// the writer. A result with all fields nil is a cancelled in-flight commit
// and is dropped without trace; cancellation is not a skip.
type result struct {
	commit *normalize.Commit
	files  []normalize.CommitFile
	skip   *normalize.SkippedCommit
}

// Run performs one ingestion pass from the stored checkpoint to HEAD.
// It is safe to cancel at any time: rows are written one commit per
// transaction, so an abort never leaves partial commit_files rows, and the
// checkpoint only advances after a complete pass.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	shallow, err := r.reader.Shallow()
	if err != nil {
		return nil, err
	}
	if shallow {
		if !r.cfg.AllowShallow {
			return nil, fmt.Errorf("%w (use allow_shallow to ingest partial history)", gitlog.ErrHistoryTruncated)
		}
		log.Printf("ingest: shallow history, aggregates will be incomplete")
		summary.Truncated = true
	}

	head, err := r.reader.Head()
	if err != nil {
		return nil, err
	}
	summary.Head = head

	resume, err := r.store.GetState(StateLastHead)
	if err != nil {
		return nil, err
	}
	if resume == head {
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	pool, err := ants.NewPool(r.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	summarizer := &diffstat.Summarizer{
		RenameScore: uint(r.cfg.RenameThreshold),
		Timeout:     r.cfg.DiffTimeout(),
	}
	// All writes go through this one goroutine, which keeps the store's
	// per-commit transactions serialized. Workers only compute.
	results := make(chan result, r.cfg.Workers*2)
	done := make(chan error, 1)
	go func() {
		var werr error
		for res := range results {
			if werr != nil {
				continue // drain so workers never block after a failure
			}
			werr = r.write(summary, res)
		}
		done <- werr
	}()

	var wg sync.WaitGroup
	walkErr := r.reader.Walk(ctx, resume, func(rec *gitlog.Record) error {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results <- summarizeOne(ctx, summarizer, rec)
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("submit %s: %w", rec.Hash, err)
		}
		return nil
	})

	wg.Wait()
	close(results)
	writeErr := <-done
	summary.Elapsed = time.Since(start)

	if walkErr != nil {
		return summary, walkErr
	}
	if writeErr != nil {
		return summary, writeErr
	}
	// The walk can finish before a cancellation lands, leaving in-flight
	// commits dropped unwritten. The checkpoint never advances past them.
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if err := r.store.SetState(StateLastHead, head); err != nil {
		return summary, fmt.Errorf("advance checkpoint: %w", err)
	}
	flag := "0"
	if summary.Truncated {
		flag = "1"
	}
	if err := r.store.SetState(StateTruncated, flag); err != nil {
		return summary, err
	}
	return summary, nil
}

// write persists one result and folds it into the summary. Only the writer
// goroutine calls this.
func (r *Runner) write(summary *Summary, res result) error {
	if res.skip != nil {
		summary.Skipped = append(summary.Skipped, *res.skip)
		return r.store.RecordSkipped(*res.skip)
	}
	if res.commit == nil {
		return nil // cancelled in flight
	}

	outcome, err := r.store.InsertCommit(*res.commit, res.files, r.cfg.OnConflict == config.ConflictOverwrite)
	if err != nil {
		return err
	}
	switch outcome {
	case store.OutcomeInserted:
		summary.Ingested++
	case store.OutcomeUnchanged:
		summary.Unchanged++
	case store.OutcomeOverwritten:
		summary.Overwritten++
	}
	// A commit skipped by an earlier run is no longer incomplete.
	return r.store.ClearSkipped(res.commit.ID)
}

// summarizeOne runs the diff summarizer for one commit and normalizes the
// outcome. Failures and per-commit timeouts become skip markers; run
// cancellation yields an empty result instead.
func summarizeOne(ctx context.Context, s *diffstat.Summarizer, rec *gitlog.Record) result {
	stats, err := s.Summarize(ctx, rec.Object())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result{}
		}
		return result{skip: &normalize.SkippedCommit{ID: rec.Hash, Reason: err.Error()}}
	}

	c := normalize.BuildCommit(rec)
	return result{commit: &c, files: normalize.BuildFiles(c.ID, stats)}
}
