package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anthropic/githist/internal/normalize"
)

// ErrWriteConflict means a previously stored commit's content differs from
// the incoming record. History is immutable by identity, so this signals a
// rewrite upstream; the store never silently overwrites.
var ErrWriteConflict = errors.New("stored commit differs from incoming record")

// Outcome describes what InsertCommit did.
type Outcome int

const (
	// OutcomeInserted means the commit was new and its rows were written.
	OutcomeInserted Outcome = iota
	// OutcomeUnchanged means identical rows already existed; nothing was written.
	OutcomeUnchanged
	// OutcomeOverwritten means differing rows existed and were replaced
	// because the caller allowed overwrites.
	OutcomeOverwritten
)

// timeFormat is the single timestamp representation used in the relations.
const timeFormat = time.RFC3339

// InsertCommit writes a commit and all of its commit_files rows in one
// transaction, so a partially ingested commit is never visible. Re-inserting
// an identical commit is a no-op, which makes ingestion idempotent. If the
// stored content differs, the result is ErrWriteConflict unless overwrite
// is set, in which case the old rows are replaced.
func (s *Store) InsertCommit(c normalize.Commit, files []normalize.CommitFile, overwrite bool) (Outcome, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	outcome, err := insertCommitTx(tx, c, files, overwrite)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if outcome == OutcomeUnchanged {
		// Nothing was written; don't hold the write lock.
		_ = tx.Rollback()
		return outcome, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", c.ID, err)
	}
	return outcome, nil
}

func insertCommitTx(tx *sql.Tx, c normalize.Commit, files []normalize.CommitFile, overwrite bool) (Outcome, error) {
	when := c.AuthorWhen.UTC().Format(timeFormat)

	var existing normalize.Commit
	var existingWhen string
	err := tx.QueryRow(
		`SELECT summary, author_name, author_email, author_when FROM commits WHERE id = ?`, c.ID,
	).Scan(&existing.Summary, &existing.AuthorName, &existing.AuthorEmail, &existingWhen)

	switch {
	case err == sql.ErrNoRows:
		if err := writeRows(tx, c, when, files, false); err != nil {
			return 0, err
		}
		return OutcomeInserted, nil
	case err != nil:
		return 0, fmt.Errorf("lookup %s: %w", c.ID, err)
	}

	existingFiles, err := filesTx(tx, c.ID)
	if err != nil {
		return 0, err
	}

	same := existing.Summary == c.Summary &&
		existing.AuthorName == c.AuthorName &&
		existing.AuthorEmail == c.AuthorEmail &&
		existingWhen == when &&
		sameFiles(existingFiles, files)
	if same {
		return OutcomeUnchanged, nil
	}

	if !overwrite {
		return 0, fmt.Errorf("commit %s: %w", c.ID, ErrWriteConflict)
	}
	if err := writeRows(tx, c, when, files, true); err != nil {
		return 0, err
	}
	return OutcomeOverwritten, nil
}

func writeRows(tx *sql.Tx, c normalize.Commit, when string, files []normalize.CommitFile, replace bool) error {
	if replace {
		if _, err := tx.Exec(`DELETE FROM commit_files WHERE id = ?`, c.ID); err != nil {
			return fmt.Errorf("clear files for %s: %w", c.ID, err)
		}
		_, err := tx.Exec(
			`UPDATE commits SET summary = ?, author_name = ?, author_email = ?, author_when = ? WHERE id = ?`,
			c.Summary, c.AuthorName, c.AuthorEmail, when, c.ID,
		)
		if err != nil {
			return fmt.Errorf("update commit %s: %w", c.ID, err)
		}
	} else {
		_, err := tx.Exec(
			`INSERT INTO commits (id, summary, author_name, author_email, author_when) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Summary, c.AuthorName, c.AuthorEmail, when,
		)
		if err != nil {
			return fmt.Errorf("insert commit %s: %w", c.ID, err)
		}
	}

	for _, f := range files {
		_, err := tx.Exec(
			`INSERT INTO commit_files (id, name, added, deleted) VALUES (?, ?, ?, ?)`,
			f.CommitID, f.Name, f.Added, f.Deleted,
		)
		if err != nil {
			return fmt.Errorf("insert file %s for %s: %w", f.Name, c.ID, err)
		}
	}
	return nil
}

// FilesForCommit returns the commit_files rows for a commit, ordered by name.
func (s *Store) FilesForCommit(id string) ([]normalize.CommitFile, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return filesTx(tx, id)
}

func filesTx(tx *sql.Tx, id string) ([]normalize.CommitFile, error) {
	rows, err := tx.Query(
		`SELECT name, added, deleted FROM commit_files WHERE id = ? ORDER BY name`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("files for %s: %w", id, err)
	}
	defer rows.Close()

	var files []normalize.CommitFile
	for rows.Next() {
		f := normalize.CommitFile{CommitID: id}
		if err := rows.Scan(&f.Name, &f.Added, &f.Deleted); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// sameFiles assumes both slices are sorted by name, which normalize.BuildFiles
// and filesTx guarantee.
func sameFiles(a, b []normalize.CommitFile) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Added != b[i].Added || a[i].Deleted != b[i].Deleted {
			return false
		}
	}
	return true
}

// RecordSkipped persists a skip marker for a commit whose diff failed or
// timed out. Re-recording the same commit updates the reason.
func (s *Store) RecordSkipped(sk normalize.SkippedCommit) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.Exec(
		`INSERT INTO skipped_commits (id, reason, recorded_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET reason = excluded.reason, recorded_at = excluded.recorded_at`,
		sk.ID, sk.Reason, now,
	)
	if err != nil {
		return fmt.Errorf("record skipped %s: %w", sk.ID, err)
	}
	return nil
}

// ClearSkipped removes a skip marker, used when a later run ingests the
// commit successfully.
func (s *Store) ClearSkipped(id string) error {
	_, err := s.db.Exec(`DELETE FROM skipped_commits WHERE id = ?`, id)
	return err
}

// Skipped lists all persisted skip markers, oldest hash first.
func (s *Store) Skipped() ([]normalize.SkippedCommit, error) {
	rows, err := s.db.Query(`SELECT id, reason FROM skipped_commits ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skipped []normalize.SkippedCommit
	for rows.Next() {
		var sk normalize.SkippedCommit
		if err := rows.Scan(&sk.ID, &sk.Reason); err != nil {
			return nil, err
		}
		skipped = append(skipped, sk)
	}
	return skipped, rows.Err()
}
