package store

// migrations holds one SQL script per schema version, in order. A fresh
// database applies all of them; an existing one resumes from the version
// recorded under schema_version in ingest_state.
var migrations = []string{
	// v1: initial schema.
	`
-- One row per ingested commit. id is the commit hash; rows are immutable
-- once written (a content change on re-ingest is a write conflict).
CREATE TABLE IF NOT EXISTS commits (
	id           TEXT PRIMARY KEY,
	summary      TEXT NOT NULL DEFAULT '',
	author_name  TEXT NOT NULL,
	author_email TEXT NOT NULL DEFAULT '',
	author_when  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commits_author ON commits(author_name);
CREATE INDEX IF NOT EXISTS idx_commits_when ON commits(author_when);

-- One row per (commit, path) touched by that commit. name is the path as
-- of that commit; renames above the similarity threshold appear only under
-- the new name.
CREATE TABLE IF NOT EXISTS commit_files (
	id      TEXT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	added   INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (id, name)
);

CREATE INDEX IF NOT EXISTS idx_commit_files_name ON commit_files(name);

-- Commits whose diff failed or timed out. Kept so downstream consumers can
-- tell which aggregates may be incomplete.
CREATE TABLE IF NOT EXISTS skipped_commits (
	id          TEXT PRIMARY KEY,
	reason      TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);
`,
}
