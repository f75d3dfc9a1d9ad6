// Package report renders run summaries and store status for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/anthropic/githist/internal/ingest"
	"github.com/anthropic/githist/internal/normalize"
)

// ANSI escape codes for terminal formatting.
const (
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	reset  = "\033[0m"
)

const timeRounding = time.Millisecond

// FormatRunSummary formats an ingestion run summary as a terminal-friendly
// string. Skipped commits are listed individually so consumers can tell
// which aggregates may be incomplete.
func FormatRunSummary(s *ingest.Summary) string {
	var b strings.Builder

	b.WriteString(bold + "Ingestion Run" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")

	b.WriteString(fmt.Sprintf("HEAD:        %s\n", shortHash(s.Head)))
	b.WriteString(fmt.Sprintf("Ingested:    %s%d%s\n", green, s.Ingested, reset))
	b.WriteString(fmt.Sprintf("Unchanged:   %d\n", s.Unchanged))
	if s.Overwritten > 0 {
		b.WriteString(fmt.Sprintf("Overwritten: %s%d%s (history rewrite upstream)\n", yellow, s.Overwritten, reset))
	}
	b.WriteString(fmt.Sprintf("Skipped:     %s\n", countColor(len(s.Skipped))))
	if s.Truncated {
		b.WriteString(yellow + "History is shallow: aggregates cover partial history." + reset + "\n")
	}
	b.WriteString(fmt.Sprintf("Elapsed:     %s\n", s.Elapsed.Round(timeRounding)))

	if len(s.Skipped) > 0 {
		b.WriteString("\n" + bold + "Skipped commits" + reset + "\n")
		b.WriteString(formatSkipped(s.Skipped))
	}

	return b.String()
}

// Status is the store-side state shown by the status command.
type Status struct {
	Commits    int64
	Files      int64
	Checkpoint string
	Truncated  bool
	Skipped    []normalize.SkippedCommit
}

// FormatStatus formats store counts, the incremental checkpoint, and the
// persistent skip log.
func FormatStatus(st *Status) string {
	var b strings.Builder

	b.WriteString(bold + "Store Status" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")

	b.WriteString(fmt.Sprintf("Commits:      %d\n", st.Commits))
	b.WriteString(fmt.Sprintf("Commit files: %d\n", st.Files))
	if st.Checkpoint == "" {
		b.WriteString("Checkpoint:   (none, full run pending)\n")
	} else {
		b.WriteString(fmt.Sprintf("Checkpoint:   %s\n", shortHash(st.Checkpoint)))
	}
	if st.Truncated {
		b.WriteString(yellow + "Last run saw shallow history." + reset + "\n")
	}

	if len(st.Skipped) > 0 {
		b.WriteString("\n" + bold + "Skipped commits" + reset + "\n")
		b.WriteString(formatSkipped(st.Skipped))
	}

	return b.String()
}

func formatSkipped(skipped []normalize.SkippedCommit) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, sk := range skipped {
		b.WriteString(fmt.Sprintf("%s%s%s  %s\n", red, shortHash(sk.ID), reset, sk.Reason))
	}
	return b.String()
}

func countColor(n int) string {
	if n == 0 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s%d%s", red, n, reset)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
