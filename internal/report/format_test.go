package report

import (
	"strings"
	"testing"
	"time"

	"github.com/anthropic/githist/internal/ingest"
	"github.com/anthropic/githist/internal/normalize"
)

func TestFormatRunSummary(t *testing.T) {
	s := &ingest.Summary{
		Head:        "0123456789abcdef0123456789abcdef01234567",
		Ingested:    42,
		Unchanged:   7,
		Overwritten: 1,
		Skipped: []normalize.SkippedCommit{
			{ID: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", Reason: "diff timed out"},
		},
		Truncated: true,
		Elapsed:   1234 * time.Millisecond,
	}

	out := FormatRunSummary(s)

	for _, want := range []string{
		"0123456789ab",   // shortened head
		"42",             // ingested
		"Overwritten: ",  // overwrite flagged
		"deadbeefdead",   // skipped commit listed
		"diff timed out", // with its reason
		"shallow",        // truncation warning
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRunSummary_CleanRunOmitsSections(t *testing.T) {
	out := FormatRunSummary(&ingest.Summary{Head: "abc", Ingested: 3})

	if strings.Contains(out, "Overwritten") {
		t.Error("clean run mentions overwrites")
	}
	if strings.Contains(out, "Skipped commits") {
		t.Error("clean run lists skipped commits")
	}
	if strings.Contains(out, "shallow") {
		t.Error("clean run mentions shallow history")
	}
}

func TestFormatStatus(t *testing.T) {
	st := &Status{
		Commits:    100,
		Files:      350,
		Checkpoint: "0123456789abcdef0123456789abcdef01234567",
		Skipped: []normalize.SkippedCommit{
			{ID: "deadbeef", Reason: "unreadable blob"},
		},
	}

	out := FormatStatus(st)

	for _, want := range []string{"100", "350", "0123456789ab", "unreadable blob"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStatus_NoCheckpoint(t *testing.T) {
	out := FormatStatus(&Status{})
	if !strings.Contains(out, "full run pending") {
		t.Errorf("status output missing pending-checkpoint note:\n%s", out)
	}
}
