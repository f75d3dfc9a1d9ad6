package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/anthropic/githist/internal/diffstat"
	"github.com/anthropic/githist/internal/gitlog"
)

func TestBuildCommit_SummaryFirstLine(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "multi line message",
			message: "feat: add parser\n\nLonger body text\nwith details.",
			want:    "feat: add parser",
		},
		{
			name:    "single line no newline",
			message: "fix: off by one",
			want:    "fix: off by one",
		},
		{
			name:    "trailing whitespace trimmed",
			message: "chore: tidy   \nbody",
			want:    "chore: tidy",
		},
		{
			name:    "empty message",
			message: "",
			want:    "",
		},
		{
			name:    "leading newline",
			message: "\nactual text",
			want:    "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := BuildCommit(&gitlog.Record{Hash: "abc", Message: tc.message})
			if c.Summary != tc.want {
				t.Errorf("Summary = %q, want %q", c.Summary, tc.want)
			}
		})
	}
}

func TestBuildCommit_TimestampUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	when := time.Date(2024, 3, 1, 17, 30, 0, 0, loc)

	c := BuildCommit(&gitlog.Record{
		Hash:        "abc",
		AuthorName:  "Alice",
		AuthorEmail: "alice@example.com",
		AuthorWhen:  when,
	})

	if c.AuthorWhen.Location() != time.UTC {
		t.Errorf("AuthorWhen location = %v, want UTC", c.AuthorWhen.Location())
	}
	if !c.AuthorWhen.Equal(when) {
		t.Errorf("AuthorWhen = %v, not the same instant as %v", c.AuthorWhen, when)
	}
	if c.AuthorWhen.Hour() != 12 {
		t.Errorf("AuthorWhen hour = %d, want 12 (17:30 UTC+5)", c.AuthorWhen.Hour())
	}
}

func TestBuildFiles_SortedByName(t *testing.T) {
	stats := []diffstat.FileStat{
		{Path: "zz.go", Added: 1},
		{Path: "aa.go", Added: 2, Deleted: 3},
		{Path: "mm.go", Deleted: 4},
	}

	files := BuildFiles("abc", stats)

	wantOrder := []string{"aa.go", "mm.go", "zz.go"}
	for i, name := range wantOrder {
		if files[i].Name != name {
			t.Errorf("files[%d].Name = %q, want %q", i, files[i].Name, name)
		}
		if files[i].CommitID != "abc" {
			t.Errorf("files[%d].CommitID = %q, want %q", i, files[i].CommitID, "abc")
		}
	}
}

func TestBuildFiles_Deterministic(t *testing.T) {
	stats := []diffstat.FileStat{
		{Path: "b.txt", Added: 5},
		{Path: "a.txt", Added: 10},
	}

	first := BuildFiles("abc", stats)
	second := BuildFiles("abc", stats)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("BuildFiles not deterministic:\n%v\n%v", first, second)
	}
}

func TestBuildFiles_Empty(t *testing.T) {
	files := BuildFiles("abc", nil)
	if len(files) != 0 {
		t.Errorf("BuildFiles(nil) = %v, want empty", files)
	}
}
