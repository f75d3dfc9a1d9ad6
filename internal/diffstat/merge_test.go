package diffstat

import "testing"

func TestMergeAttribution(t *testing.T) {
	cases := []struct {
		name        string
		result      string
		parents     []string
		wantAdded   int
		wantDeleted int
	}{
		{
			name:        "clean merge introduces nothing",
			result:      "l0\nl1\nl2\nl3\n",
			parents:     []string{"l0\nl1\nl2\n", "l1\nl2\nl3\n"},
			wantAdded:   0,
			wantDeleted: 0,
		},
		{
			name:        "conflict resolution line is attributed",
			result:      "l1\nresolved\nl2\n",
			parents:     []string{"l1\nours\nl2\n", "l1\ntheirs\nl2\n"},
			wantAdded:   1,
			wantDeleted: 0,
		},
		{
			name:        "line present in one parent is not attributed",
			result:      "l1\nl2\nextra\n",
			parents:     []string{"l1\nl2\n", "l1\nl2\nextra\n"},
			wantAdded:   0,
			wantDeleted: 0,
		},
		{
			name:        "deletion of line present in all parents",
			result:      "l1\n",
			parents:     []string{"l1\nl2\n", "l1\nl2\n"},
			wantAdded:   0,
			wantDeleted: 1,
		},
		{
			name:        "deletion inherited from one branch",
			result:      "l1\n",
			parents:     []string{"l1\n", "l1\nl2\n"},
			wantAdded:   0,
			wantDeleted: 0,
		},
		{
			name:        "duplicate lines counted as multiset",
			result:      "dup\ndup\ndup\n",
			parents:     []string{"dup\n", "dup\n"},
			wantAdded:   2,
			wantDeleted: 0,
		},
		{
			name:        "new file in merge only",
			result:      "a\nb\n",
			parents:     []string{"", ""},
			wantAdded:   2,
			wantDeleted: 0,
		},
		{
			name:        "no parents",
			result:      "a\n",
			parents:     nil,
			wantAdded:   0,
			wantDeleted: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			added, deleted := mergeAttribution(tc.result, tc.parents)
			if added != tc.wantAdded {
				t.Errorf("added = %d, want %d", added, tc.wantAdded)
			}
			if deleted != tc.wantDeleted {
				t.Errorf("deleted = %d, want %d", deleted, tc.wantDeleted)
			}
		})
	}
}

func TestLineDiffCounts(t *testing.T) {
	ins, del := lineDiffCounts("a\nb\nc\n", "a\nx\nc\nd\n")

	if ins["x"] != 1 || ins["d"] != 1 {
		t.Errorf("inserted = %v, want x and d once each", ins)
	}
	if del["b"] != 1 {
		t.Errorf("deleted = %v, want b once", del)
	}
	if len(ins) != 2 || len(del) != 1 {
		t.Errorf("counts = %v / %v, want 2 inserted and 1 deleted lines", ins, del)
	}
}

func TestIntersectCounts(t *testing.T) {
	got := intersectCounts(
		map[string]int{"a": 2, "b": 1, "c": 3},
		map[string]int{"a": 1, "c": 5},
	)
	want := map[string]int{"a": 1, "c": 3}
	if len(got) != len(want) {
		t.Fatalf("intersectCounts = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("intersectCounts[%q] = %d, want %d", k, got[k], v)
		}
	}
}

func TestCountLines(t *testing.T) {
	cases := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"one\n", 1},
		{"one", 1},
		{"one\ntwo\n", 2},
		{"one\ntwo", 2},
	}
	for _, tc := range cases {
		if got := countLines(tc.content); got != tc.want {
			t.Errorf("countLines(%q) = %d, want %d", tc.content, got, tc.want)
		}
	}
}
