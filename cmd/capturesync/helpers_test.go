package main

import (
	"reflect"
	"testing"
)

func TestBuildQueueStatsRowsOrdersByLifecycle(t *testing.T) {
	rows := buildQueueStatsRows(map[string]int{"failed": 2, "pending": 5, "zombie": 1})
	want := [][]string{
		{"pending", "5"},
		{"processing", "0"},
		{"completed", "0"},
		{"failed", "2"},
		{"zombie", "1"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a much longer value", 10, "a much..."},
		{"abcdef", 3, "abc"},
		{"  padded  ", 0, "padded"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestParseRecordIDs(t *testing.T) {
	ids, err := parseRecordIDs([]string{"3", " 7 "})
	if err != nil || !reflect.DeepEqual(ids, []int64{3, 7}) {
		t.Fatalf("parseRecordIDs = %v, %v", ids, err)
	}
	for _, bad := range []string{"0", "-1", "x"} {
		if _, err := parseRecordIDs([]string{bad}); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "" {
		t.Fatalf("formatDuration(0) = %q", got)
	}
	if got := formatDuration(125.4); got != "2m5s" {
		t.Fatalf("formatDuration(125.4) = %q", got)
	}
}
