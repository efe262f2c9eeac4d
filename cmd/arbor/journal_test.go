package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mercator-hq/arbor/pkg/journal"
)

func TestJournalReport(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := JournalReport{
		{Timestamp: ts, Effective: "auto", Selected: "gotoml", Resource: "toml", Outcome: journal.OutcomeSelected},
		{Timestamp: ts, Requested: "burntsushi", Effective: "burntsushi", Resource: "toml", Outcome: journal.OutcomeConflict,
			Reason: "blocked", Conflicting: []string{"gotoml"}},
	}

	buf := &bytes.Buffer{}
	if err := report.WriteText(buf); err != nil {
		t.Fatalf("WriteText() failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"OUTCOME", "gotoml", "conflict", "blocked [gotoml]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	rows := report.Rows()
	if len(rows) != 2 || rows[0][0] != "2026-03-01T12:00:00Z" || rows[1][1] != "conflict" {
		t.Errorf("rows = %v", rows)
	}
}

func TestJournalReport_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (JournalReport{}).WriteText(buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No journal records") {
		t.Errorf("output = %q", buf.String())
	}
}
