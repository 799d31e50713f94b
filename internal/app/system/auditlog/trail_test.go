package auditlog

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"malformed", "{not json", 0},
		{"object not array", `{"a":1}`, 0},
		{"null", "null", 0},
		{"empty array", "[]", 0},
		{"one entry", `[{"timestamp":1,"ip":"1.2.3.4","action":"login","outcome":"success"}]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got == nil {
				t.Fatal("Parse() returned nil")
			}
			if len(got) != tt.want {
				t.Errorf("len(Parse(%q)) = %d, want %d", tt.input, len(got), tt.want)
			}
		})
	}
}

func TestAppend_FirstEntry(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	out := Append("", NewEntry(ts, "10.0.0.1", ActionRegister, OutcomeSuccess))

	want := "[\n  {\n    \"timestamp\": 1700000000000,\n    \"ip\": \"10.0.0.1\",\n    \"action\": \"register\",\n    \"outcome\": \"success\"\n  }\n]"
	if out != want {
		t.Errorf("Append() =\n%s\nwant\n%s", out, want)
	}
}

func TestAppend_Accumulates(t *testing.T) {
	ts := time.UnixMilli(1)
	log := ""
	for i := 0; i < 5; i++ {
		log = Append(log, NewEntry(ts, "ip", ActionLogin, OutcomeSuccess))
	}
	if got := len(Parse(log)); got != 5 {
		t.Errorf("entries = %d, want 5", got)
	}
}

func TestAppend_MalformedStartsOver(t *testing.T) {
	out := Append("garbage", NewEntry(time.UnixMilli(1), "ip", ActionLogin, OutcomeFailure))
	entries := Parse(out)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Outcome != OutcomeFailure {
		t.Errorf("Outcome = %q, want %q", entries[0].Outcome, OutcomeFailure)
	}
}

func TestAppend_EvictsOldestWithinBudget(t *testing.T) {
	log := ""
	for i := 0; i < 400; i++ {
		log = Append(log, NewEntry(time.UnixMilli(int64(i)), "203.0.113.10", ActionLogin, OutcomeSuccess))
		if len(log) > MaxLogChars {
			t.Fatalf("after %d appends len = %d, exceeds %d", i+1, len(log), MaxLogChars)
		}
	}

	entries := Parse(log)
	if len(entries) >= 400 {
		t.Fatalf("entries = %d, expected eviction", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Timestamp != 399 {
		t.Errorf("newest timestamp = %d, want 399", last.Timestamp)
	}
	first := entries[0]
	if want := int64(400 - len(entries)); first.Timestamp != want {
		t.Errorf("oldest timestamp = %d, want %d (oldest dropped first)", first.Timestamp, want)
	}
}

func TestAppendWithLimit_KeepsLoneOversizedEntry(t *testing.T) {
	big := strings.Repeat("x", 500)
	out := AppendWithLimit("", NewEntry(time.UnixMilli(1), big, ActionLogin, OutcomeSuccess), 100)
	entries := Parse(out)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].IP != big {
		t.Error("lone entry was altered")
	}

	// A second oversized entry evicts the first and stays alone.
	out = AppendWithLimit(out, NewEntry(time.UnixMilli(2), big, ActionLogin, OutcomeFailure), 100)
	entries = Parse(out)
	if len(entries) != 1 || entries[0].Timestamp != 2 {
		t.Errorf("entries = %+v, want only the newest", entries)
	}
}
