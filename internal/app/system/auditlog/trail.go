// internal/app/system/auditlog/trail.go
package auditlog

import (
	"encoding/json"
	"time"
)

// MaxLogChars is the size budget of a serialized trail.
const MaxLogChars = 25000

// Actions recorded in a trail.
const (
	ActionRegister = "register"
	ActionLogin    = "login"
)

// Outcomes recorded in a trail.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRateLimited = "rate_limited"
)

// Entry is one authentication event in a user's trail.
type Entry struct {
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
	IP        string `json:"ip"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
}

// NewEntry builds an Entry stamped with t.
func NewEntry(t time.Time, ip, action, outcome string) Entry {
	return Entry{
		Timestamp: t.UnixMilli(),
		IP:        ip,
		Action:    action,
		Outcome:   outcome,
	}
}

// Parse decodes a serialized trail. Empty or malformed input yields an
// empty slice; a damaged trail is started over rather than rejected.
func Parse(existing string) []Entry {
	if existing == "" {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(existing), &entries); err != nil || entries == nil {
		return []Entry{}
	}
	return entries
}

// Append adds entry to the trail and re-serializes it, dropping the oldest
// entries while the result exceeds MaxLogChars.
func Append(existing string, entry Entry) string {
	return AppendWithLimit(existing, entry, MaxLogChars)
}

// AppendWithLimit is Append with an explicit size budget.
//
// Entries are dropped from the front one at a time while the encoding is
// over budget and more than one entry remains, so a lone oversized entry is
// kept.
func AppendWithLimit(existing string, entry Entry, limit int) string {
	entries := append(Parse(existing), entry)

	out := encode(entries)
	for len(out) > limit && len(entries) > 1 {
		entries = entries[1:]
		out = encode(entries)
	}
	return out
}

func encode(entries []Entry) string {
	// Entry has only string and integer fields; marshalling cannot fail.
	b, _ := json.MarshalIndent(entries, "", "  ")
	return string(b)
}
