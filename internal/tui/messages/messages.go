package messages

import (
	"github.com/valentindosimont/keyquery/internal/lookup"
	"github.com/valentindosimont/keyquery/internal/store"
)

// LookupDoneMsg carries the outcome of a submitted lookup back to the UI loop
type LookupDoneMsg struct {
	Request lookup.Request
	Outcome lookup.Outcome
}

// ExportDoneMsg reports a finished CSV export
type ExportDoneMsg struct {
	Path  string
	Rows  int
	Bytes int
	Err   error
}

// CopyDoneMsg reports a clipboard write. Label names what was copied.
type CopyDoneMsg struct {
	Label string
	Err   error
}

// HistoryMsg contains recent journal entries and outcome counts for the
// whole journal
type HistoryMsg struct {
	Entries []store.LookupEntry
	Counts  map[string]int
	Err     error
}
