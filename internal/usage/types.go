package usage

import "github.com/shopspring/decimal"

// Record is one call record as returned by the log backend. Quota is kept
// as a decimal so fractional values decode and sum without loss.
type Record struct {
	CreatedAt        int64           `json:"created_at"`
	ModelName        string          `json:"model_name"`
	UseTime          int             `json:"use_time"`
	IsStream         bool            `json:"is_stream"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	Quota            decimal.Decimal `json:"quota"`
	Type             int             `json:"type"`
	Content          string          `json:"content"`
	Other            string          `json:"other"`
}

// Class separates billable chat calls from log-only events
type Class int

const (
	Informational Class = iota
	Billable
)

func (c Class) String() string {
	if c == Billable {
		return "billable"
	}
	return "informational"
}

// Classify maps a backend record type onto a Class. Types 0 and 2 are chat calls.
func Classify(recordType int) Class {
	switch recordType {
	case 0, 2:
		return Billable
	default:
		return Informational
	}
}

// Pricing is the metadata carried in a record's "other" field.
// Each ratio is nil when the backend did not send it.
type Pricing struct {
	ModelRatio      *float64 `json:"model_ratio"`
	ModelPrice      *float64 `json:"model_price"`
	CompletionRatio *float64 `json:"completion_ratio"`
	GroupRatio      *float64 `json:"group_ratio"`
}

// Row is a normalized, display-ready record
type Row struct {
	Record
	Class   Class
	Pricing Pricing
	// Parsed is false when "other" was invalid JSON or null
	Parsed bool
	// Detail is the pricing breakdown; empty when it could not be computed
	Detail string
}

// Billable reports whether token, model and cost columns apply to the row
func (r Row) Billable() bool {
	return r.Class == Billable
}

// Totals aggregates a set of rows
type Totals struct {
	Rows             int
	Billable         int
	PromptTokens     int64
	CompletionTokens int64
	Quota            decimal.Decimal
}

// Add folds one row into the totals. Quota counts for every class.
func (t *Totals) Add(r Row) {
	t.Rows++
	t.Quota = t.Quota.Add(r.Quota)
	if r.Billable() {
		t.Billable++
		t.PromptTokens += int64(r.PromptTokens)
		t.CompletionTokens += int64(r.CompletionTokens)
	}
}
