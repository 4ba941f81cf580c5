package present

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/valentindosimont/keyquery/internal/usage"
)

// TimeLayout is how record timestamps are displayed and exported
const TimeLayout = "2006-01-02 15:04:05"

// Stream flag labels
const (
	LabelStreamed    = "streamed"
	LabelNonStreamed = "non-streamed"
)

// Column keys
const (
	KeyTime       = "time"
	KeyModel      = "model"
	KeyUseTime    = "use_time"
	KeyStream     = "stream"
	KeyPrompt     = "prompt"
	KeyCompletion = "completion"
	KeyQuota      = "quota"
	KeyContent    = "content"
)

// Tier buckets a call's elapsed time
type Tier int

const (
	TierFast Tier = iota
	TierMedium
	TierSlow
)

// Label is the short tier name shown next to a use time
func (t Tier) Label() string {
	switch t {
	case TierFast:
		return "fast"
	case TierMedium:
		return "mid"
	default:
		return "slow"
	}
}

// SpeedTier returns Fast below 101s, Medium for 101-299s, Slow from 300s.
func SpeedTier(seconds int) Tier {
	switch {
	case seconds < 101:
		return TierFast
	case seconds < 300:
		return TierMedium
	default:
		return TierSlow
	}
}

// Options controls formatting
type Options struct {
	Location     *time.Location
	QuotaPerUnit float64
	InCurrency   bool
	QuotaDigits  int
	ContentWidth int
}

// Column describes one table column. Less is nil for unsortable columns and
// Tier is nil for columns without a speed tier.
type Column struct {
	Key    string
	Title  string
	Width  int
	Render func(usage.Row) string
	Less   func(a, b usage.Row) bool
	Tier   func(usage.Row) Tier
}

// Sortable reports whether the column has a comparator
func (c Column) Sortable() bool {
	return c.Less != nil
}

// Presenter turns rows and lookup state into display strings
type Presenter struct {
	opts Options
}

// New creates a Presenter
func New(opts Options) *Presenter {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.QuotaPerUnit <= 0 {
		opts.QuotaPerUnit = usage.DefaultQuotaPerUnit
	}
	if opts.ContentWidth <= 0 {
		opts.ContentWidth = 40
	}
	return &Presenter{opts: opts}
}

// FormatTime renders epoch seconds in the configured location
func (p *Presenter) FormatTime(sec int64) string {
	return time.Unix(sec, 0).In(p.opts.Location).Format(TimeLayout)
}

// FormatQuota renders a quota amount per the configured currency options
func (p *Presenter) FormatQuota(q decimal.Decimal) string {
	return usage.RenderQuota(q, p.opts.QuotaPerUnit, p.opts.InCurrency, p.opts.QuotaDigits)
}

// Columns returns the log table columns in display order
func (p *Presenter) Columns() []Column {
	return []Column{
		{
			Key:    KeyTime,
			Title:  "Time",
			Width:  19,
			Render: func(r usage.Row) string { return p.FormatTime(r.CreatedAt) },
			Less:   func(a, b usage.Row) bool { return a.CreatedAt < b.CreatedAt },
		},
		{
			Key:   KeyModel,
			Title: "Model",
			Width: 24,
			Render: func(r usage.Row) string {
				if !r.Billable() {
					return ""
				}
				return r.ModelName
			},
			Less: func(a, b usage.Row) bool { return a.ModelName < b.ModelName },
		},
		{
			Key:   KeyUseTime,
			Title: "Use Time",
			Width: 11,
			Render: func(r usage.Row) string {
				return fmt.Sprintf("%d s %s", r.UseTime, SpeedTier(r.UseTime).Label())
			},
			Less: func(a, b usage.Row) bool { return a.UseTime < b.UseTime },
			Tier: func(r usage.Row) Tier { return SpeedTier(r.UseTime) },
		},
		{
			Key:    KeyStream,
			Title:  "Stream",
			Width:  12,
			Render: func(r usage.Row) string { return StreamLabel(r.IsStream) },
			Less:   func(a, b usage.Row) bool { return !a.IsStream && b.IsStream },
		},
		{
			Key:   KeyPrompt,
			Title: "Prompt",
			Width: 8,
			Render: func(r usage.Row) string {
				if !r.Billable() {
					return ""
				}
				return strconv.Itoa(r.PromptTokens)
			},
			Less: func(a, b usage.Row) bool { return a.PromptTokens < b.PromptTokens },
		},
		{
			Key:   KeyCompletion,
			Title: "Completion",
			Width: 10,
			Render: func(r usage.Row) string {
				if !r.Billable() || r.CompletionTokens <= 0 {
					return ""
				}
				return strconv.Itoa(r.CompletionTokens)
			},
			Less: func(a, b usage.Row) bool { return a.CompletionTokens < b.CompletionTokens },
		},
		{
			Key:   KeyQuota,
			Title: "Cost",
			Width: 11,
			Render: func(r usage.Row) string {
				if !r.Billable() {
					return ""
				}
				return p.FormatQuota(r.Quota)
			},
			Less: func(a, b usage.Row) bool { return a.Quota.LessThan(b.Quota) },
		},
		{
			Key:   KeyContent,
			Title: "Detail",
			Width: p.opts.ContentWidth,
			Render: func(r usage.Row) string {
				return ansi.Truncate(flatten(r.Content), p.opts.ContentWidth, "…")
			},
		},
	}
}

// Column returns the column with key, if any
func (p *Presenter) Column(key string) (Column, bool) {
	for _, c := range p.Columns() {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// Cells renders one row across all columns
func (p *Presenter) Cells(r usage.Row) []string {
	cols := p.Columns()
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = c.Render(r)
	}
	return cells
}

// StreamLabel renders the stream flag
func StreamLabel(stream bool) string {
	if stream {
		return LabelStreamed
	}
	return LabelNonStreamed
}

// Sort returns a stably sorted copy of rows. Unsortable columns return the copy unchanged.
func Sort(rows []usage.Row, col Column, desc bool) []usage.Row {
	out := make([]usage.Row, len(rows))
	copy(out, rows)
	if col.Less == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return col.Less(out[j], out[i])
		}
		return col.Less(out[i], out[j])
	})
	return out
}

// Filter keeps rows whose model name or content contains query, ignoring case.
func Filter(rows []usage.Row, query string) []usage.Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	var out []usage.Row
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.ModelName), query) ||
			strings.Contains(strings.ToLower(r.Content), query) {
			out = append(out, r)
		}
	}
	return out
}

// TotalsLine summarises a row set
func (p *Presenter) TotalsLine(t usage.Totals) string {
	return fmt.Sprintf("%d records (%d billable)  prompt %s  completion %s  total cost %s",
		t.Rows, t.Billable,
		humanize.Comma(t.PromptTokens),
		humanize.Comma(t.CompletionTokens),
		p.FormatQuota(t.Quota))
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
