package usage

import (
	"encoding/json"
	"strings"
)

// Normalize turns backend records into display rows. Records are expected in
// display order already; Normalize does not reorder them.
func Normalize(records []Record) ([]Row, Totals) {
	rows := make([]Row, 0, len(records))
	var totals Totals

	for _, rec := range records {
		row := Row{
			Record: rec,
			Class:  Classify(rec.Type),
		}
		row.Pricing, row.Parsed = ParsePricing(rec.Other)
		if row.Billable() && row.Parsed {
			row.Detail = Detail(rec.PromptTokens, rec.CompletionTokens, row.Pricing)
		}

		totals.Add(row)
		rows = append(rows, row)
	}

	return rows, totals
}

// NewestFirst returns a reversed copy of records, which the backend sends oldest-first.
func NewestFirst(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out
}

// ParsePricing decodes the "other" field. Empty input means an empty object.
// Invalid JSON or a JSON null yields empty pricing and ok=false.
func ParsePricing(other string) (Pricing, bool) {
	other = strings.TrimSpace(other)
	if other == "" {
		other = "{}"
	}

	var p *Pricing
	if err := json.Unmarshal([]byte(other), &p); err != nil || p == nil {
		return Pricing{}, false
	}
	return *p, true
}
