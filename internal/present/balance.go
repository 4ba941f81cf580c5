package present

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/valentindosimont/keyquery/internal/lookup"
)

// Balance block labels for special values
const (
	LabelUnknown     = "unknown"
	LabelUnlimited   = "unlimited"
	LabelNotComputed = "not computed"
	LabelNever       = "never expires"
)

// Balance is the rendered balance panel
type Balance struct {
	Limit     string
	Remaining string
	Used      string
	Expiry    string
}

// Balance renders the four balance lines. Each line is "unknown" when its
// sources are unknown; the unlimited sentinel replaces all arithmetic.
func (p *Presenter) Balance(st lookup.State) Balance {
	b := Balance{
		Limit:     LabelUnknown,
		Remaining: LabelUnknown,
		Used:      LabelUnknown,
		Expiry:    p.expiry(st.Expiry),
	}

	if st.Unlimited() {
		b.Limit = LabelUnlimited
		b.Remaining = LabelUnlimited
		b.Used = LabelNotComputed
		return b
	}

	b.Limit = money(st.Limit)
	b.Remaining = money(st.Remaining())
	b.Used = money(st.Usage)
	return b
}

func (p *Presenter) expiry(e lookup.Expiry) string {
	switch e.Kind {
	case lookup.ExpiryNever:
		return LabelNever
	case lookup.ExpiryAt:
		return p.FormatTime(e.At.Unix())
	default:
		return LabelUnknown
	}
}

// money rounds to cents for display only
func money(a lookup.Amount) string {
	v, ok := a.Get()
	if !ok {
		return LabelUnknown
	}
	return "$" + v.StringFixed(2)
}

// Lines returns the panel as label/value pairs in display order
func (b Balance) Lines() [][2]string {
	return [][2]string{
		{"Token limit", b.Limit},
		{"Remaining", b.Remaining},
		{"Used", b.Used},
		{"Valid until", b.Expiry},
	}
}

// CopyText is the text placed on the clipboard by the copy-balance action
func (b Balance) CopyText() string {
	return fmt.Sprintf("Token limit: %s\nRemaining: %s\nUsed: %s", b.Limit, b.Remaining, b.Used)
}

// OutcomeSummary renders journal outcome counts, known outcomes first and
// any others after them in name order.
func OutcomeSummary(counts map[string]int) string {
	known := []string{
		lookup.OutcomeSuccess.String(),
		lookup.OutcomePartial.String(),
		lookup.OutcomeFailure.String(),
	}
	var rest []string
	for name := range counts {
		if !slices.Contains(known, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	total := 0
	var parts []string
	for _, name := range append(known, rest...) {
		if n := counts[name]; n > 0 {
			total += n
			parts = append(parts, fmt.Sprintf("%d %s", n, name))
		}
	}
	if total == 0 {
		return "No lookups recorded yet"
	}
	return fmt.Sprintf("%d lookups: %s", total, strings.Join(parts, ", "))
}
