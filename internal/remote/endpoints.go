package remote

import (
	"context"
	"net/url"
	"time"

	"github.com/valentindosimont/keyquery/internal/usage"
)

// Subscription is the billing subscription payload
type Subscription struct {
	HardLimitUSD float64 `json:"hard_limit_usd"`
	AccessUntil  int64   `json:"access_until"`
}

// UsageReport is the billing usage payload; TotalUsage is in cents
type UsageReport struct {
	TotalUsage float64 `json:"total_usage"`
}

// LogPage is the log backend envelope. Data is oldest-first.
type LogPage struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    []usage.Record `json:"data"`
}

// Subscription fetches the hard limit and expiry for a token
func (c *Client) Subscription(ctx context.Context, token string) (Subscription, error) {
	var sub Subscription
	err := c.Get(ctx, "subscription", SubscriptionPath, nil, token, &sub)
	return sub, err
}

// Usage fetches total usage in cents over [start, end]
func (c *Client) Usage(ctx context.Context, token string, start, end time.Time) (UsageReport, error) {
	q := url.Values{}
	q.Set("start_date", FormatDate(start))
	q.Set("end_date", FormatDate(end))

	var rep UsageReport
	err := c.Get(ctx, "usage", UsagePath, q, token, &rep)
	return rep, err
}

// TokenLogs fetches the call log for a token. The token travels as a query
// parameter on this endpoint; no Authorization header is sent.
func (c *Client) TokenLogs(ctx context.Context, token string) (LogPage, error) {
	q := url.Values{}
	q.Set("key", token)

	var page LogPage
	err := c.Get(ctx, "token_log", TokenLogPath, q, "", &page)
	return page, err
}

// FormatDate renders the unpadded YYYY-M-D form the usage endpoint expects
func FormatDate(t time.Time) string {
	return t.Format("2006-1-2")
}
