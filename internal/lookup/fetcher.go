package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valentindosimont/keyquery/internal/remote"
	"github.com/valentindosimont/keyquery/internal/token"
	"github.com/valentindosimont/keyquery/internal/usage"
)

// UsageWindow is how far back the billing usage query reaches
const UsageWindow = 100 * 24 * time.Hour

var centsPerUnit = decimal.NewFromInt(100)

// Backend is the set of remote calls a lookup needs
type Backend interface {
	Subscription(ctx context.Context, token string) (remote.Subscription, error)
	Usage(ctx context.Context, token string, start, end time.Time) (remote.UsageReport, error)
	TokenLogs(ctx context.Context, token string) (remote.LogPage, error)
}

// OutcomeKind classifies a fetch result
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomePartial means the log backend answered success=false
	OutcomePartial
	// OutcomeFailure means a transport error aborted the fetch
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetch
type Outcome struct {
	Kind    OutcomeKind
	Billing *Billing
	// Records are newest-first; nil unless the log call succeeded
	Records    []usage.Record
	LogsOK     bool
	LogMessage string
	Err        error
}

// BillingOK reports whether the billing sub-fetch produced a summary
func (o Outcome) BillingOK() bool {
	return o.Billing != nil
}

// FetcherConfig toggles the two sub-fetches
type FetcherConfig struct {
	ShowBalance bool
	ShowDetail  bool
}

// Fetcher orchestrates the billing and log calls for one token
type Fetcher struct {
	backend Backend
	cfg     FetcherConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewFetcher creates a Fetcher
func NewFetcher(backend Backend, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch runs the enabled sub-fetches. Billing calls run in order; the log call
// runs alongside them. A transport error in either aborts the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, tok string) Outcome {
	var (
		billing *Billing
		page    remote.LogPage
	)

	g, gctx := errgroup.WithContext(ctx)

	if f.cfg.ShowBalance {
		g.Go(func() error {
			b, err := f.fetchBilling(gctx, tok)
			if err != nil {
				return err
			}
			billing = &b
			return nil
		})
	}

	if f.cfg.ShowDetail {
		g.Go(func() error {
			p, err := f.backend.TokenLogs(gctx, tok)
			if err != nil {
				return fmt.Errorf("fetch logs: %w", err)
			}
			page = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		f.logger.Warn("lookup failed",
			zap.String("token", token.Mask(tok)),
			zap.Error(err),
		)
		return Outcome{Kind: OutcomeFailure, Err: err}
	}

	out := Outcome{Kind: OutcomeSuccess, Billing: billing}
	if f.cfg.ShowDetail {
		if page.Success {
			out.LogsOK = true
			out.Records = usage.NewestFirst(page.Data)
		} else {
			out.Kind = OutcomePartial
			out.LogMessage = page.Message
			f.logger.Info("log backend reported failure",
				zap.String("token", token.Mask(tok)),
				zap.String("message", page.Message),
			)
		}
	}

	return out
}

func (f *Fetcher) fetchBilling(ctx context.Context, tok string) (Billing, error) {
	sub, err := f.backend.Subscription(ctx, tok)
	if err != nil {
		return Billing{}, fmt.Errorf("fetch subscription: %w", err)
	}

	end := f.now()
	start := end.Add(-UsageWindow)
	rep, err := f.backend.Usage(ctx, tok, start, end)
	if err != nil {
		return Billing{}, fmt.Errorf("fetch usage: %w", err)
	}

	return Billing{
		Limit:  decimal.NewFromFloat(sub.HardLimitUSD),
		Usage:  decimal.NewFromFloat(rep.TotalUsage).Div(centsPerUnit),
		Expiry: ExpiryFromUnix(sub.AccessUntil),
	}, nil
}
