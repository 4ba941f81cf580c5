package lookup

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valentindosimont/keyquery/internal/metrics"
	"github.com/valentindosimont/keyquery/internal/remote"
	"github.com/valentindosimont/keyquery/internal/token"
	"github.com/valentindosimont/keyquery/internal/usage"
)

var (
	// ErrBusy is returned when a lookup is submitted while another is in flight
	ErrBusy = errors.New("a lookup is already in progress")
	// ErrFetchFailed is the user-facing form of any transport failure
	ErrFetchFailed = errors.New("lookup failed, check the token and try again")
)

// Runner performs the remote part of a lookup
type Runner interface {
	Fetch(ctx context.Context, tok string) Outcome
}

// Journal records completed lookups. Implementations must not store the token.
type Journal interface {
	RecordLookup(at time.Time, outcome string, elapsed time.Duration) error
}

// Request identifies one submitted lookup
type Request struct {
	ID      uint64
	Token   string
	Started time.Time
}

// Session owns one LookupState and admits a single lookup at a time
type Session struct {
	mu        sync.Mutex
	validator *token.Validator
	runner    Runner
	journal   Journal
	logger    *zap.Logger
	now       func() time.Time

	state  State
	lastID uint64
}

// NewSession creates a Session. journal may be nil.
func NewSession(validator *token.Validator, runner Runner, journal Journal, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		validator: validator,
		runner:    runner,
		journal:   journal,
		logger:    logger,
		now:       time.Now,
		state:     newState(),
	}
}

// State returns a snapshot of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a lookup is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase == PhaseFetching
}

// Begin validates input and, if acceptable, moves the session to Fetching and
// issues a new request id. Validation failures leave displayed data untouched
// and never reach the network.
func (s *Session) Begin(input string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == PhaseFetching {
		return Request{}, ErrBusy
	}

	s.state.Phase = PhaseValidating
	if err := s.validator.Validate(input); err != nil {
		s.state.Phase = PhaseIdle
		metrics.CountLookup("invalid")
		s.logger.Debug("token rejected", zap.Error(err))
		return Request{}, err
	}

	s.lastID++
	req := Request{
		ID:      s.lastID,
		Token:   token.Normalize(input),
		Started: s.now(),
	}
	s.state.Phase = PhaseFetching
	s.state.Token = req.Token
	s.state.RequestID = req.ID

	s.logger.Info("lookup started",
		zap.Uint64("request_id", req.ID),
		zap.String("token", token.Mask(req.Token)),
	)
	return req, nil
}

// Execute runs the remote fetch for req. It does not touch session state and
// may run on any goroutine.
func (s *Session) Execute(ctx context.Context, req Request) Outcome {
	return s.runner.Fetch(ctx, req.Token)
}

// Complete applies an outcome. Outcomes for any request other than the latest
// issued one are discarded and Complete returns false.
func (s *Session) Complete(req Request, out Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID != s.lastID {
		s.logger.Debug("discarding stale lookup result",
			zap.Uint64("request_id", req.ID),
			zap.Uint64("latest_id", s.lastID),
		)
		return false
	}

	now := s.now()
	if out.Kind == OutcomeFailure {
		s.state.reset()
		s.state.Phase = PhaseError
		s.state.LastError = out.Err
		s.logger.Warn("lookup failed",
			zap.Uint64("request_id", req.ID),
			zap.Bool("unauthorized", remote.IsUnauthorized(out.Err)),
			zap.Error(out.Err),
		)
	} else {
		s.state = successState(out)
	}
	s.state.Token = ""
	s.state.RequestID = req.ID
	s.state.FetchedAt = now

	elapsed := now.Sub(req.Started)
	metrics.CountLookup(out.Kind.String())
	if s.journal != nil {
		if err := s.journal.RecordLookup(req.Started, out.Kind.String(), elapsed); err != nil {
			s.logger.Warn("failed to record lookup", zap.Error(err))
		}
	}
	s.logger.Info("lookup finished",
		zap.Uint64("request_id", req.ID),
		zap.Stringer("outcome", out.Kind),
		zap.Int("rows", len(s.state.Rows)),
		zap.Duration("elapsed", elapsed),
	)
	return true
}

// Lookup runs Begin, Execute and Complete in sequence. Transport failures are
// reported as ErrFetchFailed; the cause is kept in State.LastError.
func (s *Session) Lookup(ctx context.Context, input string) (State, error) {
	req, err := s.Begin(input)
	if err != nil {
		return s.State(), err
	}

	out := s.Execute(ctx, req)
	s.Complete(req, out)

	st := s.State()
	if out.Kind == OutcomeFailure {
		return st, ErrFetchFailed
	}
	return st, nil
}

// successState builds a fresh state from a non-failure outcome.
func successState(out Outcome) State {
	st := newState()
	st.reset()
	st.Phase = PhaseSuccess

	if out.Billing != nil {
		st.Limit = Known(out.Billing.Limit)
		st.Usage = Known(out.Billing.Usage)
		st.Expiry = out.Billing.Expiry
	}
	if out.LogsOK {
		st.Rows, st.Totals = usage.Normalize(out.Records)
	}
	if out.Kind == OutcomePartial {
		st.LogFailed = true
		st.LogFailure = out.LogMessage
	}
	st.TokenValid = out.BillingOK() || out.LogsOK
	return st
}
