package lookup

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/valentindosimont/keyquery/internal/usage"
)

// UnlimitedLimit is the hard limit the backend reports for uncapped tokens
var UnlimitedLimit = decimal.NewFromInt(100000000)

// Phase is the session lifecycle position
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseFetching
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseFetching:
		return "fetching"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Amount is a money value that may be unknown. The zero value is unknown,
// which is distinct from a known zero.
type Amount struct {
	value decimal.Decimal
	known bool
}

// Known wraps a known amount
func Known(d decimal.Decimal) Amount {
	return Amount{value: d, known: true}
}

// Unknown returns the unknown amount
func Unknown() Amount {
	return Amount{}
}

// Get returns the value and whether it is known
func (a Amount) Get() (decimal.Decimal, bool) {
	return a.value, a.known
}

func (a Amount) IsKnown() bool {
	return a.known
}

// ExpiryKind says how to read an Expiry
type ExpiryKind int

const (
	ExpiryUnknown ExpiryKind = iota
	ExpiryNever
	ExpiryAt
)

// Expiry is the token's access end
type Expiry struct {
	Kind ExpiryKind
	At   time.Time
}

// ExpiryFromUnix maps the backend's access_until: 0 means never.
func ExpiryFromUnix(sec int64) Expiry {
	if sec <= 0 {
		return Expiry{Kind: ExpiryNever}
	}
	return Expiry{Kind: ExpiryAt, At: time.Unix(sec, 0)}
}

// Billing is the parsed billing summary
type Billing struct {
	Limit  decimal.Decimal
	Usage  decimal.Decimal
	Expiry Expiry
}

// Unlimited reports whether Limit is the unlimited sentinel
func (b Billing) Unlimited() bool {
	return b.Limit.Equal(UnlimitedLimit)
}

// State is everything one session knows about the last lookup
type State struct {
	Phase      Phase
	Token      string
	Limit      Amount
	Usage      Amount
	Expiry     Expiry
	Rows       []usage.Row
	Totals     usage.Totals
	TokenValid bool
	// LogFailed is set when the log call reported success=false; LogFailure
	// carries the backend's message, which may be empty
	LogFailed  bool
	LogFailure string
	// LastError is the most recent failure; never shown verbatim to the user
	LastError  error
	RequestID  uint64
	FetchedAt  time.Time
}

// Unlimited reports whether the known limit is the unlimited sentinel
func (s State) Unlimited() bool {
	limit, ok := s.Limit.Get()
	return ok && limit.Equal(UnlimitedLimit)
}

// Remaining returns limit - usage when both are known and the limit is not
// the unlimited sentinel.
func (s State) Remaining() Amount {
	limit, okL := s.Limit.Get()
	used, okU := s.Usage.Get()
	if !okL || !okU || limit.Equal(UnlimitedLimit) {
		return Unknown()
	}
	return Known(limit.Sub(used))
}

// newState returns the initial state: everything unknown
func newState() State {
	return State{Phase: PhaseIdle}
}

// reset clears derived values after a failure
func (s *State) reset() {
	s.Limit = Unknown()
	s.Usage = Unknown()
	s.Expiry = Expiry{Kind: ExpiryUnknown}
	s.Rows = nil
	s.Totals = usage.Totals{}
	s.TokenValid = false
	s.LogFailed = false
	s.LogFailure = ""
}
