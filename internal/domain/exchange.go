package domain

import "time"

// ExchangeKind names the two request/response round trips the client performs.
type ExchangeKind string

const (
	// ExchangeStart is a session-start round trip.
	ExchangeStart ExchangeKind = "start"
	// ExchangeAsk is a question/answer round trip.
	ExchangeAsk ExchangeKind = "ask"
)

// ExchangeOutcome is the terminal result of an exchange.
type ExchangeOutcome string

const (
	OutcomeOK               ExchangeOutcome = "ok"
	OutcomeTransportFailure ExchangeOutcome = "transport_failure"
)

// Exchange is a journal record of one completed round trip with the backend.
type Exchange struct {
	ID         string
	Kind       ExchangeKind
	SessionID  string
	Query      string
	Reply      string
	Outcome    ExchangeOutcome
	Error      string
	Preempted  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the exchange was outstanding.
func (e *Exchange) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}
