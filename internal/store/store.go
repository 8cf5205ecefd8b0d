// Package store provides the exchange journal: a write-mostly record of every
// round trip the client made with the backend.
package store

import (
	"context"
	"time"

	"github.com/ashureev/vid-companion/internal/domain"
)

// ExchangeRecorder receives one record per completed exchange.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, ex *domain.Exchange) error
}

// Journal defines the interface for persisting exchange records.
type Journal interface {
	ExchangeRecorder

	// RecentExchanges returns up to limit records, newest first.
	// An empty sessionID returns records for all sessions.
	RecentExchanges(ctx context.Context, sessionID string, limit int) ([]*domain.Exchange, error)

	// PruneBefore removes records that finished before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// NoopJournal discards every record. It is used when journaling is disabled.
type NoopJournal struct{}

var _ Journal = NoopJournal{}

func (NoopJournal) RecordExchange(context.Context, *domain.Exchange) error { return nil }

func (NoopJournal) RecentExchanges(context.Context, string, int) ([]*domain.Exchange, error) {
	return nil, nil
}

func (NoopJournal) PruneBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (NoopJournal) Ping(context.Context) error                             { return nil }
func (NoopJournal) Close() error                                           { return nil }
