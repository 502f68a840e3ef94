// Package audit records successful admin edits. Entries are append-only:
// sinks never update or delete what they have written.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/faucetdb/rolekeeper/internal/model"
)

// Sink receives audit entries.
type Sink interface {
	Append(ctx context.Context, e *model.AuditEntry) error
}

// Appender is the storage side of the store sink; *config.Store satisfies it.
type Appender interface {
	AppendAuditEntry(ctx context.Context, e *model.AuditEntry) error
}

type storeSink struct {
	store Appender
}

// NewStoreSink writes entries to the admin store, which assigns their IDs.
func NewStoreSink(store Appender) Sink {
	return &storeSink{store: store}
}

func (s *storeSink) Append(ctx context.Context, e *model.AuditEntry) error {
	return s.store.AppendAuditEntry(ctx, e)
}

// Multi fans an entry out to several sinks in order. A failing sink does not
// stop the others; the returned error joins every failure.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink. Put the store sink first so later sinks
// see the assigned entry ID.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Append writes e to every sink.
func (m *Multi) Append(ctx context.Context, e *model.AuditEntry) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("audit sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
