// Package ports defines consumer-driven interfaces for the search module's
// external dependencies. The record store and the failure notifier are
// implemented elsewhere and injected by the composition root.
package ports

import (
	"context"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/query"

	"github.com/google/uuid"
)

// Page is one window of matching records plus the total match count.
type Page struct {
	Records []domain.Record
	// Total counts every record matching the predicates, not just Records.
	Total int
}

// RecordStore answers a predicate set for one entity table.
type RecordStore interface {
	Query(ctx context.Context, set query.PredicateSet) (Page, error)
}

// RecordStoreFunc adapts a function to RecordStore.
type RecordStoreFunc func(ctx context.Context, set query.PredicateSet) (Page, error)

// Query implements RecordStore.
func (f RecordStoreFunc) Query(ctx context.Context, set query.PredicateSet) (Page, error) {
	return f(ctx, set)
}

// FailureNotice describes a search that failed as a whole.
type FailureNotice struct {
	UserID    uuid.UUID
	TenantID  *uuid.UUID
	SessionID string
	Message   string
}

// Notifier is the user-facing error side channel. It must not block.
type Notifier interface {
	SearchFailed(ctx context.Context, notice FailureNotice)
}

// NopNotifier drops every notice.
type NopNotifier struct{}

// SearchFailed implements Notifier.
func (NopNotifier) SearchFailed(context.Context, FailureNotice) {}
