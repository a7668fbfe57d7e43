// Package store persists correlation records keyed by their opaque token.
//
// Stores are interface-driven to keep the protocol logic testable and to
// allow swapping in-memory, Redis, or Postgres persistence without rewiring
// business code.
package store

import (
	"context"

	"vcrelay/internal/correlation/models"
)

// Store maps correlation tokens to mutable records. All implementations are
// safe for concurrent use from request handlers.
type Store interface {
	// Get returns the record for token, or sentinel.ErrNotFound when the
	// token is unknown or its record has expired.
	Get(ctx context.Context, token string) (*models.Record, error)

	// Put creates or overwrites the record and refreshes its TTL.
	Put(ctx context.Context, token string, record *models.Record) error

	// Update applies fn to the current record atomically with respect to
	// other updates of the same token, making callback redelivery safe.
	// Returns sentinel.ErrNotFound when no record exists: callbacks must
	// never create records implicitly.
	Update(ctx context.Context, token string, fn func(*models.Record) error) error

	// Delete removes the record. Deleting an absent token is a no-op.
	Delete(ctx context.Context, token string) error
}
