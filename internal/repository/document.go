package repository

import (
	"context"
	"errors"
	"time"

	"docchat/internal/model"
)

// ErrNotFound is returned when no ledger row matches.
var ErrNotFound = errors.New("document record not found")

// DocumentRepository is the ledger of objects written to storage. It tracks
// where each object is in the extraction pipeline so orphans can be swept.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new record and returns the stored row.
	Create(ctx context.Context, rec *model.DocumentRecord) (*model.DocumentRecord, error)

	// FindByID returns a record by its ID.
	FindByID(ctx context.Context, id string) (*model.DocumentRecord, error)

	// UpdateStatus moves a record to status.
	UpdateStatus(ctx context.Context, id string, status model.DocumentStatus) error

	// ListStale returns up to limit records in status last updated before cutoff, oldest first.
	ListStale(ctx context.Context, status model.DocumentStatus, cutoff time.Time, limit int) ([]model.DocumentRecord, error)

	// Delete removes a record by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error

	// PingContext reports whether the backing store is reachable.
	PingContext(ctx context.Context) error
}
