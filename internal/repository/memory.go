package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"docchat/internal/model"
)

// MemoryDocuments is the ledger used when no database is configured.
type MemoryDocuments struct {
	mu   sync.RWMutex
	rows map[string]model.DocumentRecord
}

var _ DocumentRepository = (*MemoryDocuments)(nil)

// NewMemoryDocuments returns an empty in-memory ledger.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{rows: make(map[string]model.DocumentRecord)}
}

func (r *MemoryDocuments) Create(ctx context.Context, rec *model.DocumentRecord) (*model.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := *rec
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	r.rows[out.ID] = out
	return &out, nil
}

func (r *MemoryDocuments) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryDocuments) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	r.rows[id] = rec
	return nil
}

func (r *MemoryDocuments) ListStale(ctx context.Context, status model.DocumentStatus, cutoff time.Time, limit int) ([]model.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DocumentRecord, 0)
	for _, rec := range r.rows {
		if rec.Status == status && rec.UpdatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryDocuments) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *MemoryDocuments) PingContext(ctx context.Context) error {
	return ctx.Err()
}
