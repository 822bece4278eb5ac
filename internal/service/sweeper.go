package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat/internal/logger"
	"docchat/internal/model"
	"docchat/internal/repository"
	"docchat/internal/storage"
)

const sweepBatch = 100

// Sweeper deletes objects whose pipeline never finished: rows still pending
// after the TTL (the process died mid-request) and rows whose rollback failed.
type Sweeper struct {
	store   storage.Storage
	ledger  repository.DocumentRepository
	ttl     time.Duration
	metrics *Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewSweeper constructs a Sweeper. ttl must exceed the longest pipeline run.
func NewSweeper(store storage.Storage, ledger repository.DocumentRepository, ttl time.Duration, metrics *Metrics, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		store:   store,
		ledger:  ledger,
		ttl:     ttl,
		metrics: metrics,
		log:     log.With(logger.Fields{"component": "sweeper"}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sweep removes one batch per status and returns how many objects were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	var errs []error

	for _, status := range []model.DocumentStatus{model.DocumentPending, model.DocumentFailed} {
		recs, err := s.ledger.ListStale(ctx, status, cutoff, sweepBatch)
		if err != nil {
			return removed, fmt.Errorf("list %s documents: %w", status, err)
		}
		for _, rec := range recs {
			if err := s.store.Delete(ctx, rec.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				errs = append(errs, fmt.Errorf("delete %s: %w", rec.StorageKey, err))
				continue
			}
			if err := s.ledger.Delete(ctx, rec.ID); err != nil {
				errs = append(errs, fmt.Errorf("delete record %s: %w", rec.ID, err))
				continue
			}
			removed++
			s.log.Info("orphan_removed", logger.Fields{"document_id": rec.ID, "key": rec.StorageKey, "status": string(rec.Status)})
		}
	}

	s.metrics.orphansSwept(removed)
	return removed, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("sweep_failed", err, logger.Fields{"removed": n})
			}
		}
	}
}
