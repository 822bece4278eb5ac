package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docchat/internal/model"
	"docchat/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const columns = `id, name, storage_key, address, size, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.DocumentRecord, error) {
	var d model.DocumentRecord
	var status string
	if err := s.Scan(
		&d.ID,
		&d.Name,
		&d.StorageKey,
		&d.Address,
		&d.Size,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	return &d, nil
}

// Create inserts a new ledger row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, rec *model.DocumentRecord) (*model.DocumentRecord, error) {
	const q = `
		INSERT INTO documents (id, name, storage_key, address, size, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + columns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.Name,
		rec.StorageKey,
		rec.Address,
		rec.Size,
		string(rec.Status),
		rec.CreatedAt,
	)
	return scanRecord(row)
}

// FindByID fetches a single record by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	const q = `SELECT ` + columns + ` FROM documents WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// UpdateStatus sets status and bumps updated_at.
func (r *DocumentPostgres) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	const q = `UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListStale returns records in status whose updated_at is before cutoff, oldest first.
func (r *DocumentPostgres) ListStale(ctx context.Context, status model.DocumentStatus, cutoff time.Time, limit int) ([]model.DocumentRecord, error) {
	const q = `
		SELECT ` + columns + `
		FROM documents
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC, id ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, q, string(status), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a record by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// PingContext checks database connectivity.
func (r *DocumentPostgres) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
