package model

import "time"

// Document is an uploaded PDF after it has been written to object storage.
// It is immutable once stored and is never deleted by the chat pipeline itself.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Address     string    `json:"url"`
	Size        int64     `json:"size"`
	Pages       int       `json:"pages"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentStatus tracks a stored object through the extraction pipeline.
type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentExtracted DocumentStatus = "extracted"
	DocumentFailed    DocumentStatus = "failed"
)

// DocumentRecord is the ledger row for a stored object.
// Rows left in DocumentPending past a TTL are orphans and get swept.
type DocumentRecord struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	StorageKey string         `json:"storage_key"`
	Address    string         `json:"address"`
	Size       int64          `json:"size"`
	Status     DocumentStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
