package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/model"
	"docchat/internal/repository"
	"docchat/internal/storage"
)

const (
	documentPrefix      = "documents"
	documentContentType = "application/pdf"
	defaultDocumentName = "document.pdf"
)

// DocumentStoreOptions configure how stored documents are addressed.
// With PublicRead the address is the object's anonymous URL; otherwise a
// pre-signed URL valid for PresignExpiry.
type DocumentStoreOptions struct {
	PublicRead    bool
	PresignExpiry time.Duration
}

// DocumentStore writes uploads to object storage and tracks them in the ledger.
type DocumentStore struct {
	store  storage.Storage
	ledger repository.DocumentRepository
	opts   DocumentStoreOptions
	now    func() time.Time

	mu       sync.Mutex
	lastTick int64
}

// NewDocumentStore constructs a DocumentStore.
func NewDocumentStore(store storage.Storage, ledger repository.DocumentRepository, opts DocumentStoreOptions) *DocumentStore {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = time.Hour
	}
	return &DocumentStore{
		store:  store,
		ledger: ledger,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Store uploads data under a time-prefixed key, resolves its address, and
// records it as pending. If the ledger write fails the object is deleted again.
func (s *DocumentStore) Store(ctx context.Context, data []byte, name string, pages int) (*model.Document, error) {
	name = sanitizeName(name)
	now, tick := s.nextTick()
	key := fmt.Sprintf("%s/%d-%s", documentPrefix, tick, name)

	info, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: documentContentType,
		Metadata:    map[string]string{"original-filename": name},
		PublicRead:  s.opts.PublicRead,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upload to storage: %v", ErrStorage, err)
	}

	address, err := s.address(ctx, key)
	if err != nil {
		return nil, s.rollback(ctx, key, fmt.Errorf("%w: resolve address: %v", ErrStorage, err))
	}

	rec, err := s.ledger.Create(ctx, &model.DocumentRecord{
		ID:         uuid.New().String(),
		Name:       name,
		StorageKey: key,
		Address:    address,
		Size:       info.Size,
		Status:     model.DocumentPending,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, s.rollback(ctx, key, fmt.Errorf("%w: ledger save failed: %v", ErrStorage, err))
	}

	return &model.Document{
		ID:          rec.ID,
		Name:        name,
		Key:         key,
		Address:     address,
		Size:        info.Size,
		Pages:       pages,
		ContentType: documentContentType,
		CreatedAt:   now,
	}, nil
}

// MarkExtracted moves the ledger row out of pending so the sweeper keeps the object.
func (s *DocumentStore) MarkExtracted(ctx context.Context, doc *model.Document) error {
	if err := s.ledger.UpdateStatus(ctx, doc.ID, model.DocumentExtracted); err != nil {
		return fmt.Errorf("%w: mark extracted: %v", ErrStorage, err)
	}
	return nil
}

// Discard deletes a document whose processing failed. When the object cannot
// be deleted the row is kept as failed so the sweeper retries later.
func (s *DocumentStore) Discard(ctx context.Context, doc *model.Document) error {
	if err := s.store.Delete(ctx, doc.Key); err != nil {
		if upErr := s.ledger.UpdateStatus(ctx, doc.ID, model.DocumentFailed); upErr != nil {
			return fmt.Errorf("delete object: %v; mark failed: %v", err, upErr)
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return s.ledger.Delete(ctx, doc.ID)
}

func (s *DocumentStore) address(ctx context.Context, key string) (string, error) {
	if s.opts.PublicRead {
		return s.store.PublicURL(key), nil
	}
	return s.store.PresignGet(ctx, key, s.opts.PresignExpiry)
}

func (s *DocumentStore) rollback(ctx context.Context, key string, cause error) error {
	if delErr := s.store.Delete(ctx, key); delErr != nil {
		return fmt.Errorf("%w; rollback delete failed: %v", cause, delErr)
	}
	return cause
}

// nextTick returns the current time and a millisecond key prefix that is
// strictly increasing within this process.
func (s *DocumentStore) nextTick() (time.Time, int64) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	tick := now.UnixMilli()
	if tick <= s.lastTick {
		tick = s.lastTick + 1
	}
	s.lastTick = tick
	return now, tick
}

// sanitizeName keeps the base name and replaces anything outside
// [A-Za-z0-9._-] so the key is safe in a URL path.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return defaultDocumentName
	}
	return name
}
