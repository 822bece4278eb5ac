package service

import (
	"context"
	"errors"

	"docchat/internal/answer"
	"docchat/internal/chat"
	"docchat/internal/extract"
	"docchat/internal/pdfcheck"
)

var (
	// ErrStorage means the document could not be written to object storage or the ledger.
	ErrStorage = errors.New("store document")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is required")
	// ErrNotFound aliases the session manager's not-found error.
	ErrNotFound = chat.ErrNotFound
	// ErrInvalidDocument aliases the PDF validation error.
	ErrInvalidDocument = pdfcheck.ErrInvalidDocument
)

// ErrorKind maps an error to a short label used in logs and metrics.
// The label is never returned to HTTP callers.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrInvalidDocument):
		return "invalid_document"
	case errors.Is(err, ErrEmptyQuestion):
		return "invalid_question"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, extract.ErrFetch):
		return "fetch"
	case errors.Is(err, extract.ErrExtraction):
		return "extraction"
	case errors.Is(err, answer.ErrAnswer):
		return "answer"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
