// Package pdfcheck rejects payloads that are not readable PDF documents
// before anything is written to object storage.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidDocument is returned for empty, oversized, or unparsable payloads.
var ErrInvalidDocument = errors.New("invalid document")

const (
	pdfMagic     = "%PDF-"
	// Readers accept the header anywhere in the first KiB.
	headerWindow = 1024
)

// Info describes a validated PDF.
type Info struct {
	Pages int
}

// Inspect parses data as a PDF and reports its page count.
// maxBytes <= 0 disables the size check.
func Inspect(data []byte, maxBytes int64) (info Info, err error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("%w: empty payload", ErrInvalidDocument)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Info{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidDocument, len(data), maxBytes)
	}
	start := bytes.Index(data[:min(len(data), headerWindow)], []byte(pdfMagic))
	if start < 0 {
		return Info{}, fmt.Errorf("%w: missing PDF header", ErrInvalidDocument)
	}
	// Offsets in the file are relative to the header, not to byte zero.
	body := data[start:]

	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			info, err = Info{}, fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	pages := r.NumPage()
	if pages < 1 {
		return Info{}, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	return Info{Pages: pages}, nil
}
