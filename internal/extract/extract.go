// Package extract turns a reachable document address into the text the
// generative AI service extracts from it.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat/internal/llm"
	"docchat/internal/logger"
)

var (
	// ErrFetch means the document address could not be read.
	ErrFetch = errors.New("fetch document")
	// ErrExtraction means the document-understanding call failed.
	ErrExtraction = errors.New("extract document content")
)

const (
	// Instruction is sent alongside the staged document.
	Instruction = "Extract and structure all information from this document. Each and every line and word is important. Make sure all data is extracted."

	documentMIMEType    = "application/pdf"
	documentDisplayName = "Chat Document"
	scratchPattern      = "docchat-*.pdf"
)

var tracer = otel.Tracer("docchat/extract")

// Options configure an Extractor.
type Options struct {
	ScratchDir   string
	FetchTimeout time.Duration
	MaxBytes     int64
	HTTPClient   *http.Client
	Logger       *logger.Logger
}

// Extractor implements fetch → scratch file → stage → generate.
type Extractor struct {
	llm      llm.Client
	http     *http.Client
	scratch  string
	timeout  time.Duration
	maxBytes int64
	log      *logger.Logger
}

// New returns an Extractor. A nil HTTPClient gets an otelhttp-instrumented default.
func New(client llm.Client, opts Options) *Extractor {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	dir := opts.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Extractor{
		llm:      client,
		http:     hc,
		scratch:  dir,
		timeout:  opts.FetchTimeout,
		maxBytes: opts.MaxBytes,
		log:      log.With(logger.Fields{"component": "extract"}),
	}
}

// Extract returns everything the document-understanding model extracts from
// the document at address. The scratch file and the staged remote file are
// removed before Extract returns, whatever the outcome.
func (e *Extractor) Extract(ctx context.Context, address string) (string, error) {
	ctx, span := tracer.Start(ctx, "extract.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("document.address", redactAddress(address)))

	path, err := e.fetchToScratch(ctx, address)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	defer e.removeScratch(path)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open scratch file: %v", ErrExtraction, err)
	}
	defer f.Close()

	remote, err := e.llm.UploadFile(ctx, f, llm.UploadOptions{
		MIMEType:    documentMIMEType,
		DisplayName: documentDisplayName,
	})
	if remote.Name != "" {
		defer e.deleteRemote(remote.Name)
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	text, err := e.llm.Generate(ctx, llm.Request{
		Files:   []llm.RemoteFile{remote},
		Prompts: []string{Instruction},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	span.SetAttributes(attribute.Int("extraction.length", len(text)))
	return text, nil
}

// fetchToScratch downloads address into a new file under the scratch dir.
// On error no file is left behind.
func (e *Extractor) fetchToScratch(ctx context.Context, address string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	f, err := os.CreateTemp(e.scratch, scratchPattern)
	if err != nil {
		return "", fmt.Errorf("%w: create scratch file: %v", ErrExtraction, err)
	}
	path := f.Name()

	var body io.Reader = resp.Body
	if e.maxBytes > 0 {
		body = io.LimitReader(resp.Body, e.maxBytes+1)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		e.removeScratch(path)
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, copyErr)
	case closeErr != nil:
		e.removeScratch(path)
		return "", fmt.Errorf("%w: write scratch file: %v", ErrExtraction, closeErr)
	case e.maxBytes > 0 && n > e.maxBytes:
		e.removeScratch(path)
		return "", fmt.Errorf("%w: document exceeds %d bytes", ErrFetch, e.maxBytes)
	case n == 0:
		e.removeScratch(path)
		return "", fmt.Errorf("%w: empty body", ErrFetch)
	}
	return path, nil
}

// redactAddress drops the query so presigned signatures stay out of traces.
func redactAddress(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}

func (e *Extractor) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.Warn("scratch_cleanup_failed", err, logger.Fields{"path": path})
	}
}

// deleteRemote runs on its own short deadline so a cancelled request still
// cleans up the staged file.
func (e *Extractor) deleteRemote(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.llm.DeleteFile(ctx, name); err != nil {
		e.log.Warn("remote_file_cleanup_failed", err, logger.Fields{"file": name})
	}
}
