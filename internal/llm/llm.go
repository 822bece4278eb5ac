// Package llm is the narrow boundary to the generative AI service used for
// document understanding and question answering.
package llm

import (
	"context"
	"errors"
	"io"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty model response")

// RemoteFile is a document staged with the generative AI file service.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
}

// UploadOptions describe a staged file.
type UploadOptions struct {
	MIMEType    string
	DisplayName string
}

// Request is one non-streaming generation call. Files are sent before prompts.
type Request struct {
	Files   []RemoteFile
	Prompts []string
}

// Client generates text and stages files for document understanding.
type Client interface {
	UploadFile(ctx context.Context, r io.Reader, opts UploadOptions) (RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, req Request) (string, error)
}
