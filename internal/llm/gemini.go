package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"docchat/internal/config"
)

const (
	defaultModelName  = "gemini-1.5-flash"
	filePollInterval  = time.Second
	answerTemperature = float32(0.2)
)

// Gemini implements Client on top of the Gemini API.
type Gemini struct {
	client    *genai.Client
	modelName string
	pollEvery time.Duration
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini client. The API key is required.
func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	return newGemini(ctx, cfg)
}

func newGemini(ctx context.Context, cfg config.GeminiConfig, opts ...option.ClientOption) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	name := cfg.Model
	if name == "" {
		name = defaultModelName
	}
	return &Gemini{client: client, modelName: name, pollEvery: filePollInterval}, nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// UploadFile stages r with the Gemini file service and waits until it is usable.
// Whenever the upload may have reached the service, the returned RemoteFile
// carries the file name, even alongside an error, so the caller can delete it.
func (g *Gemini) UploadFile(ctx context.Context, r io.Reader, opts UploadOptions) (RemoteFile, error) {
	name := "files/" + newFileID()
	f, err := g.client.UploadFile(ctx, name, r, &genai.UploadFileOptions{
		MIMEType:    opts.MIMEType,
		DisplayName: opts.DisplayName,
	})
	if err != nil {
		return RemoteFile{Name: name}, fmt.Errorf("gemini upload file: %w", err)
	}

	name = f.Name
	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return toRemoteFile(f), ctx.Err()
		case <-time.After(g.pollEvery):
		}
		next, err := g.client.GetFile(ctx, name)
		if err != nil {
			return toRemoteFile(f), fmt.Errorf("gemini get file: %w", err)
		}
		f = next
	}
	if f.State == genai.FileStateFailed {
		return toRemoteFile(f), fmt.Errorf("gemini file %s failed processing", f.Name)
	}
	return toRemoteFile(f), nil
}

// newFileID returns a file ID within the service's 40 character limit.
func newFileID() string {
	return "docchat-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func toRemoteFile(f *genai.File) RemoteFile {
	return RemoteFile{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType}
}

// DeleteFile removes a staged file.
func (g *Gemini) DeleteFile(ctx context.Context, name string) error {
	if err := g.client.DeleteFile(ctx, name); err != nil {
		return fmt.Errorf("gemini delete file: %w", err)
	}
	return nil
}

// Generate runs a single GenerateContent call and concatenates the text parts
// of the first candidate.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	temp := answerTemperature
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	parts := make([]genai.Part, 0, len(req.Files)+len(req.Prompts))
	for _, f := range req.Files {
		parts = append(parts, genai.FileData{MIMEType: f.MIMEType, URI: f.URI})
	}
	for _, p := range req.Prompts {
		parts = append(parts, genai.Text(p))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
