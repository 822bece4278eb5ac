// Package answer answers a single question against previously extracted
// document text. Calls are stateless: no history is carried between them.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat/internal/llm"
)

// ErrAnswer means the question-answering call failed.
var ErrAnswer = errors.New("answer question")

// NotFound is returned verbatim when the document does not contain the answer.
const NotFound = "This information is not available in the document."

const fallbackInstruction = "If the answer isn't found, respond: '" + NotFound + "'"

var tracer = otel.Tracer("docchat/answer")

// Answerer issues one prompt per question.
type Answerer struct {
	llm llm.Client
}

// New returns an Answerer backed by client.
func New(client llm.Client) *Answerer {
	return &Answerer{llm: client}
}

// Prompt builds the question prompt for extractedText.
func Prompt(extractedText, question string) string {
	return fmt.Sprintf("Using this extracted information: %s\n\nAnswer this question: %s", extractedText, question)
}

// Answer returns the model's answer, or exactly NotFound when the model
// reports the answer is missing or returns nothing.
func (a *Answerer) Answer(ctx context.Context, extractedText, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "answer.Answer")
	defer span.End()
	span.SetAttributes(attribute.Int("question.length", len(question)))

	text, err := a.llm.Generate(ctx, llm.Request{
		Prompts: []string{Prompt(extractedText, question), fallbackInstruction},
	})
	if errors.Is(err, llm.ErrEmptyResponse) {
		return NotFound, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrAnswer, err)
	}
	return normalize(text), nil
}

// normalize collapses any echo of the fallback phrase (quoted, missing the
// period, surrounded by whitespace) to the exact sentinel.
func normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NotFound
	}
	bare := strings.Trim(trimmed, "\"'`* ")
	bare = strings.TrimRight(bare, ".")
	if strings.EqualFold(bare, strings.TrimRight(NotFound, ".")) {
		return NotFound
	}
	return trimmed
}
