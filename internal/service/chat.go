package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/model"
	"docchat/internal/pdfcheck"
)

// AnswerFailed is appended to a session when the model call fails.
const AnswerFailed = "Error processing request"

var tracer = otel.Tracer("docchat/service")

// ContentExtractor derives the full text of a document reachable at address.
type ContentExtractor interface {
	Extract(ctx context.Context, address string) (string, error)
}

// QuestionAnswerer answers one question against extracted text.
type QuestionAnswerer interface {
	Answer(ctx context.Context, extractedText, question string) (string, error)
}

// ProcessResult is the outcome of a successful upload.
type ProcessResult struct {
	Document      model.Document `json:"document"`
	ExtractedInfo string         `json:"extractedInfo"`
}

// ChatService defines the document chat use cases.
type ChatService interface {
	// ProcessDocument validates, stores, and extracts a document. Any failure
	// aborts the whole operation and removes the stored object.
	ProcessDocument(ctx context.Context, data []byte, name string) (*ProcessResult, error)

	// AskQuestion answers question against caller-supplied extracted text,
	// short-circuiting small talk through the canned rules.
	AskQuestion(ctx context.Context, extractedText, question string) (string, error)

	// StartSession processes a document and opens a session for it. No session
	// exists when processing fails.
	StartSession(ctx context.Context, data []byte, name string) (*model.Session, error)

	// Converse appends the user's question and the assistant's answer to a session.
	Converse(ctx context.Context, sessionID, question string) (*model.Message, error)

	// GetSession returns a session snapshot.
	GetSession(ctx context.Context, id string) (*model.Session, error)

	// ListSessions returns session summaries newest first.
	ListSessions(ctx context.Context) []model.SessionSummary
}

// ChatDeps are the collaborators of the chat service, built once at startup.
type ChatDeps struct {
	Documents        *DocumentStore
	Extractor        ContentExtractor
	Answerer         QuestionAnswerer
	Sessions         *chat.Manager
	Responder        *chat.Responder
	Metrics          *Metrics
	Logger           *logger.Logger
	Timeouts         config.TimeoutConfig
	MaxDocumentBytes int64
}

type chatService struct {
	docs      *DocumentStore
	extractor ContentExtractor
	answerer  QuestionAnswerer
	sessions  *chat.Manager
	responder *chat.Responder
	metrics   *Metrics
	log       *logger.Logger
	timeouts  config.TimeoutConfig
	maxBytes  int64
}

// NewChatService constructs a ChatService.
func NewChatService(d ChatDeps) ChatService {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	responder := d.Responder
	if responder == nil {
		responder = chat.NewResponder(chat.DefaultRules)
	}
	sessions := d.Sessions
	if sessions == nil {
		sessions = chat.NewManager()
	}
	return &chatService{
		docs:      d.Documents,
		extractor: d.Extractor,
		answerer:  d.Answerer,
		sessions:  sessions,
		responder: responder,
		metrics:   d.Metrics,
		log:       log.With(logger.Fields{"component": "chat_service"}),
		timeouts:  d.Timeouts,
		maxBytes:  d.MaxDocumentBytes,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *chatService) ProcessDocument(ctx context.Context, data []byte, name string) (res *ProcessResult, err error) {
	ctx, span := tracer.Start(ctx, "service.ProcessDocument")
	defer span.End()
	start := time.Now()
	defer func() {
		s.metrics.observe("process_document", start, err)
		if err != nil {
			span.RecordError(err)
		}
	}()

	info, err := pdfcheck.Inspect(data, s.maxBytes)
	if err != nil {
		s.log.Warn("document_rejected", err, logger.Fields{"document_name": name, "size": len(data)})
		return nil, err
	}
	span.SetAttributes(attribute.Int("document.size", len(data)), attribute.Int("document.pages", info.Pages))

	storeCtx, cancel := withTimeout(ctx, s.timeouts.Store)
	doc, err := s.docs.Store(storeCtx, data, name, info.Pages)
	cancel()
	if err != nil {
		s.logFailure("document_store_failed", err, start, logger.Fields{"document_name": name})
		return nil, err
	}
	s.log.Info("document_stored", logger.Fields{
		"document_id": doc.ID,
		"key":         doc.Key,
		"size":        doc.Size,
		"pages":       doc.Pages,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	extractCtx, cancel := withTimeout(ctx, s.timeouts.Extract)
	text, err := s.extractor.Extract(extractCtx, doc.Address)
	cancel()
	if err == nil {
		err = s.docs.MarkExtracted(ctx, doc)
	}
	if err != nil {
		s.logFailure("document_extract_failed", err, start, logger.Fields{"document_id": doc.ID, "key": doc.Key})
		s.discard(ctx, doc)
		return nil, err
	}

	s.log.Info("document_extracted", logger.Fields{
		"document_id":       doc.ID,
		"extraction_length": len(text),
		"duration_ms":       time.Since(start).Milliseconds(),
	})
	return &ProcessResult{Document: *doc, ExtractedInfo: text}, nil
}

// discard runs detached from the request so a cancelled caller still cleans up.
func (s *chatService) discard(ctx context.Context, doc *model.Document) {
	cleanupCtx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeouts.Store)
	defer cancel()
	if err := s.docs.Discard(cleanupCtx, doc); err != nil {
		s.log.Error("document_discard_failed", err, logger.Fields{"document_id": doc.ID, "key": doc.Key})
		return
	}
	s.log.Info("document_discarded", logger.Fields{"document_id": doc.ID, "key": doc.Key})
}

func (s *chatService) AskQuestion(ctx context.Context, extractedText, question string) (reply string, err error) {
	ctx, span := tracer.Start(ctx, "service.AskQuestion")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	if rule, ok := s.responder.Match(question); ok {
		span.SetAttributes(attribute.String("canned.rule", rule.Name))
		s.metrics.cannedHit(rule.Name)
		return rule.Reply, nil
	}

	start := time.Now()
	defer func() {
		s.metrics.observe("answer_question", start, err)
		if err != nil {
			span.RecordError(err)
		}
	}()

	answerCtx, cancel := withTimeout(ctx, s.timeouts.Answer)
	defer cancel()
	reply, err = s.answerer.Answer(answerCtx, extractedText, question)
	if err != nil {
		s.logFailure("answer_failed", err, start, nil)
		return "", err
	}
	return reply, nil
}

func (s *chatService) StartSession(ctx context.Context, data []byte, name string) (*model.Session, error) {
	res, err := s.ProcessDocument(ctx, data, name)
	if err != nil {
		return nil, err
	}
	sess := s.sessions.CreateSession(res.Document, res.ExtractedInfo)
	s.log.Info("session_created", logger.Fields{"session_id": sess.ID, "document_id": res.Document.ID})
	return sess, nil
}

func (s *chatService) Converse(ctx context.Context, sessionID, question string) (*model.Message, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	sess, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.AppendUserMessage(sessionID, question); err != nil {
		return nil, err
	}

	reply, askErr := s.AskQuestion(ctx, sess.ExtractedInfo, question)
	if askErr != nil {
		reply = AnswerFailed
	}
	msg, err := s.sessions.AppendAssistantMessage(sessionID, reply)
	if err != nil {
		return nil, err
	}
	if askErr != nil {
		return &msg, fmt.Errorf("session %s: %w", sessionID, askErr)
	}
	return &msg, nil
}

func (s *chatService) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return s.sessions.GetSession(id)
}

func (s *chatService) ListSessions(ctx context.Context) []model.SessionSummary {
	return s.sessions.ListSessions()
}

func (s *chatService) logFailure(msg string, err error, start time.Time, fields logger.Fields) {
	f := logger.Fields{"error_kind": ErrorKind(err), "duration_ms": time.Since(start).Milliseconds()}
	for k, v := range fields {
		f[k] = v
	}
	s.log.Error(msg, err, f)
}
