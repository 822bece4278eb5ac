package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docchat/internal/answer"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/extract"
	"docchat/internal/http/middleware"
	"docchat/internal/llm"
	"docchat/internal/model"
	"docchat/internal/repository"
	"docchat/internal/service"
	serviceMocks "docchat/internal/service/mocks"
	"docchat/internal/storage"
	"docchat/internal/testutil"
)

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChat(t *testing.T) {
	mockSvc := new(serviceMocks.MockChatService)
	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Post("/api/chat", Chat(mockSvc, nil))

	pdf := []byte("%PDF-1.4 fake")

	assertGenericFailure := func(t *testing.T, resp *http.Response) {
		t.Helper()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var body chatFailure
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Failed to process request", body.Error)
		assert.Equal(t, resp.Header.Get(middleware.RequestIDHeader), body.RequestID)
	}

	t.Run("process document", func(t *testing.T) {
		mockSvc.On("ProcessDocument", mock.Anything, pdf, "invoice.pdf").Return(&service.ProcessResult{
			Document:      model.Document{Address: "http://files.local/documents/1-invoice.pdf"},
			ExtractedInfo: "Invoice Total: $42",
		}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/chat", chatRequest{
			Action:         "process-document",
			DocumentBase64: base64.StdEncoding.EncodeToString(pdf),
			DocumentName:   "invoice.pdf",
		}))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body processDocumentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Invoice Total: $42", body.ExtractedInfo)
		assert.Equal(t, "http://files.local/documents/1-invoice.pdf", body.DocumentURL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("process document from data url", func(t *testing.T) {
		mockSvc.On("ProcessDocument", mock.Anything, pdf, "a.pdf").Return(&service.ProcessResult{}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/chat", chatRequest{
			Action:         "process-document",
			DocumentBase64: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
			DocumentName:   "a.pdf",
		}))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("ask question", func(t *testing.T) {
		mockSvc.On("AskQuestion", mock.Anything, "Invoice Total: $42", "What is the total?").Return("$42", nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/chat", chatRequest{
			Action:        "ask-question",
			ExtractedInfo: "Invoice Total: $42",
			Question:      "What is the total?",
		}))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body askQuestionResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "$42", body.Response)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown action", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/chat", chatRequest{Action: "summarize"}))
		assertGenericFailure(t, resp)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
		resp, _ := app.Test(req)
		assertGenericFailure(t, resp)
	})

	t.Run("bad base64", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/chat", chatRequest{
			Action:         "process-document",
			DocumentBase64: "%%%",
		}))
		assertGenericFailure(t, resp)
	})

	t.Run("service failure is not leaked", func(t *testing.T) {
		mockSvc.On("AskQuestion", mock.Anything, mock.Anything, mock.Anything).
			Return("", fmt.Errorf("%w: quota exceeded for project 1234", answer.ErrAnswer)).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/chat", chatRequest{Action: "ask-question", Question: "q"}))

		raw, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotContains(t, string(raw), "quota")
		mockSvc.AssertExpectations(t)
	})
}

func TestCreateSession(t *testing.T) {
	mockSvc := new(serviceMocks.MockChatService)
	app := fiber.New()
	app.Post("/api/sessions", CreateSession(mockSvc, nil))

	sess := &model.Session{ID: uuid.NewString(), State: model.SessionActive}

	t.Run("json body", func(t *testing.T) {
		mockSvc.On("StartSession", mock.Anything, []byte("%PDF-x"), "a.pdf").Return(sess, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions", createSessionRequest{
			DocumentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-x")),
			DocumentName:   "a.pdf",
		}))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got model.Session
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, sess.ID, got.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("multipart file", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("file", "report.pdf")
		part.Write([]byte("%PDF-y"))
		writer.Close()

		mockSvc.On("StartSession", mock.Anything, []byte("%PDF-y"), "report.pdf").Return(sess, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no document", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/api/sessions", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_DOCUMENT", res.Error.Code)
	})

	t.Run("invalid pdf", func(t *testing.T) {
		mockSvc.On("StartSession", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: missing PDF header", service.ErrInvalidDocument)).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions", createSessionRequest{
			DocumentBase64: base64.StdEncoding.EncodeToString([]byte("hello")),
		}))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("pipeline error", func(t *testing.T) {
		mockSvc.On("StartSession", mock.Anything, mock.Anything, mock.Anything).Return(nil, extract.ErrExtraction).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions", createSessionRequest{
			DocumentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-z")),
		}))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetSession(t *testing.T) {
	mockSvc := new(serviceMocks.MockChatService)
	app := fiber.New()
	app.Get("/api/sessions/:id", GetSession(mockSvc, nil))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("GetSession", mock.Anything, id).Return(&model.Session{ID: id}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var got model.Session
		json.NewDecoder(resp.Body).Decode(&got)
		assert.Equal(t, id, got.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("GetSession", mock.Anything, id).Return(nil, chat.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/sessions/invalid-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})
}

func TestPostMessage(t *testing.T) {
	mockSvc := new(serviceMocks.MockChatService)
	app := fiber.New()
	app.Post("/api/sessions/:id/messages", PostMessage(mockSvc, nil))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		reply := &model.Message{Role: model.RoleAssistant, Content: "$42"}
		mockSvc.On("Converse", mock.Anything, id, "What is the total?").Return(reply, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/messages", postMessageRequest{Question: "What is the total?"}))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var got model.Message
		json.NewDecoder(resp.Body).Decode(&got)
		assert.Equal(t, "$42", got.Content)
		mockSvc.AssertExpectations(t)
	})

	t.Run("answer failure", func(t *testing.T) {
		id := uuid.NewString()
		reply := &model.Message{Role: model.RoleAssistant, Content: service.AnswerFailed}
		mockSvc.On("Converse", mock.Anything, id, "q").Return(reply, answer.ErrAnswer).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/messages", postMessageRequest{Question: "q"}))

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "UPSTREAM_ERROR", res.Error.Code)
		assert.Equal(t, service.AnswerFailed, res.Error.Message)
	})

	t.Run("empty question", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Converse", mock.Anything, id, "").Return(nil, service.ErrEmptyQuestion).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/messages", postMessageRequest{}))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Converse", mock.Anything, id, "hi").Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/messages", postMessageRequest{Question: "hi"}))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockChatService)
	RegisterRoutes(app, nil, mockSvc, nil, nil)

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})

	t.Run("api responses are not cacheable", func(t *testing.T) {
		mockSvc.On("ListSessions", mock.Anything).Return([]model.SessionSummary{}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
	})

	t.Run("objects are not served without a memory store", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/objects/documents/1-a.pdf", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// fakeModel stands in for the generative AI service. Extraction returns the
// text drawn by the staged PDF; answers quote the first extracted line that
// mentions "Total", or the not-found sentinel.
type fakeModel struct {
	mu     sync.Mutex
	staged map[string][]byte
	seq    int
}

func newFakeModel() *fakeModel {
	return &fakeModel{staged: make(map[string][]byte)}
}

func (f *fakeModel) UploadFile(ctx context.Context, r io.Reader, opts llm.UploadOptions) (llm.RemoteFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return llm.RemoteFile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	name := fmt.Sprintf("files/%d", f.seq)
	f.staged[name] = data
	return llm.RemoteFile{Name: name, URI: "fake://" + name, MIMEType: opts.MIMEType}, nil
}

func (f *fakeModel) DeleteFile(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, name)
	return nil
}

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Files) > 0 {
		f.mu.Lock()
		defer f.mu.Unlock()
		return testutil.TextOf(f.staged[req.Files[0].Name]), nil
	}
	prompt := strings.TrimPrefix(req.Prompts[0], "Using this extracted information: ")
	if i := strings.Index(prompt, "\n\nAnswer this question:"); i >= 0 {
		prompt = prompt[:i]
	}
	for _, line := range strings.Split(prompt, "\n") {
		if strings.Contains(line, "Total") {
			return "According to the document, " + line, nil
		}
	}
	return answer.NotFound, nil
}

func (f *fakeModel) stagedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.staged)
}

type e2eStack struct {
	app     *fiber.App
	objects *storage.MemoryStorage
	model   *fakeModel
	scratch string
}

// newE2EStack serves the API on a loopback listener so the extractor can
// fetch stored documents back through /objects/.
func newE2EStack(t *testing.T) *e2eStack {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	objects := storage.NewMemory("http://" + ln.Addr().String() + "/objects")
	ledger := repository.NewMemoryDocuments()
	fm := newFakeModel()
	scratch := t.TempDir()

	svc := service.NewChatService(service.ChatDeps{
		Documents: service.NewDocumentStore(objects, ledger, service.DocumentStoreOptions{PublicRead: true}),
		Extractor: extract.New(fm, extract.Options{ScratchDir: scratch, FetchTimeout: 5 * time.Second}),
		Answerer:  answer.New(fm),
		Timeouts:  config.TimeoutConfig{Store: 5 * time.Second, Extract: 10 * time.Second, Answer: 5 * time.Second},
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(), DisableStartupMessage: true})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, ledger, svc, nil, objects)

	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	return &e2eStack{app: app, objects: objects, model: fm, scratch: scratch}
}

func (s *e2eStack) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestEndToEnd_ChatEndpoint(t *testing.T) {
	s := newE2EStack(t)
	pdf := testutil.MinimalPDF("ACME Corp", "Invoice Total: $42")

	resp := s.do(t, jsonRequest(http.MethodPost, "/api/chat", chatRequest{
		Action:         "process-document",
		DocumentBase64: base64.StdEncoding.EncodeToString(pdf),
		DocumentName:   "invoice.pdf",
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var processed processDocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&processed))
	assert.Contains(t, processed.ExtractedInfo, "42")
	assert.Contains(t, processed.DocumentURL, "/objects/documents/")
	assert.Equal(t, 1, s.objects.Len())
	assert.Equal(t, 0, s.model.stagedCount(), "staged file must be deleted")

	entries, err := os.ReadDir(s.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)

	resp = s.do(t, jsonRequest(http.MethodPost, "/api/chat", chatRequest{
		Action:        "ask-question",
		ExtractedInfo: processed.ExtractedInfo,
		Question:      "What is the invoice total?",
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answered askQuestionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answered))
	assert.Contains(t, answered.Response, "42")

	resp = s.do(t, jsonRequest(http.MethodPost, "/api/chat", chatRequest{
		Action:        "ask-question",
		ExtractedInfo: "Delivery address: 1 Main St",
		Question:      "What is the due date?",
	}))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answered))
	assert.Equal(t, "This information is not available in the document.", answered.Response)

	resp = s.do(t, jsonRequest(http.MethodPost, "/api/chat", chatRequest{
		Action:        "ask-question",
		ExtractedInfo: processed.ExtractedInfo,
		Question:      "hello",
	}))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answered))
	assert.Equal(t, chat.Greeting, answered.Response)
}

func TestEndToEnd_InvalidDocumentStoresNothing(t *testing.T) {
	s := newE2EStack(t)

	resp := s.do(t, jsonRequest(http.MethodPost, "/api/chat", chatRequest{
		Action:         "process-document",
		DocumentBase64: base64.StdEncoding.EncodeToString([]byte("just some text")),
		DocumentName:   "notes.txt",
	}))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 0, s.objects.Len())
}

func TestEndToEnd_Sessions(t *testing.T) {
	s := newE2EStack(t)
	pdf := testutil.MinimalPDF("Invoice Total: $42")

	resp := s.do(t, jsonRequest(http.MethodPost, "/api/sessions", createSessionRequest{
		DocumentBase64: base64.StdEncoding.EncodeToString(pdf),
		DocumentName:   "invoice.pdf",
	}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess model.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, chat.Welcome, sess.Messages[0].Content)

	resp = s.do(t, jsonRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/messages", postMessageRequest{Question: "What is the total?"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg model.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Contains(t, msg.Content, "42")

	resp = s.do(t, jsonRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/messages", postMessageRequest{Question: "Thanks!"}))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, chat.Thanks, msg.Content)

	resp = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var full model.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&full))
	assert.Len(t, full.Messages, 5)

	resp = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	var list []model.SessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "invoice.pdf", list[0].DocumentName)
	assert.Equal(t, 5, list[0].MessageCount)

	resp = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
