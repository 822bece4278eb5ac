package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docchat/internal/http/middleware"
	"docchat/internal/logger"
	"docchat/internal/service"
)

type createSessionRequest struct {
	DocumentBase64 string `json:"documentBase64"`
	DocumentName   string `json:"documentName"`
}

type postMessageRequest struct {
	Question string `json:"question"`
}

// CreateSession godoc
// @Summary Upload a document and open a chat session
// @Tags sessions
// @Accept json,mpfd
// @Produce json
// @Param request body createSessionRequest false "Base64 document"
// @Param file formData file false "PDF file"
// @Success 201 {object} model.Session
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/sessions [post]
func CreateSession(svc service.ChatService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, name, err := readDocument(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DOCUMENT", "a PDF document is required")
		}

		sess, err := svc.StartSession(c.UserContext(), data, name)
		if err != nil {
			return writeServiceError(c, log, "create_session_failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

// ListSessions godoc
// @Summary List chat sessions, newest first
// @Tags sessions
// @Produce json
// @Success 200 {array} model.SessionSummary
// @Router /api/sessions [get]
func ListSessions(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.ListSessions(c.UserContext()))
	}
}

// GetSession godoc
// @Summary Get a chat session with its messages
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} model.Session
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/sessions/{id} [get]
func GetSession(svc service.ChatService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		sess, err := svc.GetSession(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, log, "get_session_failed", err)
		}
		return c.JSON(sess)
	}
}

// PostMessage godoc
// @Summary Ask a question within a session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body postMessageRequest true "Question"
// @Success 200 {object} model.Message
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/sessions/{id}/messages [post]
func PostMessage(svc service.ChatService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req postMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}

		msg, err := svc.Converse(c.UserContext(), id, req.Question)
		if err != nil {
			if msg != nil {
				// The failure reply is already part of the session.
				logServiceError(c, log, "converse_failed", err)
				return writeError(c, fiber.StatusBadGateway, "UPSTREAM_ERROR", msg.Content)
			}
			return writeServiceError(c, log, "converse_failed", err)
		}
		return c.JSON(msg)
	}
}

// readDocument takes the upload from a multipart "file" field or a JSON body.
func readDocument(c *fiber.Ctx) ([]byte, string, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return data, fh.Filename, nil
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "", err
	}
	data, err := decodeDocument(req.DocumentBase64)
	if err != nil {
		return nil, "", err
	}
	return data, req.DocumentName, nil
}

// writeServiceError maps service errors onto the error envelope.
func writeServiceError(c *fiber.Ctx, log *logger.Logger, msg string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "session not found")
	case errors.Is(err, service.ErrInvalidDocument):
		return writeError(c, fiber.StatusBadRequest, "INVALID_DOCUMENT", "document is not a readable PDF")
	case errors.Is(err, service.ErrEmptyQuestion):
		return writeError(c, fiber.StatusBadRequest, "INVALID_QUESTION", "question is required")
	case errors.Is(err, context.DeadlineExceeded):
		logServiceError(c, log, msg, err)
		return writeError(c, fiber.StatusGatewayTimeout, "TIMEOUT", "request timed out")
	default:
		logServiceError(c, log, msg, err)
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func logServiceError(c *fiber.Ctx, log *logger.Logger, msg string, err error) {
	if log == nil {
		return
	}
	log.Error(msg, err, logger.Fields{
		"request_id": middleware.RequestIDFrom(c),
		"error_kind": service.ErrorKind(err),
	})
}
