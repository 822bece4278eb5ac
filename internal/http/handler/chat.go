package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docchat/internal/http/middleware"
	"docchat/internal/logger"
	"docchat/internal/service"
)

const (
	actionProcessDocument = "process-document"
	actionAskQuestion     = "ask-question"
)

var errUnknownAction = errors.New("unknown action")

// chatRequest is the body of POST /api/chat. Which fields are read depends on Action.
type chatRequest struct {
	Action         string `json:"action" example:"ask-question"`
	DocumentBase64 string `json:"documentBase64,omitempty"`
	DocumentName   string `json:"documentName,omitempty" example:"invoice.pdf"`
	ExtractedInfo  string `json:"extractedInfo,omitempty"`
	Question       string `json:"question,omitempty" example:"What is the total?"`
}

type processDocumentResponse struct {
	ExtractedInfo string `json:"extractedInfo"`
	DocumentURL   string `json:"documentUrl"`
}

type askQuestionResponse struct {
	Response string `json:"response"`
}

// Chat godoc
// @Summary Process a document or ask a question
// @Description action=process-document stores and extracts a base64 PDF; action=ask-question answers against extracted text.
// @Tags chat
// @Accept json
// @Produce json
// @Param request body chatRequest true "Chat action"
// @Success 200 {object} processDocumentResponse
// @Success 200 {object} askQuestionResponse
// @Failure 500 {object} chatFailure
// @Router /api/chat [post]
func Chat(svc service.ChatService, log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		var req chatRequest
		fail := func(err error) error {
			log.Error("chat_request_failed", err, logger.Fields{
				"request_id": middleware.RequestIDFrom(c),
				"action":     req.Action,
				"error_kind": service.ErrorKind(err),
			})
			return writeChatFailure(c)
		}

		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return fail(fmt.Errorf("decode body: %w", err))
		}

		switch req.Action {
		case actionProcessDocument:
			data, err := decodeDocument(req.DocumentBase64)
			if err != nil {
				return fail(err)
			}
			res, err := svc.ProcessDocument(c.UserContext(), data, req.DocumentName)
			if err != nil {
				return fail(err)
			}
			return c.JSON(processDocumentResponse{
				ExtractedInfo: res.ExtractedInfo,
				DocumentURL:   res.Document.Address,
			})

		case actionAskQuestion:
			reply, err := svc.AskQuestion(c.UserContext(), req.ExtractedInfo, req.Question)
			if err != nil {
				return fail(err)
			}
			return c.JSON(askQuestionResponse{Response: reply})

		default:
			return fail(fmt.Errorf("%w: %q", errUnknownAction, req.Action))
		}
	}
}

// decodeDocument accepts raw base64 or a data URL ("data:application/pdf;base64,...").
func decodeDocument(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty document", service.ErrInvalidDocument)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", service.ErrInvalidDocument, err)
	}
	return data, nil
}
