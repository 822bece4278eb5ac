package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docchat/internal/model"
	"docchat/internal/service"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) ProcessDocument(ctx context.Context, data []byte, name string) (*service.ProcessResult, error) {
	args := m.Called(ctx, data, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockChatService) AskQuestion(ctx context.Context, extractedText, question string) (string, error) {
	args := m.Called(ctx, extractedText, question)
	return args.String(0), args.Error(1)
}

func (m *MockChatService) StartSession(ctx context.Context, data []byte, name string) (*model.Session, error) {
	args := m.Called(ctx, data, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockChatService) Converse(ctx context.Context, sessionID, question string) (*model.Message, error) {
	args := m.Called(ctx, sessionID, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockChatService) GetSession(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockChatService) ListSessions(ctx context.Context) []model.SessionSummary {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.SessionSummary)
}
