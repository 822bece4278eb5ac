package mocks

import (
	"context"
	"io"

	"docchat/internal/llm"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) UploadFile(ctx context.Context, r io.Reader, opts llm.UploadOptions) (llm.RemoteFile, error) {
	args := m.Called(ctx, r, opts)
	return args.Get(0).(llm.RemoteFile), args.Error(1)
}

func (m *MockClient) DeleteFile(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
