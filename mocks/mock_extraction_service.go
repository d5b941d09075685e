package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// MockExtractionService is a mock implementation of service.ExtractionService.
type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Extract(ctx context.Context, files []*domain.UploadedFile) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, files)
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}
