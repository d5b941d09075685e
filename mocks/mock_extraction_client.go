package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wasilisafish/proposal-builder/internal/port"
)

// MockExtractionClient is a mock implementation of port.ExtractionClient.
type MockExtractionClient struct {
	mock.Mock
}

func (m *MockExtractionClient) Extract(ctx context.Context, input port.ExtractionInput) (*port.ExtractionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ExtractionOutput), args.Error(1)
}
