package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// MockRasterizer is a mock implementation of port.PDFRasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, pdf []byte) ([]domain.PageImage, error) {
	args := m.Called(ctx, pdf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PageImage), args.Error(1)
}

// MockImagePreparer is a mock implementation of port.ImagePreparer.
type MockImagePreparer struct {
	mock.Mock
}

func (m *MockImagePreparer) Prepare(ctx context.Context, f *domain.UploadedFile, contentType string) (domain.PageImage, []string, error) {
	args := m.Called(ctx, f, contentType)
	var notes []string
	if n := args.Get(1); n != nil {
		notes = n.([]string)
	}
	return args.Get(0).(domain.PageImage), notes, args.Error(2)
}
