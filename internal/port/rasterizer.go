package port

import (
	"context"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// PDFRasterizer renders a PDF into one image per page, in page order.
type PDFRasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]domain.PageImage, error)
}

// ImagePreparer readies a direct image upload for encoding.
type ImagePreparer interface {
	Prepare(ctx context.Context, f *domain.UploadedFile, contentType string) (domain.PageImage, []string, error)
}
