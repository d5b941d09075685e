package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

const (
	jpegQuality      = 90
	defaultMaxPixels = 50_000_000
)

// ErrTooManyPixels rejects images whose decoded size would exceed the pixel budget.
var ErrTooManyPixels = errors.New("image exceeds pixel budget")

// Converter turns an image the extraction service cannot read into PNG bytes.
type Converter interface {
	Convert(ctx context.Context, data []byte) ([]byte, error)
}

// Normalizer prepares direct image uploads for encoding. Oversized JPEG and PNG
// images are downscaled so the long edge fits MaxDimension; HEIC images are
// converted to PNG when a converter is available.
type Normalizer struct {
	maxDimension int
	maxPixels    int64
	heic         Converter
	logger       *slog.Logger
}

// NewNormalizer creates a Normalizer. maxPixels bounds width*height of any
// image that would be decoded. heic may be nil, in which case HEIC images pass
// through unchanged.
func NewNormalizer(maxDimension int, maxPixels int64, heic Converter, logger *slog.Logger) *Normalizer {
	if maxDimension <= 0 {
		maxDimension = 2048
	}
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &Normalizer{maxDimension: maxDimension, maxPixels: maxPixels, heic: heic, logger: logger}
}

// HEICSupported reports whether HEIC uploads are converted before submission.
func (n *Normalizer) HEICSupported() bool {
	return n.heic != nil
}

// Prepare returns the page image to submit for one image upload plus any
// advisory notes produced along the way.
func (n *Normalizer) Prepare(ctx context.Context, f *domain.UploadedFile, contentType string) (domain.PageImage, []string, error) {
	switch contentType {
	case domain.ContentTypeHEIC:
		if n.heic == nil {
			n.logger.Warn("imaging.Prepare: no HEIC converter, passing through", "file", f.FileName)
			note := fmt.Sprintf("%s was sent as HEIC without conversion; results may be incomplete.", f.FileName)
			return domain.PageImage{Number: 1, ContentType: contentType, Data: f.Data}, []string{note}, nil
		}
		out, err := n.heic.Convert(ctx, f.Data)
		if err != nil {
			return domain.PageImage{}, nil, &domain.ConversionError{Stage: "heic", Cause: err}
		}
		img, err := n.fit(out, domain.ContentTypePNG)
		if err != nil {
			return domain.PageImage{}, nil, err
		}
		return img, nil, nil
	case domain.ContentTypeJPEG, domain.ContentTypePNG:
		img, err := n.fit(f.Data, contentType)
		if err != nil {
			return domain.PageImage{}, nil, err
		}
		return img, nil, nil
	default:
		return domain.PageImage{}, nil, &domain.ConversionError{
			Stage: "image",
			Cause: fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, contentType),
		}
	}
}

// fit downscales data when its long edge exceeds the limit. Images already
// within bounds are returned byte-for-byte.
func (n *Normalizer) fit(data []byte, contentType string) (domain.PageImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.PageImage{}, &domain.ConversionError{Stage: "image", Cause: fmt.Errorf("decoding image header: %w", err)}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > n.maxPixels {
		n.logger.Warn("imaging.fit: image over pixel budget",
			"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			"max_pixels", n.maxPixels,
		)
		return domain.PageImage{}, &domain.ConversionError{
			Stage: "image",
			Cause: fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height),
		}
	}
	if max(cfg.Width, cfg.Height) <= n.maxDimension {
		return domain.PageImage{Number: 1, ContentType: contentType, Data: data}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.PageImage{}, &domain.ConversionError{Stage: "image", Cause: fmt.Errorf("decoding image: %w", err)}
	}
	w, h := scaledSize(cfg.Width, cfg.Height, n.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if contentType == domain.ContentTypeJPEG {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return domain.PageImage{}, &domain.ConversionError{Stage: "image", Cause: fmt.Errorf("encoding image: %w", err)}
	}
	n.logger.Debug("imaging.fit: downscaled",
		"from", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"to", fmt.Sprintf("%dx%d", w, h),
	)
	return domain.PageImage{Number: 1, ContentType: contentType, Data: buf.Bytes()}, nil
}

func scaledSize(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
