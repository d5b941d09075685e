package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/service"
)

// uploadFields are the multipart field names accepted for documents, in the
// order they are read.
var uploadFields = []string{"files", "file", "pdf"}

// MessageRateLimited is the envelope error for throttled requests.
const MessageRateLimited = "Too many extraction requests. Please wait and try again."

// ExtractionHandler handles document upload and extraction.
type ExtractionHandler struct {
	svc          service.ExtractionService
	maxFileBytes int64
	logger       *slog.Logger
}

// NewExtractionHandler creates a new ExtractionHandler. Uploads larger than
// maxFileBytes are not read into memory; the service rejects them by size.
func NewExtractionHandler(svc service.ExtractionService, maxFileBytes int64, logger *slog.Logger) *ExtractionHandler {
	return &ExtractionHandler{svc: svc, maxFileBytes: maxFileBytes, logger: logger}
}

// Extract handles POST /api/v1/extractions and POST /api/extract-policy
func (h *ExtractionHandler) Extract(c *gin.Context) {
	files, err := h.readUploads(c)
	if err != nil {
		h.logger.Warn("handler.Extract: reading upload failed", "error", err)
		files = nil
	}
	result, err := h.svc.Extract(c.Request.Context(), files)
	RespondExtraction(c, h.logger, result, err)
}

// RejectRateLimited answers a throttled extraction request with a failed envelope.
func (h *ExtractionHandler) RejectRateLimited(c *gin.Context) {
	result := domain.NewExtractionResult(domain.DocumentInfo{
		ID:         "doc_" + uuid.New().String(),
		UploadedAt: domain.FormatTimestamp(time.Now()),
	}, "extr_"+uuid.New().String())
	result.Error = MessageRateLimited
	c.AbortWithStatusJSON(http.StatusTooManyRequests, result)
}

// readUploads collects every file from the accepted form fields. A request
// that is not multipart yields no files.
func (h *ExtractionHandler) readUploads(c *gin.Context) ([]*domain.UploadedFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing multipart form: %w", err)
	}

	var files []*domain.UploadedFile
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			f, err := h.readUpload(fh)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func (h *ExtractionHandler) readUpload(fh *multipart.FileHeader) (*domain.UploadedFile, error) {
	f := &domain.UploadedFile{
		FileName:    filepath.Base(fh.Filename),
		ContentType: declaredContentType(fh),
		Size:        fh.Size,
	}
	if h.maxFileBytes > 0 && fh.Size > h.maxFileBytes {
		return f, nil
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	f.Data = data
	f.Size = int64(len(data))
	return f, nil
}

// declaredContentType prefers the part's Content-Type and falls back to the
// file extension for generic or missing types.
func declaredContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch ext := filepath.Ext(fh.Filename); ext {
	case ".heic", ".HEIC":
		return domain.ContentTypeHEIC
	default:
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return ct
}

func formatSeconds(s float64) string {
	return strconv.Itoa(int(math.Ceil(s)))
}
