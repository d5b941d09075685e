package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/export"
)

// ExportHandler renders extraction envelopes as downloadable sheets.
type ExportHandler struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(logger *slog.Logger) *ExportHandler {
	return &ExportHandler{logger: logger, now: time.Now}
}

// Export handles POST /api/v1/extractions/export
func (h *ExportHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", export.FormatXLSX)
	contentType, ok := export.ContentTypes[format]
	if !ok {
		RespondError(c, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be xlsx or csv")
		return
	}

	var result domain.ExtractionResult
	if err := c.ShouldBindJSON(&result); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_BODY", "body must be an extraction result")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, &result); err != nil {
		h.logger.Error("handler.Export: rendering failed",
			"format", format,
			"extraction_id", result.ExtractionID,
			"error", err,
		)
		RespondError(c, http.StatusInternalServerError, "EXPORT_FAILED", "could not render export")
		return
	}

	filename := export.BuildFilename(result.Document.FileName, format, h.now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
