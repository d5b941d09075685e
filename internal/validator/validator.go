package validator

import (
	"fmt"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// MessageUnsupportedType is returned for any content type outside the accepted set.
const MessageUnsupportedType = "File type not supported. Please upload a PDF or image (JPG, PNG, HEIC)."

// Result is the outcome of validating one file.
type Result struct {
	Valid       bool
	Error       string
	ContentType string
	Kind        domain.FileKind
}

// FileValidator checks declared size and MIME type before any processing.
// It performs no I/O.
type FileValidator struct {
	maxBytes int64
}

// NewFileValidator creates a validator that accepts files up to maxBytes inclusive.
func NewFileValidator(maxBytes int64) *FileValidator {
	return &FileValidator{maxBytes: maxBytes}
}

// MaxBytes returns the configured size limit.
func (v *FileValidator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks a file's declared content type and byte size.
func (v *FileValidator) Validate(contentType string, size int64) Result {
	if size > v.maxBytes {
		return Result{Error: v.sizeMessage()}
	}
	ct := domain.CanonicalContentType(contentType)
	kind, ok := domain.AllowedContentTypes[ct]
	if !ok {
		return Result{Error: MessageUnsupportedType}
	}
	return Result{Valid: true, ContentType: ct, Kind: kind}
}

// Check validates an upload and returns a *domain.ValidationError when it is rejected.
func (v *FileValidator) Check(f *domain.UploadedFile) (Result, error) {
	res := v.Validate(f.ContentType, f.Size)
	if res.Valid {
		return res, nil
	}
	cause := domain.ErrUnsupportedFileType
	if f.Size > v.maxBytes {
		cause = domain.ErrFileTooLarge
	}
	return res, &domain.ValidationError{FileName: f.FileName, Message: res.Error, Cause: cause}
}

func (v *FileValidator) sizeMessage() string {
	const mb = 1 << 20
	if v.maxBytes%mb == 0 {
		return fmt.Sprintf("File size exceeds %dMB limit", v.maxBytes/mb)
	}
	return fmt.Sprintf("File size exceeds %d byte limit", v.maxBytes)
}
