package domain

import "strings"

// FileKind is the processing category of an upload, keyed by content type.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

// Content types accepted for upload.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeHEIC = "image/heic"
)

// AllowedContentTypes maps accepted MIME content types to their FileKind.
var AllowedContentTypes = map[string]FileKind{
	ContentTypePDF:  FileKindPDF,
	ContentTypeJPEG: FileKindImage,
	ContentTypePNG:  FileKindImage,
	ContentTypeHEIC: FileKindImage,
}

// contentTypeAliases normalizes non-canonical spellings browsers send.
var contentTypeAliases = map[string]string{
	"image/jpg":   ContentTypeJPEG,
	"image/pjpeg": ContentTypeJPEG,
	"image/x-png": ContentTypePNG,
	"image/heif":  ContentTypeHEIC,
}

// CanonicalContentType lowercases a declared MIME type, strips parameters and
// resolves known aliases. Unknown types are returned lowercased.
func CanonicalContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if alias, ok := contentTypeAliases[ct]; ok {
		return alias
	}
	return ct
}

// KindOf returns the FileKind for a content type and whether it is accepted.
func KindOf(contentType string) (FileKind, bool) {
	kind, ok := AllowedContentTypes[CanonicalContentType(contentType)]
	return kind, ok
}

// ExtractionStatus is the overall completeness classification of a result.
type ExtractionStatus string

const (
	StatusComplete ExtractionStatus = "complete"
	StatusPartial  ExtractionStatus = "partial"
	StatusFailed   ExtractionStatus = "failed"
)

// Policy section field names.
const (
	FieldCarrier        = "carrier"
	FieldEffectiveDate  = "effectiveDate"
	FieldExpirationDate = "expirationDate"
	FieldPremium        = "premium"
)

// Coverage section field names.
const (
	FieldDwelling           = "dwelling"
	FieldOtherStructures    = "otherStructures"
	FieldPersonalProperty   = "personalProperty"
	FieldLossOfUse          = "lossOfUse"
	FieldLiability          = "liability"
	FieldMedPay             = "medPay"
	FieldWaterBackup        = "waterBackup"
	FieldEarthquake         = "earthquake"
	FieldMoldPropertyDamage = "moldPropertyDamage"
	FieldMoldLiability      = "moldLiability"
	FieldDeductible         = "deductible"
)

// PolicyFields lists the policy section in schema order.
var PolicyFields = []string{
	FieldCarrier,
	FieldEffectiveDate,
	FieldExpirationDate,
	FieldPremium,
}

// CoverageFields lists the coverages section in schema order.
var CoverageFields = []string{
	FieldDwelling,
	FieldOtherStructures,
	FieldPersonalProperty,
	FieldLossOfUse,
	FieldLiability,
	FieldMedPay,
	FieldWaterBackup,
	FieldEarthquake,
	FieldMoldPropertyDamage,
	FieldMoldLiability,
	FieldDeductible,
}

// SchemaFieldCount is the number of distinct fields across both sections.
func SchemaFieldCount() int {
	return len(PolicyFields) + len(CoverageFields)
}

// IsPolicyField reports whether name belongs to the policy section.
func IsPolicyField(name string) bool {
	for _, f := range PolicyFields {
		if f == name {
			return true
		}
	}
	return false
}
