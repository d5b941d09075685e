// Package export renders an extraction envelope as a comparison sheet.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Content types per format.
var ContentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// columns is the header row shared by every format.
var columns = []string{"Section", "Field", "Value", "Confidence", "Status"}

// Sheet returns the header and data rows for r: document metadata, then every
// schema field in order, then notes.
func Sheet(r *domain.ExtractionResult) [][]string {
	rows := [][]string{columns}
	rows = append(rows,
		[]string{"document", "status", string(r.Status), "", ""},
		[]string{"document", "fileName", r.Document.FileName, "", ""},
		[]string{"document", "uploadedAt", r.Document.UploadedAt, "", ""},
		[]string{"document", "extractionId", r.ExtractionID, "", ""},
	)
	if r.Error != "" {
		rows = append(rows, []string{"document", "error", r.Error, "", ""})
	}

	for _, name := range domain.PolicyFields {
		rows = append(rows, fieldRow("policy", name, &r.PolicySnapshot))
	}
	for _, name := range domain.CoverageFields {
		rows = append(rows, fieldRow("coverages", name, &r.PolicySnapshot))
	}
	for _, note := range r.Notes {
		rows = append(rows, []string{"notes", "", note, "", ""})
	}
	return rows
}

func fieldRow(section, name string, s *domain.PolicySnapshot) []string {
	fv, ok := s.Get(name)
	if !ok {
		return []string{section, name, "", "", "missing"}
	}
	return []string{section, name, formatValue(fv.Value), formatConfidence(fv.Confidence), "found"}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces characters outside [A-Za-z0-9_-] with _, collapses
// runs of underscores and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_name}_{YYYY-MM-DD}.{format}. An empty name
// becomes "extraction".
func BuildFilename(name, format string, now time.Time) string {
	base := strings.TrimSuffix(name, extOf(name))
	sanitized := SanitizeFilename(base)
	if sanitized == "" {
		sanitized = "extraction"
	}
	return fmt.Sprintf("%s_%s.%s", sanitized, now.Format("2006-01-02"), format)
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 && !strings.ContainsAny(name[i:], ", ") {
		return name[i:]
	}
	return ""
}
