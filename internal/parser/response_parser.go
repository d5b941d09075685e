// Package parser turns the inference engine's free-form reply into a policy
// snapshot. Parsing is pure: the same reply always yields the same result.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

const (
	// DefaultConfidence is assigned to a found value with no usable confidence.
	DefaultConfidence = 0.8

	// NoteLowLiability flags a liability limit under the configured threshold.
	NoteLowLiability = "Liability looks unusually low; verify."

	maxSpanInError = 2000
)

var (
	errNoJSONObject  = errors.New("no JSON object found in reply")
	errTrailingData  = errors.New("unexpected data after JSON object")
	reTrailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	reAmount         = regexp.MustCompile(`^\$?\s*-?[0-9][0-9,]*(\.[0-9]+)?$`)
	placeholderValue = map[string]bool{
		"":              true,
		"null":          true,
		"none":          true,
		"n/a":           true,
		"na":            true,
		"unknown":       true,
		"not found":     true,
		"not available": true,
		"not provided":  true,
	}
)

// sectionKeys are the nested containers a reply may group fields under.
var sectionKeys = []string{"policy", "coverages"}

// Options configures advisory notes.
type Options struct {
	LowLiabilityThreshold float64
}

// Result is the parsed snapshot with the fields that had no value.
type Result struct {
	Snapshot      domain.PolicySnapshot
	MissingFields []string
	Notes         []string
}

// FoundCount returns how many schema fields carry a value.
func (r *Result) FoundCount() int {
	return domain.SchemaFieldCount() - len(r.MissingFields)
}

// ResponseParser maps engine replies onto the policy/coverage schema.
type ResponseParser struct {
	entrySchema *jsonschema.Schema
	opts        Options
}

// NewResponseParser compiles the field-entry schema.
func NewResponseParser(opts Options) (*ResponseParser, error) {
	schema, err := compileFieldEntrySchema()
	if err != nil {
		return nil, fmt.Errorf("compiling field entry schema: %w", err)
	}
	return &ResponseParser{entrySchema: schema, opts: opts}, nil
}

// Parse locates the JSON object in raw, decodes it with at most one repair
// pass and maps recognized fields. Unknown keys are ignored.
func (p *ResponseParser) Parse(raw string) (*Result, error) {
	obj, err := DecodeReply(raw)
	if err != nil {
		return nil, err
	}

	res := &Result{MissingFields: []string{}, Notes: []string{}}
	for _, name := range allFields() {
		entry, ok := lookup(obj, name)
		if !ok {
			res.MissingFields = append(res.MissingFields, name)
			continue
		}
		fv, found, note := p.fieldValue(name, entry)
		if note != "" {
			res.Notes = append(res.Notes, note)
		}
		if !found {
			res.MissingFields = append(res.MissingFields, name)
			continue
		}
		res.Snapshot.Set(name, fv)
	}

	res.Notes = append(res.Notes, modelNotes(obj["notes"])...)
	if liability, ok := res.Snapshot.Get(domain.FieldLiability); ok && p.opts.LowLiabilityThreshold > 0 {
		if v, isNum := liability.Value.(float64); isNum && v < p.opts.LowLiabilityThreshold {
			res.Notes = append(res.Notes, NoteLowLiability)
		}
	}
	res.Notes = dedupe(res.Notes)
	return res, nil
}

// DecodeReply extracts the span from the first '{' to the last '}' and decodes
// it. A failed decode gets one trailing-comma repair and one retry.
func DecodeReply(raw string) (map[string]any, error) {
	span, ok := ExtractJSONSpan(raw)
	if !ok {
		return nil, &domain.MalformedResponseError{Span: truncate(raw, maxSpanInError), Cause: errNoJSONObject}
	}
	obj, firstErr := decodeObject(span)
	if firstErr == nil {
		return obj, nil
	}
	obj, err := decodeObject(RepairTrailingCommas(span))
	if err == nil {
		return obj, nil
	}
	return nil, &domain.MalformedResponseError{Span: truncate(span, maxSpanInError), Cause: firstErr}
}

// ExtractJSONSpan returns raw from the first '{' to the last '}' inclusive.
func ExtractJSONSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// RepairTrailingCommas removes commas directly before a closing brace or bracket.
func RepairTrailingCommas(s string) string {
	return reTrailingComma.ReplaceAllString(s, "$1")
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

func allFields() []string {
	return append(append(make([]string, 0, domain.SchemaFieldCount()), domain.PolicyFields...), domain.CoverageFields...)
}

// lookup finds a field at the top level, then inside a section container.
func lookup(obj map[string]any, name string) (any, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for _, key := range sectionKeys {
		section, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := section[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// fieldValue interprets one entry. Bare scalars are accepted as values with
// the default confidence.
func (p *ResponseParser) fieldValue(name string, entry any) (domain.FieldValue, bool, string) {
	switch e := entry.(type) {
	case nil:
		return domain.FieldValue{}, false, ""
	case string, json.Number:
		v, ok := normalizeValue(name, e)
		return domain.FieldValue{Value: v, Confidence: DefaultConfidence}, ok, ""
	case map[string]any:
		if err := p.entrySchema.Validate(e); err != nil {
			return domain.FieldValue{}, false, fmt.Sprintf("Ignored unreadable value for %s.", name)
		}
		v, ok := normalizeValue(name, e["value"])
		if !ok {
			return domain.FieldValue{}, false, ""
		}
		return domain.FieldValue{Value: v, Confidence: confidence(e["confidence"])}, true, ""
	default:
		return domain.FieldValue{}, false, fmt.Sprintf("Ignored unreadable value for %s.", name)
	}
}

// normalizeValue returns a string or float64, or false when the value is absent.
// Dollar amounts written as text become numbers for amount fields.
func normalizeValue(name string, v any) (any, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(val)
		if placeholderValue[strings.ToLower(s)] {
			return nil, false
		}
		if isAmountField(name) && reAmount.MatchString(s) {
			clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
			if f, err := strconv.ParseFloat(clean, 64); err == nil {
				return f, true
			}
		}
		return s, true
	default:
		return nil, false
	}
}

func isAmountField(name string) bool {
	return name == domain.FieldPremium || !domain.IsPolicyField(name)
}

// confidence defaults absent, zero or non-numeric scores and maps percentages
// onto 0..1. Numbers written as text ("0.9", "90%") are accepted.
func confidence(v any) float64 {
	var (
		c   float64
		err error
	)
	switch n := v.(type) {
	case json.Number:
		c, err = n.Float64()
	case string:
		c, err = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
	default:
		return DefaultConfidence
	}
	if err != nil || c <= 0 {
		return DefaultConfidence
	}
	if c > 1 && c <= 100 {
		c /= 100
	}
	return min(c, 1)
}

func modelNotes(v any) []string {
	var out []string
	switch n := v.(type) {
	case string:
		if s := strings.TrimSpace(n); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range n {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func dedupe(notes []string) []string {
	seen := make(map[string]bool, len(notes))
	out := notes[:0]
	for _, n := range notes {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
