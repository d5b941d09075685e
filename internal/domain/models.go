package domain

import "time"

// UploadedFile is one raw upload. It lives only for the duration of a request.
type UploadedFile struct {
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}

// PageImage is a raster image ready for encoding. Number is 1-based within
// its source file.
type PageImage struct {
	Number      int
	ContentType string
	Data        []byte
}

// FieldValue is one extracted datum plus the extractor's self-reported certainty.
// Value is a string or a float64; absent values are never represented here.
type FieldValue struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// PolicySection holds the policy-level fields of a declaration page.
type PolicySection struct {
	Carrier        *FieldValue `json:"carrier,omitempty"`
	EffectiveDate  *FieldValue `json:"effectiveDate,omitempty"`
	ExpirationDate *FieldValue `json:"expirationDate,omitempty"`
	Premium        *FieldValue `json:"premium,omitempty"`
}

// CoverageSection holds the coverage limits of a declaration page.
type CoverageSection struct {
	Dwelling           *FieldValue `json:"dwelling,omitempty"`
	OtherStructures    *FieldValue `json:"otherStructures,omitempty"`
	PersonalProperty   *FieldValue `json:"personalProperty,omitempty"`
	LossOfUse          *FieldValue `json:"lossOfUse,omitempty"`
	Liability          *FieldValue `json:"liability,omitempty"`
	MedPay             *FieldValue `json:"medPay,omitempty"`
	WaterBackup        *FieldValue `json:"waterBackup,omitempty"`
	Earthquake         *FieldValue `json:"earthquake,omitempty"`
	MoldPropertyDamage *FieldValue `json:"moldPropertyDamage,omitempty"`
	MoldLiability      *FieldValue `json:"moldLiability,omitempty"`
	Deductible         *FieldValue `json:"deductible,omitempty"`
}

// PolicySnapshot is the extraction result for one logical document.
type PolicySnapshot struct {
	Policy    PolicySection   `json:"policy"`
	Coverages CoverageSection `json:"coverages"`
}

// slot returns the storage location for a schema field, or nil for unknown names.
func (s *PolicySnapshot) slot(name string) **FieldValue {
	switch name {
	case FieldCarrier:
		return &s.Policy.Carrier
	case FieldEffectiveDate:
		return &s.Policy.EffectiveDate
	case FieldExpirationDate:
		return &s.Policy.ExpirationDate
	case FieldPremium:
		return &s.Policy.Premium
	case FieldDwelling:
		return &s.Coverages.Dwelling
	case FieldOtherStructures:
		return &s.Coverages.OtherStructures
	case FieldPersonalProperty:
		return &s.Coverages.PersonalProperty
	case FieldLossOfUse:
		return &s.Coverages.LossOfUse
	case FieldLiability:
		return &s.Coverages.Liability
	case FieldMedPay:
		return &s.Coverages.MedPay
	case FieldWaterBackup:
		return &s.Coverages.WaterBackup
	case FieldEarthquake:
		return &s.Coverages.Earthquake
	case FieldMoldPropertyDamage:
		return &s.Coverages.MoldPropertyDamage
	case FieldMoldLiability:
		return &s.Coverages.MoldLiability
	case FieldDeductible:
		return &s.Coverages.Deductible
	}
	return nil
}

// Set stores a field value by schema name. It returns false for unknown names.
func (s *PolicySnapshot) Set(name string, fv FieldValue) bool {
	p := s.slot(name)
	if p == nil {
		return false
	}
	v := fv
	*p = &v
	return true
}

// Get returns the value stored for a schema field, if any.
func (s *PolicySnapshot) Get(name string) (FieldValue, bool) {
	p := s.slot(name)
	if p == nil || *p == nil {
		return FieldValue{}, false
	}
	return **p, true
}

// DocumentInfo is the metadata of the submitted logical document.
type DocumentInfo struct {
	ID         string `json:"id"`
	FileName   string `json:"fileName"`
	UploadedAt string `json:"uploadedAt"`
}

// ExtractionResult is the response envelope returned for every extraction request.
type ExtractionResult struct {
	Status   ExtractionStatus `json:"status"`
	Document DocumentInfo     `json:"document"`
	PolicySnapshot
	MissingFields []string `json:"missingFields"`
	Notes         []string `json:"notes"`
	ExtractionID  string   `json:"extractionId"`
	Error         string   `json:"error,omitempty"`
}

// NewExtractionResult returns an envelope with every collection initialized so
// it serializes with empty arrays and objects rather than nulls.
func NewExtractionResult(doc DocumentInfo, extractionID string) *ExtractionResult {
	return &ExtractionResult{
		Status:        StatusFailed,
		Document:      doc,
		MissingFields: []string{},
		Notes:         []string{},
		ExtractionID:  extractionID,
	}
}

// FormatTimestamp renders t the way envelope timestamps are written.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
