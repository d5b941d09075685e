package extractor

import (
	"fmt"
	"strings"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

var fieldHints = map[string]string{
	domain.FieldCarrier:            `"Allstate"`,
	domain.FieldEffectiveDate:      `"2026-01-01"`,
	domain.FieldExpirationDate:     `"2027-01-01"`,
	domain.FieldPremium:            `1850`,
	domain.FieldDwelling:           `378380`,
	domain.FieldOtherStructures:    `72000`,
	domain.FieldPersonalProperty:   `138000`,
	domain.FieldLossOfUse:          `50000`,
	domain.FieldLiability:          `300000`,
	domain.FieldMedPay:             `5000`,
	domain.FieldWaterBackup:        `10000`,
	domain.FieldEarthquake:         `null`,
	domain.FieldMoldPropertyDamage: `null`,
	domain.FieldMoldLiability:      `null`,
	domain.FieldDeductible:         `1000`,
}

// BuildInstruction returns the extraction instruction for a declaration page
// submitted as pageCount ordered images.
func BuildInstruction(pageCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert insurance document analyzer. You are given %d image(s) of one homeowners insurance declaration page document, in page order. Fields may appear on different pages; correlate them across pages.

Return ONLY a valid JSON object. No explanation, no markdown code blocks.

For each field, provide:
- value: the extracted value (string for text and dates, number for dollar amounts, null if not found)
- confidence: your confidence from 0.0 to 1.0 in the extraction

Normalize dates to YYYY-MM-DD. Give dollar amounts as plain numbers without symbols or separators.

Use this exact format:
{
`, pageCount)
	fields := append(append([]string{}, domain.PolicyFields...), domain.CoverageFields...)
	for _, f := range fields {
		conf := "0.9"
		if fieldHints[f] == "null" {
			conf = "0.0"
		}
		fmt.Fprintf(&b, "  %q: { \"value\": %s, \"confidence\": %s },\n", f, fieldHints[f], conf)
	}
	b.WriteString(`  "notes": ["EXCLUDED: Earthquake"]
}

Use "notes" for advisories such as excluded coverages or unusually low limits (for example liability under $100,000). Use an empty array when there is nothing to note.`)
	return b.String()
}
