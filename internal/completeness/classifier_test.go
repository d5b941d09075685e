package completeness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wasilisafish/proposal-builder/internal/completeness"
	"github.com/wasilisafish/proposal-builder/internal/domain"
)

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		missing int
		want    domain.ExtractionStatus
	}{
		{"nine of eleven", 11, 2, domain.StatusComplete},
		{"three of eleven", 11, 8, domain.StatusPartial},
		{"none of eleven", 11, 11, domain.StatusFailed},
		{"exactly half", 10, 5, domain.StatusComplete},
		{"just under half", 11, 6, domain.StatusPartial},
		{"all found", 15, 0, domain.StatusComplete},
		{"empty schema", 0, 0, domain.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, completeness.Classify(tt.total, tt.missing))
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	rank := map[domain.ExtractionStatus]int{
		domain.StatusComplete: 2,
		domain.StatusPartial:  1,
		domain.StatusFailed:   0,
	}

	for total := 1; total <= 20; total++ {
		prev := rank[domain.StatusComplete]
		for missing := 0; missing <= total; missing++ {
			got := rank[completeness.Classify(total, missing)]
			assert.LessOrEqual(t, got, prev, "total=%d missing=%d", total, missing)
			prev = got
		}
		assert.Equal(t, domain.StatusComplete, completeness.Classify(total, 0))
		assert.Equal(t, domain.StatusFailed, completeness.Classify(total, total))
	}
}

func TestPolicy_Evaluate_UnitWeightsMatchCountRule(t *testing.T) {
	all := append(append([]string{}, domain.PolicyFields...), domain.CoverageFields...)
	p := completeness.DefaultPolicy()

	for missing := 0; missing <= len(all); missing++ {
		s := p.Evaluate(all[:missing])
		assert.Equal(t, completeness.Classify(len(all), missing), s.Status, "missing=%d", missing)
		assert.Equal(t, len(all)-missing, s.Found)
	}
}

func TestPolicy_Evaluate_Weighted(t *testing.T) {
	// Only the four policy fields found.
	missing := append([]string{}, domain.CoverageFields...)

	unit := completeness.DefaultPolicy().Evaluate(missing)
	assert.Equal(t, domain.StatusPartial, unit.Status)
	assert.Equal(t, 4, unit.PolicyFound)
	assert.Equal(t, 0, unit.CoverageFound)

	heavy := completeness.Policy{Threshold: 0.5, PolicyWeight: 3, CoverageWeight: 1}.Evaluate(missing)
	assert.Equal(t, domain.StatusComplete, heavy.Status)
	assert.InDelta(t, 12.0/23.0, heavy.Score, 1e-9)
}

func TestPolicy_Evaluate_NothingFoundIsFailed(t *testing.T) {
	all := append(append([]string{}, domain.PolicyFields...), domain.CoverageFields...)

	s := completeness.Policy{Threshold: 0.1, PolicyWeight: 0, CoverageWeight: 1}.Evaluate(all)

	assert.Equal(t, domain.StatusFailed, s.Status)
	assert.Equal(t, 0, s.Found)
}

func TestPolicy_Evaluate_IgnoresUnknownNames(t *testing.T) {
	s := completeness.DefaultPolicy().Evaluate([]string{"agentPhone"})

	assert.Equal(t, domain.SchemaFieldCount(), s.Found)
	assert.Equal(t, domain.StatusComplete, s.Status)
}
