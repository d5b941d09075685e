// Package completeness derives the complete/partial/failed status of an
// extraction from how many schema fields were populated.
package completeness

import (
	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// DefaultThreshold is the share of fields below which a result is partial.
const DefaultThreshold = 0.5

// Classify is the unweighted rule: no fields found is failed, fewer than
// half of total is partial, anything else is complete.
func Classify(total, missing int) domain.ExtractionStatus {
	return classifyCount(total, missing, DefaultThreshold)
}

func classifyCount(total, missing int, threshold float64) domain.ExtractionStatus {
	found := total - missing
	switch {
	case total <= 0 || found <= 0:
		return domain.StatusFailed
	case float64(found) < float64(total)*threshold:
		return domain.StatusPartial
	default:
		return domain.StatusComplete
	}
}

// Policy weights the policy and coverage sections independently.
type Policy struct {
	Threshold      float64
	PolicyWeight   float64
	CoverageWeight float64
}

// DefaultPolicy counts every field equally.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, PolicyWeight: 1, CoverageWeight: 1}
}

// Summary reports the inputs behind a status.
type Summary struct {
	Status        domain.ExtractionStatus
	Total         int
	Found         int
	PolicyFound   int
	CoverageFound int
	Score         float64
}

// Evaluate classifies a result given its missing field names. Unknown names
// in missing are ignored.
func (p Policy) Evaluate(missing []string) Summary {
	missingSet := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		missingSet[name] = struct{}{}
	}

	s := Summary{Total: domain.SchemaFieldCount()}
	for _, name := range domain.PolicyFields {
		if _, gone := missingSet[name]; !gone {
			s.PolicyFound++
		}
	}
	for _, name := range domain.CoverageFields {
		if _, gone := missingSet[name]; !gone {
			s.CoverageFound++
		}
	}
	s.Found = s.PolicyFound + s.CoverageFound

	maxScore := p.PolicyWeight*float64(len(domain.PolicyFields)) + p.CoverageWeight*float64(len(domain.CoverageFields))
	if maxScore > 0 {
		s.Score = (p.PolicyWeight*float64(s.PolicyFound) + p.CoverageWeight*float64(s.CoverageFound)) / maxScore
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	switch {
	case s.Found == 0:
		s.Status = domain.StatusFailed
	case maxScore <= 0:
		s.Status = classifyCount(s.Total, s.Total-s.Found, threshold)
	case s.Score < threshold:
		s.Status = domain.StatusPartial
	default:
		s.Status = domain.StatusComplete
	}
	return s
}
