package extractor_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
)

func TestNewRateLimitError_DefaultRetryAfter(t *testing.T) {
	err := extractor.NewRateLimitError("openai", errors.New("429"), 0)

	assert.Equal(t, 60*time.Second, err.RetryAfter)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, extractor.ParseRetryAfterHeader(""))
	assert.Equal(t, 0, extractor.ParseRetryAfterHeader("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, 45, extractor.ParseRetryAfterHeader("45"))
}

func TestStatusError(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"5"}}}
	err := extractor.StatusError("claude", resp, []byte("slow down"))

	var rl *extractor.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 5*time.Second, rl.RetryAfter)

	resp = &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
	err = extractor.StatusError("claude", resp, []byte("bad gateway"))

	var su *domain.ServiceUnavailableError
	require.ErrorAs(t, err, &su)
	assert.Equal(t, http.StatusBadGateway, su.StatusCode)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", extractor.Truncate("abc", 5))
	assert.Equal(t, "ab...", extractor.Truncate("abcdef", 2))
}

func TestBuildInstruction_ListsEverySchemaField(t *testing.T) {
	instr := extractor.BuildInstruction(3)

	assert.Contains(t, instr, "3 image(s)")
	for _, f := range append(append([]string{}, domain.PolicyFields...), domain.CoverageFields...) {
		assert.Contains(t, instr, `"`+f+`"`)
	}
	assert.Contains(t, instr, `"notes"`)
}
