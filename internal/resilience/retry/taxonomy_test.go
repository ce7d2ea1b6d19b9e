package retry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMessage_RetryKeywords(t *testing.T) {
	for _, msg := range []string{"503 Service Unavailable", "rate limit exceeded", "Too Many Requests", "upstream returned 502"} {
		retry, giveUp := ClassifyMessage(errors.New(msg))
		assert.True(t, retry, msg)
		assert.False(t, giveUp, msg)
	}
}

func TestClassifyMessage_GiveUpKeywords(t *testing.T) {
	for _, msg := range []string{"404 not found", "invalid url supplied", "malformed URL", "403 forbidden"} {
		retry, giveUp := ClassifyMessage(errors.New(msg))
		assert.False(t, retry, msg)
		assert.True(t, giveUp, msg)
	}
}

func TestShouldGiveUp_Keyword(t *testing.T) {
	assert.True(t, ShouldGiveUp(errors.New("400 bad request")))
	assert.False(t, ShouldGiveUp(errors.New("503 service unavailable")))
	assert.False(t, ShouldGiveUp(nil))
}

func TestIsRetryable_TaxonomyKeyword(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("got 502 from upstream")))
	assert.False(t, IsRetryable(errors.New("404 file not found")))
}

func TestExtractorConfig_FixedBudget(t *testing.T) {
	cfg := ExtractorConfig()
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, float64(2), cfg.Multiplier)
}

func TestReasoningConfig_UsesPoolMaxRetries(t *testing.T) {
	cfg := ReasoningConfig(5)
	assert.Equal(t, 5, cfg.MaxAttempts)
}
