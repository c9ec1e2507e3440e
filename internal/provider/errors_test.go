package provider

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
	assert.Equal(t, 16*time.Second, Backoff(4))
	assert.Equal(t, 30*time.Second, Backoff(5), "capped at 30s")
	assert.Equal(t, 30*time.Second, Backoff(20))
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, classifyStatus(429))
	assert.Equal(t, KindTransient, classifyStatus(500))
	assert.Equal(t, KindTransient, classifyStatus(503))
	assert.Equal(t, KindFatal, classifyStatus(400))
	assert.Equal(t, KindFatal, classifyStatus(401))
	assert.Equal(t, KindFatal, classifyStatus(404))
}

func TestTransportErrorRetryable(t *testing.T) {
	for _, kind := range []ErrorKind{KindRateLimited, KindTransient, KindTimeout} {
		te := &TransportError{Provider: "glm", Kind: kind}
		assert.True(t, te.Retryable(), string(kind))
	}
	assert.False(t, (&TransportError{Kind: KindFatal}).Retryable())
}

func TestKindOfAndIsFatal(t *testing.T) {
	fatal := &TransportError{Provider: "glm", Kind: KindFatal}
	wrapped := fmt.Errorf("request failed: %w", fatal)

	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, KindFatal, KindOf(wrapped))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(fmt.Errorf("plain")))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	// 4 English words × 1.3 = 5.2 → 5
	assert.Equal(t, 5, EstimateTokens("four plain english words"))
	// Non-ASCII text uses the 1.5 factor: 2 words × 1.5 = 3
	assert.Equal(t, 3, EstimateTokens("你好世界 测试文本"))
}
