package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRatelimiter(0, 5)
	assert.Nil(t, l)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
}

func TestRateLimiterBurst(t *testing.T) {
	l := NewRatelimiter(0.001, 3)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestRateLimiterMinimumBurst(t *testing.T) {
	l := NewRatelimiter(0.001, 0)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
