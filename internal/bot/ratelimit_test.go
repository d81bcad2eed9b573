package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, 5*time.Minute)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
	assert.Equal(t, 0, rl.Remaining())
}

func TestRateLimiterWindowSlides(t *testing.T) {
	current := time.Now()
	rl := NewRateLimiter(2, time.Minute, 0)
	rl.now = func() time.Time { return current }

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// Once the window passes the old calls expire.
	current = current.Add(61 * time.Second)
	assert.True(t, rl.Allow())
}

func TestRateLimiterBackoff(t *testing.T) {
	current := time.Now()
	rl := NewRateLimiter(1, time.Second, 5*time.Minute)
	rl.now = func() time.Time { return current }

	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "limit hit, backoff starts")

	// The window alone passing is not enough during backoff.
	current = current.Add(2 * time.Second)
	assert.False(t, rl.Allow())

	current = current.Add(5 * time.Minute)
	assert.True(t, rl.Allow())
}
