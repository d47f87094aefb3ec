package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCacheKey(t *testing.T) {
	a := GenerateCacheKey("llama3", "What is the power requirement?")
	assert.Len(t, a, 64)
	assert.Equal(t, a, GenerateCacheKey("llama3", "What is the power requirement?"))
	assert.NotEqual(t, a, GenerateCacheKey("mistral", "What is the power requirement?"))
	// part boundaries matter
	assert.NotEqual(t, GenerateCacheKey("ab", "c"), GenerateCacheKey("a", "bc"))
}

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(0)
	ctx := testContext(t)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", "Server Power Budget")
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "Server Power Budget", got)
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := testContext(t)

	m.Set(ctx, "k", "v")
	now = now.Add(30 * time.Second)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNewFallsBackToMemory(t *testing.T) {
	c := New(testContext(t), "", "", time.Hour, nil)
	_, ok := c.(*Memory)
	assert.True(t, ok)

	c = New(testContext(t), "127.0.0.1:1", "", time.Hour, nil)
	_, ok = c.(*Memory)
	assert.True(t, ok, "unreachable redis falls back to memory")
}
