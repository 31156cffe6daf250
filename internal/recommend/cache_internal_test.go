package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	// Arrange: a controllable clock.
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute, 10)
	c.now = func() time.Time { return now }

	// Act
	c.Put("bitcoin", Result{Label: Buy, Detail: "d"})

	// Assert
	r, ok := c.Get("bitcoin")
	require.True(t, ok)
	require.Equal(t, Buy, r.Label)

	now = now.Add(time.Minute)
	_, ok = c.Get("bitcoin")
	require.False(t, ok)
}

func TestCacheCapsSize(t *testing.T) {
	t.Parallel()

	c := NewCache(time.Hour, 2)
	c.Put("a", Result{Label: Buy, Detail: "a"})
	c.Put("b", Result{Label: Buy, Detail: "b"})
	c.Put("c", Result{Label: Buy, Detail: "c"})

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("c")
	require.True(t, ok)
}

func TestNilCacheIsDisabled(t *testing.T) {
	t.Parallel()

	var c *Cache
	c.Put("a", Result{})
	_, ok := c.Get("a")
	require.False(t, ok)
}
