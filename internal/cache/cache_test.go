package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Flush(t *testing.T) {
	c := NewTTLCache[int64, string]()
	c.Set(34, "Tritanium", 0)
	c.Set(35, "Pyerite", 0)

	c.Flush()

	_, ok := c.Get(34)
	assert.False(t, ok)
}
