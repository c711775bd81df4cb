package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sectorfs/nvs/cache"
)

func TestGetMissOnEmpty(t *testing.T) {
	c := cache.New(16)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestPutGet(t *testing.T) {
	c := cache.New(16)

	c.Put(1, 0x00010020)
	c.Put(2, 0x00020040)

	addr, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x00010020), addr)

	addr, ok = c.Get(2)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x00020040), addr)
}

func TestPutUpdatesInPlace(t *testing.T) {
	c := cache.New(16)

	c.Put(7, 0x0100)
	c.Put(7, 0x0200)

	addr, ok := c.Get(7)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x0200), addr)
}

func TestEvictionKeepsWorking(t *testing.T) {
	// Far more ids than slots. Every id written last in its bucket must
	// still resolve; evicted ids must miss cleanly, never alias.
	c := cache.New(8)

	for id := uint16(0); id < 200; id++ {
		c.Put(id, uint32(id)+1)
	}

	hits := 0
	for id := uint16(0); id < 200; id++ {
		addr, ok := c.Get(id)
		if !ok {
			continue
		}
		hits++
		assert.Equal(t, uint32(id)+1, addr, "id %d", id)
	}
	assert.Greater(t, hits, 0)
	assert.LessOrEqual(t, hits, 8)
}

func TestInvalidate(t *testing.T) {
	c := cache.New(16)
	c.Put(1, 42)

	c.Invalidate()

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestTinySizeRaisedToProbeDepth(t *testing.T) {
	c := cache.New(1)

	c.Put(9, 99)
	addr, ok := c.Get(9)
	assert.True(t, ok)
	assert.Equal(t, uint32(99), addr)
}
