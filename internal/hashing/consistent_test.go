package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingEmpty(t *testing.T) {
	assert.Equal(t, -1, NewRing(8).Locate(42))
}

func TestRingLocateIsStable(t *testing.T) {
	r := NewRing(64)
	for i := 0; i < 16; i++ {
		r.Add(i)
	}

	seen := map[int]bool{}
	for key := int64(1); key <= 5000; key++ {
		slot := r.Locate(key)
		assert.Equal(t, slot, r.Locate(key))
		assert.GreaterOrEqual(t, slot, 0)
		assert.Less(t, slot, 16)
		seen[slot] = true
	}
	assert.Len(t, seen, 16, "every slot should own some keys")
}

func TestRingAddIsIdempotent(t *testing.T) {
	r := NewRing(4)
	r.Add(0)
	r.Add(0)
	assert.Len(t, r.points, 4)
}
