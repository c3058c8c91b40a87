package hashing

import (
	"hash/crc32"
	"slices"
	"sort"
	"strconv"
	"sync"
)

// Ring places integer keys onto a set of slots using virtual replicas, so a key
// always lands on the same slot for a given set of slots.
type Ring struct {
	points   []uint32
	owner    map[uint32]int
	replicas int
	mu       sync.RWMutex
}

func NewRing(replicas int) *Ring {
	if replicas < 1 {
		replicas = 1
	}
	return &Ring{
		owner:    make(map[uint32]int),
		replicas: replicas,
	}
}

func hash(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(key))
}

func (r *Ring) Add(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < r.replicas; i++ {
		point := hash(strconv.Itoa(slot) + "#" + strconv.Itoa(i))
		if _, ok := r.owner[point]; !ok {
			r.owner[point] = slot
			r.points = append(r.points, point)
		}
	}
	slices.Sort(r.points)
}

// Locate returns the slot owning key, or -1 when the ring is empty.
func (r *Ring) Locate(key int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return -1
	}

	h := hash(strconv.FormatInt(key, 10))
	idx := sort.Search(len(r.points), func(i int) bool {
		return r.points[i] >= h
	})
	if idx == len(r.points) {
		idx = 0
	}
	return r.owner[r.points[idx]]
}
