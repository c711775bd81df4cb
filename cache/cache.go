// Package cache implements the optional lookup cache: a fixed-size
// id-to-address table that lets the engine jump straight to the most
// recently written entry for an id instead of scanning sectors.
//
// It is a hash bucket, not a full map: collisions probe a handful of
// neighboring slots and then evict. The cache is soft state. A miss
// only costs a scan, and a stale hit is harmless because the engine
// re-verifies the addressed entry before trusting it.
package cache

const probeDepth = 4

// FNV-1a, the corpus-standard cheap hash for small fixed keys.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

func hash(id uint16) uint32 {
	h := fnvOffsetBasis
	h = (h ^ uint32(id&0xFF)) * fnvPrime
	h = (h ^ uint32(id>>8)) * fnvPrime
	return h
}

type slot struct {
	id   uint16
	addr uint32
	used bool
}

// Cache maps record ids to the packed address of their latest known
// allocation table entry. The zero value is unusable; use New.
type Cache struct {
	slots []slot
}

// New returns a cache with the given number of slots. Sizes below the
// probe depth are raised to it.
func New(size int) *Cache {
	if size < probeDepth {
		size = probeDepth
	}
	return &Cache{slots: make([]slot, size)}
}

// Get returns the last address stored for id. A miss is not an error;
// it only means the caller has to scan.
func (c *Cache) Get(id uint16) (uint32, bool) {
	h := hash(id)
	for i := 0; i < probeDepth; i++ {
		s := &c.slots[(h+uint32(i))%uint32(len(c.slots))]
		if s.used && s.id == id {
			return s.addr, true
		}
	}
	return 0, false
}

// Put records addr as the newest known location for id, evicting a
// colliding id when every probed slot is taken.
func (c *Cache) Put(id uint16, addr uint32) {
	h := hash(id)
	var victim *slot
	for i := 0; i < probeDepth; i++ {
		s := &c.slots[(h+uint32(i))%uint32(len(c.slots))]
		if s.used && s.id == id {
			s.addr = addr
			return
		}
		if victim == nil && !s.used {
			victim = s
		}
	}
	if victim == nil {
		victim = &c.slots[h%uint32(len(c.slots))]
	}
	*victim = slot{id: id, addr: addr, used: true}
}

// Invalidate clears all slots. Mount uses it when rebuilding state
// from media.
func (c *Cache) Invalidate() {
	clear(c.slots)
}
