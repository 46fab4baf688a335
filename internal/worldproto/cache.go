package worldproto

import "github.com/opentile/server/internal/worldmodel"

// knownCreatureSlots is the size of a session's known-creature cache.
// v7.1's original client used roughly 32; this implementation follows
// spec.md §4.8's note that "implementations commonly allocate 64-128
// to be safe" and picks 64.
const knownCreatureSlots = 64

// knownCache tracks which creature ids a session's client has already
// received full metadata for, so the encoder can emit the compact
// 0x62 form instead of repeating name/outfit/etc. It is only ever
// touched from the engine goroutine (spec.md §5), so it needs no lock.
type knownCache struct {
	slots [knownCreatureSlots]worldmodel.CreatureID
}

// observe reports whether id was already known, and if not, records it
// and returns the id it evicted to make room (0/InvalidID if a free
// slot was used instead of an eviction).
func (c *knownCache) observe(id worldmodel.CreatureID) (evicted worldmodel.CreatureID, alreadyKnown bool) {
	for _, known := range c.slots {
		if known == id {
			return worldmodel.InvalidID, true
		}
	}

	for i, known := range c.slots {
		if known == worldmodel.InvalidID {
			c.slots[i] = id
			return worldmodel.InvalidID, false
		}
	}

	evicted = c.slots[0]
	c.slots[0] = id
	return evicted, false
}
