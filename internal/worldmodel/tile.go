package worldmodel

// Tile is one map cell. Ground is mandatory whenever the tile is part
// of the loaded map; TopItems (alwaysOnTop, e.g. floor decals) render
// before Creatures, which render before BottomItems. Rendering order,
// top-first: Ground, TopItems (stored order), Creatures (stored
// order), BottomItems (stored order) — spec.md §3/§8.
//
// New creatures are prepended rather than appended, matching the
// reference tile implementation's push_front: the most recently
// arrived creature occupies the stack slot closest to the top items,
// which is what a client freshly streaming the tile expects to see
// first.
type Tile struct {
	Ground      *Item
	TopItems    []Item
	Creatures   []CreatureID
	BottomItems []Item
}

// NumberOfThings is the total rendered stack size: ground (1, if
// present) + top items + creatures + bottom items.
func (t *Tile) NumberOfThings() int {
	n := len(t.TopItems) + len(t.Creatures) + len(t.BottomItems)
	if t.Ground != nil {
		n++
	}
	return n
}

// IsBlocking reports whether anything on this tile blocks movement
// onto it: a blocking ground/top/bottom item, or any creature at all
// (creatures always block a step onto their tile).
func (t *Tile) IsBlocking(table ItemTypeTable) bool {
	if len(t.Creatures) > 0 {
		return true
	}
	if t.Ground != nil {
		if ty, ok := table.Lookup(t.Ground.TypeID); ok && ty.BlockPath {
			return true
		}
	}
	for _, it := range t.TopItems {
		if ty, ok := table.Lookup(it.TypeID); ok && ty.BlockPath {
			return true
		}
	}
	for _, it := range t.BottomItems {
		if ty, ok := table.Lookup(it.TypeID); ok && ty.BlockPath {
			return true
		}
	}
	return false
}

// AddCreature prepends id to the creature list.
func (t *Tile) AddCreature(id CreatureID) {
	t.Creatures = append([]CreatureID{id}, t.Creatures...)
}

// RemoveCreature removes id from the creature list. Reports whether it
// was found.
func (t *Tile) RemoveCreature(id CreatureID) bool {
	for i, c := range t.Creatures {
		if c == id {
			t.Creatures = append(t.Creatures[:i], t.Creatures[i+1:]...)
			return true
		}
	}
	return false
}

// CreatureStackPos returns the rendered stack index of id, or -1 if
// it's not on this tile: 1 for ground (if present) + len(TopItems) +
// its offset within Creatures.
func (t *Tile) CreatureStackPos(id CreatureID) int {
	base := len(t.TopItems)
	if t.Ground != nil {
		base++
	}
	for i, c := range t.Creatures {
		if c == id {
			return base + i
		}
	}
	return -1
}

// AddTopItem appends to the top-items list (stored order = render
// order for this group).
func (t *Tile) AddTopItem(it Item) {
	t.TopItems = append(t.TopItems, it)
}

// AddBottomItem appends to the bottom-items list.
func (t *Tile) AddBottomItem(it Item) {
	t.BottomItems = append(t.BottomItems, it)
}

// RemoveThing removes the entry at rendered stack index stackPos.
// Index 0 (ground) is never removable directly and returns false, as
// is an out-of-range index or one that lands on a creature (creatures
// are removed via RemoveCreature, keyed by id, never by stack index).
// On success it returns the removed item and true.
func (t *Tile) RemoveThing(stackPos int) (Item, bool) {
	idx := stackPos
	if t.Ground != nil {
		if idx == 0 {
			return Item{}, false
		}
		idx--
	}
	if idx < len(t.TopItems) {
		it := t.TopItems[idx]
		t.TopItems = append(t.TopItems[:idx], t.TopItems[idx+1:]...)
		return it, true
	}
	idx -= len(t.TopItems)
	if idx < len(t.Creatures) {
		return Item{}, false
	}
	idx -= len(t.Creatures)
	if idx < len(t.BottomItems) {
		it := t.BottomItems[idx]
		t.BottomItems = append(t.BottomItems[:idx], t.BottomItems[idx+1:]...)
		return it, true
	}
	return Item{}, false
}

// ThingAt returns the item (not creature) at rendered stack index
// stackPos, for lookAt/useItem/moveItem validation.
func (t *Tile) ThingAt(stackPos int) (Item, bool) {
	idx := stackPos
	if t.Ground != nil {
		if idx == 0 {
			return *t.Ground, true
		}
		idx--
	}
	if idx < len(t.TopItems) {
		return t.TopItems[idx], true
	}
	idx -= len(t.TopItems)
	if idx < len(t.Creatures) {
		return Item{}, false
	}
	idx -= len(t.Creatures)
	if idx < len(t.BottomItems) {
		return t.BottomItems[idx], true
	}
	return Item{}, false
}
