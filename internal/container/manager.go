// Package container implements the Container manager component: a
// global container registry plus a per-player local-id mapping into a
// 0..63 slot range, exactly as spec.md §4.4 describes. It never talks
// to a PlayerCtrl directly — every mutating method returns the set of
// (player, local id) subscribers the caller (the game engine) must
// notify, keeping this package free of any dependency on the
// engine/ctrl layer.
package container

import (
	"errors"

	"github.com/opentile/server/internal/worldmodel"
)

// MaxLocalSlots is the number of per-player local container ids
// (0..63), matching the client's own container-window limit.
const MaxLocalSlots = 64

// ErrNoSlot is returned by Open when a player already has all 64 local
// slots in use.
var ErrNoSlot = errors.New("container: no free local slot")

// GlobalID addresses a container independent of any viewer.
type GlobalID uint32

// LocalID is a per-player slot index in [0, MaxLocalSlots).
type LocalID uint8

// Subscriber identifies one (player, local id) pair that observes a
// global container and must be notified of a mutation.
type Subscriber struct {
	Player worldmodel.CreatureID
	Local  LocalID
}

type containerState struct {
	item     worldmodel.Item
	contents []worldmodel.Item
	viewers  map[worldmodel.CreatureID]LocalID // player -> local id
}

// Manager owns every open container in the world. It is exclusively
// owned by the engine goroutine, like the World itself.
type Manager struct {
	nextGlobal uint32
	containers map[GlobalID]*containerState

	// localToGlobal[player][local] == 0 means the slot is free;
	// GlobalID 0 is never a valid allocated container id.
	localToGlobal map[worldmodel.CreatureID]*[MaxLocalSlots]GlobalID
}

func NewManager() *Manager {
	return &Manager{
		containers:    make(map[GlobalID]*containerState),
		localToGlobal: make(map[worldmodel.CreatureID]*[MaxLocalSlots]GlobalID),
	}
}

// CreateGlobal registers item as a new, not-yet-viewed container and
// returns its global id. Called when useItem opens a container item
// that has no live global entry (its Item.GlobalContainerID is zero or
// names an entry Close has since destroyed).
func (m *Manager) CreateGlobal(item worldmodel.Item, contents []worldmodel.Item) GlobalID {
	m.nextGlobal++
	id := GlobalID(m.nextGlobal)
	m.containers[id] = &containerState{
		item:     item,
		contents: contents,
		viewers:  make(map[worldmodel.CreatureID]LocalID),
	}
	return id
}

func (m *Manager) slotsFor(player worldmodel.CreatureID) *[MaxLocalSlots]GlobalID {
	slots, ok := m.localToGlobal[player]
	if !ok {
		slots = &[MaxLocalSlots]GlobalID{}
		m.localToGlobal[player] = slots
	}
	return slots
}

// Open returns player's existing local id for global if already open,
// else allocates the lowest free slot. Returns ErrNoSlot if all 64 are
// in use.
func (m *Manager) Open(player worldmodel.CreatureID, global GlobalID) (LocalID, worldmodel.Item, []worldmodel.Item, error) {
	state, ok := m.containers[global]
	if !ok {
		return 0, worldmodel.Item{}, nil, errors.New("container: unknown global id")
	}
	if local, already := state.viewers[player]; already {
		return local, state.item, state.contents, nil
	}

	slots := m.slotsFor(player)
	local := -1
	for i, g := range slots {
		if g == 0 {
			local = i
			break
		}
	}
	if local < 0 {
		return 0, worldmodel.Item{}, nil, ErrNoSlot
	}

	slots[local] = global
	state.viewers[player] = LocalID(local)
	return LocalID(local), state.item, state.contents, nil
}

// Close frees player's local slot for global. If no player references
// the global container afterward, it is destroyed — its backing item
// stays wherever it physically is (tile or inventory); only the
// open/registry bookkeeping goes away.
func (m *Manager) Close(player worldmodel.CreatureID, local LocalID) {
	slots, ok := m.localToGlobal[player]
	if !ok || int(local) >= MaxLocalSlots {
		return
	}
	global := slots[local]
	if global == 0 {
		return
	}
	slots[local] = 0

	state, ok := m.containers[global]
	if !ok {
		return
	}
	delete(state.viewers, player)
	if len(state.viewers) == 0 {
		delete(m.containers, global)
	}
}

// subscribers lists every (player, local) pair currently viewing global.
func (m *Manager) subscribers(global GlobalID) []Subscriber {
	state, ok := m.containers[global]
	if !ok {
		return nil
	}
	out := make([]Subscriber, 0, len(state.viewers))
	for player, local := range state.viewers {
		out = append(out, Subscriber{Player: player, Local: local})
	}
	return out
}

// AddItem appends item to global's contents and returns the
// subscribers to notify.
func (m *Manager) AddItem(global GlobalID, item worldmodel.Item) ([]Subscriber, error) {
	state, ok := m.containers[global]
	if !ok {
		return nil, errors.New("container: unknown global id")
	}
	state.contents = append(state.contents, item)
	return m.subscribers(global), nil
}

// UpdateItem replaces the item at slot and returns the subscribers to
// notify.
func (m *Manager) UpdateItem(global GlobalID, slot int, item worldmodel.Item) ([]Subscriber, error) {
	state, ok := m.containers[global]
	if !ok {
		return nil, errors.New("container: unknown global id")
	}
	if slot < 0 || slot >= len(state.contents) {
		return nil, errors.New("container: slot out of range")
	}
	state.contents[slot] = item
	return m.subscribers(global), nil
}

// RemoveItem deletes the item at slot and returns the subscribers to
// notify.
func (m *Manager) RemoveItem(global GlobalID, slot int) ([]Subscriber, error) {
	state, ok := m.containers[global]
	if !ok {
		return nil, errors.New("container: unknown global id")
	}
	if slot < 0 || slot >= len(state.contents) {
		return nil, errors.New("container: slot out of range")
	}
	state.contents = append(state.contents[:slot], state.contents[slot+1:]...)
	return m.subscribers(global), nil
}

// Get returns the global container's backing item and contents,
// primarily for tests and diagnostics.
func (m *Manager) Get(global GlobalID) (worldmodel.Item, []worldmodel.Item, bool) {
	state, ok := m.containers[global]
	if !ok {
		return worldmodel.Item{}, nil, false
	}
	return state.item, state.contents, true
}

// GlobalFor resolves player's local id back to a global id, or false
// if the slot is empty. This is the "local → global is a function"
// half of spec.md §4.4's invariant.
func (m *Manager) GlobalFor(player worldmodel.CreatureID, local LocalID) (GlobalID, bool) {
	slots, ok := m.localToGlobal[player]
	if !ok || int(local) >= MaxLocalSlots {
		return 0, false
	}
	g := slots[local]
	return g, g != 0
}
