package worldmodel

// CreatureCtrl is the capability every controller (player or NPC) must
// provide so the engine can notify it of world changes that occurred
// on a tile it observes. This stands in for the deep CreatureCtrl →
// PlayerCtrl inheritance of the reference implementation (spec.md §9):
// every ctrl implements this trait, and PlayerCtrl adds the
// player-only callbacks below.
//
// All methods are called synchronously, on the engine goroutine,
// before the engine returns from the task that triggered them
// (spec.md §4.9). A ctrl whose session has disconnected must make
// every method a silent no-op rather than block or panic.
type CreatureCtrl interface {
	// OnCreatureSpawn is called once, for the ctrl's own creature,
	// right after it is placed in the world.
	OnCreatureSpawn(c *Creature, pos Position)

	// OnCreatureDespawn is the terminal notification for a creature
	// this ctrl observed; once it returns, the engine has fully
	// forgotten the creature.
	OnCreatureDespawn(id CreatureID)

	// OnCreatureMove reports a single-tile step. stackPos values are
	// the position within the tile's rendered stack at the time of
	// the move, needed by wire encoders that must reference a
	// specific stack slot.
	OnCreatureMove(id CreatureID, from Position, fromStackPos int, to Position)

	OnCreatureTurn(id CreatureID, pos Position, stackPos int, dir Direction)

	OnCreatureSay(id CreatureID, name string, sayType uint8, pos Position, text string)

	OnItemAdded(pos Position, item Item)
	OnItemRemoved(pos Position, stackPos int)
	OnTileUpdate(pos Position)
}

// PlayerCtrl is the engine's handle to a connected player session; it
// is how the engine pushes notifications without owning the session
// itself (spec.md §3 Ownership). The engine only ever calls into it
// from its own goroutine, and the implementation (worldproto.Session)
// guards every send with its own connected flag, so dispatch into an
// already-closed session is a safe no-op without any extra
// generation-tracking layer on the engine's side.
type PlayerCtrl interface {
	CreatureCtrl

	SendTextMessage(kind uint8, text string)
	SendCancel(reason string)

	// OnContainerOpened notifies the ctrl that a container was opened
	// on its behalf, delivering the local slot id the container
	// manager assigned.
	OnContainerOpened(localID uint8, item Item, contents []Item)
	OnContainerClosed(localID uint8)
	OnContainerItemAdded(localID uint8, item Item)
	OnContainerItemUpdated(localID uint8, slot int, item Item)
	OnContainerItemRemoved(localID uint8, slot int)

	// Connected reports whether the underlying session is still live.
	// The engine does not call it, so every method above must remain
	// safe to call on a disconnected session.
	Connected() bool
}
