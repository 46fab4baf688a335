package engine

import (
	"github.com/opentile/server/internal/container"
	"github.com/opentile/server/internal/worldmodel"
)

// ItemLocationKind discriminates the three shapes a moveItem/useItem
// endpoint can take on the wire (spec.md §4.8's item-position
// encoding): a tile, a player's own equipment slot, or a slot inside
// an already-open container.
type ItemLocationKind uint8

const (
	LocationTile ItemLocationKind = iota
	LocationInventory
	LocationContainer
)

// ItemLocation generalizes a moveItem/useItem endpoint beyond a bare
// tile position, so the engine can route equipment and container
// sources/destinations the same way it does tile ones (spec.md §4.6).
type ItemLocation struct {
	Kind ItemLocationKind
	Tile worldmodel.Position

	// Slot is the equipment slot (1..10, Kind == LocationInventory) or
	// the in-container content index (Kind == LocationContainer).
	Slot uint8

	// ContainerID is the client-assigned local container id, valid
	// only when Kind == LocationContainer.
	ContainerID uint8
}

// validLocation implements spec.md §4.6's "source position is
// reachable (for tile sources) or slot is valid (for inventory
// sources)" validation for any of the three location kinds.
func (e *Engine) validLocation(player *worldmodel.Player, loc ItemLocation) bool {
	switch loc.Kind {
	case LocationTile:
		playerPos, ok := e.world.GetCreaturePosition(player.ID)
		return ok && worldmodel.CanReach(playerPos, loc.Tile)
	case LocationInventory:
		return loc.Slot >= 1 && int(loc.Slot) < len(player.Equipment)
	case LocationContainer:
		_, ok := e.containers.GlobalFor(player.ID, container.LocalID(loc.ContainerID))
		return ok
	default:
		return false
	}
}

// removeItemAt takes itemID out of loc, failing unless it is actually
// there. subs is only populated when loc is a container, for the
// caller to fan the removal out to every other viewer.
func (e *Engine) removeItemAt(player *worldmodel.Player, loc ItemLocation, itemID worldmodel.ItemTypeID, stackPos int) (item worldmodel.Item, subs []container.Subscriber, slot int, res worldmodel.Result) {
	switch loc.Kind {
	case LocationTile:
		item, res = e.world.RemoveItem(loc.Tile, stackPos, itemID)
		return item, nil, 0, res
	case LocationInventory:
		eq := player.Equipment[loc.Slot]
		if eq == nil || eq.TypeID != itemID {
			return worldmodel.Item{}, nil, 0, worldmodel.ResultItemNotFound
		}
		item = *eq
		player.Equipment[loc.Slot] = nil
		return item, nil, 0, worldmodel.ResultOK
	case LocationContainer:
		global, ok := e.containers.GlobalFor(player.ID, container.LocalID(loc.ContainerID))
		if !ok {
			return worldmodel.Item{}, nil, 0, worldmodel.ResultInvalidPosition
		}
		_, contents, ok := e.containers.Get(global)
		if !ok || int(loc.Slot) >= len(contents) || contents[loc.Slot].TypeID != itemID {
			return worldmodel.Item{}, nil, 0, worldmodel.ResultItemNotFound
		}
		item = contents[loc.Slot]
		subs, err := e.containers.RemoveItem(global, int(loc.Slot))
		if err != nil {
			return worldmodel.Item{}, nil, 0, worldmodel.ResultOtherError
		}
		return item, subs, int(loc.Slot), worldmodel.ResultOK
	default:
		return worldmodel.Item{}, nil, 0, worldmodel.ResultOtherError
	}
}

// addItemAt places item into loc, failing if the destination is full
// or already occupied. subs is only populated when loc is a
// container.
func (e *Engine) addItemAt(player *worldmodel.Player, loc ItemLocation, item worldmodel.Item) (subs []container.Subscriber, res worldmodel.Result) {
	switch loc.Kind {
	case LocationTile:
		return nil, e.world.AddItem(loc.Tile, item)
	case LocationInventory:
		if player.Equipment[loc.Slot] != nil {
			return nil, worldmodel.ResultThereIsNoRoom
		}
		cp := item
		player.Equipment[loc.Slot] = &cp
		return nil, worldmodel.ResultOK
	case LocationContainer:
		global, ok := e.containers.GlobalFor(player.ID, container.LocalID(loc.ContainerID))
		if !ok {
			return nil, worldmodel.ResultInvalidPosition
		}
		backing, contents, ok := e.containers.Get(global)
		if !ok {
			return nil, worldmodel.ResultInvalidPosition
		}
		ty, ok := e.world.ItemType(backing.TypeID)
		if !ok || len(contents) >= ty.MaxItems {
			return nil, worldmodel.ResultThereIsNoRoom
		}
		subs, err := e.containers.AddItem(global, item)
		if err != nil {
			return nil, worldmodel.ResultOtherError
		}
		return subs, worldmodel.ResultOK
	default:
		return nil, worldmodel.ResultOtherError
	}
}

// notifyContainerAdd/Update/Remove fan a container mutation out to
// every (player, localId) pair currently viewing it, per
// spec.md §4.4's add_item/update_item/remove_item notify requirement.
func (e *Engine) notifyContainerAdd(subs []container.Subscriber, item worldmodel.Item) {
	for _, sub := range subs {
		if p, ok := e.players[sub.Player]; ok && p.Ctrl != nil {
			p.Ctrl.OnContainerItemAdded(uint8(sub.Local), item)
		}
	}
}

func (e *Engine) notifyContainerUpdate(subs []container.Subscriber, slot int, item worldmodel.Item) {
	for _, sub := range subs {
		if p, ok := e.players[sub.Player]; ok && p.Ctrl != nil {
			p.Ctrl.OnContainerItemUpdated(uint8(sub.Local), slot, item)
		}
	}
}

func (e *Engine) notifyContainerRemove(subs []container.Subscriber, slot int) {
	for _, sub := range subs {
		if p, ok := e.players[sub.Player]; ok && p.Ctrl != nil {
			p.Ctrl.OnContainerItemRemoved(uint8(sub.Local), slot)
		}
	}
}
