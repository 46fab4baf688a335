package worldproto

import (
	"errors"

	"github.com/opentile/server/internal/protocol"
	"github.com/opentile/server/internal/worldmodel"
)

// ErrBadPosition is returned when a position header doesn't match any
// of the three recognised shapes.
var ErrBadPosition = errors.New("worldproto: malformed item position")

// positionKind discriminates the three shapes an "item position" can
// take on the wire (spec.md §4.8): a tile coordinate, an inventory
// slot, or a slot inside an open container.
type positionKind uint8

const (
	positionTile positionKind = iota
	positionInventory
	positionContainer
)

// itemPosition is the decoded form of a wire item position. Spec.md
// leaves the inventory/container disambiguation as an open question
// ("disambiguated by ... a fixed pattern per spec"); this package
// resolves it with a fixed pattern of its own: after the 0xFFFF
// sentinel, a second byte of 0x00 marks an inventory slot and 0x40
// marks a container slot.
type itemPosition struct {
	kind        positionKind
	tile        worldmodel.Position
	slot        uint8
	containerID uint8
}

const (
	positionSentinel  = 0xFFFF
	inventoryMarker   = 0x00
	containerMarker   = 0x40
)

func readItemPosition(r *protocol.Reader) (itemPosition, error) {
	x, err := r.GetU16()
	if err != nil {
		return itemPosition{}, err
	}
	if x != positionSentinel {
		y, err := r.GetU16()
		if err != nil {
			return itemPosition{}, err
		}
		z, err := r.GetU8()
		if err != nil {
			return itemPosition{}, err
		}
		return itemPosition{kind: positionTile, tile: worldmodel.Position{X: x, Y: y, Z: z}}, nil
	}

	marker, err := r.GetU8()
	if err != nil {
		return itemPosition{}, err
	}
	switch marker {
	case inventoryMarker:
		slot, err := r.GetU8()
		if err != nil {
			return itemPosition{}, err
		}
		return itemPosition{kind: positionInventory, slot: slot}, nil
	case containerMarker:
		containerID, err := r.GetU8()
		if err != nil {
			return itemPosition{}, err
		}
		slot, err := r.GetU8()
		if err != nil {
			return itemPosition{}, err
		}
		return itemPosition{kind: positionContainer, containerID: containerID, slot: slot}, nil
	default:
		return itemPosition{}, ErrBadPosition
	}
}

func writeTilePosition(w *protocol.Writer, p worldmodel.Position) {
	w.AddU16(p.X)
	w.AddU16(p.Y)
	w.AddU8(p.Z)
}
