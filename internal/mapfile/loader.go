// Package mapfile loads the finite rectangular tile map from an XML
// file at boot, supplementing spec.md's data model with the concrete
// on-disk format the reference implementation uses
// (original_source/src/common/world/world.cc's initialize(), which
// parses a world.xml of the same shape). No ecosystem XML library
// appears anywhere in the example corpus, so this loader uses the
// standard library's encoding/xml, as the account store does for its
// accounts file, justified in DESIGN.md.
package mapfile

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/opentile/server/internal/worldmodel"
)

type xmlWorld struct {
	XMLName xml.Name  `xml:"world"`
	Tiles   []xmlTile `xml:"tile"`
}

type xmlTile struct {
	X     uint16    `xml:"x,attr"`
	Y     uint16    `xml:"y,attr"`
	Z     uint8     `xml:"z,attr"`
	Items []xmlItem `xml:"item"`
}

type xmlItem struct {
	ID          uint16 `xml:"id,attr"`
	Ground      bool   `xml:"ground,attr"`
	OnTop       bool   `xml:"ontop,attr"`
	Count       uint8  `xml:"count,attr"`
	Subtype     uint16 `xml:"subtype,attr"`
}

// Load parses path and builds a World bounded to the rectangle that
// encloses every tile it declares, using types to resolve each item's
// static attributes (ground vs. on-top vs. bottom is decided by the
// type table, not the file, except where an item is explicitly marked
// ground or on-top for tiles whose type table entry doesn't already
// say so).
func Load(path string, types worldmodel.ItemTypeTable) (*worldmodel.World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map file %s: %w", path, err)
	}
	var doc xmlWorld
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse map file %s: %w", path, err)
	}
	if len(doc.Tiles) == 0 {
		return nil, fmt.Errorf("map file %s: no tiles", path)
	}

	bounds := worldmodel.Bounds{MinX: doc.Tiles[0].X, MinY: doc.Tiles[0].Y, MaxX: doc.Tiles[0].X, MaxY: doc.Tiles[0].Y}
	for _, t := range doc.Tiles {
		if t.X < bounds.MinX {
			bounds.MinX = t.X
		}
		if t.X > bounds.MaxX {
			bounds.MaxX = t.X
		}
		if t.Y < bounds.MinY {
			bounds.MinY = t.Y
		}
		if t.Y > bounds.MaxY {
			bounds.MaxY = t.Y
		}
	}

	world := worldmodel.NewWorld(bounds, types)
	for _, xt := range doc.Tiles {
		tile := &worldmodel.Tile{}
		pos := worldmodel.Position{X: xt.X, Y: xt.Y, Z: xt.Z}
		for _, xi := range xt.Items {
			item := worldmodel.Item{TypeID: worldmodel.ItemTypeID(xi.ID), Count: xi.Count, Subtype: xi.Subtype}
			ty, known := types.Lookup(item.TypeID)
			switch {
			case xi.Ground || (known && ty.IsGround):
				it := item
				tile.Ground = &it
			case xi.OnTop || (known && ty.AlwaysOnTop):
				tile.AddTopItem(item)
			default:
				tile.AddBottomItem(item)
			}
		}
		world.SetTile(pos, tile)
	}
	return world, nil
}
