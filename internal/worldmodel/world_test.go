package worldmodel

import "testing"

const (
	typeGround    ItemTypeID = 1
	typeWall      ItemTypeID = 2
	typeDecal     ItemTypeID = 3
	typeBottomBox ItemTypeID = 4
)

func testTypes() ItemTypeTable {
	return MapItemTypeTable{
		typeGround:    {ID: typeGround, IsGround: true},
		typeWall:      {ID: typeWall, BlockPath: true},
		typeDecal:     {ID: typeDecal, AlwaysOnTop: true},
		typeBottomBox: {ID: typeBottomBox},
	}
}

func flatWorld(w, h uint16) *World {
	world := NewWorld(Bounds{0, 0, w - 1, h - 1}, testTypes())
	for y := uint16(0); y < h; y++ {
		for x := uint16(0); x < w; x++ {
			ground := Item{TypeID: typeGround}
			world.SetTile(Position{x, y, 7}, &Tile{Ground: &ground})
		}
	}
	return world
}

type stubCtrl struct{}

func (stubCtrl) OnCreatureSpawn(*Creature, Position)                  {}
func (stubCtrl) OnCreatureDespawn(CreatureID)                         {}
func (stubCtrl) OnCreatureMove(CreatureID, Position, int, Position)   {}
func (stubCtrl) OnCreatureTurn(CreatureID, Position, int, Direction)  {}
func (stubCtrl) OnCreatureSay(CreatureID, string, uint8, Position, string) {}
func (stubCtrl) OnItemAdded(Position, Item)                           {}
func (stubCtrl) OnItemRemoved(Position, int)                          {}
func (stubCtrl) OnTileUpdate(Position)                                {}

func TestAddAndMoveCreature(t *testing.T) {
	w := flatWorld(10, 10)
	id := CreatureID(1)

	if res := w.AddCreature(id, Position{5, 5, 7}, stubCtrl{}); res != ResultOK {
		t.Fatalf("AddCreature: %v", res)
	}
	pos, ok := w.GetCreaturePosition(id)
	if !ok || pos != (Position{5, 5, 7}) {
		t.Fatalf("GetCreaturePosition = %v, %v", pos, ok)
	}

	if res := w.MoveCreature(id, North); res != ResultOK {
		t.Fatalf("MoveCreature(North): %v", res)
	}
	pos, _ = w.GetCreaturePosition(id)
	if pos != (Position{5, 4, 7}) {
		t.Fatalf("position after move north = %v, want {5 4 7}", pos)
	}

	srcTile, _ := w.GetTile(Position{5, 5, 7})
	if len(srcTile.Creatures) != 0 {
		t.Fatalf("source tile still lists creature: %v", srcTile.Creatures)
	}
	dstTile, _ := w.GetTile(Position{5, 4, 7})
	if len(dstTile.Creatures) != 1 || dstTile.Creatures[0] != id {
		t.Fatalf("dest tile creatures = %v, want [%d]", dstTile.Creatures, id)
	}
}

func TestMoveCreatureBlockedByWall(t *testing.T) {
	w := flatWorld(10, 10)
	id := CreatureID(1)
	w.AddCreature(id, Position{5, 5, 7}, stubCtrl{})

	wallTile, _ := w.GetTile(Position{5, 4, 7})
	wallTile.Ground = &Item{TypeID: typeWall}

	if res := w.MoveCreature(id, North); res != ResultThereIsNoRoom {
		t.Fatalf("MoveCreature into wall = %v, want ResultThereIsNoRoom", res)
	}
	pos, _ := w.GetCreaturePosition(id)
	if pos != (Position{5, 5, 7}) {
		t.Fatalf("creature moved despite blocking wall: %v", pos)
	}
}

func TestMoveCreatureOutOfBounds(t *testing.T) {
	w := flatWorld(10, 10)
	id := CreatureID(1)
	w.AddCreature(id, Position{0, 0, 7}, stubCtrl{})

	if res := w.MoveCreature(id, North); res != ResultInvalidPosition {
		t.Fatalf("MoveCreature out of bounds = %v, want ResultInvalidPosition", res)
	}
}

func TestTileStackOrderAndRemoval(t *testing.T) {
	tile := &Tile{Ground: &Item{TypeID: typeGround}}
	tile.AddTopItem(Item{TypeID: typeDecal})
	tile.AddCreature(CreatureID(7))
	tile.AddBottomItem(Item{TypeID: typeBottomBox})

	if n := tile.NumberOfThings(); n != 4 {
		t.Fatalf("NumberOfThings() = %d, want 4", n)
	}
	if sp := tile.CreatureStackPos(7); sp != 2 {
		t.Fatalf("CreatureStackPos = %d, want 2 (ground=0, decal=1, creature=2)", sp)
	}

	if _, ok := tile.ThingAt(2); ok {
		t.Fatalf("ThingAt(creature slot) should report not-ok")
	}
	bottom, ok := tile.ThingAt(3)
	if !ok || bottom.TypeID != typeBottomBox {
		t.Fatalf("ThingAt(3) = %v, %v; want bottom box", bottom, ok)
	}

	if _, ok := tile.RemoveThing(0); ok {
		t.Fatalf("removing ground (stackPos 0) must fail")
	}
	removed, ok := tile.RemoveThing(1)
	if !ok || removed.TypeID != typeDecal {
		t.Fatalf("RemoveThing(1) = %v, %v; want decal", removed, ok)
	}
}

func TestGetMapBlockColumnMajorShape(t *testing.T) {
	w := flatWorld(10, 10)
	mb := w.GetMapBlock(Position{2, 2, 7}, 3, 2)

	if len(mb.Tiles) != 3 || len(mb.Tiles[0]) != 2 {
		t.Fatalf("unexpected MapBlock shape: %d cols, %d rows", len(mb.Tiles), len(mb.Tiles[0]))
	}
	for col := 0; col < 3; col++ {
		for row := 0; row < 2; row++ {
			if mb.Tiles[col][row] == nil {
				t.Fatalf("tile at col=%d row=%d is nil, want loaded ground tile", col, row)
			}
		}
	}
}
