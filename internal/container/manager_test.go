package container

import (
	"testing"

	"github.com/opentile/server/internal/worldmodel"
)

func TestOpenReturnsExistingLocalIDForSamePlayer(t *testing.T) {
	m := NewManager()
	global := m.CreateGlobal(worldmodel.Item{TypeID: 100}, nil)
	player := worldmodel.CreatureID(1)

	local1, _, _, err := m.Open(player, global)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	local2, _, _, err := m.Open(player, global)
	if err != nil {
		t.Fatalf("Open (again): %v", err)
	}
	if local1 != local2 {
		t.Fatalf("Open called twice for same player/global gave different local ids: %d vs %d", local1, local2)
	}
}

func TestCloseDestroysContainerWhenUnreferenced(t *testing.T) {
	m := NewManager()
	global := m.CreateGlobal(worldmodel.Item{TypeID: 100}, nil)
	player := worldmodel.CreatureID(1)

	local, _, _, err := m.Open(player, global)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m.Close(player, local)

	if _, _, ok := m.Get(global); ok {
		t.Fatalf("container should be destroyed after last viewer closes")
	}
	if _, ok := m.GlobalFor(player, local); ok {
		t.Fatalf("local slot should be freed after Close")
	}
}

func TestCloseKeepsContainerAliveForOtherViewers(t *testing.T) {
	m := NewManager()
	global := m.CreateGlobal(worldmodel.Item{TypeID: 100}, nil)
	alice := worldmodel.CreatureID(1)
	bob := worldmodel.CreatureID(2)

	aliceLocal, _, _, _ := m.Open(alice, global)
	_, _, _, _ = m.Open(bob, global)

	m.Close(alice, aliceLocal)

	if _, _, ok := m.Get(global); !ok {
		t.Fatalf("container should survive while bob still references it")
	}
}

func TestOpenFailsWhenAllSlotsUsed(t *testing.T) {
	m := NewManager()
	player := worldmodel.CreatureID(1)
	for i := 0; i < MaxLocalSlots; i++ {
		global := m.CreateGlobal(worldmodel.Item{TypeID: worldmodel.ItemTypeID(i + 1)}, nil)
		if _, _, _, err := m.Open(player, global); err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
	}
	overflow := m.CreateGlobal(worldmodel.Item{TypeID: 999}, nil)
	if _, _, _, err := m.Open(player, overflow); err != ErrNoSlot {
		t.Fatalf("Open past capacity = %v, want ErrNoSlot", err)
	}
}

func TestAddUpdateRemoveItemNotifiesAllViewers(t *testing.T) {
	m := NewManager()
	global := m.CreateGlobal(worldmodel.Item{TypeID: 100}, nil)
	alice := worldmodel.CreatureID(1)
	bob := worldmodel.CreatureID(2)
	aliceLocal, _, _, _ := m.Open(alice, global)
	bobLocal, _, _, _ := m.Open(bob, global)

	subs, err := m.AddItem(global, worldmodel.Item{TypeID: 5})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("AddItem subscribers = %d, want 2", len(subs))
	}

	wantLocals := map[worldmodel.CreatureID]LocalID{alice: aliceLocal, bob: bobLocal}
	for _, s := range subs {
		if wantLocals[s.Player] != s.Local {
			t.Fatalf("subscriber %+v does not match expected local id", s)
		}
	}

	if _, err := m.UpdateItem(global, 0, worldmodel.Item{TypeID: 6}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	_, contents, _ := m.Get(global)
	if len(contents) != 1 || contents[0].TypeID != 6 {
		t.Fatalf("contents after UpdateItem = %+v", contents)
	}

	if _, err := m.RemoveItem(global, 0); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	_, contents, _ = m.Get(global)
	if len(contents) != 0 {
		t.Fatalf("contents after RemoveItem = %+v, want empty", contents)
	}
}
