// Package worldproto implements the World protocol (v7.1) component:
// it decodes the client's binary opcodes into Game engine calls, and
// implements worldmodel.PlayerCtrl to encode engine notifications back
// into client packets, maintaining the per-connection known-creature
// cache and visibility window spec.md §4.8 describes.
package worldproto

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/engine"
	netacceptor "github.com/opentile/server/internal/net"
	"github.com/opentile/server/internal/protocol"
	"github.com/opentile/server/internal/worldmodel"
)

// Outbound opcodes, spec.md §6.1.
const (
	opPlayerSpawn      = 0x0A
	opDisconnectReason = 0x14
	opCreatureFull     = 0x61
	opCreatureKnown    = 0x62
	opAddThing         = 0x6A
	opCreatureTurn     = 0x6B
	opRemoveThing      = 0x6C
	opMoveThing        = 0x6D
	opOpenContainer    = 0x6E
	opContainerAdd     = 0x6F
	opContainerUpdate  = 0x70
	opContainerRemove  = 0x71
	opMagicEffect      = 0x83
	opPlayerStats      = 0xA0
	opPlayerSkills     = 0xA1
	opCreatureSpeech   = 0xAA
	opTextMessage      = 0xB4
	opCancelWalk       = 0xB5

	edgeStripNorth = 0x65
	edgeStripEast  = 0x66
	edgeStripSouth = 0x67
	edgeStripWest  = 0x68
	edgeEndRow     = 0x7E
	edgeEndCol     = 0x62
)

// The v7.1 visibility window (spec.md §4.8): canSee(p) holds when
// p.x falls in (px-9,px+9] and p.y in (py-7,py+7], i.e. 8 tiles
// behind and 9 ahead of the player, 6 above and 7 below, for an 18x14
// window including the player's own row and column.
const (
	viewBehindX = 8
	viewAheadX  = 9
	viewAboveY  = 6
	viewBelowY  = 7

	viewWidth  = viewBehindX + 1 + viewAheadX
	viewHeight = viewAboveY + 1 + viewBelowY
)

// Session is the world server's per-connection state: it is both the
// decoder side (Handler.onPacket dispatches into it) and, by
// implementing worldmodel.PlayerCtrl, the encoder side the engine
// calls back into.
type Session struct {
	h      *Handler
	connID netacceptor.ConnID
	log    *zap.Logger

	playerID  worldmodel.CreatureID
	lastPos   worldmodel.Position
	known     knownCache
	connected atomic.Bool
}

func newSession(h *Handler, id netacceptor.ConnID, log *zap.Logger) *Session {
	s := &Session{h: h, connID: id, log: log, playerID: worldmodel.InvalidID}
	s.connected.Store(true)
	return s
}

func (s *Session) send(body []byte) {
	if !s.connected.Load() {
		return
	}
	s.h.acceptor.Send(s.connID, body)
}

// clampTopLeft converts a signed tile offset into a Position, clamping
// to 0/0xFFFF instead of wrapping. pos.X/Y are uint16, so computing a
// map-block top-left by subtracting directly from them would wrap
// around near the map edge (x or y < viewBehindX/viewAboveY) instead
// of clamping to the edge of the map.
func clampTopLeft(x, y int, z uint8) worldmodel.Position {
	if x < 0 {
		x = 0
	} else if x > 0xFFFF {
		x = 0xFFFF
	}
	if y < 0 {
		y = 0
	} else if y > 0xFFFF {
		y = 0xFFFF
	}
	return worldmodel.Position{X: uint16(x), Y: uint16(y), Z: z}
}

// canSee reports whether p falls in this session's current view
// rectangle: spec.md §4.8's `canSee(p) = p.x in (px-9,px+9] and
// p.y in (py-7,py+7]`.
func (s *Session) canSee(p worldmodel.Position) bool {
	if p.Z != s.lastPos.Z {
		return false
	}
	dx := int(p.X) - int(s.lastPos.X)
	dy := int(p.Y) - int(s.lastPos.Y)
	return dx > -9 && dx <= 9 && dy > -7 && dy <= 7
}

// --- worldmodel.PlayerCtrl -------------------------------------------

func (s *Session) OnCreatureSpawn(c *worldmodel.Creature, pos worldmodel.Position) {
	s.playerID = c.ID
	s.lastPos = pos
	s.send(s.composePlayerSpawn(c, pos))
}

// composePlayerSpawn builds the 0x0A player-spawn packet. Its
// byte-level layout (spec.md §6.1) mixes meaningful fields with a
// handful of fixed marker tokens (0x32 0x00, the 12×0xFF pad, 0xE4
// 0xFF, the 0x83/0x82 prefixes) the reference client family expects
// verbatim; those are reproduced literally rather than given invented
// semantics, per the "preserve unknown bytes" guidance for this
// packet.
func (s *Session) composePlayerSpawn(c *worldmodel.Creature, pos worldmodel.Position) []byte {
	player, _ := s.h.engine.Player(c.ID)

	w := protocol.NewWriter()
	w.AddU8(opPlayerSpawn)
	w.AddU32(uint32(c.ID))
	w.AddU8(0x32)
	w.AddU8(0x00)
	w.AddU8(0x64)
	writeTilePosition(w, pos)

	topLeft := clampTopLeft(int(pos.X)-viewBehindX, int(pos.Y)-viewAboveY, pos.Z)
	block := s.h.world.GetMapBlock(topLeft, viewWidth, viewHeight)
	s.writeMapBlock(w, block)

	for i := 0; i < 12; i++ {
		w.AddU8(0xFF)
	}
	w.AddU8(0xE4)
	w.AddU8(0xFF)

	w.AddU8(0x83)
	w.AddU8(0x00) // player offset within its own tile's stack; always top.

	w.AddU32(c.Health)
	w.AddU32(c.MaxHealth)
	if player != nil {
		w.AddU32(player.Capacity)
		w.AddU32(uint32(player.Experience))
		w.AddU16(player.Level)
		w.AddU32(player.Mana)
		w.AddU32(player.MaxMana)
		w.AddU16(player.MagicLevel)
	} else {
		w.AddU32(0)
		w.AddU32(0)
		w.AddU16(0)
		w.AddU32(0)
		w.AddU32(0)
		w.AddU16(0)
	}

	w.AddU8(0x82)
	w.AddU8(0x00) // light level; no day/night or light-source model.

	const skillSlots = 7
	for i := 0; i < skillSlots; i++ {
		var level uint8
		if player != nil && i < len(player.Skills) {
			level = player.Skills[i].Level
		}
		w.AddU8(level)
	}

	const equipmentSlots = 10
	for slot := 1; slot <= equipmentSlots; slot++ {
		if player != nil && slot < len(player.Equipment) && player.Equipment[slot] != nil {
			s.writeItem(w, *player.Equipment[slot])
		} else {
			w.AddU16(0)
		}
	}

	w.AddU8(opTextMessage)
	w.AddU8(0x11)
	w.AddString(s.h.motd.Formatted())

	return w.Bytes()
}

func (s *Session) OnCreatureDespawn(id worldmodel.CreatureID) {
	if id != s.playerID {
		return
	}
	w := protocol.NewWriter()
	w.AddU8(opDisconnectReason)
	w.AddString("Logged out.")
	s.send(w.Bytes())
	s.h.acceptor.CloseConnection(s.connID, false)
}

func (s *Session) OnCreatureMove(id worldmodel.CreatureID, from worldmodel.Position, fromStackPos int, to worldmodel.Position) {
	oldVisible := s.canSee(from)
	newVisible := s.canSee(to)

	if id == s.playerID {
		s.lastPos = to
	}

	switch {
	case oldVisible && newVisible:
		w := protocol.NewWriter()
		w.AddU8(opMoveThing)
		writeTilePosition(w, from)
		w.AddU8(uint8(fromStackPos))
		writeTilePosition(w, to)
		s.send(w.Bytes())
	case oldVisible:
		w := protocol.NewWriter()
		w.AddU8(opRemoveThing)
		writeTilePosition(w, from)
		w.AddU8(uint8(fromStackPos))
		s.send(w.Bytes())
	case newVisible:
		s.sendAddCreatureAt(id, to)
	}

	if id == s.playerID && newVisible {
		s.sendEdgeStrips(from, to)
	}
}

func (s *Session) sendAddCreatureAt(id worldmodel.CreatureID, pos worldmodel.Position) {
	creature, ok := s.h.engine.Creature(id)
	if !ok {
		return
	}
	w := protocol.NewWriter()
	w.AddU8(opAddThing)
	writeTilePosition(w, pos)
	s.writeCreature(w, creature)
	s.send(w.Bytes())
}

// sendEdgeStrips streams the newly revealed 1-tile-wide strip(s) after
// the player steps, per spec.md §4.8.
func (s *Session) sendEdgeStrips(from, to worldmodel.Position) {
	dx := int(to.X) - int(from.X)
	dy := int(to.Y) - int(from.Y)

	if dy < 0 {
		s.sendEdgeRow(to, edgeStripNorth, int(to.Y)-viewAboveY)
	} else if dy > 0 {
		s.sendEdgeRow(to, edgeStripSouth, int(to.Y)+viewBelowY)
	}
	if dx > 0 {
		s.sendEdgeCol(to, edgeStripEast, int(to.X)+viewAheadX)
	} else if dx < 0 {
		s.sendEdgeCol(to, edgeStripWest, int(to.X)-viewBehindX)
	}
}

func (s *Session) sendEdgeRow(center worldmodel.Position, op byte, y int) {
	topLeft := clampTopLeft(int(center.X)-viewBehindX, y, center.Z)
	block := s.h.world.GetMapBlock(topLeft, viewWidth, 1)
	w := protocol.NewWriter()
	w.AddU8(op)
	s.writeMapBlock(w, block)
	w.AddU8(edgeEndRow)
	w.AddU8(0xFF)
	s.send(w.Bytes())
}

func (s *Session) sendEdgeCol(center worldmodel.Position, op byte, x int) {
	topLeft := clampTopLeft(x, int(center.Y)-viewAboveY, center.Z)
	block := s.h.world.GetMapBlock(topLeft, 1, viewHeight)
	w := protocol.NewWriter()
	w.AddU8(op)
	s.writeMapBlock(w, block)
	w.AddU8(edgeEndCol)
	w.AddU8(0xFF)
	s.send(w.Bytes())
}

func (s *Session) OnCreatureTurn(id worldmodel.CreatureID, pos worldmodel.Position, stackPos int, dir worldmodel.Direction) {
	if !s.canSee(pos) {
		return
	}
	w := protocol.NewWriter()
	w.AddU8(opCreatureTurn)
	writeTilePosition(w, pos)
	w.AddU8(uint8(stackPos))
	w.AddU8(0x63)
	w.AddU8(0x00)
	w.AddU32(uint32(id))
	w.AddU8(uint8(dir))
	s.send(w.Bytes())
}

func (s *Session) OnCreatureSay(id worldmodel.CreatureID, name string, sayType uint8, pos worldmodel.Position, text string) {
	w := protocol.NewWriter()
	w.AddU8(opCreatureSpeech)
	w.AddString(name)
	w.AddU8(sayType)
	writeTilePosition(w, pos)
	w.AddString(text)
	s.send(w.Bytes())
}

func (s *Session) OnItemAdded(pos worldmodel.Position, item worldmodel.Item) {
	if !s.canSee(pos) {
		return
	}
	w := protocol.NewWriter()
	w.AddU8(opAddThing)
	writeTilePosition(w, pos)
	s.writeItem(w, item)
	s.send(w.Bytes())
}

func (s *Session) OnItemRemoved(pos worldmodel.Position, stackPos int) {
	if !s.canSee(pos) {
		return
	}
	w := protocol.NewWriter()
	w.AddU8(opRemoveThing)
	writeTilePosition(w, pos)
	w.AddU8(uint8(stackPos))
	s.send(w.Bytes())
}

func (s *Session) OnTileUpdate(worldmodel.Position) {}

func (s *Session) SendTextMessage(kind uint8, text string) {
	w := protocol.NewWriter()
	w.AddU8(opTextMessage)
	w.AddU8(kind)
	w.AddString(text)
	s.send(w.Bytes())
}

func (s *Session) SendCancel(reason string) {
	w := protocol.NewWriter()
	w.AddU8(opCancelWalk)
	s.send(w.Bytes())
	if reason != "" {
		s.SendTextMessage(engine.TextMessageDefault, reason)
	}
}

func (s *Session) OnContainerOpened(localID uint8, item worldmodel.Item, contents []worldmodel.Item) {
	ty, _ := s.h.itemTypes.Lookup(item.TypeID)
	w := protocol.NewWriter()
	w.AddU8(opOpenContainer)
	w.AddU8(localID)
	w.AddU16(uint16(item.TypeID))
	w.AddString(ty.Name)
	w.AddU16(uint16(ty.MaxItems))
	w.AddU8(uint8(len(contents)))
	for _, it := range contents {
		s.writeItem(w, it)
	}
	s.send(w.Bytes())
}

func (s *Session) OnContainerClosed(uint8) {}

func (s *Session) OnContainerItemAdded(localID uint8, item worldmodel.Item) {
	w := protocol.NewWriter()
	w.AddU8(opContainerAdd)
	w.AddU8(localID)
	s.writeItem(w, item)
	s.send(w.Bytes())
}

func (s *Session) OnContainerItemUpdated(localID uint8, slot int, item worldmodel.Item) {
	w := protocol.NewWriter()
	w.AddU8(opContainerUpdate)
	w.AddU8(localID)
	w.AddU8(uint8(slot))
	s.writeItem(w, item)
	s.send(w.Bytes())
}

func (s *Session) OnContainerItemRemoved(localID uint8, slot int) {
	w := protocol.NewWriter()
	w.AddU8(opContainerRemove)
	w.AddU8(localID)
	w.AddU8(uint8(slot))
	s.send(w.Bytes())
}

func (s *Session) Connected() bool { return s.connected.Load() }

// --- shared wire encoders ----------------------------------------------

func (s *Session) writeItem(w *protocol.Writer, item worldmodel.Item) {
	w.AddU16(uint16(item.TypeID))
	ty, ok := s.h.itemTypes.Lookup(item.TypeID)
	switch {
	case ok && ty.Stackable:
		w.AddU8(item.Count)
	case ok && ty.Multitype:
		w.AddU16(item.Subtype)
	}
}

// writeCreature emits the known/unknown creature form (spec.md §4.8)
// followed by the common health/direction/outfit/speed suffix.
func (s *Session) writeCreature(w *protocol.Writer, c *worldmodel.Creature) {
	if evicted, known := s.known.observe(c.ID); known {
		w.AddU8(opCreatureKnown)
		w.AddU8(0x00)
		w.AddU32(uint32(c.ID))
	} else {
		w.AddU8(opCreatureFull)
		w.AddU8(0x00)
		w.AddU32(uint32(evicted))
		w.AddU32(uint32(c.ID))
		w.AddString(c.Name)
	}

	healthPercent := uint8(0)
	if c.MaxHealth > 0 {
		healthPercent = uint8(uint64(c.Health) * 100 / uint64(c.MaxHealth))
	}
	w.AddU8(healthPercent)
	w.AddU8(uint8(c.Direction))
	w.AddU8(uint8(c.Outfit.Type))
	w.AddU8(c.Outfit.Head)
	w.AddU8(c.Outfit.Body)
	w.AddU8(c.Outfit.Legs)
	w.AddU8(c.Outfit.Feet)
	w.AddU8(0x00)
	w.AddU8(0xDC)
	w.AddU16(c.Speed)
}

// writeMapBlock streams block's tiles x-outer/y-inner, matching the
// reference client's addMapData walk, and emits the 0x00 0xFF
// tile-boundary sentinel after every tile except the last one overall
// (not the last one per column).
func (s *Session) writeMapBlock(w *protocol.Writer, block worldmodel.MapBlock) {
	total := 0
	for _, col := range block.Tiles {
		total += len(col)
	}
	i := 0
	for _, col := range block.Tiles {
		for _, tile := range col {
			s.writeTileEntries(w, tile)
			i++
			if i != total {
				w.AddU8(0x00)
				w.AddU8(0xFF)
			}
		}
	}
}

func (s *Session) writeTileEntries(w *protocol.Writer, tile *worldmodel.Tile) {
	if tile == nil {
		return
	}
	count := 0
	const maxStackEntries = 10

	if tile.Ground != nil && count < maxStackEntries {
		s.writeItem(w, *tile.Ground)
		count++
	}
	for _, it := range tile.TopItems {
		if count >= maxStackEntries {
			return
		}
		s.writeItem(w, it)
		count++
	}
	for _, id := range tile.Creatures {
		if count >= maxStackEntries {
			return
		}
		if creature, ok := s.h.engine.Creature(id); ok {
			s.writeCreature(w, creature)
		}
		count++
	}
	for _, it := range tile.BottomItems {
		if count >= maxStackEntries {
			return
		}
		s.writeItem(w, it)
		count++
	}
}
