package worldproto

import (
	"sync"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/accountstore"
	"github.com/opentile/server/internal/engine"
	"github.com/opentile/server/internal/motd"
	netacceptor "github.com/opentile/server/internal/net"
	"github.com/opentile/server/internal/protocol"
	"github.com/opentile/server/internal/worldmodel"
)

// Inbound opcodes, spec.md §4.8.
const (
	inLogin       = 0x0A
	inLogout      = 0x14
	inAutoWalk    = 0x64
	inStepNorth   = 0x65
	inStepEast    = 0x66
	inStepSouth   = 0x67
	inStepWest    = 0x68
	inCancelWalk  = 0x69
	inTurnNorth   = 0x6F
	inTurnEast    = 0x70
	inTurnSouth   = 0x71
	inTurnWest    = 0x72
	inMoveItem    = 0x78
	inUseItem     = 0x82
	inCloseCont   = 0x87
	inLook        = 0x8C
	inSay         = 0x96
	inCancelAlias = 0xBE
)

// autoWalkDir maps the client's 0..7 direction codes (spec.md §8
// boundary scenario 4: "client encodes diagonals via combined
// directions 4..7") onto the cardinal Step the engine understands,
// marking 4..7 as diagonal so their cooldown doubles.
var autoWalkDir = [8]engine.Step{
	0: {Dir: worldmodel.North},
	1: {Dir: worldmodel.East},
	2: {Dir: worldmodel.South},
	3: {Dir: worldmodel.West},
	4: {Dir: worldmodel.North, Diagonal: true},
	5: {Dir: worldmodel.East, Diagonal: true},
	6: {Dir: worldmodel.South, Diagonal: true},
	7: {Dir: worldmodel.West, Diagonal: true},
}

// Handler wires the Acceptor's framed-packet callbacks into Engine
// calls, and owns the per-connection Session table. Like
// loginproto.Handler, it needs a back-reference to the Acceptor it
// will be registered with — supplied after construction via
// BindAcceptor, since Callbacks.OnPacket carries no acceptor argument.
type Handler struct {
	world     *worldmodel.World
	itemTypes worldmodel.ItemTypeTable
	engine    *engine.Engine
	accounts  *accountstore.Store
	motd      *motd.Provider
	log       *zap.Logger

	acceptor *netacceptor.Acceptor

	mu       sync.Mutex
	sessions map[netacceptor.ConnID]*Session
}

func New(world *worldmodel.World, itemTypes worldmodel.ItemTypeTable, eng *engine.Engine, accounts *accountstore.Store, motdProvider *motd.Provider, log *zap.Logger) *Handler {
	return &Handler{
		world:     world,
		itemTypes: itemTypes,
		engine:    eng,
		accounts:  accounts,
		motd:      motdProvider,
		log:       log,
		sessions:  make(map[netacceptor.ConnID]*Session),
	}
}

func (h *Handler) BindAcceptor(a *netacceptor.Acceptor) { h.acceptor = a }

func (h *Handler) Callbacks() netacceptor.Callbacks {
	return netacceptor.Callbacks{
		OnConnected:    h.onConnected,
		OnPacket:       h.onPacket,
		OnDisconnected: h.onDisconnected,
	}
}

func (h *Handler) onConnected(id netacceptor.ConnID) {
	s := newSession(h, id, h.log)
	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
}

func (h *Handler) onDisconnected(id netacceptor.ConnID) {
	h.mu.Lock()
	s := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if s == nil {
		return
	}
	s.connected.Store(false)
	if s.playerID != worldmodel.InvalidID {
		h.engine.Despawn(s.playerID)
	}
}

func (h *Handler) session(id netacceptor.ConnID) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

// onPacket decodes one framed body and dispatches the corresponding
// engine call. Any short read is a fatal per-connection error
// (spec.md §7): the connection is closed without a response.
func (h *Handler) onPacket(id netacceptor.ConnID, body []byte) {
	s := h.session(id)
	if s == nil {
		return
	}

	r := protocol.NewReader(body)
	opcode, err := r.GetU8()
	if err != nil {
		h.acceptor.CloseConnection(id, true)
		return
	}

	if opcode != inLogin && s.playerID == worldmodel.InvalidID {
		h.acceptor.CloseConnection(id, true)
		return
	}

	if err := h.dispatch(s, opcode, r); err != nil {
		h.log.Debug("world protocol decode error", zap.Uint8("opcode", opcode), zap.Error(err))
		h.acceptor.CloseConnection(id, true)
	}
}

func (h *Handler) dispatch(s *Session, opcode byte, r *protocol.Reader) error {
	switch opcode {
	case inLogin:
		return h.handleLogin(s, r)
	case inLogout:
		h.engine.Despawn(s.playerID)
		return nil
	case inAutoWalk:
		return h.handleAutoWalk(s, r)
	case inStepNorth:
		h.engine.Move(s.playerID, worldmodel.North)
		return nil
	case inStepEast:
		h.engine.Move(s.playerID, worldmodel.East)
		return nil
	case inStepSouth:
		h.engine.Move(s.playerID, worldmodel.South)
		return nil
	case inStepWest:
		h.engine.Move(s.playerID, worldmodel.West)
		return nil
	case inCancelWalk, inCancelAlias:
		h.engine.CancelMove(s.playerID)
		return nil
	case inTurnNorth:
		h.engine.Turn(s.playerID, worldmodel.North)
		return nil
	case inTurnEast:
		h.engine.Turn(s.playerID, worldmodel.East)
		return nil
	case inTurnSouth:
		h.engine.Turn(s.playerID, worldmodel.South)
		return nil
	case inTurnWest:
		h.engine.Turn(s.playerID, worldmodel.West)
		return nil
	case inMoveItem:
		return h.handleMoveItem(s, r)
	case inUseItem:
		return h.handleUseItem(s, r)
	case inCloseCont:
		return h.handleCloseContainer(s, r)
	case inLook:
		return h.handleLook(s, r)
	case inSay:
		return h.handleSay(s, r)
	default:
		return nil // unknown opcodes are ignored, not fatal.
	}
}

func (h *Handler) handleLogin(s *Session, r *protocol.Reader) error {
	if _, err := r.GetU8(); err != nil { // protocol marker (0x02)
		return err
	}
	if _, err := r.GetU16(); err != nil { // client version
		return err
	}
	if _, err := r.GetU8(); err != nil { // unused byte
		return err
	}
	name, err := r.GetString()
	if err != nil {
		return err
	}
	password, err := r.GetString()
	if err != nil {
		return err
	}

	if !h.accounts.VerifyPassword(name, password) {
		s.SendCancel("Invalid password.")
		h.acceptor.CloseConnection(s.connID, false)
		return nil
	}

	h.engine.Spawn(name, s)
	return nil
}

func (h *Handler) handleAutoWalk(s *Session, r *protocol.Reader) error {
	n, err := r.GetU8()
	if err != nil {
		return err
	}
	dirs, err := r.GetBytes(int(n))
	if err != nil {
		return err
	}
	steps := make([]engine.Step, 0, len(dirs))
	for _, d := range dirs {
		if int(d) >= len(autoWalkDir) {
			continue
		}
		steps = append(steps, autoWalkDir[d])
	}
	h.engine.MovePath(s.playerID, steps)
	return nil
}

func (h *Handler) handleMoveItem(s *Session, r *protocol.Reader) error {
	from, err := readItemPosition(r)
	if err != nil {
		return err
	}
	itemID, err := r.GetU16()
	if err != nil {
		return err
	}
	fromStackPos, err := r.GetU8()
	if err != nil {
		return err
	}
	to, err := readItemPosition(r)
	if err != nil {
		return err
	}
	count, err := r.GetU8()
	if err != nil {
		return err
	}
	h.engine.MoveItem(s.playerID, toEngineLocation(from), worldmodel.ItemTypeID(itemID), int(fromStackPos), toEngineLocation(to), count)
	return nil
}

// toEngineLocation lowers a decoded wire item position into the
// engine's location type, which the handler layer owns no opinion
// about beyond this translation.
func toEngineLocation(p itemPosition) engine.ItemLocation {
	switch p.kind {
	case positionInventory:
		return engine.ItemLocation{Kind: engine.LocationInventory, Slot: p.slot}
	case positionContainer:
		return engine.ItemLocation{Kind: engine.LocationContainer, ContainerID: p.containerID, Slot: p.slot}
	default:
		return engine.ItemLocation{Kind: engine.LocationTile, Tile: p.tile}
	}
}

func (h *Handler) handleUseItem(s *Session, r *protocol.Reader) error {
	pos, err := readItemPosition(r)
	if err != nil {
		return err
	}
	itemID, err := r.GetU16()
	if err != nil {
		return err
	}
	stackPos, err := r.GetU8()
	if err != nil {
		return err
	}
	if _, err := r.GetU8(); err != nil { // requested local container id
		return err
	}
	h.engine.UseItem(s.playerID, toEngineLocation(pos), worldmodel.ItemTypeID(itemID), int(stackPos))
	return nil
}

func (h *Handler) handleCloseContainer(s *Session, r *protocol.Reader) error {
	localID, err := r.GetU8()
	if err != nil {
		return err
	}
	h.engine.CloseContainer(s.playerID, localID)
	return nil
}

func (h *Handler) handleLook(s *Session, r *protocol.Reader) error {
	pos, err := readItemPosition(r)
	if err != nil {
		return err
	}
	itemID, err := r.GetU16()
	if err != nil {
		return err
	}
	stackPos, err := r.GetU8()
	if err != nil {
		return err
	}
	if pos.kind != positionTile {
		s.SendTextMessage(engine.TextMessageDefault, "You cannot see this object.")
		return nil
	}
	h.engine.LookAt(s.playerID, pos.tile, worldmodel.ItemTypeID(itemID), int(stackPos))
	return nil
}

func (h *Handler) handleSay(s *Session, r *protocol.Reader) error {
	sayType, err := r.GetU8()
	if err != nil {
		return err
	}
	var receiver string
	var channelID uint16
	switch sayType {
	case engine.SayPrivate, 11:
		receiver, err = r.GetString()
		if err != nil {
			return err
		}
	case engine.SayChannel, engine.SayBroadcast:
		channelID, err = r.GetU16()
		if err != nil {
			return err
		}
	}
	text, err := r.GetString()
	if err != nil {
		return err
	}
	h.engine.Say(s.playerID, sayType, text, receiver, channelID)
	return nil
}
