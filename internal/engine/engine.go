package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/container"
	"github.com/opentile/server/internal/worldmodel"
)

// CharacterInfo is the minimal character record the engine needs to
// spawn a player: everything else (name, stats history) lives in the
// account/character collaborator, out of this package's scope.
type CharacterInfo struct {
	SpawnPosition worldmodel.Position
	Health        uint32
	MaxHealth     uint32
	Mana          uint32
	MaxMana       uint32
	Speed         uint16
	Capacity      uint32
	Level         uint16
	MagicLevel    uint16
	Outfit        worldmodel.Outfit
	Skills        []worldmodel.Skill
}

// CharacterLookup resolves a character name to its saved data. It is
// the "authenticate character name exists" collaborator spec.md §4.6
// calls for; the world server wires a concrete implementation backed
// by the account store.
type CharacterLookup interface {
	Lookup(name string) (CharacterInfo, bool)
}

// Step is one leg of a movePath: a cardinal direction plus whether it
// was composed as half of a diagonal (which doubles its cooldown, per
// spec.md §4.6).
type Step struct {
	Dir      worldmodel.Direction
	Diagonal bool
}

const groundSpeed = 150 // reference walking speed used in the cooldown formula

// TextMessageDefault is the wire "kind" byte used for informational
// text messages that have no more specific category (spec.md §8
// boundary scenario 5's "You cannot see this object." message).
const TextMessageDefault uint8 = 0x14

// Engine is the authoritative mutator of the World: the single
// goroutine running Queue.Run is the only one ever inside its methods
// (every exported entry point below just enqueues a closure).
type Engine struct {
	world      *worldmodel.World
	containers *container.Manager
	queue      *Queue
	chars      CharacterLookup
	log        *zap.Logger

	players map[worldmodel.CreatureID]*worldmodel.Player
	nextID  uint32

	nextWalkAt    map[worldmodel.CreatureID]time.Time
	queuedMoves   map[worldmodel.CreatureID][]Step
	moveGen       map[worldmodel.CreatureID]uint64
}

func New(world *worldmodel.World, containers *container.Manager, queue *Queue, chars CharacterLookup, log *zap.Logger) *Engine {
	return &Engine{
		world:       world,
		containers:  containers,
		queue:       queue,
		chars:       chars,
		log:         log,
		players:     make(map[worldmodel.CreatureID]*worldmodel.Player),
		nextWalkAt:  make(map[worldmodel.CreatureID]time.Time),
		queuedMoves: make(map[worldmodel.CreatureID][]Step),
		moveGen:     make(map[worldmodel.CreatureID]uint64),
	}
}

// Enqueue exposes the underlying queue for callers (protocol handlers)
// that need to schedule an engine task from outside this package.
func (e *Engine) Enqueue(task Task) { e.queue.Enqueue(task) }

// Creature looks up the live Creature data for id. It is only safe to
// call from the engine goroutine — in practice, from inside a
// worldmodel.CreatureCtrl callback, which the engine only ever invokes
// synchronously from one of its own tasks.
func (e *Engine) Creature(id worldmodel.CreatureID) (*worldmodel.Creature, bool) {
	p, ok := e.players[id]
	if !ok {
		return nil, false
	}
	return &p.Creature, true
}

// Player returns the full player record for id, for encoders (the
// spawn packet) that need stats and equipment beyond the common
// Creature fields. Same goroutine-confinement rule as Creature.
func (e *Engine) Player(id worldmodel.CreatureID) (*worldmodel.Player, bool) {
	p, ok := e.players[id]
	return p, ok
}

// Run starts the engine's single consumer loop; it blocks until stop
// is closed.
func (e *Engine) Run(stop <-chan struct{}) { e.queue.Run(stop) }

func (e *Engine) allocateID() worldmodel.CreatureID {
	e.nextID++
	return worldmodel.CreatureID(e.nextID)
}

// broadcast invokes fn for every currently-registered PlayerCtrl. Each
// ctrl is responsible for filtering by its own visibility window
// before emitting anything on the wire (spec.md §4.9).
func (e *Engine) broadcast(fn func(worldmodel.PlayerCtrl)) {
	for _, p := range e.players {
		if p.Ctrl != nil {
			fn(p.Ctrl)
		}
	}
}

// --- Spawn / despawn -------------------------------------------------

// Spawn authenticates that name is a known character, creates its
// Player at the saved spawn position, binds ctrl, and notifies it.
func (e *Engine) Spawn(name string, ctrl worldmodel.PlayerCtrl) {
	e.queue.Enqueue(func() { e.taskSpawn(name, ctrl) })
}

func (e *Engine) taskSpawn(name string, ctrl worldmodel.PlayerCtrl) {
	info, ok := e.chars.Lookup(name)
	if !ok {
		ctrl.SendCancel("Character does not exist.")
		return
	}

	id := e.allocateID()
	player := &worldmodel.Player{
		Creature: worldmodel.Creature{
			ID:        id,
			Name:      name,
			Health:    info.Health,
			MaxHealth: info.MaxHealth,
			Direction: worldmodel.South,
			Speed:     info.Speed,
			Outfit:    info.Outfit,
		},
		Mana:       info.Mana,
		MaxMana:    info.MaxMana,
		Capacity:   info.Capacity,
		Level:      info.Level,
		MagicLevel: info.MagicLevel,
		Skills:     info.Skills,
		Ctrl:       ctrl,
	}

	if res := e.world.AddCreature(id, info.SpawnPosition, playerCtrlAdapter{player}); res != worldmodel.ResultOK {
		e.log.Error("spawn failed to place player on world map", zap.String("name", name), zap.String("result", res.String()))
		ctrl.SendCancel("Sorry, not possible.")
		return
	}
	e.players[id] = player
	ctrl.OnCreatureSpawn(&player.Creature, info.SpawnPosition)
}

// Despawn removes a creature from the world and closes its ctrl.
func (e *Engine) Despawn(id worldmodel.CreatureID) {
	e.queue.Enqueue(func() { e.taskDespawn(id) })
}

func (e *Engine) taskDespawn(id worldmodel.CreatureID) {
	player, ok := e.players[id]
	if !ok {
		return
	}
	e.world.RemoveCreature(id)
	delete(e.players, id)
	delete(e.nextWalkAt, id)
	delete(e.queuedMoves, id)
	delete(e.moveGen, id)

	e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnCreatureDespawn(id) })
	if player.Ctrl != nil {
		player.Ctrl.OnCreatureDespawn(id)
	}
}

// --- Movement ---------------------------------------------------------

// Move attempts a single cardinal step, deferring until the creature's
// cooldown has elapsed if it hasn't yet.
func (e *Engine) Move(id worldmodel.CreatureID, dir worldmodel.Direction) {
	e.queue.Enqueue(func() { e.attemptStep(id, Step{Dir: dir}, e.moveGen[id]) })
}

// MovePath enqueues a queue of steps (auto-walk); each step reschedules
// the next after its own cooldown.
func (e *Engine) MovePath(id worldmodel.CreatureID, steps []Step) {
	e.queue.Enqueue(func() {
		e.moveGen[id]++
		gen := e.moveGen[id]
		e.queuedMoves[id] = append([]Step{}, steps...)
		e.driveQueuedMove(id, gen)
	})
}

func (e *Engine) driveQueuedMove(id worldmodel.CreatureID, gen uint64) {
	if e.moveGen[id] != gen {
		return // superseded by a later movePath or a cancelMove
	}
	queue := e.queuedMoves[id]
	if len(queue) == 0 {
		return
	}
	step := queue[0]
	e.queuedMoves[id] = queue[1:]
	e.attemptStep(id, step, gen)
}

// attemptStep runs (or reschedules) one step, then — if this call is
// part of an active movePath (gen still current and steps remain) —
// schedules the follow-up step after the new cooldown.
func (e *Engine) attemptStep(id worldmodel.CreatureID, step Step, gen uint64) {
	if e.moveGen[id] != gen {
		return
	}
	player, ok := e.players[id]
	if !ok {
		return
	}

	now := time.Now()
	if readyAt, waiting := e.nextWalkAt[id]; waiting && now.Before(readyAt) {
		delay := readyAt.Sub(now)
		e.queue.EnqueueAfter(func() { e.attemptStep(id, step, gen) }, delay)
		return
	}

	fromPos, _ := e.world.GetCreaturePosition(id)
	fromStackPos := -1
	if tile, ok := e.world.GetTile(fromPos); ok {
		fromStackPos = tile.CreatureStackPos(id)
	}

	res := e.world.MoveCreature(id, step.Dir)
	cooldown := stepCooldown(player.Speed, step.Diagonal)
	e.nextWalkAt[id] = time.Now().Add(cooldown)

	if res != worldmodel.ResultOK {
		if player.Ctrl != nil {
			player.Ctrl.SendCancel("Sorry, not possible.")
		}
		e.queuedMoves[id] = nil
		return
	}

	player.Direction = step.Dir
	toPos, _ := e.world.GetCreaturePosition(id)
	e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnCreatureMove(id, fromPos, fromStackPos, toPos) })

	if len(e.queuedMoves[id]) > 0 {
		e.queue.EnqueueAfter(func() { e.driveQueuedMove(id, gen) }, cooldown)
	}
}

// stepCooldown is the reference implementation's movement timing
// formula: 1000*groundSpeed/creatureSpeed ms, doubled for a diagonal
// step (spec.md §4.6).
func stepCooldown(creatureSpeed uint16, diagonal bool) time.Duration {
	if creatureSpeed == 0 {
		creatureSpeed = 1
	}
	ms := 1000 * groundSpeed / int(creatureSpeed)
	if diagonal {
		ms *= 2
	}
	return time.Duration(ms) * time.Millisecond
}

// CancelMove clears any queued auto-walk for id. The already-scheduled
// deferred step is not pulled out of the queue; its generation check
// makes it a no-op when it eventually runs, matching the reference
// implementation's "don't cancel the task, just let it expire" comment.
func (e *Engine) CancelMove(id worldmodel.CreatureID) {
	e.queue.Enqueue(func() {
		e.moveGen[id]++
		e.queuedMoves[id] = nil
		if player, ok := e.players[id]; ok && player.Ctrl != nil {
			player.Ctrl.SendCancel("")
		}
	})
}

// Turn changes a creature's facing without moving it.
func (e *Engine) Turn(id worldmodel.CreatureID, dir worldmodel.Direction) {
	e.queue.Enqueue(func() { e.taskTurn(id, dir) })
}

func (e *Engine) taskTurn(id worldmodel.CreatureID, dir worldmodel.Direction) {
	player, ok := e.players[id]
	if !ok {
		return
	}
	player.Direction = dir
	pos, _ := e.world.GetCreaturePosition(id)
	stackPos := -1
	if tile, ok := e.world.GetTile(pos); ok {
		stackPos = tile.CreatureStackPos(id)
	}
	e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnCreatureTurn(id, pos, stackPos, dir) })
}

// --- Say ---------------------------------------------------------------

// Say broadcast scopes, matching spec.md §4.8's say-type table.
const (
	SayNormal    uint8 = 1
	SayShout     uint8 = 2
	SayWhisper   uint8 = 3
	SayPrivate   uint8 = 6
	SayChannel   uint8 = 7
	SayBroadcast uint8 = 10
)

func (e *Engine) Say(id worldmodel.CreatureID, sayType uint8, msg, receiver string, channelID uint16) {
	e.queue.Enqueue(func() { e.taskSay(id, sayType, msg, receiver, channelID) })
}

func (e *Engine) taskSay(id worldmodel.CreatureID, sayType uint8, msg, receiver string, channelID uint16) {
	player, ok := e.players[id]
	if !ok {
		return
	}

	if cmd, args, isCommand := parseCommand(msg); isCommand && e.runCommand(player, cmd, args) {
		return
	}

	pos, _ := e.world.GetCreaturePosition(id)
	switch sayType {
	case SayPrivate:
		target := e.findPlayerByName(receiver)
		if target != nil && target.Ctrl != nil {
			target.Ctrl.OnCreatureSay(id, player.Name, sayType, pos, msg)
		}
	default:
		e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnCreatureSay(id, player.Name, sayType, pos, msg) })
	}
}

func (e *Engine) findPlayerByName(name string) *worldmodel.Player {
	for _, p := range e.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// parseCommand recognises leading-slash operator commands, matching
// the reference implementation's taskSay dispatch (original_source
// gameengine.cc): any other slash-prefixed text still falls through as
// ordinary chat, it just isn't one of the known commands.
func parseCommand(msg string) (cmd string, args string, ok bool) {
	if len(msg) == 0 || msg[0] != '/' {
		return "", "", false
	}
	body := msg[1:]
	for i, r := range body {
		if r == ' ' {
			return body[:i], body[i+1:], true
		}
	}
	return body, "", true
}

// runCommand executes a known command and reports whether cmd was one;
// for an unknown command it returns false and taskSay broadcasts the
// text as ordinary chat.
func (e *Engine) runCommand(player *worldmodel.Player, cmd, args string) bool {
	switch cmd {
	case "put":
		e.commandPut(player, args)
		return true
	default:
		return false
	}
}

// commandPut spawns an item at the caller's feet, grounded in the
// reference implementation's "/put" debug command.
func (e *Engine) commandPut(player *worldmodel.Player, args string) {
	var typeID uint16
	if _, err := fmt.Sscanf(args, "%d", &typeID); err != nil {
		if player.Ctrl != nil {
			player.Ctrl.SendTextMessage(TextMessageDefault,"Usage: /put <itemId>")
		}
		return
	}
	pos, ok := e.world.GetCreaturePosition(player.ID)
	if !ok {
		return
	}
	item := worldmodel.Item{TypeID: worldmodel.ItemTypeID(typeID)}
	if res := e.world.AddItem(pos, item); res != worldmodel.ResultOK {
		if player.Ctrl != nil {
			player.Ctrl.SendCancel("Sorry, not possible.")
		}
		return
	}
	e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnItemAdded(pos, item) })
}

// --- Items / containers -------------------------------------------------

// MoveItem validates and relocates an item between two locations —
// tile, equipment slot, or open-container slot — failing if the
// source doesn't hold itemID at fromStackPos (spec.md §4.6).
func (e *Engine) MoveItem(id worldmodel.CreatureID, from ItemLocation, itemID worldmodel.ItemTypeID, fromStackPos int, to ItemLocation, count uint8) {
	e.queue.Enqueue(func() { e.taskMoveItem(id, from, itemID, fromStackPos, to, count) })
}

func (e *Engine) taskMoveItem(id worldmodel.CreatureID, from ItemLocation, itemID worldmodel.ItemTypeID, fromStackPos int, to ItemLocation, count uint8) {
	player, ok := e.players[id]
	if !ok {
		return
	}
	if !e.validLocation(player, from) || !e.validLocation(player, to) {
		player.Ctrl.SendCancel("Sorry, not possible.")
		return
	}

	item, removeSubs, removeSlot, res := e.removeItemAt(player, from, itemID, fromStackPos)
	if res != worldmodel.ResultOK {
		player.Ctrl.SendCancel("Sorry, not possible.")
		return
	}
	if from.Kind == LocationTile {
		e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnItemRemoved(from.Tile, fromStackPos) })
	} else {
		e.notifyContainerRemove(removeSubs, removeSlot)
	}

	addSubs, res := e.addItemAt(player, to, item)
	if res != worldmodel.ResultOK {
		// Roll back: put it back where it came from.
		e.putBack(player, from, item)
		player.Ctrl.SendCancel("Sorry, not possible.")
		return
	}
	if to.Kind == LocationTile {
		e.broadcast(func(c worldmodel.PlayerCtrl) { c.OnItemAdded(to.Tile, item) })
	} else {
		e.notifyContainerAdd(addSubs, item)
	}
}

// putBack restores item to loc after a failed destination add; it
// deliberately ignores the outcome since the source slot it vacated a
// moment ago is, barring a concurrent mutation that cannot happen on
// the single engine goroutine, guaranteed free again.
func (e *Engine) putBack(player *worldmodel.Player, loc ItemLocation, item worldmodel.Item) {
	e.addItemAt(player, loc, item)
}

// UseItem opens a container item (allocating a global container the
// first time it's used) and notifies ctrl of the assigned local id.
func (e *Engine) UseItem(id worldmodel.CreatureID, pos ItemLocation, itemID worldmodel.ItemTypeID, stackPos int) {
	e.queue.Enqueue(func() { e.taskUseItem(id, pos, itemID, stackPos) })
}

func (e *Engine) taskUseItem(id worldmodel.CreatureID, pos ItemLocation, itemID worldmodel.ItemTypeID, stackPos int) {
	player, ok := e.players[id]
	if !ok {
		return
	}
	if !e.validLocation(player, pos) {
		player.Ctrl.SendCancel("Sorry, not possible.")
		return
	}

	var item worldmodel.Item
	var ref *worldmodel.Item
	switch pos.Kind {
	case LocationTile:
		tile, ok := e.world.GetTile(pos.Tile)
		if !ok {
			player.Ctrl.SendCancel("Sorry, not possible.")
			return
		}
		it, ok := tile.ThingAt(stackPos)
		if !ok || it.TypeID != itemID {
			player.Ctrl.SendCancel("Sorry, not possible.")
			return
		}
		item = it
		idx := stackPos
		if tile.Ground != nil {
			idx--
		}
		if idx >= 0 && idx < len(tile.TopItems) {
			ref = &tile.TopItems[idx]
		} else if idx >= 0 {
			ref = &tile.BottomItems[idx-len(tile.TopItems)-len(tile.Creatures)]
		}
	case LocationInventory:
		eq := player.Equipment[pos.Slot]
		if eq == nil || eq.TypeID != itemID {
			player.Ctrl.SendCancel("Sorry, not possible.")
			return
		}
		item = *eq
		ref = eq
	case LocationContainer:
		global, ok := e.containers.GlobalFor(player.ID, container.LocalID(pos.ContainerID))
		if !ok {
			player.Ctrl.SendCancel("Sorry, not possible.")
			return
		}
		_, contents, ok := e.containers.Get(global)
		if !ok || int(pos.Slot) >= len(contents) || contents[pos.Slot].TypeID != itemID {
			player.Ctrl.SendCancel("Sorry, not possible.")
			return
		}
		item = contents[pos.Slot]
		ref = &contents[pos.Slot]
	}

	global := container.GlobalID(item.GlobalContainerID)
	if _, _, ok := e.containers.Get(global); !ok {
		global = e.containers.CreateGlobal(item, nil)
		if ref != nil {
			ref.GlobalContainerID = uint32(global)
		}
	}
	local, backing, contents, err := e.containers.Open(id, global)
	if err != nil {
		player.Ctrl.SendCancel("Sorry, not possible.")
		return
	}
	player.Ctrl.OnContainerOpened(uint8(local), backing, contents)
}

// CloseContainer delegates to the container manager and notifies ctrl.
func (e *Engine) CloseContainer(id worldmodel.CreatureID, localID uint8) {
	e.queue.Enqueue(func() {
		e.containers.Close(id, container.LocalID(localID))
		if player, ok := e.players[id]; ok && player.Ctrl != nil {
			player.Ctrl.OnContainerClosed(localID)
		}
	})
}

// LookAt composes a description for the thing at pos/stackPos and
// sends it as a text message; out-of-range stack positions produce the
// "cannot see" message with no world mutation (spec.md §8 scenario 5).
func (e *Engine) LookAt(id worldmodel.CreatureID, pos worldmodel.Position, itemID worldmodel.ItemTypeID, stackPos int) {
	e.queue.Enqueue(func() { e.taskLookAt(id, pos, itemID, stackPos) })
}

func (e *Engine) taskLookAt(id worldmodel.CreatureID, pos worldmodel.Position, itemID worldmodel.ItemTypeID, stackPos int) {
	player, ok := e.players[id]
	if !ok {
		return
	}
	tile, ok := e.world.GetTile(pos)
	if !ok {
		player.Ctrl.SendTextMessage(TextMessageDefault,"You cannot see this object.")
		return
	}
	item, ok := tile.ThingAt(stackPos)
	if !ok {
		player.Ctrl.SendTextMessage(TextMessageDefault,"You cannot see this object.")
		return
	}
	_ = itemID
	player.Ctrl.SendTextMessage(TextMessageDefault,fmt.Sprintf("You see an item (type %d).", item.TypeID))
}

// playerCtrlAdapter narrows a PlayerCtrl to worldmodel.CreatureCtrl for
// registering non-player-specific observers (the world only ever
// stores CreatureCtrl in its per-tile bookkeeping; player-only
// callbacks are reached separately, via Engine.players).
type playerCtrlAdapter struct{ p *worldmodel.Player }

func (a playerCtrlAdapter) OnCreatureSpawn(c *worldmodel.Creature, pos worldmodel.Position) {
	a.p.Ctrl.OnCreatureSpawn(c, pos)
}
func (a playerCtrlAdapter) OnCreatureDespawn(id worldmodel.CreatureID) { a.p.Ctrl.OnCreatureDespawn(id) }
func (a playerCtrlAdapter) OnCreatureMove(id worldmodel.CreatureID, from worldmodel.Position, fromStackPos int, to worldmodel.Position) {
	a.p.Ctrl.OnCreatureMove(id, from, fromStackPos, to)
}
func (a playerCtrlAdapter) OnCreatureTurn(id worldmodel.CreatureID, pos worldmodel.Position, stackPos int, dir worldmodel.Direction) {
	a.p.Ctrl.OnCreatureTurn(id, pos, stackPos, dir)
}
func (a playerCtrlAdapter) OnCreatureSay(id worldmodel.CreatureID, name string, sayType uint8, pos worldmodel.Position, text string) {
	a.p.Ctrl.OnCreatureSay(id, name, sayType, pos, text)
}
func (a playerCtrlAdapter) OnItemAdded(pos worldmodel.Position, item worldmodel.Item) { a.p.Ctrl.OnItemAdded(pos, item) }
func (a playerCtrlAdapter) OnItemRemoved(pos worldmodel.Position, stackPos int)       { a.p.Ctrl.OnItemRemoved(pos, stackPos) }
func (a playerCtrlAdapter) OnTileUpdate(pos worldmodel.Position)                      { a.p.Ctrl.OnTileUpdate(pos) }
