package worldproto

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/accountstore"
	"github.com/opentile/server/internal/container"
	"github.com/opentile/server/internal/engine"
	"github.com/opentile/server/internal/motd"
	netacceptor "github.com/opentile/server/internal/net"
	"github.com/opentile/server/internal/protocol"
	"github.com/opentile/server/internal/worldmodel"
)

type fixedCharLookup map[string]engine.CharacterInfo

func (f fixedCharLookup) Lookup(name string) (engine.CharacterInfo, bool) {
	info, ok := f[name]
	return info, ok
}

const typeGround = worldmodel.ItemTypeID(1)

func flatWorld(size int) (*worldmodel.World, worldmodel.MapItemTypeTable) {
	types := worldmodel.MapItemTypeTable{typeGround: {ID: typeGround, IsGround: true}}
	w := worldmodel.NewWorld(worldmodel.Bounds{MinX: 0, MinY: 0, MaxX: uint16(size - 1), MaxY: uint16(size - 1)}, types)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			pos := worldmodel.Position{X: uint16(x), Y: uint16(y), Z: 0}
			w.SetTile(pos, &worldmodel.Tile{Ground: &worldmodel.Item{TypeID: typeGround}})
		}
	}
	return w, types
}

func testAccounts(t *testing.T) *accountstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.xml")
	os.WriteFile(path, []byte(`<accounts>
  <account number="1" password="pw" premiumDays="0">
    <character name="Hero" worldName="Default" worldIp="127.0.0.1" worldPort="7172"/>
  </account>
</accounts>`), 0o644)
	accounts, err := accountstore.Load(path)
	if err != nil {
		t.Fatalf("accountstore.Load: %v", err)
	}
	return accounts
}

func testMOTD(t *testing.T) *motd.Provider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motd.txt")
	os.WriteFile(path, []byte("Welcome."), 0o644)
	p, err := motd.Load(path)
	if err != nil {
		t.Fatalf("motd.Load: %v", err)
	}
	return p
}

type testServer struct {
	acceptor *netacceptor.Acceptor
	engine   *engine.Engine
	world    *worldmodel.World
	stop     chan struct{}
	done     chan struct{}
}

func newTestServer(t *testing.T, chars fixedCharLookup) *testServer {
	t.Helper()
	world, types := flatWorld(40)
	mgr := container.NewManager()
	q := engine.NewQueue()
	e := engine.New(world, mgr, q, chars, zap.NewNop())

	h := New(world, types, e, testAccounts(t), testMOTD(t), zap.NewNop())
	a, err := netacceptor.NewAcceptor("127.0.0.1:0", h.Callbacks(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewAcceptor: %v", err)
	}
	h.BindAcceptor(a)
	go a.Serve()

	ts := &testServer{acceptor: a, engine: e, world: world, stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		e.Run(ts.stop)
		close(ts.done)
	}()
	t.Cleanup(func() {
		close(ts.stop)
		<-ts.done
		a.Shutdown()
	})
	return ts
}

func buildLoginPacket(name, password string) []byte {
	w := protocol.NewWriter()
	w.AddU8(inLogin)
	w.AddU8(0x02)
	w.AddU16(710)
	w.AddU8(0)
	w.AddString(name)
	w.AddString(password)
	return w.Bytes()
}

func dialAndLogin(t *testing.T, ts *testServer, name, password string) (net.Conn, []byte) {
	t.Helper()
	conn, err := net.Dial("tcp", ts.acceptor.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := protocol.WriteFrame(conn, buildLoginPacket(name, password)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return conn, body
}

func TestLoginSpawnsPlayerAndSendsSpawnPacket(t *testing.T) {
	chars := fixedCharLookup{"Hero": {SpawnPosition: worldmodel.Position{X: 20, Y: 20, Z: 0}, Health: 100, MaxHealth: 100, Speed: 220}}
	ts := newTestServer(t, chars)

	conn, body := dialAndLogin(t, ts, "Hero", "pw")
	defer conn.Close()

	r := protocol.NewReader(body)
	op, _ := r.GetU8()
	if op != opPlayerSpawn {
		t.Fatalf("opcode = 0x%02X, want 0x0A", op)
	}
	id, _ := r.GetU32()
	if id != 1 {
		t.Fatalf("playerId = %d, want 1", id)
	}
}

func TestLoginWrongPasswordClosesWithoutSpawn(t *testing.T) {
	chars := fixedCharLookup{"Hero": {SpawnPosition: worldmodel.Position{X: 20, Y: 20, Z: 0}, Health: 100, MaxHealth: 100, Speed: 220}}
	ts := newTestServer(t, chars)

	conn, err := net.Dial("tcp", ts.acceptor.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	protocol.WriteFrame(conn, buildLoginPacket("Hero", "wrong"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	r := protocol.NewReader(body)
	if op, _ := r.GetU8(); op != opCancelWalk {
		t.Fatalf("opcode = 0x%02X, want 0xB5 (cancel)", op)
	}
}

func TestLookAtUnknownSlotSendsCannotSeeMessage(t *testing.T) {
	chars := fixedCharLookup{"Hero": {SpawnPosition: worldmodel.Position{X: 20, Y: 20, Z: 0}, Health: 100, MaxHealth: 100, Speed: 220}}
	ts := newTestServer(t, chars)
	conn, _ := dialAndLogin(t, ts, "Hero", "pw")
	defer conn.Close()

	w := protocol.NewWriter()
	w.AddU8(inLook)
	w.AddU16(20)
	w.AddU16(20)
	w.AddU8(0)
	w.AddU16(uint16(typeGround))
	w.AddU8(9) // out of range stack position
	protocol.WriteFrame(conn, w.Bytes())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	r := protocol.NewReader(body)
	op, _ := r.GetU8()
	kind, _ := r.GetU8()
	text, _ := r.GetString()
	if op != opTextMessage || kind != engine.TextMessageDefault || text != "You cannot see this object." {
		t.Fatalf("got op=0x%02X kind=0x%02X text=%q, want the cannot-see message", op, kind, text)
	}
}

func TestStepMovesPlayerAfterCooldown(t *testing.T) {
	chars := fixedCharLookup{"Hero": {SpawnPosition: worldmodel.Position{X: 20, Y: 20, Z: 0}, Health: 100, MaxHealth: 100, Speed: 1000}}
	ts := newTestServer(t, chars)
	conn, _ := dialAndLogin(t, ts, "Hero", "pw")
	defer conn.Close()

	w := protocol.NewWriter()
	w.AddU8(inStepEast)
	protocol.WriteFrame(conn, w.Bytes())

	time.Sleep(200 * time.Millisecond)
	pos, _ := ts.world.GetCreaturePosition(worldmodel.CreatureID(1))
	if pos.X != 21 {
		t.Fatalf("position.X = %d, want 21 after one east step", pos.X)
	}
}
