package handler

import (
	"math"
	stdnet "net"
	"testing"
	"time"

	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/core/event"
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	deps *Deps
	reg  *packet.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	items := make([]grid.Item, 30)
	for i := range items {
		items[i] = grid.Item{Key: string(rune('a' + i%26)), Color: "#123456"}
	}
	deps := &Deps{
		Config: config.Default(),
		Log:    zap.NewNop(),
		World:  world.NewState(),
		Bus:    event.NewBus(),
		GridOptions: grid.Options{
			ChunkWidth:    1000,
			ChunkHeight:   900,
			ItemsPerChunk: grid.DefaultItemsPerChunk,
			Margins:       grid.Margins{Edge: 500, Body: 1000},
		},
		Layout:     grid.DefaultLayout(),
		Mapper:     grid.NewMapper(items, grid.DefaultItemsPerChunk),
		HelloLimit: NewAttemptLimiter(0),
	}
	reg := packet.NewRegistry(zap.NewNop())
	RegisterAll(reg, deps)
	return &fixture{deps: deps, reg: reg}
}

func newSession(t *testing.T, id uint64) *net.Session {
	t.Helper()
	a, b := stdnet.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return net.NewSession(net.NewTCPTransport(a, 0, 0), id, net.SessionOptions{InQueueSize: 8, OutQueueSize: 4096}, zap.NewNop())
}

func (f *fixture) dispatch(t *testing.T, sess *net.Session, w *packet.Writer) {
	t.Helper()
	if err := f.reg.Dispatch(sess, sess.State(), w.Bytes()); err != nil {
		t.Fatalf("dispatch %#x: %v", w.Bytes()[0], err)
	}
}

// sent flushes the session and returns the queued packets.
func sent(sess *net.Session) [][]byte {
	sess.FlushOutput()
	var out [][]byte
	for {
		select {
		case p := <-sess.OutQueue:
			out = append(out, p)
		default:
			return out
		}
	}
}

func opcodes(pkts [][]byte) []byte {
	ops := make([]byte, len(pkts))
	for i, p := range pkts {
		ops[i] = p[0]
	}
	return ops
}

func pan(x, y int32, epoch uint32) *packet.Writer {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_PAN)
	w.WriteD(x)
	w.WriteD(y)
	w.WriteDU(epoch)
	return w
}

func hello(name, key string, tracking world.Tracking) *packet.Writer {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_HELLO)
	w.WriteS(name)
	w.WriteS(key)
	w.WriteD(800)
	w.WriteD(600)
	w.WriteC(byte(tracking))
	return w
}

func visibility(c grid.Coord, gen uint64, e grid.Edge, in bool) *packet.Writer {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_VISIBILITY)
	w.WriteD(c.X)
	w.WriteD(c.Y)
	w.WriteQ(gen)
	w.WriteC(byte(e))
	if in {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	return w
}

func settled(c grid.Coord, gen uint64) *packet.Writer {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_SETTLED)
	w.WriteD(c.X)
	w.WriteD(c.Y)
	w.WriteQ(gen)
	return w
}

func TestHelloStreamsOrigin(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("  alice ", "", world.TrackClient))

	pkts := sent(sess)
	ops := opcodes(pkts)
	if len(ops) != 2 || ops[0] != packet.S_OPCODE_WELCOME || ops[1] != packet.S_OPCODE_CHUNK_PUT {
		t.Fatalf("opcodes = %x", ops)
	}
	if sess.State() != packet.StateViewing || sess.ViewerName != "alice" {
		t.Fatalf("state=%s name=%q", sess.State(), sess.ViewerName)
	}

	r := packet.NewReader(pkts[1])
	if x, y := r.ReadD(), r.ReadD(); x != 0 || y != 0 {
		t.Fatalf("origin put at (%d,%d)", x, y)
	}
	r.ReadQ()
	if start := r.ReadQ(); start != 0 {
		t.Fatalf("origin start = %d", start)
	}
	r.ReadC()
	if n := r.ReadH(); n != grid.DefaultItemsPerChunk {
		t.Fatalf("cells = %d", n)
	}

	v := f.deps.World.GetBySession(1)
	if v == nil || v.Engine.Len() != 1 || v.View != nil {
		t.Fatalf("viewer = %+v", v)
	}
	if event.Pending[event.ViewerJoined](f.deps.Bus) != 1 || event.Pending[event.ChunkCreated](f.deps.Bus) != 1 {
		t.Fatalf("join events not emitted")
	}
}

func TestHelloRejectsBadKey(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	f.deps.Config.Network.AccessKeyHash = string(hash)

	bad := newSession(t, 1)
	f.dispatch(t, bad, hello("eve", "guess", world.TrackServer))
	if !bad.IsClosed() || f.deps.World.GetBySession(1) != nil {
		t.Fatalf("bad key admitted")
	}

	good := newSession(t, 2)
	f.dispatch(t, good, hello("bob", "open sesame", world.TrackServer))
	if good.State() != packet.StateViewing {
		t.Fatalf("good key rejected")
	}
	if v := f.deps.World.GetBySession(2); v == nil || v.View == nil {
		t.Fatalf("server-tracked viewer has no viewport")
	}
}

func TestClientTrackedLifecycle(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("carol", "", world.TrackClient))
	sent(sess)
	v := f.deps.World.GetBySession(1)

	f.dispatch(t, sess, visibility(grid.Origin, 0, grid.EdgeRight, true))
	v.Reactor.Drain()
	if ops := opcodes(sent(sess)); len(ops) != 1 || ops[0] != packet.S_OPCODE_CHUNK_PUT {
		t.Fatalf("after right edge: %x", ops)
	}
	right, ok := v.Engine.Chunk(grid.Coord{X: 1})
	if !ok || right.StartIndex != 22 {
		t.Fatalf("right chunk = %+v, %v", right, ok)
	}

	// Body invisible before settle is ignored.
	f.dispatch(t, sess, visibility(right.Coord, right.Gen, grid.EdgeBody, false))
	v.Reactor.Drain()
	if !v.Engine.Has(right.Coord) {
		t.Fatalf("unsettled chunk evicted")
	}

	f.dispatch(t, sess, settled(right.Coord, right.Gen))
	f.dispatch(t, sess, visibility(right.Coord, right.Gen, grid.EdgeBody, false))
	v.Reactor.Drain()
	pkts := sent(sess)
	if ops := opcodes(pkts); len(ops) != 1 || ops[0] != packet.S_OPCODE_CHUNK_REMOVE {
		t.Fatalf("after eviction: %x", ops)
	}
	if event.Pending[event.ChunkEvicted](f.deps.Bus) != 1 || event.Pending[event.ChunkSettled](f.deps.Bus) != 1 {
		t.Fatalf("eviction events not emitted")
	}
}

func TestClientTrackedResetRecenters(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("dan", "", world.TrackClient))
	sent(sess)
	v := f.deps.World.GetBySession(1)
	origin, _ := v.Engine.Chunk(grid.Origin)

	f.dispatch(t, sess, settled(grid.Origin, origin.Gen))
	f.dispatch(t, sess, visibility(grid.Origin, origin.Gen, grid.EdgeBody, false))
	v.Reactor.Drain()

	ops := opcodes(sent(sess))
	want := []byte{packet.S_OPCODE_CHUNK_REMOVE, packet.S_OPCODE_CHUNK_PUT, packet.S_OPCODE_RECENTER}
	if len(ops) != len(want) {
		t.Fatalf("reset opcodes = %x", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("reset opcodes = %x, want %x", ops, want)
		}
	}
	if event.Pending[event.GridReset](f.deps.Bus) != 1 {
		t.Fatalf("reset not emitted")
	}
}

func TestServerTrackedIgnoresClientVisibility(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("erin", "", world.TrackServer))
	sent(sess)
	v := f.deps.World.GetBySession(1)

	f.dispatch(t, sess, visibility(grid.Origin, 0, grid.EdgeRight, true))
	if n := v.Reactor.Drain(); n != 0 {
		t.Fatalf("client visibility queued %d events", n)
	}

	f.dispatch(t, sess, pan(250, -40, 0))
	if x, y := v.View.Offset(); x != 250 || y != -40 || !v.Moved {
		t.Fatalf("pan offset = (%v,%v) moved=%v", x, y, v.Moved)
	}
}

func TestVisibilityBurstBeyondQueueSize(t *testing.T) {
	f := newFixture(t)
	f.deps.Config.Grid.EventQueueSize = 1
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("gus", "", world.TrackClient))
	sent(sess)
	v := f.deps.World.GetBySession(1)

	f.dispatch(t, sess, visibility(grid.Origin, 0, grid.EdgeRight, true))
	f.dispatch(t, sess, visibility(grid.Origin, 0, grid.EdgeTop, true))
	f.dispatch(t, sess, visibility(grid.Origin, 0, grid.EdgeLeft, true))
	v.Reactor.Drain()

	for _, c := range []grid.Coord{{X: 1}, {Y: -1}, {X: -1}} {
		if !v.Engine.Has(c) {
			t.Fatalf("%s not created, live = %d", c, v.Engine.Len())
		}
	}
	if ops := opcodes(sent(sess)); len(ops) != 3 {
		t.Fatalf("puts = %x, want 3", ops)
	}
}

func TestPanBeforeRecenterIgnored(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("hal", "", world.TrackServer))
	v := f.deps.World.GetBySession(1)
	f.dispatch(t, sess, pan(300, 0, 0))
	if !v.Moved {
		t.Fatalf("first pan not applied")
	}
	sent(sess)

	origin, _ := v.Engine.Chunk(grid.Origin)
	v.Reactor.EnqueueSettle(grid.Origin, origin.Gen)
	v.Reactor.Enqueue(grid.Event{Coord: grid.Origin, Gen: origin.Gen, Edge: grid.EdgeBody})
	v.Reactor.Drain()
	if v.Epoch != 1 {
		t.Fatalf("epoch = %d after reset", v.Epoch)
	}
	pkts := sent(sess)
	last := pkts[len(pkts)-1]
	if last[0] != packet.S_OPCODE_RECENTER {
		t.Fatalf("last packet = %#x", last[0])
	}
	r := packet.NewReader(last)
	r.ReadD()
	r.ReadD()
	if epoch := r.ReadDU(); epoch != 1 {
		t.Fatalf("recenter epoch = %d", epoch)
	}

	// Sent before the client saw the recenter: measured from the old origin.
	f.dispatch(t, sess, pan(5000, 0, 0))
	if x, y := v.View.Offset(); x != 0 || y != 0 || v.Moved {
		t.Fatalf("stale pan applied: (%v,%v) moved=%v", x, y, v.Moved)
	}

	f.dispatch(t, sess, pan(120, 0, 1))
	if x, _ := v.View.Offset(); x != 120 || !v.Moved {
		t.Fatalf("current pan offset = %v moved=%v", x, v.Moved)
	}
}

func TestChunkPutCarriesLargeStartIndex(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	start := math.MaxInt32 + 22
	sendChunkPut(sess, grid.Chunk{Coord: grid.Coord{X: 3, Y: -2}, StartIndex: start, Gen: 9}, f.deps.Layout, f.deps.Mapper)

	pkts := sent(sess)
	if len(pkts) != 1 {
		t.Fatalf("packets = %d", len(pkts))
	}
	r := packet.NewReader(pkts[0])
	r.ReadD()
	r.ReadD()
	if gen := r.ReadQ(); gen != 9 {
		t.Fatalf("gen = %d", gen)
	}
	if got := r.ReadQ(); got != uint64(start) {
		t.Fatalf("start = %d, want %d", got, start)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	f.dispatch(t, sess, hello("fay", "", world.TrackClient))
	v := f.deps.World.GetBySession(1)
	f.dispatch(t, sess, visibility(grid.Origin, 0, grid.EdgeTop, true))
	v.Reactor.Drain()
	sent(sess)

	f.dispatch(t, sess, packet.NewWriterWithOpcode(packet.C_OPCODE_SNAPSHOT))
	pkts := sent(sess)
	if len(pkts) != 3 || pkts[0][0] != packet.S_OPCODE_SNAPSHOT {
		t.Fatalf("snapshot = %x", opcodes(pkts))
	}
	if n := packet.NewReader(pkts[0]).ReadH(); n != 2 {
		t.Fatalf("snapshot count = %d", n)
	}
}

func TestViewingOpcodesRejectedBeforeHello(t *testing.T) {
	f := newFixture(t)
	sess := newSession(t, 1)
	if err := f.reg.Dispatch(sess, sess.State(), packet.NewWriterWithOpcode(packet.C_OPCODE_SNAPSHOT).Bytes()); err == nil {
		t.Fatalf("snapshot accepted during handshake")
	}
}

func TestAttemptLimiter(t *testing.T) {
	l := NewAttemptLimiter(2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") || l.Allow("a") {
		t.Fatalf("third attempt within a minute allowed")
	}
	if !l.Allow("b") {
		t.Fatalf("other host blocked")
	}
	now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Fatalf("window did not reset")
	}
	var nilLimiter *AttemptLimiter
	if !nilLimiter.Allow("x") {
		t.Fatalf("nil limiter blocks")
	}
}
