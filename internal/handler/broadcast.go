package handler

import (
	"math"

	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/world"
)

// sendWelcome sends S_WELCOME with the grid geometry and the layout template.
// Format: [S server][D chunk w][D chunk h][D edge][D body][C tracking][H slots]
// then per slot [C row][C size].
func sendWelcome(sess *net.Session, name string, opts grid.Options, layout grid.Layout, tracking world.Tracking) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_WELCOME)
	w.WriteS(name)
	w.WriteD(units(opts.ChunkWidth))
	w.WriteD(units(opts.ChunkHeight))
	w.WriteD(units(opts.Margins.Edge))
	w.WriteD(units(opts.Margins.Body))
	w.WriteC(byte(tracking))
	slots := layout.Slots()
	w.WriteH(uint16(len(slots)))
	for _, s := range slots {
		w.WriteC(byte(s.Row))
		w.WriteC(byte(s.Size))
	}
	sess.Send(w.Bytes())
}

// sendChunkPut sends S_CHUNK_PUT with the chunk's resolved cells.
// Format: [D cx][D cy][Q gen][Q start][C settled][H cells]
// then per cell [C size][S key][S title][S color][S url][H w][H h].
func sendChunkPut(sess *net.Session, ch grid.Chunk, layout grid.Layout, mapper *grid.Mapper) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CHUNK_PUT)
	w.WriteD(ch.Coord.X)
	w.WriteD(ch.Coord.Y)
	w.WriteQ(ch.Gen)
	w.WriteQ(uint64(ch.StartIndex))
	if ch.Settled {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	cells := mapper.Cells(ch)
	w.WriteH(uint16(len(cells)))
	for i, it := range cells {
		size := grid.Small
		if slot, ok := layout.Slot(i); ok {
			size = slot.Size
		}
		w.WriteC(byte(size))
		w.WriteS(it.Key)
		w.WriteS(it.Title)
		w.WriteS(it.Color)
		w.WriteS(it.URL)
		w.WriteH(clampH(it.Width))
		w.WriteH(clampH(it.Height))
	}
	sess.Send(w.Bytes())
}

// sendChunkRemove sends S_CHUNK_REMOVE. Format: [D cx][D cy][Q gen]
func sendChunkRemove(sess *net.Session, ch grid.Chunk) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CHUNK_REMOVE)
	w.WriteD(ch.Coord.X)
	w.WriteD(ch.Coord.Y)
	w.WriteQ(ch.Gen)
	sess.Send(w.Bytes())
}

// sendRecenter tells the client to move its view back to the origin.
// Format: [D x][D y][DU epoch]; later pans must carry epoch.
func sendRecenter(sess *net.Session, epoch uint32) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_RECENTER)
	w.WriteD(0)
	w.WriteD(0)
	w.WriteDU(epoch)
	sess.Send(w.Bytes())
}

// sendSnapshot re-sends every live chunk, oldest first.
func sendSnapshot(sess *net.Session, chunks []grid.Chunk, layout grid.Layout, mapper *grid.Mapper) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SNAPSHOT)
	w.WriteH(uint16(len(chunks)))
	sess.Send(w.Bytes())
	for _, ch := range chunks {
		sendChunkPut(sess, ch, layout, mapper)
	}
}

// SendDisconnect sends S_DISCONNECT with a reason code.
func SendDisconnect(sess *net.Session, reason byte) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_DISCONNECT)
	w.WriteC(reason)
	sess.Send(w.Bytes())
}

func units(v float64) int32 {
	return int32(math.Round(v))
}

func clampH(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}
