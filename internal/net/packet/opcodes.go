package packet

// Client → server opcodes.
const (
	C_OPCODE_HELLO      byte = 0x01 // [S name][S access key][D view w][D view h][C tracking]
	C_OPCODE_VISIBILITY byte = 0x02 // [D cx][D cy][Q gen][C edge][C intersecting]
	C_OPCODE_SETTLED    byte = 0x03 // [D cx][D cy][Q gen]
	C_OPCODE_PAN        byte = 0x04 // [D x][D y][DU epoch] absolute view offset
	C_OPCODE_SNAPSHOT   byte = 0x05
	C_OPCODE_RESIZE     byte = 0x06 // [D view w][D view h]
	C_OPCODE_BYE        byte = 0x07
)

// Server → client opcodes.
const (
	S_OPCODE_WELCOME      byte = 0x81
	S_OPCODE_CHUNK_PUT    byte = 0x82
	S_OPCODE_CHUNK_REMOVE byte = 0x83
	S_OPCODE_RECENTER     byte = 0x84 // [D x][D y][DU epoch]
	S_OPCODE_SNAPSHOT     byte = 0x85 // [H count], followed by count chunk puts
	S_OPCODE_DISCONNECT   byte = 0x86 // [C reason]
)

// Disconnect reasons carried by S_OPCODE_DISCONNECT.
const (
	DisconnectBye       byte = 0
	DisconnectBadKey    byte = 1
	DisconnectRateLimit byte = 2
	DisconnectShutdown  byte = 3
)
