package classic

// Opcode identifies a single frame type on the wire. Every frame starts
// with exactly one opcode byte.
type Opcode byte

const (
	OpHello                Opcode = 0x00
	OpHeartbeat            Opcode = 0x01
	OpStartLevel           Opcode = 0x02
	OpLevelChunk           Opcode = 0x03
	OpFinishLevel          Opcode = 0x04
	OpChangeBlock          Opcode = 0x05
	OpSetBlock             Opcode = 0x06
	OpAddEntity            Opcode = 0x07
	OpAbsoluteLocation     Opcode = 0x08
	OpRelativeLocation     Opcode = 0x09
	OpRelativePosition     Opcode = 0x0A
	OpRelativeOrientation  Opcode = 0x0B
	OpRemoveEntity         Opcode = 0x0C
	OpMessage              Opcode = 0x0D
	OpDisconnect           Opcode = 0x0E
	OpAdminStatus          Opcode = 0x0F
	OpExtInfo              Opcode = 0x10
	OpExtEntry             Opcode = 0x11
	OpHoldThis             Opcode = 0x14
	OpAddPlayer            Opcode = 0x16
	OpRemovePlayer         Opcode = 0x18
	OpSetBlockPermission   Opcode = 0x1C
	OpAddEntityExt         Opcode = 0x21
	OpPlayerClick          Opcode = 0x22
	OpSetTextColor         Opcode = 0x27
)

// ProtocolVersion is the only Classic protocol version this package speaks.
const ProtocolVersion = 7

// opcodeHandler consumes exactly the payload belonging to the opcode it was
// registered for and reports any protocol or I/O failure.
type opcodeHandler func() error

// opcodeTable is a fixed 256-entry dispatch table indexed by opcode value,
// the same "base table, role overlays specific slots" shape the reference
// implementation builds at class-definition time. Avoids a type switch or
// virtual dispatch per frame.
type opcodeTable [256]opcodeHandler

// baseOpcodeTable returns a table whose every slot closes the session
// (unknown opcodes cannot be safely skipped: payload length is
// opcode-dependent) except for the two opcodes shared by both roles.
func baseOpcodeTable(closeFn func() error, extInfo, extEntry opcodeHandler) opcodeTable {
	var t opcodeTable
	for i := range t {
		t[i] = closeFn
	}
	t[OpExtInfo] = extInfo
	t[OpExtEntry] = extEntry
	return t
}
