package classic

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// serverSessionExtensions is the set ServerSession advertises during CPE
// negotiation.
var serverSessionExtensions = []Extension{
	ExtEntityPositions,
	ExtMessageTypes,
	ExtHeldBlock,
	ExtLongerMessages,
	ExtPlayerList,
	ExtFullCP437,
}

// ServerSession is the client-side view of a connection to a remote
// world server: it sends player actions (move, place/break block, chat)
// and receives world updates.
type ServerSession struct {
	*session

	factory ServerSessionHandlerFactory
	handler ServerSessionHandler

	operator bool
	holding  uint8

	lastLocation     Location
	haveLastLocation bool

	level levelReassembler

	partialMessage []byte

	lastHeartbeat time.Time
}

// NewServerSession wraps rw in a client-role session connected to a
// remote world server. Call Hello to begin the handshake, then Run to
// drive the frame loop.
func NewServerSession(rw io.ReadWriter, log *zap.SugaredLogger, factory ServerSessionHandlerFactory) *ServerSession {
	ss := &ServerSession{
		session: newSession(rw, log, serverSessionExtensions),
		factory: factory,
	}
	ss.onExtensionsReceivedFn = ss.onExtensionsReceived
	ss.table = baseOpcodeTable(ss.handleUnknown, ss.handleExtInfo, ss.handleExtEntry)
	ss.table[OpHello] = ss.handleHello
	ss.table[OpDisconnect] = ss.handleDisconnect
	ss.table[OpMessage] = ss.handleMessage
	ss.table[OpSetBlock] = ss.handleSetBlock
	ss.table[OpAddEntity] = ss.handleAddEntity
	ss.table[OpAddEntityExt] = ss.handleAddEntityExt
	ss.table[OpRemoveEntity] = ss.handleRemoveEntity
	ss.table[OpAbsoluteLocation] = ss.handleAbsoluteLocation
	ss.table[OpRelativeLocation] = ss.handleRelativeLocation
	ss.table[OpRelativePosition] = ss.handleRelativePosition
	ss.table[OpRelativeOrientation] = ss.handleRelativeOrientation
	ss.table[OpHeartbeat] = ss.handleHeartbeat
	ss.table[OpAddPlayer] = ss.handleAddPlayer
	ss.table[OpRemovePlayer] = ss.handleRemovePlayer
	ss.table[OpStartLevel] = ss.handleStartLevel
	ss.table[OpLevelChunk] = ss.handleLevelChunk
	ss.table[OpFinishLevel] = ss.handleFinishLevel
	ss.onClose = ss.fireDisconnect
	return ss
}

// Run drives the frame loop until the session closes.
func (ss *ServerSession) Run() { ss.runLoop() }

func (ss *ServerSession) handleUnknown() error {
	return newErr(KindProtocolViolation, "unknown opcode")
}

func (ss *ServerSession) fireDisconnect() {
	if ss.handler != nil {
		ss.handler.Disconnect()
	}
}

func (ss *ServerSession) agent() string { return "classic-go/1" }

// --- handshake ---

// Hello sends the initial hello frame, always advertising CPE support.
func (ss *ServerSession) Hello(username, password string) {
	if !ss.alive {
		return
	}
	if ss.guard(ss.codec.writeByte(byte(OpHello))) {
		return
	}
	if ss.guard(ss.codec.writeByte(ProtocolVersion)) {
		return
	}
	if ss.guard(ss.codec.writeString(username)) {
		return
	}
	if ss.guard(ss.codec.writeString(password)) {
		return
	}
	ss.guard(ss.codec.writeByte(0x42))
}

// handleHello decodes the server's hello reply. Unlike ClientSession,
// the handler is installed here, immediately: a ServerSession has
// something to report (the world name and MOTD) whether or not CPE
// negotiation follows.
func (ss *ServerSession) handleHello() error {
	version, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	if version != ProtocolVersion {
		return newErr(KindVersionMismatch, "unsupported protocol version")
	}
	name, err := ss.codec.readString()
	if err != nil {
		return err
	}
	motd, err := ss.codec.readString()
	if err != nil {
		return err
	}
	isOperator, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	ss.operator = isOperator != 0
	ss.handler = ss.factory(ss)
	ss.handler.WorldInfo(name, motd, ss.operator)
	return nil
}

func (ss *ServerSession) onExtensionsReceived() {
	ss.applyNegotiatedEncoding()
	ss.guard(ss.writeExtInfoAndEntries(ss.agent()))
}

// --- outbound ---

// ChangeBlock reports a block placement or break.
func (ss *ServerSession) ChangeBlock(x, y, z uint16, placed bool, holding uint8) {
	if !ss.alive {
		return
	}
	if ss.guard(ss.codec.writeByte(byte(OpChangeBlock))) {
		return
	}
	if ss.guard(ss.codec.writePosition(Position{x, y, z})) {
		return
	}
	if ss.guard(ss.codec.writeByte(boolByte(placed))) {
		return
	}
	ss.guard(ss.codec.writeByte(holding))
	ss.holding = holding
}

// SetBlock is sugar for ChangeBlock(x, y, z, true, block).
func (ss *ServerSession) SetBlock(x, y, z uint16, block uint8) {
	ss.ChangeBlock(x, y, z, true, block)
}

// BreakBlock is sugar for ChangeBlock(x, y, z, false, holding).
func (ss *ServerSession) BreakBlock(x, y, z uint16, holding uint8) {
	ss.ChangeBlock(x, y, z, false, holding)
}

// absoluteLocation writes the client's own absolute-location frame,
// carrying the currently held block.
func (ss *ServerSession) absoluteLocation(loc Location) {
	if ss.guard(ss.codec.writeByte(byte(OpAbsoluteLocation))) {
		return
	}
	if ss.guard(ss.codec.writeByte(ss.holding)) {
		return
	}
	ss.guard(ss.codec.writeLocation(loc))
	ss.lastLocation = loc
	ss.haveLastLocation = true
}

// ChangeLocation reports the client's new location.
func (ss *ServerSession) ChangeLocation(loc Location) {
	if !ss.alive {
		return
	}
	ss.absoluteLocation(loc)
}

// ChangeHeld updates the held block. If HeldBlock negotiated, it also
// resends the last known location so the server observes the change
// immediately; the internal held-block value always updates.
func (ss *ServerSession) ChangeHeld(block uint8) {
	if !ss.alive {
		return
	}
	ss.holding = block
	if ss.negotiatedExtensions.has(ExtHeldBlock) && ss.haveLastLocation {
		ss.absoluteLocation(ss.lastLocation)
	}
}

// SubmitMessage fragments message into 64-byte chunks: first chunk
// partial=0, subsequent chunks partial=1.
func (ss *ServerSession) SubmitMessage(message string) {
	if !ss.alive {
		return
	}
	partial := uint8(0)
	for _, chunk := range chunkString(message, 64) {
		if ss.guard(ss.codec.writeByte(byte(OpMessage))) {
			return
		}
		if ss.guard(ss.codec.writeByte(partial)) {
			return
		}
		if ss.guard(ss.codec.writeString(chunk)) {
			return
		}
		partial = 1
	}
}

func (ss *ServerSession) guard(err error) bool {
	if err == nil {
		return false
	}
	ss.close()
	return true
}

// --- inbound ---

func (ss *ServerSession) handleDisconnect() error {
	message, err := ss.codec.readString()
	if err != nil {
		return err
	}
	ss.handler.Kick(message)
	ss.close()
	return nil
}

// handleMessage reads messageType but discards it: ServerSession only
// reports the chat text, matching the single-argument shape of a
// client's chat handler.
func (ss *ServerSession) handleMessage() error {
	if _, err := ss.codec.readByte(); err != nil {
		return err
	}
	message, err := ss.codec.readString()
	if err != nil {
		return err
	}
	ss.handler.SendMessage(message)
	return nil
}

func (ss *ServerSession) handleSetBlock() error {
	pos, err := ss.codec.readPosition()
	if err != nil {
		return err
	}
	block, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	ss.handler.SetBlock(pos.X, pos.Y, pos.Z, block)
	return nil
}

func (ss *ServerSession) handleAddEntity() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	name, err := ss.codec.readString()
	if err != nil {
		return err
	}
	loc, err := ss.codec.readLocation()
	if err != nil {
		return err
	}
	ss.handler.AddEntity(number, name, loc, name)
	return nil
}

func (ss *ServerSession) handleAddEntityExt() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	name, err := ss.codec.readString()
	if err != nil {
		return err
	}
	skin, err := ss.codec.readString()
	if err != nil {
		return err
	}
	loc, err := ss.codec.readLocation()
	if err != nil {
		return err
	}
	ss.handler.AddEntity(number, name, loc, skin)
	return nil
}

func (ss *ServerSession) handleRemoveEntity() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	ss.handler.RemoveEntity(number)
	return nil
}

func (ss *ServerSession) handleAbsoluteLocation() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	loc, err := ss.codec.readLocation()
	if err != nil {
		return err
	}
	ss.handler.MoveEntity(number, loc)
	return nil
}

func (ss *ServerSession) handleRelativeLocation() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	dx, dy, dz, err := ss.readSignedDeltas3()
	if err != nil {
		return err
	}
	dh, dp, err := ss.readUnsignedDeltas2()
	if err != nil {
		return err
	}
	ss.handler.ShiftEntity(number, dx, dy, dz, dh, dp)
	return nil
}

func (ss *ServerSession) handleRelativePosition() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	dx, dy, dz, err := ss.readSignedDeltas3()
	if err != nil {
		return err
	}
	ss.handler.ShiftEntity(number, dx, dy, dz, 0, 0)
	return nil
}

func (ss *ServerSession) handleRelativeOrientation() error {
	number, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	dh, dp, err := ss.readUnsignedDeltas2()
	if err != nil {
		return err
	}
	ss.handler.ShiftEntity(number, 0, 0, 0, dh, dp)
	return nil
}

func (ss *ServerSession) readSignedDeltas3() (dx, dy, dz int8, err error) {
	x, err := ss.codec.readByte()
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := ss.codec.readByte()
	if err != nil {
		return 0, 0, 0, err
	}
	z, err := ss.codec.readByte()
	if err != nil {
		return 0, 0, 0, err
	}
	return int8(x), int8(y), int8(z), nil
}

func (ss *ServerSession) readUnsignedDeltas2() (dh, dp uint8, err error) {
	h, err := ss.codec.readByte()
	if err != nil {
		return 0, 0, err
	}
	p, err := ss.codec.readByte()
	if err != nil {
		return 0, 0, err
	}
	return h, p, nil
}

// handleHeartbeat just records the observation time; heartbeats are not
// part of ServerSessionHandler.
func (ss *ServerSession) handleHeartbeat() error {
	ss.lastHeartbeat = time.Now()
	return nil
}

func (ss *ServerSession) handleAddPlayer() error {
	id, err := ss.codec.readShort()
	if err != nil {
		return err
	}
	name, err := ss.codec.readString()
	if err != nil {
		return err
	}
	displayName, err := ss.codec.readString()
	if err != nil {
		return err
	}
	group, err := ss.codec.readString()
	if err != nil {
		return err
	}
	rank, err := ss.codec.readByte()
	if err != nil {
		return err
	}
	ss.handler.AddPlayer(id, name, displayName, group, rank)
	return nil
}

func (ss *ServerSession) handleRemovePlayer() error {
	id, err := ss.codec.readShort()
	if err != nil {
		return err
	}
	ss.handler.RemovePlayer(id)
	return nil
}

func (ss *ServerSession) handleStartLevel() error {
	ss.level.start()
	return nil
}

func (ss *ServerSession) handleLevelChunk() error {
	length, err := ss.codec.readShort()
	if err != nil {
		return err
	}
	var buf [levelChunkSize]byte
	if err := ss.codec.readExact(buf[:]); err != nil {
		return err
	}
	if _, err := ss.codec.readByte(); err != nil {
		return err
	}
	ss.level.chunk(length, buf[:])
	return nil
}

func (ss *ServerSession) handleFinishLevel() error {
	spawn, err := ss.codec.readPosition()
	if err != nil {
		return err
	}
	data, err := ss.level.finish()
	if err != nil {
		return err
	}
	ss.handler.SendLevel(spawn, data)
	return nil
}
