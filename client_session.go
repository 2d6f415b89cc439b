package classic

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// clientSessionExtensions is the set ClientSession advertises during CPE
// negotiation, grounded on the reference server's ClientConnectionHandler.
var clientSessionExtensions = []Extension{
	ExtPlayerList,
	ExtMessageTypes,
	ExtHeldBlock,
	ExtLongerMessages,
	ExtBlockPermissions,
	ExtPlayerClick,
	ExtEntityPositions,
	ExtFullCP437,
}

// ClientSession is the server-side view of one connected player: it
// emits world updates (add-entity, set-block, chat, ...) and receives the
// player's actions (change-block, location changes, chat, clicks).
type ClientSession struct {
	*session

	factory ClientSessionHandlerFactory
	handler ClientSessionHandler

	username string
	token    string

	lastHeld        uint8
	haveLastHeld    bool
	lastLocation    Location
	haveLastLocation bool
	partialMessage  []byte

	// onLevelTransfer, if set, is invoked after SendLevel completes with
	// how long the compress+chunk+write sequence took.
	onLevelTransfer func(time.Duration)
}

// NewClientSession wraps rw in a server-role session. Call Run to drive
// its frame loop; it returns once the session closes.
func NewClientSession(rw io.ReadWriter, log *zap.SugaredLogger, factory ClientSessionHandlerFactory) *ClientSession {
	cs := &ClientSession{
		session: newSession(rw, log, clientSessionExtensions),
		factory: factory,
	}
	cs.onExtensionsReceivedFn = cs.onExtensionsReceived
	cs.table = baseOpcodeTable(cs.handleUnknown, cs.handleExtInfo, cs.handleExtEntry)
	cs.table[OpHello] = cs.handleHello
	cs.table[OpChangeBlock] = cs.handleChangeBlock
	cs.table[OpAbsoluteLocation] = cs.handleLocationChange
	cs.table[OpMessage] = cs.handleChatMessage
	cs.table[OpPlayerClick] = cs.handleClick
	cs.onClose = cs.fireDisconnect
	return cs
}

// Run drives the frame loop until the session closes.
func (cs *ClientSession) Run() { cs.runLoop() }

func (cs *ClientSession) handleUnknown() error {
	return newErr(KindProtocolViolation, "unknown opcode")
}

func (cs *ClientSession) fireDisconnect() {
	if cs.handler != nil {
		cs.handler.Disconnect()
	}
}

// --- handshake ---

func (cs *ClientSession) handleHello() error {
	if cs.username != "" {
		return newErr(KindProtocolViolation, "hello sent more than once")
	}
	version, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	username, err := cs.codec.readString()
	if err != nil {
		return err
	}
	token, err := cs.codec.readString()
	if err != nil {
		return err
	}
	magic, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	if version != ProtocolVersion {
		_ = cs.writeDisconnectFrame("Unsupported protocol version")
		return newErr(KindVersionMismatch, "unsupported protocol version")
	}
	cs.username = username
	cs.token = token

	if magic == 0x42 {
		cs.vendor = vendorUnknown
		return cs.writeExtInfoAndEntries(cs.agent())
	}
	cs.onExtensionsReceived()
	return nil
}

func (cs *ClientSession) agent() string { return "classic-go/1" }

func (cs *ClientSession) onExtensionsReceived() {
	cs.applyNegotiatedEncoding()
	cs.handler = cs.factory(cs)
}

func (cs *ClientSession) writeDisconnectFrame(reason string) error {
	if err := cs.codec.writeByte(byte(OpDisconnect)); err != nil {
		return err
	}
	return cs.codec.writeString(reason)
}

// --- inbound ---

func (cs *ClientSession) handleChangeBlock() error {
	pos, err := cs.codec.readPosition()
	if err != nil {
		return err
	}
	created, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	holding, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	cs.handler.ChangeBlock(pos.X, pos.Y, pos.Z, created != 0, holding)
	return nil
}

func (cs *ClientSession) handleLocationChange() error {
	holding, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	loc, err := cs.codec.readLocation()
	if err != nil {
		return err
	}
	if cs.negotiatedExtensions.has(ExtHeldBlock) && (!cs.haveLastHeld || holding != cs.lastHeld) {
		cs.handler.ChangeHeld(holding)
		cs.lastHeld = holding
		cs.haveLastHeld = true
	}
	if !cs.haveLastLocation || loc != cs.lastLocation {
		cs.handler.ChangeLocation(loc)
		cs.lastLocation = loc
		cs.haveLastLocation = true
	}
	return nil
}

func (cs *ClientSession) handleClick() error {
	button, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	action, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	yaw, err := cs.codec.readUint16()
	if err != nil {
		return err
	}
	pitch, err := cs.codec.readUint16()
	if err != nil {
		return err
	}
	target, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	pos, err := cs.codec.readPosition()
	if err != nil {
		return err
	}
	targetFace, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	cs.handler.Click(button, action, yaw, pitch, target, pos, targetFace)
	return nil
}

func (cs *ClientSession) handleChatMessage() error {
	partial, err := cs.codec.readByte()
	if err != nil {
		return err
	}
	raw, err := cs.codec.readRawStringField()
	if err != nil {
		return err
	}
	cs.partialMessage = append(cs.partialMessage, raw...)
	if partial == 0 {
		msg, err := cs.codec.decodeStringBytes(cs.partialMessage)
		if err != nil {
			return err
		}
		cs.partialMessage = nil
		cs.handler.SubmitMessage(msg)
	}
	return nil
}

// --- outbound ---

func (cs *ClientSession) WorldInfo(name, motd string, isOperator bool) {
	if !cs.alive {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpHello))) {
		return
	}
	if cs.guard(cs.codec.writeString(name)) {
		return
	}
	if cs.guard(cs.codec.writeString(motd)) {
		return
	}
	cs.guard(cs.codec.writeByte(boolByte(isOperator)))
}

func (cs *ClientSession) AddEntity(number uint8, name string, loc Location, skin string) {
	if !cs.alive {
		return
	}
	ext := cs.negotiatedExtensions.has(ExtPlayerList)
	op := OpAddEntity
	if ext {
		op = OpAddEntityExt
	}
	if cs.guard(cs.codec.writeByte(byte(op))) {
		return
	}
	if cs.guard(cs.codec.writeByte(number)) {
		return
	}
	if cs.guard(cs.codec.writeString(name)) {
		return
	}
	if ext {
		displaySkin := skin
		if displaySkin == "" {
			displaySkin = name
		}
		if cs.guard(cs.codec.writeString(displaySkin)) {
			return
		}
	}
	cs.guard(cs.codec.writeLocation(loc))
}

// MoveEntity reports entity number's new absolute location. Entity 255
// refers to the local player; moving it updates the session's
// last-location cache (§4.5 entity-255 convention).
func (cs *ClientSession) MoveEntity(number uint8, loc Location) {
	if !cs.alive {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpAbsoluteLocation))) {
		return
	}
	if cs.guard(cs.codec.writeByte(number)) {
		return
	}
	if cs.guard(cs.codec.writeLocation(loc)) {
		return
	}
	if number == 255 {
		cs.lastLocation = loc
		cs.haveLastLocation = true
	}
}

func (cs *ClientSession) RemoveEntity(number uint8) {
	if !cs.alive {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpRemoveEntity))) {
		return
	}
	cs.guard(cs.codec.writeByte(number))
}

func (cs *ClientSession) SetBlock(x, y, z uint16, block uint8) {
	if !cs.alive {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpSetBlock))) {
		return
	}
	if cs.guard(cs.codec.writePosition(Position{x, y, z})) {
		return
	}
	cs.guard(cs.codec.writeByte(block))
}

// SendMessage fragments message into 64-byte chunks. The first chunk
// carries partial=0 and every subsequent chunk carries partial=1, so a
// LongerMessages receiver can tell where the message ends.
func (cs *ClientSession) SendMessage(message string) {
	if !cs.alive {
		return
	}
	partial := uint8(0)
	for _, chunk := range chunkString(message, 64) {
		if cs.guard(cs.codec.writeByte(byte(OpMessage))) {
			return
		}
		if cs.guard(cs.codec.writeByte(partial)) {
			return
		}
		if cs.guard(cs.codec.writeString(chunk)) {
			return
		}
		partial = 1
	}
}

// SendTypedMessage sends a single message frame carrying messageType.
// Suppressed unless MessageTypes negotiated.
func (cs *ClientSession) SendTypedMessage(messageType uint8, message string) {
	if !cs.alive || !cs.negotiatedExtensions.has(ExtMessageTypes) {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpMessage))) {
		return
	}
	if cs.guard(cs.codec.writeByte(messageType)) {
		return
	}
	cs.guard(cs.codec.writeString(message))
}

// Kick sends a disconnect-with-reason frame and closes the session.
func (cs *ClientSession) Kick(reason string) {
	if !cs.alive {
		return
	}
	cs.guard(cs.writeDisconnectFrame(reason))
	cs.close()
}

// SetColorCode is suppressed unless TextColors negotiated.
func (cs *ClientSession) SetColorCode(number, r, g, b, a uint8) {
	if !cs.alive || !cs.negotiatedExtensions.has(ExtTextColors) {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpSetTextColor))) {
		return
	}
	if cs.guard(cs.codec.writeByte(r)) {
		return
	}
	if cs.guard(cs.codec.writeByte(g)) {
		return
	}
	if cs.guard(cs.codec.writeByte(b)) {
		return
	}
	if cs.guard(cs.codec.writeByte(a)) {
		return
	}
	cs.guard(cs.codec.writeByte(number))
}

// SetBlockPermission is suppressed unless BlockPermissions negotiated.
func (cs *ClientSession) SetBlockPermission(block uint8, create, destroy bool) {
	if !cs.alive || !cs.negotiatedExtensions.has(ExtBlockPermissions) {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpSetBlockPermission))) {
		return
	}
	if cs.guard(cs.codec.writeByte(block)) {
		return
	}
	if cs.guard(cs.codec.writeByte(boolByte(create))) {
		return
	}
	cs.guard(cs.codec.writeByte(boolByte(destroy)))
}

// AddPlayer is suppressed unless ExtPlayerList negotiated.
func (cs *ClientSession) AddPlayer(id int16, name, displayName, group string, rank uint8) {
	if !cs.alive || !cs.negotiatedExtensions.has(ExtPlayerList) {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpAddPlayer))) {
		return
	}
	if cs.guard(cs.codec.writeShort(id)) {
		return
	}
	if cs.guard(cs.codec.writeString(name)) {
		return
	}
	disp := displayName
	if disp == "" {
		disp = name
	}
	if cs.guard(cs.codec.writeString(disp)) {
		return
	}
	if cs.guard(cs.codec.writeString(group)) {
		return
	}
	cs.guard(cs.codec.writeByte(rank))
}

// RemovePlayer is suppressed unless ExtPlayerList negotiated, symmetric
// with AddPlayer.
func (cs *ClientSession) RemovePlayer(id int16) {
	if !cs.alive || !cs.negotiatedExtensions.has(ExtPlayerList) {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpRemovePlayer))) {
		return
	}
	cs.guard(cs.codec.writeShort(id))
}

// HoldThis is suppressed unless HeldBlock negotiated.
func (cs *ClientSession) HoldThis(block uint8, force bool) {
	if !cs.alive || !cs.negotiatedExtensions.has(ExtHeldBlock) {
		return
	}
	if cs.guard(cs.codec.writeByte(byte(OpHoldThis))) {
		return
	}
	if cs.guard(cs.codec.writeByte(block)) {
		return
	}
	cs.guard(cs.codec.writeByte(boolByte(force)))
}

// SendLevel writes the full level-transfer sequence, observing its
// compress+chunk+write duration into onLevelTransfer if set.
func (cs *ClientSession) SendLevel(spawn Position, data []byte) {
	if !cs.alive {
		return
	}
	start := time.Now()
	writeOpcode := func(op Opcode) error { return cs.codec.writeByte(byte(op)) }
	err := transmitLevel(cs.codec, writeOpcode, spawn, data)
	if cs.onLevelTransfer != nil {
		cs.onLevelTransfer(time.Since(start))
	}
	cs.guard(err)
}

func (cs *ClientSession) guard(err error) bool {
	if err == nil {
		return false
	}
	cs.close()
	return true
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func chunkString(s string, size int) []string {
	if len(s) == 0 {
		return []string{""}
	}
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	out = append(out, s)
	return out
}
