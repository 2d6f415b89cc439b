package classic

// ClientSessionHandler receives upcalls from a ClientSession: the
// server-side view of one connected player. Method names describe the
// client-originated event being reported, matching §4.5/§6.
type ClientSessionHandler interface {
	// ChangeBlock reports a client's change-block action: placed is true
	// for a set, false for a break.
	ChangeBlock(x, y, z uint16, placed bool, holding uint8)
	// ChangeHeld reports a HeldBlock change embedded in an
	// absolute-location frame. Only invoked when HeldBlock negotiated.
	ChangeHeld(block uint8)
	// ChangeLocation reports the client's new location, deduplicated
	// against the last reported location.
	ChangeLocation(loc Location)
	// Click reports a player-click frame. The frame is decoded whether or
	// not PlayerClick negotiated.
	Click(button, action uint8, yaw, pitch uint16, target uint8, pos Position, targetFace uint8)
	// SubmitMessage reports a fully reassembled chat message.
	SubmitMessage(message string)
	// Disconnect fires exactly once when the session closes.
	Disconnect()
}

// ServerSessionHandler receives upcalls from a ServerSession: the
// client-side view of one connection to a remote world server.
type ServerSessionHandler interface {
	// WorldInfo reports the server's hello reply.
	WorldInfo(name, motd string, operator bool)
	// SetBlock reports an authoritative block change.
	SetBlock(x, y, z uint16, block uint8)
	// AddEntity reports a new entity, including the local spawn's own
	// initial placement (entity number 255).
	AddEntity(number uint8, name string, loc Location, skin string)
	// MoveEntity reports an entity's new absolute location.
	MoveEntity(number uint8, loc Location)
	// ShiftEntity reports a relative-location/position/orientation
	// delta; unused axes are zero.
	ShiftEntity(number uint8, dx, dy, dz int8, dh, dp uint8)
	// RemoveEntity reports an entity leaving.
	RemoveEntity(number uint8)
	// SendLevel delivers a fully reassembled, decompressed level along
	// with the spawn position.
	SendLevel(spawn Position, data []byte)
	// SendMessage reports the text of one chat frame from the server.
	// Frames are not joined: a message the server split across several
	// frames arrives as several calls.
	SendMessage(message string)
	// Kick reports a disconnect-with-reason frame; Disconnect follows.
	Kick(message string)
	// SetBlockPermission reports a permission update. ServerSession
	// registers no decoder for set-block-permission frames, so it never
	// invokes this method; such a frame closes the session as an unknown
	// opcode.
	SetBlockPermission(block uint8, create, destroy bool)
	// SetColorCode reports a palette color update. ServerSession registers
	// no decoder for set-text-color frames, so it never invokes this
	// method; such a frame closes the session as an unknown opcode.
	SetColorCode(number uint8, r, g, b, a uint8)
	// AddPlayer reports a player-list entry. The frame is decoded whether
	// or not ExtPlayerList negotiated.
	AddPlayer(id int16, name, displayName, group string, rank uint8)
	// RemovePlayer reports a player-list removal. The frame is decoded
	// whether or not ExtPlayerList negotiated.
	RemovePlayer(id int16)
	// HoldThis reports a server-forced held-block change. ServerSession
	// registers no decoder for hold-this frames, so it never invokes this
	// method; such a frame closes the session as an unknown opcode.
	HoldThis(block uint8, force bool)
	// Disconnect fires exactly once when the session closes.
	Disconnect()
}

// ClientSessionHandlerFactory is invoked exactly once per ClientSession,
// after the handshake reaches steady state.
type ClientSessionHandlerFactory func(*ClientSession) ClientSessionHandler

// ServerSessionHandlerFactory is invoked by ServerSession each time a
// hello reply from the server is decoded, before any CPE negotiation that
// follows.
type ServerSessionHandlerFactory func(*ServerSession) ServerSessionHandler
