package classic

import (
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// vendor sentinels, per spec §3.
const (
	vendorNone    = "(no vendor)"
	vendorUnknown = "(unknown)"
)

// session holds the state shared by ClientSession and ServerSession: the
// primitive codec, liveness flag, CPE negotiation bookkeeping, and the
// opcode dispatch loop. Role-specific state (username, held block,
// partial-message buffer, ...) lives on the embedding type.
type session struct {
	id  uuid.UUID
	log *zap.SugaredLogger

	codec *codec

	alive bool

	vendor               string
	advertisedExtensions *extensionSet
	negotiatedExtensions *extensionSet
	extLeft              uint16

	table opcodeTable

	// currentOpcode is set the instant an opcode byte is read, before its
	// handler runs; lastOpcode is updated once the handler returns
	// successfully, per §4.2's dispatch ordering.
	currentOpcode Opcode
	lastOpcode    Opcode

	// onClose is invoked exactly once, when the session transitions from
	// alive to not-alive, so the embedding role can fire its handler's
	// disconnect upcall and deregister from any host-side registry.
	onClose func()
	closed  bool

	// onDispatch, if set, is invoked after every successfully dispatched
	// opcode with the opcode just handled. Used to feed a host-side
	// registry entry's traffic counters without session.go knowing
	// anything about the registry.
	onDispatch func(Opcode)

	// onExtensionsReceivedFn is set by ClientSession/ServerSession to
	// flip text/location encoding from the negotiated set and run the
	// role-specific handshake tail once the peer's ext-entry countdown
	// reaches zero.
	onExtensionsReceivedFn func()
}

func newSession(rw io.ReadWriter, log *zap.SugaredLogger, advertised []Extension) *session {
	return &session{
		id:                   uuid.New(),
		log:                  log,
		codec:                newCodec(rw, rw),
		alive:                true,
		vendor:               vendorNone,
		advertisedExtensions: newExtensionSet(advertised...),
		negotiatedExtensions: newExtensionSet(),
	}
}

// IsAlive reports whether the session is still exchanging frames.
func (s *session) IsAlive() bool { return s.alive }

// Vendor returns the peer's advertised agent string once ext-info
// arrives. Before that it is the "(no vendor)" sentinel, except that a
// ClientSession reports "(unknown)" between a CPE hello and the client's
// ext-info.
func (s *session) Vendor() string { return s.vendor }

// NegotiatedExtensions returns the extensions the peer listed in its
// ext-entry frames, in arrival order. The list is not intersected with
// this endpoint's advertised set. It is empty if CPE never ran, and grows
// by one entry per ext-entry frame while negotiation is in progress.
func (s *session) NegotiatedExtensions() []Extension { return s.negotiatedExtensions.list() }

// Has reports whether ext is in the negotiated extension set.
func (s *session) Has(ext Extension) bool { return s.negotiatedExtensions.has(ext) }

// close marks the session dead and fires onClose exactly once. It never
// returns an error: outbound calls on a dead session are silent no-ops,
// never a propagated failure (§7).
func (s *session) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.alive = false
	if s.onClose != nil {
		s.onClose()
	}
}

// runLoop pulls one opcode byte, dispatches to its handler, and repeats
// until the session dies. EOF, reset, and any decode failure close the
// session without propagating an error to the caller: the frame loop's
// job is to run until the connection ends.
func (s *session) runLoop() {
	for s.alive {
		opcodeByte, err := s.codec.readByte()
		if err != nil {
			s.close()
			return
		}
		s.currentOpcode = Opcode(opcodeByte)
		if err := s.table[s.currentOpcode](); err != nil {
			s.close()
			return
		}
		s.lastOpcode = s.currentOpcode
		if s.onDispatch != nil {
			s.onDispatch(s.lastOpcode)
		}
	}
}

// writeExtInfoAndEntries writes this endpoint's ext-info frame followed
// by one ext-entry per advertised extension.
func (s *session) writeExtInfoAndEntries(agent string) error {
	if err := s.codec.writeByte(byte(OpExtInfo)); err != nil {
		return err
	}
	if err := s.codec.writeString(agent); err != nil {
		return err
	}
	exts := s.advertisedExtensions.list()
	if err := s.codec.writeShort(int16(len(exts))); err != nil {
		return err
	}
	for _, ext := range exts {
		if err := s.codec.writeByte(byte(OpExtEntry)); err != nil {
			return err
		}
		if err := s.codec.writeString(ext.Name); err != nil {
			return err
		}
		if err := s.codec.writeUint32(ext.Version); err != nil {
			return err
		}
	}
	return nil
}

// handleExtInfo implements the shared ext-info decoder (opcode 0x10):
// records the peer's vendor string and the number of ext-entry frames
// still expected.
func (s *session) handleExtInfo() error {
	vendor, err := s.codec.readString()
	if err != nil {
		return err
	}
	extLeft, err := s.codec.readUint16()
	if err != nil {
		return err
	}
	s.vendor = vendor
	s.extLeft = extLeft
	if s.extLeft == 0 {
		s.onExtensionsReceived()
	}
	return nil
}

// handleExtEntry implements the shared ext-entry decoder (opcode 0x11).
// Receiving an entry once extLeft has already reached zero is a protocol
// violation.
func (s *session) handleExtEntry() error {
	if s.extLeft == 0 {
		return newErr(KindProtocolViolation, "ext-entry received with no entries outstanding")
	}
	name, err := s.codec.readString()
	if err != nil {
		return err
	}
	version, err := s.codec.readUint32()
	if err != nil {
		return err
	}
	s.negotiatedExtensions.add(Extension{Name: name, Version: version})
	s.extLeft--
	if s.extLeft == 0 {
		s.onExtensionsReceived()
	}
	return nil
}

func (s *session) onExtensionsReceived() {
	if s.onExtensionsReceivedFn != nil {
		s.onExtensionsReceivedFn()
	}
}

// applyNegotiatedEncoding switches textEncoding/locationWidth based on
// which extensions are in the negotiated set, per spec §4.3(b)(c).
func (s *session) applyNegotiatedEncoding() {
	if s.negotiatedExtensions.has(ExtEntityPositions) {
		s.codec.locationWidth = widthInt
	}
	if s.negotiatedExtensions.has(ExtFullCP437) {
		s.codec.textEncoding = encodingCP437
	}
}
