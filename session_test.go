package classic

import (
	"net"
	"testing"
)

// TestSessionHandleExtEntryRejectsOverflow calls handleExtEntry directly
// with extLeft already at zero (its zero value): the decoder must
// report KindProtocolViolation rather than attempting to read a frame
// nothing advertised.
func TestSessionHandleExtEntryRejectsOverflow(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	s := newSession(serverConn, newTestLogger(), nil)

	err := s.handleExtEntry()
	if err == nil {
		t.Fatal("handleExtEntry() with extLeft == 0 returned nil, want KindProtocolViolation")
	}
	if !IsKind(err, KindProtocolViolation) {
		t.Fatalf("handleExtEntry() error = %v, want KindProtocolViolation", err)
	}
}

// TestHandleExtEntryOverflowClosesSession drives the shared ext-info/
// ext-entry decoder through the case where a peer advertises zero
// extensions and then sends an ext-entry frame anyway: extLeft is
// already zero, so the frame is a protocol violation and the session
// must close rather than silently accept it.
func TestHandleExtEntryOverflowClosesSession(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	cs := NewClientSession(serverConn, newTestLogger(), func(s *ClientSession) ClientSessionHandler {
		return &fakeClientHandler{}
	})
	go cs.Run()

	peerCodec := newCodec(peerConn, peerConn)
	writeHello(t, peerCodec, "steve", "", 0x42)

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		_ = drainExtInfo(peerCodec)
	}()

	mustWrite(t, peerCodec.writeByte(byte(OpExtInfo)))
	mustWrite(t, peerCodec.writeString("test-client"))
	mustWrite(t, peerCodec.writeUint16(0))
	<-drainDone

	mustWrite(t, peerCodec.writeByte(byte(OpExtEntry)))
	// The decoder rejects the frame on its opcode and never reads the
	// payload. net.Pipe does not buffer, so the payload is written in the
	// background; the write returns once the pipe is closed.
	go func() {
		_ = peerCodec.writeString("bogus")
		_ = peerCodec.writeUint32(1)
	}()

	waitFor(t, func() bool { return !cs.IsAlive() })
}
