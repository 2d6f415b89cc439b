package classic

import (
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClientHandler struct {
	blocks     []struct{ x, y, z uint16; placed bool; holding uint8 }
	locations  []Location
	held       []uint8
	messages   []string
	disconnect int
}

func (h *fakeClientHandler) ChangeBlock(x, y, z uint16, placed bool, holding uint8) {
	h.blocks = append(h.blocks, struct {
		x, y, z uint16
		placed  bool
		holding uint8
	}{x, y, z, placed, holding})
}
func (h *fakeClientHandler) ChangeHeld(block uint8)        { h.held = append(h.held, block) }
func (h *fakeClientHandler) ChangeLocation(loc Location)   { h.locations = append(h.locations, loc) }
func (h *fakeClientHandler) Click(uint8, uint8, uint16, uint16, uint8, Position, uint8) {}
func (h *fakeClientHandler) SubmitMessage(message string)  { h.messages = append(h.messages, message) }
func (h *fakeClientHandler) Disconnect()                   { h.disconnect++ }

func newTestLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// TestClientSessionNonCPEHandshake drives the server role through a
// hello frame with the CPE magic byte absent, and checks the handler is
// installed immediately with no negotiated extensions.
func TestClientSessionNonCPEHandshake(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	var handler *fakeClientHandler
	cs := NewClientSession(serverConn, newTestLogger(), func(s *ClientSession) ClientSessionHandler {
		handler = &fakeClientHandler{}
		return handler
	})
	go cs.Run()

	peerCodec := newCodec(peerConn, peerConn)
	writeHello(t, peerCodec, "steve", "token", 0x00)

	waitFor(t, func() bool { return handler != nil })
	if len(cs.NegotiatedExtensions()) != 0 {
		t.Fatalf("negotiated extensions = %v, want none", cs.NegotiatedExtensions())
	}
}

// TestClientSessionCPEHandshake drives the server role through a full
// ext-info/ext-entry exchange advertising ExtEntityPositions, and checks
// that the negotiated set contains it and location width switches to
// int.
func TestClientSessionCPEHandshake(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	var handler *fakeClientHandler
	cs := NewClientSession(serverConn, newTestLogger(), func(s *ClientSession) ClientSessionHandler {
		handler = &fakeClientHandler{}
		return handler
	})
	go cs.Run()

	peerCodec := newCodec(peerConn, peerConn)
	writeHello(t, peerCodec, "steve", "token", 0x42)

	// The server responds with its own ext-info/entries; drain it on a
	// background goroutine so writes below don't deadlock against
	// net.Pipe's unbuffered semantics.
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		_ = drainExtInfo(peerCodec)
	}()

	mustWrite(t, peerCodec.writeByte(byte(OpExtInfo)))
	mustWrite(t, peerCodec.writeString("test-client"))
	mustWrite(t, peerCodec.writeUint16(1))
	mustWrite(t, peerCodec.writeByte(byte(OpExtEntry)))
	mustWrite(t, peerCodec.writeString(ExtEntityPositions.Name))
	mustWrite(t, peerCodec.writeUint32(ExtEntityPositions.Version))

	<-drainDone
	waitFor(t, func() bool { return handler != nil })
	if !cs.Has(ExtEntityPositions) {
		t.Fatal("ExtEntityPositions not negotiated")
	}
	if cs.codec.locationWidth != widthInt {
		t.Fatal("location width did not switch to int after ExtEntityPositions negotiated")
	}
}

func TestClientSessionChatFragmentReassembly(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	var handler *fakeClientHandler
	cs := NewClientSession(serverConn, newTestLogger(), func(s *ClientSession) ClientSessionHandler {
		handler = &fakeClientHandler{}
		return handler
	})
	go cs.Run()

	peerCodec := newCodec(peerConn, peerConn)
	writeHello(t, peerCodec, "steve", "", 0x00)
	waitFor(t, func() bool { return handler != nil })

	// A sender fills every fragment but the last to the full 64 bytes;
	// the receiver joins the raw 64-byte fields before decoding.
	first := strings.Repeat("a", stringFieldLen)
	mustWrite(t, peerCodec.writeByte(byte(OpMessage)))
	mustWrite(t, peerCodec.writeByte(1))
	mustWrite(t, peerCodec.writeString(first))

	mustWrite(t, peerCodec.writeByte(byte(OpMessage)))
	mustWrite(t, peerCodec.writeByte(0))
	mustWrite(t, peerCodec.writeString("world"))

	want := first + "world"
	waitFor(t, func() bool { return len(handler.messages) == 1 })
	if handler.messages[0] != want {
		t.Fatalf("reassembled message = %q, want %q", handler.messages[0], want)
	}
}

func TestClientSessionRejectsVersionMismatch(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	cs := NewClientSession(serverConn, newTestLogger(), func(s *ClientSession) ClientSessionHandler {
		return &fakeClientHandler{}
	})
	go cs.Run()

	peerCodec := newCodec(peerConn, peerConn)
	mustWrite(t, peerCodec.writeByte(byte(OpHello)))
	mustWrite(t, peerCodec.writeByte(99))
	mustWrite(t, peerCodec.writeString("steve"))
	mustWrite(t, peerCodec.writeString(""))
	mustWrite(t, peerCodec.writeByte(0x00))

	if _, err := peerCodec.readByte(); err != nil {
		t.Fatalf("expected a disconnect opcode byte, got error: %v", err)
	}
	if _, err := peerCodec.readString(); err != nil {
		t.Fatalf("expected a disconnect reason, got error: %v", err)
	}

	waitFor(t, func() bool { return !cs.IsAlive() })
}

func TestClientSessionChangeBlockRoundTrip(t *testing.T) {
	serverConn, peerConn := net.Pipe()
	defer serverConn.Close()
	defer peerConn.Close()

	var handler *fakeClientHandler
	cs := NewClientSession(serverConn, newTestLogger(), func(s *ClientSession) ClientSessionHandler {
		handler = &fakeClientHandler{}
		return handler
	})
	go cs.Run()

	peerCodec := newCodec(peerConn, peerConn)
	writeHello(t, peerCodec, "steve", "", 0x00)
	waitFor(t, func() bool { return handler != nil })

	mustWrite(t, peerCodec.writeByte(byte(OpChangeBlock)))
	mustWrite(t, peerCodec.writePosition(Position{X: 1, Y: 2, Z: 3}))
	mustWrite(t, peerCodec.writeByte(1))
	mustWrite(t, peerCodec.writeByte(42))

	waitFor(t, func() bool { return len(handler.blocks) == 1 })
	got := handler.blocks[0]
	if got.x != 1 || got.y != 2 || got.z != 3 || !got.placed || got.holding != 42 {
		t.Fatalf("ChangeBlock upcall = %+v, want {1 2 3 true 42}", got)
	}
}

func writeHello(t *testing.T, c *codec, username, token string, magic byte) {
	t.Helper()
	mustWrite(t, c.writeByte(byte(OpHello)))
	mustWrite(t, c.writeByte(ProtocolVersion))
	mustWrite(t, c.writeString(username))
	mustWrite(t, c.writeString(token))
	mustWrite(t, c.writeByte(magic))
}

func mustWrite(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func drainExtInfo(c *codec) error {
	if _, err := c.readByte(); err != nil { // OpExtInfo
		return err
	}
	if _, err := c.readString(); err != nil { // agent
		return err
	}
	n, err := c.readUint16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < n; i++ {
		if _, err := c.readByte(); err != nil { // OpExtEntry
			return err
		}
		if _, err := c.readString(); err != nil {
			return err
		}
		if _, err := c.readUint32(); err != nil {
			return err
		}
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
