// Package wsbridge adapts a WebSocket byte stream into an io.ReadWriter
// so a classic.ClientSession or classic.ServerSession can run over a
// browser-originated connection, which cannot open a raw TCP socket to
// a Classic server.
package wsbridge

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Conn adapts a *websocket.Conn to io.ReadWriter, framing every Write as
// one binary WebSocket message and buffering partial reads across
// message boundaries.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	ws *websocket.Conn
	rb []byte

	closeOnce sync.Once
}

// NewConn wraps an already-established *websocket.Conn. ctx bounds the
// lifetime of every Read/Write issued through the returned Conn.
func NewConn(ctx context.Context, ws *websocket.Conn) *Conn {
	ctx2, cancel := context.WithCancel(ctx)
	return &Conn{ctx: ctx2, cancel: cancel, ws: ws}
}

// Dial opens a WebSocket connection to url and wraps it as a Conn.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ctx, ws), nil
}

// Accept upgrades an incoming HTTP request to a WebSocket and wraps it
// as a Conn. originPatterns is forwarded to websocket.AcceptOptions to
// allow cross-origin browser clients.
func Accept(w http.ResponseWriter, r *http.Request, originPatterns []string) (*Conn, error) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		return nil, err
	}
	return NewConn(r.Context(), ws), nil
}

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.rb) == 0 {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			return 0, err
		}
		if typ != websocket.MessageBinary {
			continue
		}
		c.rb = data
	}
	n := copy(p, c.rb)
	c.rb = c.rb[n:]
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.Write(c.ctx, websocket.MessageBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying WebSocket with a normal-closure status.
// Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}

func (c *Conn) LocalAddr() net.Addr  { return bridgeAddr("local") }
func (c *Conn) RemoteAddr() net.Addr { return bridgeAddr("remote") }

func (c *Conn) SetDeadline(time.Time) error      { return nil }
func (c *Conn) SetReadDeadline(time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

type bridgeAddr string

func (a bridgeAddr) Network() string { return "ws" }
func (a bridgeAddr) String() string  { return string(a) }
