package classic

import (
	"context"
	"net"

	"github.com/balookrd/mcclassic/metrics"
	"github.com/balookrd/mcclassic/registry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ServeOption configures Serve.
type ServeOption func(*serveOptions)

type serveOptions struct {
	log       *zap.SugaredLogger
	registry  *registry.Registry
	collector *metrics.Collector
}

// WithLogger sets the logger passed to every accepted ClientSession.
// Defaults to a no-op logger.
func WithLogger(log *zap.SugaredLogger) ServeOption {
	return func(o *serveOptions) { o.log = log }
}

// WithRegistry registers every accepted ClientSession with r and keeps
// its traffic counters and last-seen opcode current for as long as the
// session lives.
func WithRegistry(r *registry.Registry) ServeOption {
	return func(o *serveOptions) { o.registry = r }
}

// WithMetrics observes every accepted ClientSession's level-transfer
// duration into c.
func WithMetrics(c *metrics.Collector) ServeOption {
	return func(o *serveOptions) { o.collector = c }
}

// Serve accepts connections on ln, wrapping each as a ClientSession
// driven by factory, until ctx is cancelled or ln.Accept fails. It
// returns nil once ctx is cancelled, or the Accept error otherwise. It
// does not wait for accepted sessions' loops to exit and does not close
// their connections.
func Serve(ctx context.Context, ln net.Listener, factory ClientSessionHandlerFactory, opts ...ServeOption) error {
	o := serveOptions{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var errs error
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				errs = multierr.Append(errs, err)
				return errs
			}
		}
		cs := NewClientSession(conn, o.log, factory)
		if o.registry != nil {
			entry := o.registry.Add(cs.id, cs)
			cs.onDispatch = func(op Opcode) {
				entry.Touch(cs.codec.bytesInCount(), cs.codec.bytesOutCount(), byte(op))
			}
			prevOnClose := cs.onClose
			cs.onClose = func() {
				o.registry.Remove(cs.id)
				if prevOnClose != nil {
					prevOnClose()
				}
			}
		}
		if o.collector != nil {
			cs.onLevelTransfer = o.collector.ObserveLevelTransfer
		}
		go cs.Run()
	}
}

// ConnectOption configures Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	log *zap.SugaredLogger
}

// WithServerLogger sets the logger passed to the resulting
// ServerSession. Defaults to a no-op logger.
func WithServerLogger(log *zap.SugaredLogger) ConnectOption {
	return func(o *connectOptions) { o.log = log }
}

// Connect dials addr, wraps the connection as a ServerSession driven by
// factory, and sends the initial hello frame. The caller is responsible
// for calling Run.
func Connect(ctx context.Context, addr, username, password string, factory ServerSessionHandlerFactory, opts ...ConnectOption) (*ServerSession, error) {
	o := connectOptions{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	ss := NewServerSession(conn, o.log, factory)
	ss.Hello(username, password)
	return ss, nil
}
