// Package transport owns the listening socket and the single client
// connection, and writes length-prefixed frames to that client.
//
// The transport is either Listening (no client) or Connected. It starts
// Listening, moves to Connected when TryAccept picks up a client, and falls
// back to Listening whenever a write fails. At most one client is served;
// further connection attempts wait in the listen backlog until the current
// client goes away.
//
// A Transport is not safe for concurrent use. It is driven from the single
// scheduler call stack.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"
	"position-bridge/internal/wire"
)

type State int

const (
	StateListening State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotConnected = errors.New("transport: no client connected")
	ErrClosed       = errors.New("transport: closed")
)

// Option configures a Transport.
type Option func(*Transport)

// DefaultProbeWait bounds the liveness read done by Probe.
const DefaultProbeWait = time.Millisecond

// WithWriteTimeout bounds every frame write. Zero, the default, means no
// deadline: a stalled client stalls the cycle.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.writeTimeout = d
	}
}

type Transport struct {
	listener     interfaces.StreamListener
	conn         net.Conn
	state        State
	writeTimeout time.Duration
	probeWait    time.Duration
}

func New(l interfaces.StreamListener, opts ...Option) *Transport {
	t := &Transport{listener: l, state: StateListening, probeWait: DefaultProbeWait}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) State() State {
	return t.state
}

func (t *Transport) Connected() bool {
	return t.state == StateConnected
}

// RemoteAddr returns the client address, or "" when no client is attached.
func (t *Transport) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}

// Addr returns the listening address.
func (t *Transport) Addr() net.Addr {
	return t.listener.Addr()
}

// TryAccept picks up a pending client while Listening. It returns true
// only when a new client was attached by this call; the caller must then
// reset its delivery baseline. While Connected it does nothing.
func (t *Transport) TryAccept(ctx context.Context) bool {
	if t.state != StateListening {
		return false
	}
	conn, err := t.listener.TryAccept()
	if err != nil {
		logger.Warn(ctx, "Accept failed, will retry next cycle", "error", err)
		return false
	}
	if conn == nil {
		return false
	}
	t.conn = conn
	t.state = StateConnected
	logger.Info(ctx, "Client connected", "remote", conn.RemoteAddr().String())
	return true
}

// Probe checks whether the attached client is still there by attempting a
// very short read. Clients never send, so EOF or a read error means the
// peer went away; any stray inbound bytes are discarded.
func (t *Transport) Probe(ctx context.Context) bool {
	if t.state != StateConnected {
		return false
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(t.probeWait))
	var buf [256]byte
	_, err := t.conn.Read(buf[:])
	_ = t.conn.SetReadDeadline(time.Time{})
	if err == nil {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	remote := t.RemoteAddr()
	t.dropClient()
	logger.Info(ctx, "Client disconnected", "remote", remote, "error", err)
	return false
}

// Send writes one frame carrying payload. Any write failure drops the
// client and returns the transport to Listening; the error is returned so
// the caller knows the payload was not delivered.
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	switch t.state {
	case StateClosed:
		return ErrClosed
	case StateListening:
		return ErrNotConnected
	}

	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := wire.WriteFrame(t.conn, payload); err != nil {
		remote := t.RemoteAddr()
		t.dropClient()
		logger.Warn(ctx, "Client disconnected", "remote", remote, "error", err)
		return fmt.Errorf("send to %s failed: %w", remote, err)
	}
	return nil
}

// Close releases the client and the listening socket. The transport cannot
// be used afterwards.
func (t *Transport) Close() error {
	if t.state == StateClosed {
		return nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.state = StateClosed
	return t.listener.Close()
}

func (t *Transport) dropClient() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.state = StateListening
}
