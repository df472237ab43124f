// Package client is the receiving end of the bridge stream: it dials the
// broadcaster and decodes one Message per frame.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"position-bridge/internal/logger"
	"position-bridge/internal/wire"
)

type Conn struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to a broadcaster at addr.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	logger.Debug(ctx, "Connected to bridge", "addr", addr, "local", conn.LocalAddr().String())
	return &Conn{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Next blocks until a frame arrives or ctx is done. io.EOF means the
// broadcaster closed the stream between frames.
func (c *Conn) Next(ctx context.Context) (*wire.Message, int, error) {
	_ = c.conn.SetReadDeadline(time.Time{})

	// a past deadline unblocks the pending read once ctx is done
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	payload, err := wire.ReadFrame(c.r)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, err
	}
	m, err := wire.Decode(payload)
	if err != nil {
		return nil, len(payload), err
	}
	return m, len(payload), nil
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
