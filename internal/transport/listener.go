package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"position-bridge/internal/interfaces"
)

// DefaultAcceptWait bounds how long TryAccept waits for a pending
// connection. An already expired deadline makes the runtime poller fail
// before it even looks at the accept queue, so the wait must be positive.
const DefaultAcceptWait = time.Millisecond

// TCPListener is a StreamListener over a TCP socket.
type TCPListener struct {
	ln   *net.TCPListener
	wait time.Duration
}

var _ interfaces.StreamListener = (*TCPListener)(nil)

// Listen binds addr. Failure here is a setup failure and the caller is
// expected to refuse to start.
func Listen(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, fmt.Errorf("listener on %s is not TCP", addr)
	}
	return &TCPListener{ln: tcp, wait: DefaultAcceptWait}, nil
}

// TryAccept returns a pending connection, or (nil, nil) when none arrived
// within the accept wait.
func (l *TCPListener) TryAccept() (net.Conn, error) {
	if err := l.ln.SetDeadline(time.Now().Add(l.wait)); err != nil {
		return nil, err
	}
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	_ = conn.SetNoDelay(true)
	_ = conn.SetKeepAlive(true)
	return conn, nil
}

func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *TCPListener) Close() error {
	return l.ln.Close()
}
