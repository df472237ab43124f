package interfaces

import "net"

// StreamListener is the accept side of a stream socket. TryAccept must not
// block: it returns (nil, nil) when no connection is pending.
type StreamListener interface {
	TryAccept() (net.Conn, error)
	Addr() net.Addr
	Close() error
}
