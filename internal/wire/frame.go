package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the length of the big-endian payload length prefix.
const HeaderSize = 4

// MaxFrameSize caps a single payload. Readers reject larger prefixes so a
// corrupted stream cannot trigger a huge allocation.
const MaxFrameSize = 16 << 20

var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// EncodeLength returns the 4-byte big-endian prefix for a payload of n bytes.
func EncodeLength(n int) ([HeaderSize]byte, error) {
	var h [HeaderSize]byte
	if n < 0 || n > MaxFrameSize {
		return h, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	binary.BigEndian.PutUint32(h[:], uint32(n))
	return h, nil
}

// DecodeLength is the inverse of EncodeLength.
func DecodeLength(h [HeaderSize]byte) uint32 {
	return binary.BigEndian.Uint32(h[:])
}

// AppendFrame appends the prefix and payload to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	h, err := EncodeLength(len(payload))
	if err != nil {
		return dst, err
	}
	dst = append(dst, h[:]...)
	return append(dst, payload...), nil
}

// WriteFrame writes one frame to w as a single write so prefix and payload
// can never be interleaved with anything else on the stream.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := AppendFrame(make([]byte, 0, HeaderSize+len(payload)), payload)
	if err != nil {
		return err
	}
	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadFrame reads exactly one frame from r and returns its payload.
// A clean end of stream before the prefix returns io.EOF; a stream that
// ends inside a frame returns io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var h [HeaderSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}
	n := DecodeLength(h)
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: prefix says %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
