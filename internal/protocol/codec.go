// Package protocol implements the wire codec shared by the login and
// world servers: length-prefixed framing, little-endian primitive
// reads/writes, and the peek-without-consume semantics the protocol
// decoders need to disambiguate variable-shaped packets.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// ErrShortRead is returned by every Reader getter when the requested
// field would run past the end of the buffer. Per spec, this is a
// fatal per-connection error: the caller closes the connection without
// a response and never acts on a partially decoded value.
var ErrShortRead = errors.New("protocol: read past end of packet")

// MaxFrameLen is the largest body a single frame may carry. Anything
// larger is a framing error.
const MaxFrameLen = 65535

// Reader wraps an immutable byte slice with a read cursor. It never
// mutates or retains a copy of data beyond holding the slice header.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// IsEmpty reports whether every byte has been consumed.
func (r *Reader) IsEmpty() bool { return r.off >= len(r.data) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) PeekU8() (byte, bool) {
	if r.off >= len(r.data) {
		return 0, false
	}
	return r.data[r.off], true
}

func (r *Reader) PeekU16() (uint16, bool) {
	if r.off+2 > len(r.data) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.data[r.off:]), true
}

func (r *Reader) PeekU32() (uint32, bool) {
	if r.off+4 > len(r.data) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(r.data[r.off:]), true
}

func (r *Reader) GetU8() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrShortRead
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *Reader) GetU16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, ErrShortRead
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) GetU32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, ErrShortRead
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// GetBytes reads n raw bytes. The returned slice is a copy; the caller
// may hold it past the lifetime of the frame it came from.
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, ErrShortRead
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b, nil
}

// GetString reads a u16 length prefix followed by that many raw bytes.
// Per spec.md §4.1, strings are not required to be valid UTF-8: the
// bytes are returned as-is, wrapped in a Go string only as a byte
// container. Callers that need to display one use BestEffortDisplay.
func (r *Reader) GetString() (string, error) {
	n, err := r.GetU16()
	if err != nil {
		return "", err
	}
	b, err := r.GetBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer is an appendable byte vector for building an outgoing packet
// body. The length prefix is added separately at send time by WriteFrame.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) AddU8(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) AddU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) AddU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// AddString writes a u16 length prefix followed by the raw bytes of s.
// No transcoding is performed; s is treated as an opaque byte sequence.
func (w *Writer) AddString(s string) {
	w.AddU16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) AddBytes(b []byte) { w.buf = append(w.buf, b...) }

// Bytes returns the accumulated body (no length prefix).
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// ReadFrame reads one length-prefixed frame: a u16 LE body length,
// exclusive of the length field itself, followed by that many bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.LittleEndian.Uint16(header[:])
	if n > MaxFrameLen {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", n, MaxFrameLen)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body (%d bytes): %w", n, err)
	}
	return body, nil
}

// WriteFrame writes one length-prefixed frame for body.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameLen {
		return fmt.Errorf("frame body length %d exceeds maximum %d", len(body), MaxFrameLen)
	}
	var header [2]byte
	binary.LittleEndian.PutUint16(header[:], uint16(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// BestEffortDisplay renders a possibly non-UTF-8 byte string for logs,
// using the ISO-8859-1 codec to map every byte 1:1 onto a valid rune.
// This is a logging aid only; it never touches wire semantics
// (GetString/AddString never transcode).
func BestEffortDisplay(s string) string {
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
