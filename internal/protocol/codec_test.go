package protocol

import (
	"bytes"
	"testing"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.AddU8(0x42)
	w.AddU16(0xBEEF)
	w.AddU32(0xDEADBEEF)
	w.AddString("Hero")
	w.AddBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())

	u8, err := r.GetU8()
	if err != nil || u8 != 0x42 {
		t.Fatalf("GetU8() = %v, %v; want 0x42, nil", u8, err)
	}
	u16, err := r.GetU16()
	if err != nil || u16 != 0xBEEF {
		t.Fatalf("GetU16() = %v, %v; want 0xBEEF, nil", u16, err)
	}
	u32, err := r.GetU32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("GetU32() = %v, %v; want 0xDEADBEEF, nil", u32, err)
	}
	s, err := r.GetString()
	if err != nil || s != "Hero" {
		t.Fatalf("GetString() = %q, %v; want Hero, nil", s, err)
	}
	b, err := r.GetBytes(3)
	if err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("GetBytes(3) = %v, %v; want [1 2 3], nil", b, err)
	}
	if !r.IsEmpty() {
		t.Fatalf("expected reader to be empty, %d bytes remaining", r.Remaining())
	}
}

func TestReaderPeekDoesNotConsume(t *testing.T) {
	w := NewWriter()
	w.AddU16(0x1234)
	r := NewReader(w.Bytes())

	v, ok := r.PeekU16()
	if !ok || v != 0x1234 {
		t.Fatalf("PeekU16() = %v, %v; want 0x1234, true", v, ok)
	}
	if r.Remaining() != 2 {
		t.Fatalf("Peek must not advance cursor, remaining = %d", r.Remaining())
	}
	v2, err := r.GetU16()
	if err != nil || v2 != 0x1234 {
		t.Fatalf("GetU16() after Peek = %v, %v", v2, err)
	}
}

func TestReaderShortReadIsFatal(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.GetU16(); err != ErrShortRead {
		t.Fatalf("GetU16() on 1-byte buffer = %v; want ErrShortRead", err)
	}
	if _, err := r.GetU32(); err != ErrShortRead {
		t.Fatalf("GetU32() on short buffer = %v; want ErrShortRead", err)
	}
	if _, err := r.GetString(); err != ErrShortRead {
		t.Fatalf("GetString() on short buffer = %v; want ErrShortRead", err)
	}
}

func TestGetStringPreservesNonUTF8Bytes(t *testing.T) {
	w := NewWriter()
	raw := string([]byte{0xFF, 0x00, 0x80, 'a'})
	w.AddString(raw)

	r := NewReader(w.Bytes())
	got, err := r.GetString()
	if err != nil {
		t.Fatalf("GetString() error: %v", err)
	}
	if got != raw {
		t.Fatalf("GetString() did not preserve raw bytes: got %v want %v", []byte(got), []byte(raw))
	}
}

func TestFrameRoundTrip(t *testing.T) {
	body := []byte("hello frame")
	var buf bytes.Buffer
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("ReadFrame() = %v, want %v", got, body)
	}
}

func TestWriteFrameRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	body := make([]byte, MaxFrameLen+1)
	if err := WriteFrame(&buf, body); err == nil {
		t.Fatalf("expected error for oversized frame body")
	}
}

func TestReadFrameRejectsShortHeader(t *testing.T) {
	buf := bytes.NewReader([]byte{0x01})
	if _, err := ReadFrame(buf); err == nil {
		t.Fatalf("expected error for truncated frame header")
	}
}
