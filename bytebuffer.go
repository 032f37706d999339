package mp4

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ByteBuffer is an owned byte sequence with typed big-endian readers and a
// cursor. The box codecs decode their payloads through it, and it is the
// type handed to callers that need to read raw box payloads directly
// instead of going through a typed codec.
type ByteBuffer struct {
	buf      []byte
	pos      int
	readOnly bool
	err      error
}

// NewByteBuffer wraps buf without copying it.
func NewByteBuffer(buf []byte) *ByteBuffer {
	return &ByteBuffer{buf: buf}
}

// ReadOnly returns a handle over the same storage that rejects mutation.
// The guard lives at the API, not the backing array.
func (b *ByteBuffer) ReadOnly() *ByteBuffer {
	return &ByteBuffer{buf: b.buf, pos: b.pos, readOnly: true}
}

func (b *ByteBuffer) Len() int   { return len(b.buf) }
func (b *ByteBuffer) Tell() int  { return b.pos }
func (b *ByteBuffer) Bytes() []byte { return b.buf }

func (b *ByteBuffer) Seek(pos int) error {
	if pos < 0 || pos > len(b.buf) {
		return fmt.Errorf("mp4: seek %d out of range [0,%d]", pos, len(b.buf))
	}
	b.pos = pos
	return nil
}

func (b *ByteBuffer) require(n int) error {
	if b.pos+n > len(b.buf) {
		err := fmt.Errorf("mp4: short read: need %d bytes at %d, have %d", n, b.pos, len(b.buf))
		if b.err == nil {
			b.err = err
		}
		return err
	}
	return nil
}

// Err returns the first short read recorded by any read on this buffer.
func (b *ByteBuffer) Err() error { return b.err }

// Remaining reports the number of unread bytes past the cursor.
func (b *ByteBuffer) Remaining() int { return len(b.buf) - b.pos }

// The single-letter readers below decode sequentially without per-call
// error handling: a short read records the error on the buffer and yields
// the zero value, so a box codec can walk a whole fixed layout and check
// Err once at the end.

func (b *ByteBuffer) U8() byte {
	if b.require(1) != nil {
		return 0
	}
	v := b.buf[b.pos]
	b.pos++
	return v
}

func (b *ByteBuffer) U16() uint16 {
	v, _ := b.ReadUint16()
	return v
}

func (b *ByteBuffer) U32() uint32 {
	v, _ := b.ReadUint32()
	return v
}

func (b *ByteBuffer) U64() uint64 {
	v, _ := b.ReadUint64()
	return v
}

// Take returns a copy of the next n bytes, or nil on short read.
func (b *ByteBuffer) Take(n int) []byte {
	v, _ := b.ReadBytes(n)
	return v
}

// Skip advances the cursor past n bytes. Negative n is a no-op.
func (b *ByteBuffer) Skip(n int) {
	if n <= 0 || b.require(n) != nil {
		return
	}
	b.pos += n
}

func (b *ByteBuffer) ReadUint16() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := be.Uint16(b.buf[b.pos:])
	b.pos += 2
	return v, nil
}

func (b *ByteBuffer) ReadUint32() (uint32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := be.Uint32(b.buf[b.pos:])
	b.pos += 4
	return v, nil
}

func (b *ByteBuffer) ReadUint64() (uint64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := be.Uint64(b.buf[b.pos:])
	b.pos += 8
	return v, nil
}

func (b *ByteBuffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

// ReadBytes returns a copy of the next n bytes.
func (b *ByteBuffer) ReadBytes(n int) ([]byte, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.buf[b.pos:b.pos+n])
	b.pos += n
	return out, nil
}

// ReadLatin1 reads n bytes and decodes them as Latin-1 (ISO-8859-1).
func (b *ByteBuffer) ReadLatin1(n int) (string, error) {
	raw, err := b.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return latin1ToUTF8(raw), nil
}

// ReadUTF8 reads n bytes and validates them as UTF-8.
func (b *ByteBuffer) ReadUTF8(n int) (string, error) {
	raw, err := b.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("mp4: invalid utf-8 text field")
	}
	return string(raw), nil
}

// ReadCString reads a NUL-terminated (or end-of-buffer-terminated) string
// starting at the cursor, advancing past the terminator if present.
func (b *ByteBuffer) ReadCString(limit int) (string, error) {
	end := b.pos + limit
	if end > len(b.buf) {
		end = len(b.buf)
	}
	i := b.pos
	for i < end && b.buf[i] != 0 {
		i++
	}
	s := string(b.buf[b.pos:i])
	if i < end {
		i++
	}
	b.pos = i
	return s, nil
}

// Slice returns a copy of the byte range [offset, offset+length).
func (b *ByteBuffer) Slice(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(b.buf) {
		return nil, fmt.Errorf("mp4: slice [%d,%d) out of range", offset, offset+length)
	}
	out := make([]byte, length)
	copy(out, b.buf[offset:offset+length])
	return out, nil
}

// ErrReadOnly is returned by ByteBuffer mutation methods on a handle
// produced by ReadOnly.
var ErrReadOnly = errors.New("mp4: byte buffer is read-only")

// Concat appends other's content to this buffer.
func (b *ByteBuffer) Concat(other *ByteBuffer) error {
	if b.readOnly {
		return ErrReadOnly
	}
	b.buf = append(b.buf, other.buf...)
	return nil
}

// Insert splices data into the buffer at position at, replacing replaceLen
// existing bytes (0 for a pure insert).
func (b *ByteBuffer) Insert(data []byte, at, replaceLen int) error {
	if b.readOnly {
		return ErrReadOnly
	}
	if at < 0 || replaceLen < 0 || at+replaceLen > len(b.buf) {
		return fmt.Errorf("mp4: insert at %d,%d out of range (len %d)", at, replaceLen, len(b.buf))
	}
	tail := append([]byte(nil), b.buf[at+replaceLen:]...)
	b.buf = append(b.buf[:at], data...)
	b.buf = append(b.buf, tail...)
	return nil
}

// Equal compares two buffers by content.
func (b *ByteBuffer) Equal(other *ByteBuffer) bool {
	if other == nil || len(b.buf) != len(other.buf) {
		return false
	}
	for i := range b.buf {
		if b.buf[i] != other.buf[i] {
			return false
		}
	}
	return true
}

// Builder accumulates bytes for a box payload being serialised. It is the
// write-side counterpart to ByteBuffer's cursor reads.
type Builder struct {
	buf []byte
}

func NewBuilder() *Builder { return &Builder{} }

func (w *Builder) Len() int      { return len(w.buf) }
func (w *Builder) Bytes() []byte { return w.buf }

func (w *Builder) WriteUint16(v uint16) {
	var tmp [2]byte
	be.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Builder) WriteUint32(v uint32) {
	var tmp [4]byte
	be.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Builder) WriteUint64(v uint64) {
	var tmp [8]byte
	be.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Builder) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Builder) WriteUint8(v byte) { w.buf = append(w.buf, v) }

func (w *Builder) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteZeros appends n zero bytes (reserved regions of fixed box layouts).
func (w *Builder) WriteZeros(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

// WriteLatin1 appends s encoded as Latin-1, without a terminator.
func (w *Builder) WriteLatin1(s string) {
	w.buf = append(w.buf, utf8ToLatin1(s)...)
}

// Insert splices b into the builder's buffer at position, replacing
// replaceLen existing bytes (0 for a pure insert).
func (w *Builder) Insert(b []byte, at, replaceLen int) error {
	if at < 0 || at+replaceLen > len(w.buf) {
		return fmt.Errorf("mp4: insert at %d,%d out of range (len %d)", at, replaceLen, len(w.buf))
	}
	tail := append([]byte(nil), w.buf[at+replaceLen:]...)
	w.buf = append(w.buf[:at], b...)
	w.buf = append(w.buf, tail...)
	return nil
}

func latin1ToUTF8(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, c := range raw {
		runes[i] = rune(c)
	}
	return string(runes)
}

func utf8ToLatin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}
