package mp4

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

var be = binary.BigEndian

const uint32Max = math.MaxUint32

// Header is the decoded box preamble: size, type, and (for "uuid" boxes)
// the 16-byte extended type.
//
// Invariants: TotalBoxSize >= HeaderSize; a TotalBoxSize of 0 means "extends
// to end of file" and is only legal for the last top-level box.
type Header struct {
	Position     int64
	HeaderSize   int64
	TotalBoxSize int64
	BoxType      BoxType
	ExtendedType uuid.UUID
	HasExtended  bool
}

// DataSize is the payload length: TotalBoxSize minus HeaderSize.
func (h Header) DataSize() int64 {
	return h.TotalBoxSize - h.HeaderSize
}

// DataPos is the file offset of the first payload byte.
func (h Header) DataPos() int64 {
	return h.Position + h.HeaderSize
}

// End is the file offset one past the box, or -1 when TotalBoxSize is the
// "extends to EOF" sentinel (0) and fileLength is unknown to the caller.
func (h Header) End() int64 {
	if h.TotalBoxSize == 0 {
		return -1
	}
	return h.Position + h.TotalBoxSize
}

// ReadHeader decodes a box header at position p in buf, where buf[0] is file
// position 0 (callers pass the whole buffer, not a slice starting at p).
// fileLength resolves the size==0 "extends to EOF" case.
func ReadHeader(buf []byte, p, fileLength int64) (Header, error) {
	if p+8 > int64(len(buf)) {
		return Header{}, fmt.Errorf("mp4: truncated box header at %d", p)
	}
	b := buf[p:]
	size := be.Uint32(b[0:4])
	var rawType [4]byte
	copy(rawType[:], b[4:8])
	bt := canonicalBoxType(rawType)

	h := Header{Position: p, BoxType: bt}
	headerSize := int64(8)
	var total int64

	switch size {
	case 0:
		total = fileLength - p
	case 1:
		if p+16 > int64(len(buf)) {
			return Header{}, fmt.Errorf("mp4: truncated largesize header at %d", p)
		}
		total = int64(be.Uint64(b[8:16]))
		headerSize = 16
	default:
		total = int64(size)
	}

	if bt == TypeUUID {
		if p+headerSize+16 > int64(len(buf)) {
			return Header{}, fmt.Errorf("mp4: truncated uuid extended type at %d", p)
		}
		id, err := uuid.FromBytes(buf[p+headerSize : p+headerSize+16])
		if err != nil {
			return Header{}, fmt.Errorf("mp4: invalid uuid extended type: %w", err)
		}
		h.ExtendedType = id
		h.HasExtended = true
		headerSize += 16
	}

	if total != 0 && total < headerSize {
		return Header{}, fmt.Errorf("mp4: box %s at %d declares size %d smaller than header %d", bt, p, total, headerSize)
	}

	h.HeaderSize = headerSize
	h.TotalBoxSize = total
	return h, nil
}

// Render writes the header back into buf at offset, returning the number of
// bytes written. buf must be at least HeaderSize bytes from offset.
func (h Header) Render(buf []byte, offset int) int {
	b := buf[offset:]
	if h.TotalBoxSize >= uint32Max {
		be.PutUint32(b[0:4], 1)
	} else {
		be.PutUint32(b[0:4], uint32(h.TotalBoxSize))
	}
	copy(b[4:8], h.BoxType[:])
	n := 8
	if h.TotalBoxSize >= uint32Max {
		be.PutUint64(b[8:16], uint64(h.TotalBoxSize))
		n = 16
	}
	if h.HasExtended {
		copy(b[n:n+16], h.ExtendedType[:])
		n += 16
	}
	return n
}

// RenderedHeaderSize is the header size Render will produce for this header.
func (h Header) RenderedHeaderSize() int64 {
	n := int64(8)
	if h.TotalBoxSize >= uint32Max {
		n = 16
	}
	if h.HasExtended {
		n += 16
	}
	return n
}
