package mp4

import "fmt"

// Box is a polymorphic ISO BMFF tree node: a header, a data position, a
// handler context inherited from the nearest ancestor hdlr, and an ordered
// list of owned children. Exactly one of the typed payload fields below is
// populated for a decoded leaf box; containers instead populate Children.
//
// Children preserve parse order regardless of whether their type is one
// this package has a dedicated codec for — unlike a map keyed by type, this
// ordered slice can reproduce the original sibling interleaving of known
// and unknown boxes, which the save protocol's byte-for-byte round trip
// depends on.
type Box struct {
	Header Header

	// Handler is a non-owning back-reference to the nearest ancestor hdlr
	// box. It is never released by this box and outlives it only as long
	// as the owning tree does.
	Handler *Box

	// Children holds every direct child box, in file order. Populated for
	// container types and for ilst's per-type-keyed annotation children.
	Children []*Box

	// Version and Flags hold the FullBox preamble when Header.BoxType is
	// in fullBoxes; Flags is the 24-bit value (already masked).
	Version uint8
	Flags   uint32

	// Buffer holds the raw payload for boxes with no dedicated codec
	// (free, skip, text, url, and anything this package does not
	// recognise) so they round-trip byte-for-byte.
	Buffer []byte

	// Typed payloads. Exactly one is non-nil for a leaf box decoded by a
	// registered codec.
	Ftyp   *Ftyp
	Mvhd   *Mvhd
	Tkhd   *Tkhd
	Mdhd   *Mdhd
	Vmhd   *Vmhd
	Smhd   *Smhd
	Stsz   *Stsz
	Stco   *Stco // also used for stss, same wire shape
	Co64   *Co64
	Stts   *Stts
	Ctts   *Ctts
	Stsc   *Stsc
	Dref   *DrefBox
	Elst   *Elst
	Hdlr   *Hdlr
	Mehd   *Mehd
	Trex   *Trex
	Mdat   *Mdat
	AvcC   *AvcC
	Visual *VisualSampleEntry
	Audio  *AudioSampleEntry
	Esds   *Esds
	Data   *AppleData
	Text   *AppleText // mean / name payload
}

// Type returns the box's canonical 4-byte type.
func (b *Box) Type() BoxType { return b.Header.BoxType }

// Child returns the first direct child of the given type, or nil.
func (b *Box) Child(t BoxType) *Box {
	for _, c := range b.Children {
		if c.Header.BoxType == t {
			return c
		}
	}
	return nil
}

// ChildList returns every direct child of the given type, in order.
func (b *Box) ChildList(t BoxType) []*Box {
	var out []*Box
	for _, c := range b.Children {
		if c.Header.BoxType == t {
			out = append(out, c)
		}
	}
	return out
}

// AppendChild adds a new owned child at the end of the ordered list.
func (b *Box) AppendChild(child *Box) {
	b.Children = append(b.Children, child)
}

// RemoveChild removes the first direct child equal to child by pointer
// identity. It is a no-op if child is not found.
func (b *Box) RemoveChild(child *Box) {
	for i, c := range b.Children {
		if c == child {
			b.Children = append(b.Children[:i], b.Children[i+1:]...)
			return
		}
	}
}

// Decode parses one box (and, recursively, its descendants) starting at
// position pos in buf. handler is the inherited handler context from the
// enclosing tree; it is threaded down and updated whenever an hdlr box is
// encountered among a container's own children.
func Decode(buf []byte, pos int64, fileLength int64, handler *Box) (*Box, error) {
	h, err := ReadHeader(buf, pos, fileLength)
	if err != nil {
		return nil, err
	}
	total := h.TotalBoxSize
	if total == 0 {
		total = fileLength - pos
	}
	if pos+total > int64(len(buf)) {
		return nil, fmt.Errorf("mp4: box %s at %d declares size %d past buffer end (%d)", h.BoxType, pos, total, len(buf))
	}

	box := &Box{Header: h, Handler: handler}
	dataPos := h.DataPos()
	end := pos + total

	if fullBoxes[h.BoxType] {
		if dataPos+4 > int64(len(buf)) {
			return nil, fmt.Errorf("mp4: box %s at %d: truncated FullBox preamble", h.BoxType, pos)
		}
		vf := be.Uint32(buf[dataPos:])
		box.Version = uint8(vf >> 24)
		box.Flags = vf & 0x00ffffff
		dataPos += 4
	}

	switch {
	case h.BoxType == TypeStsd:
		if err := decodeStsd(box, buf, dataPos, end, fileLength); err != nil {
			return nil, fmt.Errorf("decoding stsd at %d: %w", pos, err)
		}
	case h.BoxType == TypeAvc1:
		if err := decodeVisual(box, buf, int(dataPos), int(end), fileLength); err != nil {
			return nil, fmt.Errorf("decoding avc1 at %d: %w", pos, err)
		}
	case h.BoxType == TypeMp4a:
		if err := decodeAudio(box, buf, int(dataPos), int(end), fileLength); err != nil {
			return nil, fmt.Errorf("decoding mp4a at %d: %w", pos, err)
		}
	case h.BoxType == TypeIlst || containerSet[h.BoxType]:
		if err := decodeChildren(box, buf, dataPos, end, fileLength); err != nil {
			return nil, fmt.Errorf("in container %s at %d: %w", h.BoxType, pos, err)
		}
	default:
		if c := getCodec(h.BoxType); c != nil {
			if err := c.decode(box, NewByteBuffer(buf[dataPos:end])); err != nil {
				return nil, fmt.Errorf("decoding %s at %d: %w", h.BoxType, pos, err)
			}
		} else {
			logger.WithField("type", h.BoxType.String()).Debug("no codec for box, keeping raw payload")
			box.Buffer = append([]byte(nil), buf[dataPos:end]...)
		}
	}

	return box, nil
}

// decodeChildren decodes every direct child of a generic container box,
// in order, propagating handler context across hdlr boundaries.
func decodeChildren(box *Box, buf []byte, start, end, fileLength int64) error {
	handler := box.Handler
	ptr := start
	for end-ptr >= 8 {
		child, err := decodeOne(buf, ptr, fileLength, handler, box)
		if err != nil {
			return err
		}
		step := child.Header.TotalBoxSize
		if step == 0 {
			break
		}
		box.Children = append(box.Children, child)
		if child.Header.BoxType == TypeHdlr {
			handler = child
		}
		ptr += step
	}
	return nil
}

// decodeOne decodes a single child, materialising ilst's per-tag
// annotation boxes as ad-hoc containers (since their type is a free-form
// 4CC, not one of containerSet's fixed names) while every other type goes
// through the normal Decode path.
func decodeOne(buf []byte, pos, fileLength int64, handler *Box, parent *Box) (*Box, error) {
	if parent != nil && parent.Header.BoxType == TypeIlst {
		h, err := ReadHeader(buf, pos, fileLength)
		if err != nil {
			return nil, err
		}
		total := h.TotalBoxSize
		if total == 0 {
			total = fileLength - pos
		}
		box := &Box{Header: h, Handler: handler}
		if err := decodeChildren(box, buf, h.DataPos(), pos+total, fileLength); err != nil {
			return nil, fmt.Errorf("annotation %s at %d: %w", h.BoxType, pos, err)
		}
		return box, nil
	}
	return Decode(buf, pos, fileLength, handler)
}

// EncodingLength computes (and caches onto Header.TotalBoxSize) the total
// encoded size of the box, including its header.
func EncodingLength(box *Box) int64 {
	size := int64(8)
	if fullBoxes[box.Header.BoxType] {
		size += 4
	}

	switch {
	case box.Header.BoxType == TypeStsd:
		size += 4
		for _, c := range box.Children {
			size += EncodingLength(c)
		}
	case box.Header.BoxType == TypeAvc1:
		size += 78
		for _, c := range box.Children {
			size += EncodingLength(c)
		}
	case box.Header.BoxType == TypeMp4a:
		size += 28
		for _, c := range box.Children {
			size += EncodingLength(c)
		}
	case box.Header.BoxType == TypeIlst || containerSet[box.Header.BoxType] || isAnnotationContainer(box):
		for _, c := range box.Children {
			size += EncodingLength(c)
		}
	default:
		if c := getCodec(box.Header.BoxType); c != nil {
			size += int64(c.encodingLength(box))
		} else if box.Buffer != nil {
			size += int64(len(box.Buffer))
		}
	}

	if size >= uint32Max {
		size += 8
	}
	if box.Header.HasExtended {
		size += 16
	}

	box.Header.TotalBoxSize = size
	return size
}

// isAnnotationContainer reports whether box is an ilst-style ad-hoc
// container: it has children but is not in the fixed containerSet, meaning
// it was materialised by decodeOne's ilst special case (or built
// programmatically by the tag façade in the same shape).
func isAnnotationContainer(box *Box) bool {
	if box.Header.BoxType == TypeIlst || containerSet[box.Header.BoxType] {
		return false
	}
	return len(box.Children) > 0 && getCodec(box.Header.BoxType) == nil && box.Header.BoxType != TypeStsd
}

// Encode serialises box (and its descendants) into buf at offset, first
// recomputing sizes via EncodingLength. Returns the number of bytes
// written.
func Encode(box *Box, buf []byte, offset int) (int, error) {
	EncodingLength(box)
	return encodeBox(box, buf, offset)
}

// EncodeToBytes serialises box into a freshly allocated slice.
func EncodeToBytes(box *Box) []byte {
	n := EncodingLength(box)
	buf := make([]byte, n)
	if _, err := encodeBox(box, buf, 0); err != nil {
		logger.WithError(err).Error("encode failed")
	}
	return buf
}

func encodeBox(box *Box, buf []byte, offset int) (int, error) {
	n := box.Header.Render(buf, offset)
	ptr := offset + n

	if fullBoxes[box.Header.BoxType] {
		vf := (uint32(box.Version) << 24) | (box.Flags & 0x00ffffff)
		be.PutUint32(buf[ptr:], vf)
		ptr += 4
	}

	switch {
	case box.Header.BoxType == TypeStsd:
		be.PutUint32(buf[ptr:], uint32(len(box.Children)))
		ptr += 4
		for _, c := range box.Children {
			cn, err := encodeBox(c, buf, ptr)
			if err != nil {
				return 0, err
			}
			ptr += cn
		}
	case box.Header.BoxType == TypeAvc1:
		n, err := encodeVisual(box, buf, ptr)
		if err != nil {
			return 0, err
		}
		ptr += n
	case box.Header.BoxType == TypeMp4a:
		n, err := encodeAudio(box, buf, ptr)
		if err != nil {
			return 0, err
		}
		ptr += n
	case box.Header.BoxType == TypeIlst || containerSet[box.Header.BoxType] || isAnnotationContainer(box):
		for _, c := range box.Children {
			cn, err := encodeBox(c, buf, ptr)
			if err != nil {
				return 0, err
			}
			ptr += cn
		}
	case box.Mdat != nil && box.Mdat.Buffer == nil:
		// The payload is not held in memory; re-render only the header
		// and step over the untouched byte range.
		ptr += box.Mdat.ContentLength
	default:
		if c := getCodec(box.Header.BoxType); c != nil {
			w := NewBuilder()
			c.encode(box, w)
			copy(buf[ptr:], w.Bytes())
			ptr += w.Len()
		} else if box.Buffer != nil {
			copy(buf[ptr:], box.Buffer)
			ptr += len(box.Buffer)
		}
	}

	return ptr - offset, nil
}
