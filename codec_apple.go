package mp4

// Apple data-atom semantic flags (the FullBox Flags field), per the iTunes
// metadata convention: the 24-bit flags value classifies the payload that
// follows the reserved locale field.
const (
	ContainsData         uint32 = 0x00
	ContainsText         uint32 = 0x01
	ContainsJpegData     uint32 = 0x0D
	ContainsPngData      uint32 = 0x0E
	ContainsBmpData      uint32 = 0x1B
	ForTempo             uint32 = 0x15
	ContainsExplicitData uint32 = 0x17
)

// AppleData is the payload of an Apple `data` atom: a FullBox whose Flags
// carry the semantic tag above, followed by a 4-byte reserved locale and
// the raw bytes.
type AppleData struct {
	Payload []byte
}

// Text decodes Payload as UTF-8 text (valid for ContainsText atoms).
func (d *AppleData) Text() string {
	return string(d.Payload)
}

// AppleText is the payload of a `mean` or `name` box: Latin-1 text after
// the FullBox preamble.
type AppleText struct {
	Value string
}

func init() {
	codecs[TypeData] = &codec{decodeAppleData, encodeAppleData, encodingLengthAppleData}
	codecs[TypeMean] = &codec{decodeAppleText, encodeAppleText, encodingLengthAppleText}
	codecs[TypeName] = &codec{decodeAppleText, encodeAppleText, encodingLengthAppleText}
}

// --- data ---

func decodeAppleData(box *Box, r *ByteBuffer) error {
	if r.Remaining() < 4 {
		return nil
	}
	r.Skip(4) // reserved locale
	box.Data = &AppleData{Payload: r.Take(r.Remaining())}
	return nil
}

func encodeAppleData(box *Box, w *Builder) {
	w.WriteZeros(4)
	w.WriteBytes(box.Data.Payload)
}

func encodingLengthAppleData(box *Box) int {
	return 4 + len(box.Data.Payload)
}

// --- mean / name ---

func decodeAppleText(box *Box, r *ByteBuffer) error {
	value, err := r.ReadLatin1(r.Remaining())
	if err != nil {
		return err
	}
	box.Text = &AppleText{Value: value}
	return nil
}

func encodeAppleText(box *Box, w *Builder) {
	w.WriteLatin1(box.Text.Value)
}

func encodingLengthAppleText(box *Box) int {
	return len(utf8ToLatin1(box.Text.Value))
}

// NewAnnotationBox builds an empty ilst annotation container for tagType
// (e.g. "©nam", "trkn", "----") ready to receive data/mean/name children.
func NewAnnotationBox(tagType BoxType) *Box {
	return &Box{Header: Header{BoxType: tagType, HeaderSize: 8}}
}

// NewDataBox builds a `data` atom with the given semantic flags and
// payload, as a direct child of an annotation box.
func NewDataBox(flags uint32, payload []byte) *Box {
	b := &Box{Header: Header{BoxType: TypeData, HeaderSize: 8}}
	b.Flags = flags & 0x00ffffff
	b.Data = &AppleData{Payload: append([]byte(nil), payload...)}
	return b
}

// NewTextBox builds a `mean` or `name` box carrying Latin-1 text.
func NewTextBox(t BoxType, value string) *Box {
	b := &Box{Header: Header{BoxType: t, HeaderSize: 8}}
	b.Text = &AppleText{Value: value}
	return b
}
