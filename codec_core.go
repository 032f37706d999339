package mp4

import "fmt"

// Ftyp is the file-type box: major/minor brand plus compatible brands.
// The tag engine does not expose it. NewParser checks the "file must begin
// with ftyp" precondition by comparing the 4CC at offset 4; it does not
// decode this box for that check.
type Ftyp struct {
	Brand            [4]byte
	BrandVersion     uint32
	CompatibleBrands [][4]byte
}

type Mvhd struct {
	CTime             [4]byte
	MTime             [4]byte
	TimeScale         uint32
	Duration          uint32
	PreferredRate     [4]byte
	PreferredVolume   [2]byte
	Matrix            [36]byte
	PreviewTime       uint32
	PreviewDuration   uint32
	PosterTime        uint32
	SelectionTime     uint32
	SelectionDuration uint32
	CurrentTime       uint32
	NextTrackId       uint32
}

// DurationMillis returns the movie duration in milliseconds
// (duration / timescale × 1000).
func (m *Mvhd) DurationMillis() float64 {
	if m.TimeScale == 0 {
		return 0
	}
	return float64(m.Duration) / float64(m.TimeScale) * 1000
}

type Tkhd struct {
	CTime          [4]byte
	MTime          [4]byte
	TrackId        uint32
	Duration       uint32
	Layer          uint16
	AlternateGroup uint16
	Volume         uint16
	Matrix         [36]byte
	TrackWidth     uint32
	TrackHeight    uint32
}

type Mdhd struct {
	V1        bool
	CTime     [8]byte
	MTime     [8]byte
	TimeScale uint32
	Duration  uint64
	Language  uint16
	Quality   uint16
}

type Vmhd struct {
	GraphicsMode uint16
	Opcolor      [3]uint16
}

type Smhd struct {
	Balance uint16
}

type VisualSampleEntry struct {
	DataReferenceIndex uint16
	Width              uint16
	Height             uint16
	HResolution        uint32
	VResolution        uint32
	FrameCount         uint16
	CompressorName     string
	Depth              uint16
}

type AvcC struct {
	Buffer    []byte
	MimeCodec string
}

type AudioSampleEntry struct {
	DataReferenceIndex uint16
	ChannelCount       uint16
	SampleSize         uint16
	SampleRate         uint32
}

// SampleRateHz returns the integer Hz value of the 16.16 fixed-point rate.
func (a *AudioSampleEntry) SampleRateHz() uint32 {
	return a.SampleRate >> 16
}

type Esds struct {
	Buffer    []byte
	MimeCodec string
}

type Stsz struct {
	SampleSize  uint32
	SampleCount uint32
	Entries     []uint32
}

type Stco struct {
	Entries []uint32
}

type Co64 struct {
	Entries []uint64
}

type STTSEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

type Stts struct {
	Entries []STTSEntry
}

type CTTSEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

type Ctts struct {
	Entries []CTTSEntry
}

type STSCEntry struct {
	FirstChunk          uint32
	SamplesPerChunk     uint32
	SampleDescriptionId uint32
}

type Stsc struct {
	Entries []STSCEntry
}

type DrefEntry struct {
	Type [4]byte
	Buf  []byte
}

type DrefBox struct {
	Entries []DrefEntry
}

type ElstEntry struct {
	TrackDuration uint32
	MediaTime     int32
	MediaRate     [4]byte
}

type Elst struct {
	Entries []ElstEntry
}

type Hdlr struct {
	HandlerType [4]byte
	Name        string
}

type Mehd struct {
	FragmentDuration uint32
}

type Trex struct {
	TrackId                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

type Mdat struct {
	Buffer        []byte
	ContentLength int
}

// codec binds one box type to its payload translation: decode walks a
// cursor over the payload bytes, encode appends the payload to a Builder,
// and encodingLength predicts the payload size so headers can be sized
// before any byte is written.
type codec struct {
	decode         func(box *Box, r *ByteBuffer) error
	encode         func(box *Box, w *Builder)
	encodingLength func(box *Box) int
}

var codecs = map[BoxType]*codec{}

func getCodec(t BoxType) *codec {
	return codecs[t]
}

func init() {
	codecs[TypeFtyp] = &codec{decodeFtyp, encodeFtyp, encodingLengthFtyp}
	codecs[TypeMvhd] = &codec{decodeMvhd, encodeMvhd, encodingLengthMvhd}
	codecs[TypeTkhd] = &codec{decodeTkhd, encodeTkhd, encodingLengthTkhd}
	codecs[TypeMdhd] = &codec{decodeMdhd, encodeMdhd, encodingLengthMdhd}
	codecs[TypeVmhd] = &codec{decodeVmhd, encodeVmhd, encodingLengthVmhd}
	codecs[TypeSmhd] = &codec{decodeSmhd, encodeSmhd, encodingLengthSmhd}
	codecs[TypeAvcC] = &codec{decodeAvcC, encodeAvcC, encodingLengthAvcC}
	codecs[TypeEsds] = &codec{decodeEsds, encodeEsds, encodingLengthEsds}
	codecs[TypeStsz] = &codec{decodeStsz, encodeStsz, encodingLengthStsz}
	codecs[TypeStco] = &codec{decodeStco, encodeStco, encodingLengthStco}
	codecs[TypeStss] = &codec{decodeStco, encodeStco, encodingLengthStco} // same format as stco
	codecs[TypeCo64] = &codec{decodeCo64, encodeCo64, encodingLengthCo64}
	codecs[TypeStts] = &codec{decodeStts, encodeStts, encodingLengthStts}
	codecs[TypeCtts] = &codec{decodeCtts, encodeCtts, encodingLengthCtts}
	codecs[TypeStsc] = &codec{decodeStsc, encodeStsc, encodingLengthStsc}
	codecs[TypeDref] = &codec{decodeDref, encodeDref, encodingLengthDref}
	codecs[TypeElst] = &codec{decodeElst, encodeElst, encodingLengthElst}
	codecs[TypeHdlr] = &codec{decodeHdlr, encodeHdlr, encodingLengthHdlr}
	codecs[TypeMehd] = &codec{decodeMehd, encodeMehd, encodingLengthMehd}
	codecs[TypeTrex] = &codec{decodeTrex, encodeTrex, encodingLengthTrex}
	codecs[TypeMdat] = &codec{decodeMdat, encodeMdat, encodingLengthMdat}
}

// entryCount reads the leading entry count of a table box and verifies the
// remaining payload can hold that many entries of width bytes each, so the
// decode loops below can run unchecked.
func entryCount(r *ByteBuffer, name string, width int) (int, error) {
	num := int(r.U32())
	if err := r.Err(); err != nil {
		return 0, err
	}
	if r.Remaining() < num*width {
		return 0, fmt.Errorf("mp4: %s declares %d entries, %d payload bytes left", name, num, r.Remaining())
	}
	return num, nil
}

// --- ftyp ---

func decodeFtyp(box *Box, r *ByteBuffer) error {
	f := &Ftyp{}
	copy(f.Brand[:], r.Take(4))
	f.BrandVersion = r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	for r.Remaining() >= 4 {
		var brand [4]byte
		copy(brand[:], r.Take(4))
		f.CompatibleBrands = append(f.CompatibleBrands, brand)
	}
	box.Ftyp = f
	return nil
}

func encodeFtyp(box *Box, w *Builder) {
	f := box.Ftyp
	w.WriteBytes(f.Brand[:])
	w.WriteUint32(f.BrandVersion)
	for _, brand := range f.CompatibleBrands {
		w.WriteBytes(brand[:])
	}
}

func encodingLengthFtyp(box *Box) int {
	return 8 + len(box.Ftyp.CompatibleBrands)*4
}

// --- mvhd ---

func decodeMvhd(box *Box, r *ByteBuffer) error {
	m := &Mvhd{}
	copy(m.CTime[:], r.Take(4))
	copy(m.MTime[:], r.Take(4))
	m.TimeScale = r.U32()
	m.Duration = r.U32()
	copy(m.PreferredRate[:], r.Take(4))
	copy(m.PreferredVolume[:], r.Take(2))
	r.Skip(10) // reserved
	copy(m.Matrix[:], r.Take(36))
	m.PreviewTime = r.U32()
	m.PreviewDuration = r.U32()
	m.PosterTime = r.U32()
	m.SelectionTime = r.U32()
	m.SelectionDuration = r.U32()
	m.CurrentTime = r.U32()
	m.NextTrackId = r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	box.Mvhd = m
	return nil
}

func encodeMvhd(box *Box, w *Builder) {
	m := box.Mvhd
	w.WriteBytes(m.CTime[:])
	w.WriteBytes(m.MTime[:])
	w.WriteUint32(m.TimeScale)
	w.WriteUint32(m.Duration)
	w.WriteBytes(m.PreferredRate[:])
	w.WriteBytes(m.PreferredVolume[:])
	w.WriteZeros(10)
	w.WriteBytes(m.Matrix[:])
	w.WriteUint32(m.PreviewTime)
	w.WriteUint32(m.PreviewDuration)
	w.WriteUint32(m.PosterTime)
	w.WriteUint32(m.SelectionTime)
	w.WriteUint32(m.SelectionDuration)
	w.WriteUint32(m.CurrentTime)
	w.WriteUint32(m.NextTrackId)
}

func encodingLengthMvhd(_ *Box) int { return 96 }

// --- tkhd ---

func decodeTkhd(box *Box, r *ByteBuffer) error {
	t := &Tkhd{}
	copy(t.CTime[:], r.Take(4))
	copy(t.MTime[:], r.Take(4))
	t.TrackId = r.U32()
	r.Skip(4) // reserved
	t.Duration = r.U32()
	r.Skip(8) // reserved
	t.Layer = r.U16()
	t.AlternateGroup = r.U16()
	t.Volume = r.U16()
	r.Skip(2) // reserved
	copy(t.Matrix[:], r.Take(36))
	t.TrackWidth = r.U32()
	t.TrackHeight = r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	box.Tkhd = t
	return nil
}

func encodeTkhd(box *Box, w *Builder) {
	t := box.Tkhd
	w.WriteBytes(t.CTime[:])
	w.WriteBytes(t.MTime[:])
	w.WriteUint32(t.TrackId)
	w.WriteZeros(4)
	w.WriteUint32(t.Duration)
	w.WriteZeros(8)
	w.WriteUint16(t.Layer)
	w.WriteUint16(t.AlternateGroup)
	w.WriteUint16(t.Volume)
	w.WriteZeros(2)
	w.WriteBytes(t.Matrix[:])
	w.WriteUint32(t.TrackWidth)
	w.WriteUint32(t.TrackHeight)
}

func encodingLengthTkhd(_ *Box) int { return 80 }

// --- mdhd ---
//
// Version 1 widens the timestamps to 64 bits and the duration to a 48-bit
// field. The version is decided by payload length, not the FullBox version
// byte, so files with a zero version byte but wide fields still decode.

func decodeMdhd(box *Box, r *ByteBuffer) error {
	m := &Mdhd{}
	if r.Len() == 20 {
		copy(m.CTime[:4], r.Take(4))
		copy(m.MTime[:4], r.Take(4))
		m.TimeScale = r.U32()
		m.Duration = uint64(r.U32())
	} else {
		m.V1 = true
		copy(m.CTime[:], r.Take(8))
		copy(m.MTime[:], r.Take(8))
		m.TimeScale = r.U32()
		m.Duration = uint64(r.U16())<<32 | uint64(r.U32())
		r.Skip(2) // reserved
	}
	m.Language = r.U16()
	m.Quality = r.U16()
	if err := r.Err(); err != nil {
		return err
	}
	box.Mdhd = m
	return nil
}

func encodeMdhd(box *Box, w *Builder) {
	m := box.Mdhd
	if m.V1 {
		w.WriteBytes(m.CTime[:])
		w.WriteBytes(m.MTime[:])
		w.WriteUint32(m.TimeScale)
		w.WriteUint16(uint16(m.Duration >> 32))
		w.WriteUint32(uint32(m.Duration))
		w.WriteZeros(2)
	} else {
		w.WriteBytes(m.CTime[:4])
		w.WriteBytes(m.MTime[:4])
		w.WriteUint32(m.TimeScale)
		w.WriteUint32(uint32(m.Duration))
	}
	w.WriteUint16(m.Language)
	w.WriteUint16(m.Quality)
}

func encodingLengthMdhd(box *Box) int {
	if box.Mdhd.V1 {
		return 32
	}
	return 20
}

// --- vmhd ---

func decodeVmhd(box *Box, r *ByteBuffer) error {
	v := &Vmhd{}
	v.GraphicsMode = r.U16()
	v.Opcolor = [3]uint16{r.U16(), r.U16(), r.U16()}
	if err := r.Err(); err != nil {
		return err
	}
	box.Vmhd = v
	return nil
}

func encodeVmhd(box *Box, w *Builder) {
	v := box.Vmhd
	w.WriteUint16(v.GraphicsMode)
	for _, c := range v.Opcolor {
		w.WriteUint16(c)
	}
}

func encodingLengthVmhd(_ *Box) int { return 8 }

// --- smhd ---

func decodeSmhd(box *Box, r *ByteBuffer) error {
	balance := r.U16()
	if err := r.Err(); err != nil {
		return err
	}
	box.Smhd = &Smhd{Balance: balance}
	return nil
}

func encodeSmhd(box *Box, w *Builder) {
	w.WriteUint16(box.Smhd.Balance)
	w.WriteZeros(2)
}

func encodingLengthSmhd(_ *Box) int { return 4 }

// --- stsd (special-cased directly by box.go: children are sample entries) ---

func decodeStsd(box *Box, buf []byte, start, end, fileLength int64) error {
	r := NewByteBuffer(buf[start:end])
	num := int(r.U32())
	if err := r.Err(); err != nil {
		return err
	}
	ptr := start + 4
	for i := 0; i < num && end-ptr >= 8; i++ {
		entry, err := Decode(buf, ptr, fileLength, box.Handler)
		if err != nil {
			return err
		}
		box.Children = append(box.Children, entry)
		ptr += entry.Header.TotalBoxSize
	}
	return nil
}

// --- avc1 / VisualSampleEntry (special-cased: children are avcC etc.) ---

func decodeVisual(box *Box, buf []byte, start, end int, fileLength int64) error {
	r := NewByteBuffer(buf[start:end])
	v := &VisualSampleEntry{}
	r.Skip(6) // reserved
	v.DataReferenceIndex = r.U16()
	r.Skip(16) // pre-defined + reserved
	v.Width = r.U16()
	v.Height = r.U16()
	v.HResolution = r.U32()
	v.VResolution = r.U32()
	r.Skip(4) // reserved
	v.FrameCount = r.U16()
	nameLen := int(r.U8())
	if nameLen > 31 {
		nameLen = 31
	}
	v.CompressorName = string(r.Take(nameLen))
	r.Skip(31 - nameLen)
	v.Depth = r.U16()
	r.Skip(2) // pre-defined -1
	if err := r.Err(); err != nil {
		return err
	}

	ptr := int64(start + 78)
	endPos := int64(end)
	for endPos-ptr >= 8 {
		child, err := Decode(buf, ptr, fileLength, box.Handler)
		if err != nil {
			return err
		}
		box.Children = append(box.Children, child)
		ptr += child.Header.TotalBoxSize
	}
	box.Visual = v
	return nil
}

func encodeVisual(box *Box, buf []byte, offset int) (int, error) {
	v := box.Visual
	w := NewBuilder()
	w.WriteZeros(6)
	w.WriteUint16(v.DataReferenceIndex)
	w.WriteZeros(16)
	w.WriteUint16(v.Width)
	w.WriteUint16(v.Height)
	hRes := v.HResolution
	if hRes == 0 {
		hRes = 0x480000
	}
	w.WriteUint32(hRes)
	vRes := v.VResolution
	if vRes == 0 {
		vRes = 0x480000
	}
	w.WriteUint32(vRes)
	w.WriteZeros(4)
	fc := v.FrameCount
	if fc == 0 {
		fc = 1
	}
	w.WriteUint16(fc)
	name := v.CompressorName
	if len(name) > 31 {
		name = name[:31]
	}
	w.WriteUint8(byte(len(name)))
	w.WriteBytes([]byte(name))
	w.WriteZeros(31 - len(name))
	depth := v.Depth
	if depth == 0 {
		depth = 0x18
	}
	w.WriteUint16(depth)
	w.WriteUint16(0xffff)

	copy(buf[offset:], w.Bytes())
	ptr := w.Len()
	for _, child := range box.Children {
		n, err := encodeBox(child, buf, offset+ptr)
		if err != nil {
			return 0, err
		}
		ptr += n
	}
	return ptr, nil
}

// --- avcC ---

func decodeAvcC(box *Box, r *ByteBuffer) error {
	a := &AvcC{Buffer: r.Take(r.Remaining())}
	if len(a.Buffer) >= 4 {
		a.MimeCodec = fmt.Sprintf("%02x%02x%02x", a.Buffer[1], a.Buffer[2], a.Buffer[3])
	}
	box.AvcC = a
	return nil
}

func encodeAvcC(box *Box, w *Builder) {
	w.WriteBytes(box.AvcC.Buffer)
}

func encodingLengthAvcC(box *Box) int { return len(box.AvcC.Buffer) }

// --- mp4a / AudioSampleEntry (special-cased: children are esds etc.) ---

func decodeAudio(box *Box, buf []byte, start, end int, fileLength int64) error {
	r := NewByteBuffer(buf[start:end])
	a := &AudioSampleEntry{}
	r.Skip(6) // reserved
	a.DataReferenceIndex = r.U16()
	r.Skip(8) // reserved
	a.ChannelCount = r.U16()
	a.SampleSize = r.U16()
	r.Skip(4) // pre-defined + reserved
	a.SampleRate = r.U32()
	if err := r.Err(); err != nil {
		return err
	}

	ptr := int64(start + 28)
	endPos := int64(end)
	for endPos-ptr >= 8 {
		child, err := Decode(buf, ptr, fileLength, box.Handler)
		if err != nil {
			return err
		}
		box.Children = append(box.Children, child)
		ptr += child.Header.TotalBoxSize
	}
	box.Audio = a
	return nil
}

func encodeAudio(box *Box, buf []byte, offset int) (int, error) {
	a := box.Audio
	w := NewBuilder()
	w.WriteZeros(6)
	w.WriteUint16(a.DataReferenceIndex)
	w.WriteZeros(8)
	cc := a.ChannelCount
	if cc == 0 {
		cc = 2
	}
	w.WriteUint16(cc)
	ss := a.SampleSize
	if ss == 0 {
		ss = 16
	}
	w.WriteUint16(ss)
	w.WriteZeros(4)
	w.WriteUint32(a.SampleRate)

	copy(buf[offset:], w.Bytes())
	ptr := w.Len()
	for _, child := range box.Children {
		n, err := encodeBox(child, buf, offset+ptr)
		if err != nil {
			return 0, err
		}
		ptr += n
	}
	return ptr, nil
}

// --- esds ---

// MPEG-4 descriptor tags carried inside an esds payload.
const (
	tagESDescriptor        = 0x03
	tagDecoderConfig       = 0x04
	tagDecoderSpecificInfo = 0x05
)

// decodeEsds keeps the whole descriptor chain as an opaque buffer for
// byte-exact round-trips, and scans it just far enough to derive the
// RFC 6381 codec suffix ("40.2" for AAC-LC and the like).
func decodeEsds(box *Box, r *ByteBuffer) error {
	e := &Esds{Buffer: r.Take(r.Remaining())}
	if oti, audioConfig, ok := scanElementaryStream(e.Buffer); ok {
		e.MimeCodec = fmt.Sprintf("%x", oti)
		if audioConfig != 0 {
			e.MimeCodec += fmt.Sprintf(".%d", audioConfig)
		}
	}
	box.Esds = e
	return nil
}

// scanElementaryStream walks the descriptor chain of an esds payload and
// pulls out the DecoderConfig object type indication plus, when an
// AudioSpecificConfig is present, its object type. Descriptor lengths use
// the 7-bit continuation encoding; the nested descriptors of interest all
// follow their parent's fixed fields inline, so one flat pass suffices.
func scanElementaryStream(buf []byte) (oti, audioConfig byte, ok bool) {
	r := NewByteBuffer(buf)
	for r.Remaining() > 0 && r.Err() == nil {
		tag := r.U8()
		length := descriptorLength(r)
		switch tag {
		case tagESDescriptor:
			r.Skip(2) // ES_ID
			flags := r.U8()
			if flags&0x80 != 0 {
				r.Skip(2) // dependsOn_ES_ID
			}
			if flags&0x40 != 0 {
				r.Skip(int(r.U8())) // URL
			}
			if flags&0x20 != 0 {
				r.Skip(2) // OCR_ES_ID
			}
		case tagDecoderConfig:
			oti = r.U8()
			r.Skip(12) // stream type, buffer size, bitrates
		case tagDecoderSpecificInfo:
			audioConfig = (r.U8() & 0xf8) >> 3
			r.Skip(length - 1)
		default:
			r.Skip(length)
		}
	}
	return oti, audioConfig, oti != 0
}

// descriptorLength reads a descriptor's size field: up to four bytes of
// seven payload bits each, high bit set on all but the last.
func descriptorLength(r *ByteBuffer) int {
	length := 0
	for i := 0; i < 4; i++ {
		c := r.U8()
		length = length<<7 | int(c&0x7f)
		if c&0x80 == 0 {
			break
		}
	}
	return length
}

func encodeEsds(box *Box, w *Builder) {
	w.WriteBytes(box.Esds.Buffer)
}

func encodingLengthEsds(box *Box) int { return len(box.Esds.Buffer) }

// --- stsz ---

func decodeStsz(box *Box, r *ByteBuffer) error {
	s := &Stsz{}
	s.SampleSize = r.U32()
	s.SampleCount = r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	if s.SampleSize == 0 {
		n := int(s.SampleCount)
		if r.Remaining() < n*4 {
			return fmt.Errorf("mp4: stsz declares %d sizes, %d payload bytes left", n, r.Remaining())
		}
		s.Entries = make([]uint32, n)
		for i := range s.Entries {
			s.Entries[i] = r.U32()
		}
	}
	box.Stsz = s
	return nil
}

func encodeStsz(box *Box, w *Builder) {
	s := box.Stsz
	w.WriteUint32(s.SampleSize)
	w.WriteUint32(s.SampleCount)
	if s.SampleSize == 0 {
		for _, e := range s.Entries {
			w.WriteUint32(e)
		}
	}
}

func encodingLengthStsz(box *Box) int {
	if box.Stsz.SampleSize == 0 {
		return 8 + len(box.Stsz.Entries)*4
	}
	return 8
}

// --- stco (the entry count is read and trusted as the array length; the
// array size must not change across a save) ---

func decodeStco(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "stco", 4)
	if err != nil {
		return err
	}
	entries := make([]uint32, num)
	for i := range entries {
		entries[i] = r.U32()
	}
	box.Stco = &Stco{Entries: entries}
	return nil
}

func encodeStco(box *Box, w *Builder) {
	s := box.Stco
	w.WriteUint32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.WriteUint32(e)
	}
}

func encodingLengthStco(box *Box) int {
	return 4 + len(box.Stco.Entries)*4
}

// --- co64 ---

func decodeCo64(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "co64", 8)
	if err != nil {
		return err
	}
	entries := make([]uint64, num)
	for i := range entries {
		entries[i] = r.U64()
	}
	box.Co64 = &Co64{Entries: entries}
	return nil
}

func encodeCo64(box *Box, w *Builder) {
	s := box.Co64
	w.WriteUint32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.WriteUint64(e)
	}
}

func encodingLengthCo64(box *Box) int {
	return 4 + len(box.Co64.Entries)*8
}

// --- stts ---

func decodeStts(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "stts", 8)
	if err != nil {
		return err
	}
	entries := make([]STTSEntry, num)
	for i := range entries {
		entries[i].SampleCount = r.U32()
		entries[i].SampleDelta = r.U32()
	}
	box.Stts = &Stts{Entries: entries}
	return nil
}

func encodeStts(box *Box, w *Builder) {
	s := box.Stts
	w.WriteUint32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.WriteUint32(e.SampleCount)
		w.WriteUint32(e.SampleDelta)
	}
}

func encodingLengthStts(box *Box) int {
	return 4 + len(box.Stts.Entries)*8
}

// --- ctts ---

func decodeCtts(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "ctts", 8)
	if err != nil {
		return err
	}
	entries := make([]CTTSEntry, num)
	for i := range entries {
		entries[i].SampleCount = r.U32()
		entries[i].SampleOffset = int32(r.U32())
	}
	box.Ctts = &Ctts{Entries: entries}
	return nil
}

func encodeCtts(box *Box, w *Builder) {
	s := box.Ctts
	w.WriteUint32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.WriteUint32(e.SampleCount)
		w.WriteInt32(e.SampleOffset)
	}
}

func encodingLengthCtts(box *Box) int {
	return 4 + len(box.Ctts.Entries)*8
}

// --- stsc ---

func decodeStsc(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "stsc", 12)
	if err != nil {
		return err
	}
	entries := make([]STSCEntry, num)
	for i := range entries {
		entries[i].FirstChunk = r.U32()
		entries[i].SamplesPerChunk = r.U32()
		entries[i].SampleDescriptionId = r.U32()
	}
	box.Stsc = &Stsc{Entries: entries}
	return nil
}

func encodeStsc(box *Box, w *Builder) {
	s := box.Stsc
	w.WriteUint32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.WriteUint32(e.FirstChunk)
		w.WriteUint32(e.SamplesPerChunk)
		w.WriteUint32(e.SampleDescriptionId)
	}
}

func encodingLengthStsc(box *Box) int {
	return 4 + len(box.Stsc.Entries)*12
}

// --- dref ---

func decodeDref(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "dref", 8)
	if err != nil {
		return err
	}
	entries := make([]DrefEntry, 0, num)
	for i := 0; i < num; i++ {
		size := int(r.U32())
		if err := r.Err(); err != nil {
			return err
		}
		if size < 8 {
			return fmt.Errorf("mp4: dref entry %d declares size %d", i, size)
		}
		var e DrefEntry
		copy(e.Type[:], r.Take(4))
		e.Buf = r.Take(size - 8)
		if err := r.Err(); err != nil {
			return err
		}
		entries = append(entries, e)
	}
	box.Dref = &DrefBox{Entries: entries}
	return nil
}

func encodeDref(box *Box, w *Builder) {
	d := box.Dref
	w.WriteUint32(uint32(len(d.Entries)))
	for _, e := range d.Entries {
		w.WriteUint32(uint32(8 + len(e.Buf)))
		w.WriteBytes(e.Type[:])
		w.WriteBytes(e.Buf)
	}
}

func encodingLengthDref(box *Box) int {
	total := 4
	for _, e := range box.Dref.Entries {
		total += 8 + len(e.Buf)
	}
	return total
}

// --- elst ---

func decodeElst(box *Box, r *ByteBuffer) error {
	num, err := entryCount(r, "elst", 12)
	if err != nil {
		return err
	}
	entries := make([]ElstEntry, num)
	for i := range entries {
		entries[i].TrackDuration = r.U32()
		entries[i].MediaTime = int32(r.U32())
		copy(entries[i].MediaRate[:], r.Take(4))
	}
	box.Elst = &Elst{Entries: entries}
	return nil
}

func encodeElst(box *Box, w *Builder) {
	s := box.Elst
	w.WriteUint32(uint32(len(s.Entries)))
	for _, e := range s.Entries {
		w.WriteUint32(e.TrackDuration)
		w.WriteInt32(e.MediaTime)
		w.WriteBytes(e.MediaRate[:])
	}
}

func encodingLengthElst(box *Box) int {
	return 4 + len(box.Elst.Entries)*12
}

// --- hdlr ---

func decodeHdlr(box *Box, r *ByteBuffer) error {
	h := &Hdlr{}
	r.Skip(4) // pre-defined
	copy(h.HandlerType[:], r.Take(4))
	r.Skip(12) // reserved
	if err := r.Err(); err != nil {
		return err
	}
	h.Name, _ = r.ReadCString(r.Remaining())
	box.Hdlr = h
	return nil
}

func encodeHdlr(box *Box, w *Builder) {
	h := box.Hdlr
	w.WriteZeros(4)
	w.WriteBytes(h.HandlerType[:])
	w.WriteZeros(12)
	w.WriteBytes([]byte(h.Name))
	w.WriteUint8(0)
}

func encodingLengthHdlr(box *Box) int {
	return 21 + len(box.Hdlr.Name)
}

// --- mehd ---

func decodeMehd(box *Box, r *ByteBuffer) error {
	d := r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	box.Mehd = &Mehd{FragmentDuration: d}
	return nil
}

func encodeMehd(box *Box, w *Builder) {
	w.WriteUint32(box.Mehd.FragmentDuration)
}

func encodingLengthMehd(_ *Box) int { return 4 }

// --- trex ---

func decodeTrex(box *Box, r *ByteBuffer) error {
	t := &Trex{}
	t.TrackId = r.U32()
	t.DefaultSampleDescriptionIndex = r.U32()
	t.DefaultSampleDuration = r.U32()
	t.DefaultSampleSize = r.U32()
	t.DefaultSampleFlags = r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	box.Trex = t
	return nil
}

func encodeTrex(box *Box, w *Builder) {
	t := box.Trex
	w.WriteUint32(t.TrackId)
	w.WriteUint32(t.DefaultSampleDescriptionIndex)
	w.WriteUint32(t.DefaultSampleDuration)
	w.WriteUint32(t.DefaultSampleSize)
	w.WriteUint32(t.DefaultSampleFlags)
}

func encodingLengthTrex(_ *Box) int { return 20 }

// --- mdat ---
//
// Decoding never copies the payload: mdat is the "invariant range" the
// save protocol must not touch, and for audio files it can be most of the
// file's bytes. Only its length is retained unless a caller explicitly
// needs the sample bytes. On encode, a payload-less mdat is handled by
// encodeBox, which re-renders the header and steps over the byte range.

func decodeMdat(box *Box, r *ByteBuffer) error {
	box.Mdat = &Mdat{ContentLength: r.Remaining()}
	return nil
}

func encodeMdat(box *Box, w *Builder) {
	w.WriteBytes(box.Mdat.Buffer)
}

func encodingLengthMdat(box *Box) int {
	m := box.Mdat
	if m.Buffer != nil {
		return len(m.Buffer)
	}
	return m.ContentLength
}
