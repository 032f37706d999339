package mp4_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	mp4 "github.com/tetsuo/m4atag"
)

// buildMinimalTree constructs a tiny but structurally complete moov
// tree: one trak with mdia/minf/stbl/stco, plus a udta/meta/ilst
// carrying one text tag.
func buildMinimalTree(stcoEntries []uint32) (ftyp, moov, mdat *mp4.Box) {
	ftyp = &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeFtyp, HeaderSize: 8}}
	ftyp.Ftyp = &mp4.Ftyp{Brand: [4]byte{'M', '4', 'A', ' '}, BrandVersion: 0}

	mvhd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeMvhd, HeaderSize: 8}}
	mvhd.Mvhd = &mp4.Mvhd{TimeScale: 1000, Duration: 5000, NextTrackId: 2}

	tkhd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeTkhd, HeaderSize: 8}}
	tkhd.Tkhd = &mp4.Tkhd{TrackId: 1}

	mdhd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeMdhd, HeaderSize: 8}}
	mdhd.Mdhd = &mp4.Mdhd{TimeScale: 44100}

	hdlr := mp4.NewHdlr(mp4.HandlerSoun)

	stco := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeStco, HeaderSize: 8}}
	stco.Stco = &mp4.Stco{Entries: append([]uint32(nil), stcoEntries...)}

	stsd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeStsd, HeaderSize: 8}}

	stbl := mp4.NewContainer(mp4.TypeStbl)
	stbl.AppendChild(stsd)
	stbl.AppendChild(stco)

	minf := mp4.NewContainer(mp4.TypeMinf)
	minf.AppendChild(stbl)

	mdia := mp4.NewContainer(mp4.TypeMdia)
	mdia.AppendChild(mdhd)
	mdia.AppendChild(hdlr)
	mdia.AppendChild(minf)

	trak := mp4.NewContainer(mp4.TypeTrak)
	trak.AppendChild(tkhd)
	trak.AppendChild(mdia)

	moov = mp4.NewContainer(mp4.TypeMoov)
	moov.AppendChild(mvhd)
	moov.AppendChild(trak)

	_, meta, ilst := mp4.FindOrCreateTagChain(moov)
	title := mp4.NewAnnotationBox(mp4.TypeNam)
	title.AppendChild(mp4.NewDataBox(mp4.ContainsText, []byte("Hello")))
	ilst.AppendChild(title)
	_ = meta

	mdat = &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeMdat, HeaderSize: 8}}
	mdat.Mdat = &mp4.Mdat{ContentLength: 16}

	return ftyp, moov, mdat
}

// concatenate encodes each top-level box in order and returns the full
// file bytes, plus the byte offset mdat's payload begins at.
func concatenate(t *testing.T, boxes []*mp4.Box, mdatPayload []byte) ([]byte, int64) {
	t.Helper()
	total := int64(0)
	for _, b := range boxes {
		total += mp4.EncodingLength(b)
	}
	buf := make([]byte, total)
	ptr := 0
	var mdatStart int64
	for _, b := range boxes {
		if b.Header.BoxType == mp4.TypeMdat {
			n := b.Header.Render(buf, ptr)
			ptr += n
			mdatStart = int64(ptr)
			copy(buf[ptr:], mdatPayload)
			ptr += len(mdatPayload)
			continue
		}
		n, err := mp4.Encode(b, buf, ptr)
		require.NoError(t, err)
		ptr += n
	}
	require.Equal(t, len(buf), ptr)
	return buf, mdatStart
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	ftyp, moov, mdat := buildMinimalTree([]uint32{100, 200, 300})
	payload := []byte("0123456789ABCDEF")
	mdat.Mdat.ContentLength = len(payload)

	buf, mdatStart := concatenate(t, []*mp4.Box{ftyp, moov, mdat}, payload)

	pos := int64(0)
	decodedFtyp, err := mp4.Decode(buf, pos, int64(len(buf)), nil)
	require.NoError(t, err)
	require.Equal(t, mp4.TypeFtyp, decodedFtyp.Header.BoxType)
	require.Equal(t, [4]byte{'M', '4', 'A', ' '}, decodedFtyp.Ftyp.Brand)
	pos += decodedFtyp.Header.TotalBoxSize

	decodedMoov, err := mp4.Decode(buf, pos, int64(len(buf)), nil)
	require.NoError(t, err)
	require.Equal(t, mp4.TypeMoov, decodedMoov.Header.BoxType)
	pos += decodedMoov.Header.TotalBoxSize

	decodedMdat, err := mp4.Decode(buf, pos, int64(len(buf)), nil)
	require.NoError(t, err)
	require.Equal(t, mp4.TypeMdat, decodedMdat.Header.BoxType)
	require.Equal(t, mdatStart, decodedMdat.Header.DataPos())
	require.Equal(t, len(payload), decodedMdat.Mdat.ContentLength)

	trak := decodedMoov.Child(mp4.TypeTrak)
	require.NotNil(t, trak)
	stbl := trak.Child(mp4.TypeMdia).Child(mp4.TypeMinf).Child(mp4.TypeStbl)
	require.NotNil(t, stbl)
	stco := stbl.Child(mp4.TypeStco)
	require.Equal(t, []uint32{100, 200, 300}, stco.Stco.Entries)

	udta := decodedMoov.Child(mp4.TypeUdta)
	require.NotNil(t, udta)
	ilst := udta.Child(mp4.TypeMeta).Child(mp4.TypeIlst)
	require.NotNil(t, ilst)
	title := ilst.Child(mp4.TypeNam)
	require.NotNil(t, title)
	require.Equal(t, "Hello", title.Child(mp4.TypeData).Data.Text())
}

// TestSizeZeroExtendsToEOF checks that a top-level box declaring size 0
// is treated as running to the end of the buffer, matching the "extends
// to end of file" rule for the last top-level box.
func TestSizeZeroExtendsToEOF(t *testing.T) {
	buf := make([]byte, 8+32)
	copy(buf[4:8], "mdat")
	for i := 8; i < len(buf); i++ {
		buf[i] = byte(i)
	}

	box, err := mp4.Decode(buf, 0, int64(len(buf)), nil)
	require.NoError(t, err)
	require.Equal(t, mp4.TypeMdat, box.Header.BoxType)
	require.Equal(t, int64(len(buf)), box.Header.TotalBoxSize)
	require.Equal(t, len(buf)-8, box.Mdat.ContentLength)
}

// TestHdlrPropagation checks that a hdlr declared inside mdia is visible
// from a descendant box's Handler back-reference.
func TestHdlrPropagation(t *testing.T) {
	_, moov, _ := buildMinimalTree(nil)
	buf, _ := concatenate(t, []*mp4.Box{moov}, nil)

	decoded, err := mp4.Decode(buf, 0, int64(len(buf)), nil)
	require.NoError(t, err)
	mdia := decoded.Child(mp4.TypeTrak).Child(mp4.TypeMdia)
	minf := mdia.Child(mp4.TypeMinf)
	require.NotNil(t, minf.Handler)
	require.Equal(t, mp4.HandlerSoun, minf.Handler.Hdlr.HandlerType)
}
