package m4a_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	mp4 "github.com/tetsuo/m4atag"
	"github.com/tetsuo/m4atag/m4a"
)

// buildFile constructs a minimal but complete m4a buffer: ftyp, a moov tree
// with one trak carrying a single-entry stco, and an mdat with payload.
// Returns the file bytes.
func buildFile(t *testing.T, payload []byte, stcoPlaceholder uint32) []byte {
	t.Helper()
	return buildFileLayout(t, payload, stcoPlaceholder, false)
}

// buildFileLayout builds the same tree with mdat either last (the faststart
// layout) or between ftyp and moov (the layout iTunes itself writes).
func buildFileLayout(t *testing.T, payload []byte, stcoPlaceholder uint32, mdatBeforeMoov bool) []byte {
	t.Helper()

	ftyp := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeFtyp, HeaderSize: 8}}
	ftyp.Ftyp = &mp4.Ftyp{Brand: [4]byte{'M', '4', 'A', ' '}}

	mvhd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeMvhd, HeaderSize: 8}}
	mvhd.Mvhd = &mp4.Mvhd{TimeScale: 1000, Duration: 1000, NextTrackId: 2}

	tkhd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeTkhd, HeaderSize: 8}}
	tkhd.Tkhd = &mp4.Tkhd{TrackId: 1}

	mdhd := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeMdhd, HeaderSize: 8}}
	mdhd.Mdhd = &mp4.Mdhd{TimeScale: 44100}

	hdlr := mp4.NewHdlr(mp4.HandlerSoun)

	stco := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeStco, HeaderSize: 8}}
	stco.Stco = &mp4.Stco{Entries: []uint32{stcoPlaceholder}}

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

	moov := mp4.NewContainer(mp4.TypeMoov)
	moov.AppendChild(mvhd)
	moov.AppendChild(trak)

	mdat := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeMdat, HeaderSize: 8}}
	mdat.Mdat = &mp4.Mdat{ContentLength: len(payload)}

	boxes := []*mp4.Box{ftyp, moov, mdat}
	if mdatBeforeMoov {
		boxes = []*mp4.Box{ftyp, mdat, moov}
	}
	total := int64(0)
	for _, b := range boxes {
		total += mp4.EncodingLength(b)
	}
	buf := make([]byte, total)
	ptr := 0
	for _, b := range boxes {
		if b.Header.BoxType == mp4.TypeMdat {
			n := b.Header.Render(buf, ptr)
			ptr += n
			copy(buf[ptr:], payload)
			ptr += len(payload)
			continue
		}
		n, err := mp4.Encode(b, buf, ptr)
		require.NoError(t, err)
		ptr += n
	}
	require.Equal(t, len(buf), ptr)
	return buf
}

func TestOpenMemoryAndSaveShiftsChunkOffsets(t *testing.T) {
	payload := []byte("payload-bytes-01234567890123456789")
	buf := buildFile(t, payload, 999)

	f, err := m4a.OpenMemory(buf)
	require.NoError(t, err)

	oldStart, oldEnd := f.MdatRange()
	require.Equal(t, int64(oldEnd-oldStart), int64(len(payload)))

	// Fix the stco placeholder to the real mdat payload start now that the
	// file is built, mirroring what a real encoder would have written.
	trak := f.Moov().Child(mp4.TypeTrak)
	stco := trak.Child(mp4.TypeMdia).Child(mp4.TypeMinf).Child(mp4.TypeStbl).Child(mp4.TypeStco)
	stco.Stco.Entries[0] = uint32(oldStart)

	f.Tag.SetTitle("A Longer Title Than Before, To Force Growth")
	f.Tag.SetArtist("Some Artist")

	require.NoError(t, f.Save())

	_, newEnd := f.MdatRange()
	newStart, _ := f.MdatRange()
	require.Equal(t, newEnd-newStart, oldEnd-oldStart)

	delta := newStart - oldStart
	require.Equal(t, uint32(newStart), stco.Stco.Entries[0])
	require.NotEqual(t, int64(0), delta)
}

func TestSaveRoundTripsPayloadBytes(t *testing.T) {
	payload := []byte("0123456789ABCDEFGHIJ")
	buf := buildFile(t, payload, 0)

	f, err := m4a.OpenMemory(buf)
	require.NoError(t, err)

	f.Tag.SetTitle("New Title")

	require.NoError(t, f.Save())

	start, end := f.MdatRange()
	saved, err := f.Underlying().ReadAll()
	require.NoError(t, err)
	require.Equal(t, payload, saved[start:end])
}

func TestTagFacadeMutatesIlstBeforeSave(t *testing.T) {
	buf := buildFile(t, []byte("short"), 0)
	f, err := m4a.OpenMemory(buf)
	require.NoError(t, err)

	require.True(t, f.IsEmpty())
	f.Tag.SetAlbum("Some Album")
	require.False(t, f.IsEmpty())
	require.Equal(t, "Some Album", f.Tag.Album())
}

// TestSaveAfterMdatLeavesOffsetsUntouched saves a file whose moov follows
// mdat: the rewrite happens past the media payload, so the mdat bytes stay
// in place and no chunk offset is patched.
func TestSaveAfterMdatLeavesOffsetsUntouched(t *testing.T) {
	payload := []byte("media-payload-0123456789")
	buf := buildFileLayout(t, payload, 0, true)

	f, err := m4a.OpenMemory(buf)
	require.NoError(t, err)

	oldStart, oldEnd := f.MdatRange()
	require.Equal(t, int64(len(payload)), oldEnd-oldStart)

	trak := f.Moov().Child(mp4.TypeTrak)
	stco := trak.Child(mp4.TypeMdia).Child(mp4.TypeMinf).Child(mp4.TypeStbl).Child(mp4.TypeStco)
	stco.Stco.Entries[0] = uint32(oldStart)

	f.Tag.SetTitle("Grown Metadata Title, Long Enough To Change The Size")
	f.Tag.SetArtist("Suffix Artist")

	require.NoError(t, f.Save())

	newStart, newEnd := f.MdatRange()
	require.Equal(t, oldStart, newStart)
	require.Equal(t, oldEnd, newEnd)
	require.Equal(t, uint32(oldStart), stco.Stco.Entries[0])

	saved, err := f.Underlying().ReadAll()
	require.NoError(t, err)
	require.Equal(t, payload, saved[oldStart:oldEnd])

	reopened, err := m4a.OpenMemory(saved)
	require.NoError(t, err)
	require.Equal(t, "Grown Metadata Title, Long Enough To Change The Size", reopened.Tag.Title())
	require.Equal(t, "Suffix Artist", reopened.Tag.Artist())
}

func TestSaveErrorsWithoutMdat(t *testing.T) {
	ftyp := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeFtyp, HeaderSize: 8}}
	ftyp.Ftyp = &mp4.Ftyp{Brand: [4]byte{'M', '4', 'A', ' '}}
	moov := mp4.NewContainer(mp4.TypeMoov)

	boxes := []*mp4.Box{ftyp, moov}
	total := int64(0)
	for _, b := range boxes {
		total += mp4.EncodingLength(b)
	}
	buf := make([]byte, total)
	ptr := 0
	for _, b := range boxes {
		n, err := mp4.Encode(b, buf, ptr)
		require.NoError(t, err)
		ptr += n
	}

	f, err := m4a.OpenMemory(buf)
	require.NoError(t, err)
	require.ErrorIs(t, f.Save(), m4a.ErrNoMdat)
}
