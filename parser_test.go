package mp4_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	mp4 "github.com/tetsuo/m4atag"
)

func buildFileBytes(t *testing.T, payload []byte) ([]byte, int64) {
	t.Helper()
	ftyp, moov, mdat := buildMinimalTree([]uint32{100})
	mdat.Mdat.ContentLength = len(payload)
	return concatenate(t, []*mp4.Box{ftyp, moov, mdat}, payload)
}

func TestNewParserRequiresFtyp(t *testing.T) {
	buf := make([]byte, 16)
	buf[3] = 16
	copy(buf[4:8], "free")

	_, err := mp4.NewParser(mp4.NewMemoryFile(buf))
	require.ErrorIs(t, err, mp4.ErrNoFtyp)

	_, err = mp4.NewParser(mp4.NewMemoryFile(nil))
	require.ErrorIs(t, err, mp4.ErrNoFtyp)
}

func TestParseBoxHeaders(t *testing.T) {
	payload := []byte("0123456789")
	buf, mdatStart := buildFileBytes(t, payload)

	f := mp4.NewMemoryFile(buf)
	p, err := mp4.NewParser(f)
	require.NoError(t, err)

	p.ParseBoxHeaders()
	require.NoError(t, f.Corrupt())
	require.Len(t, p.TopLevel, 3)
	require.Equal(t, mp4.TypeFtyp, p.TopLevel[0].Header.BoxType)
	require.Equal(t, mp4.TypeMoov, p.TopLevel[1].Header.BoxType)
	require.Equal(t, mp4.TypeMdat, p.TopLevel[2].Header.BoxType)

	require.Equal(t, mdatStart, p.MdatStart)
	require.Equal(t, mdatStart+int64(len(payload)), p.MdatEnd)

	// Header-only traversal leaves payloads undecoded.
	require.Nil(t, p.TopLevel[1].Children)
}

func TestParseTagCollectsUdtaWithParentTree(t *testing.T) {
	buf, _ := buildFileBytes(t, []byte("x"))

	f := mp4.NewMemoryFile(buf)
	p, err := mp4.NewParser(f)
	require.NoError(t, err)

	p.ParseTag()
	require.NoError(t, f.Corrupt())
	require.NotNil(t, p.Moov)
	require.Len(t, p.Udtas, 1)

	entry := p.Udtas[0]
	require.Equal(t, mp4.TypeUdta, entry.Udta.Header.BoxType)
	require.Len(t, entry.ParentTree, 1)
	require.Equal(t, mp4.TypeMoov, entry.ParentTree[0].Header.BoxType)

	ilst := entry.Udta.Child(mp4.TypeMeta).Child(mp4.TypeIlst)
	require.NotNil(t, ilst)
	require.Equal(t, "Hello", ilst.Child(mp4.TypeNam).Child(mp4.TypeData).Data.Text())
}

func TestParseTagAndProperties(t *testing.T) {
	buf, _ := buildFileBytes(t, []byte("x"))

	f := mp4.NewMemoryFile(buf)
	p, err := mp4.NewParser(f)
	require.NoError(t, err)

	p.ParseTagAndProperties()
	require.NoError(t, f.Corrupt())
	require.NotNil(t, p.Mvhd)
	require.Equal(t, uint32(1000), p.Mvhd.Mvhd.TimeScale)
	require.NotNil(t, p.Hdlr)
	require.Equal(t, mp4.HandlerSoun, p.Hdlr.Hdlr.HandlerType)
	require.NotNil(t, p.Stsd)
}

func TestParseChunkOffsets(t *testing.T) {
	buf, _ := buildFileBytes(t, []byte("x"))

	f := mp4.NewMemoryFile(buf)
	p, err := mp4.NewParser(f)
	require.NoError(t, err)

	boxes := p.ParseChunkOffsets()
	require.Len(t, boxes, 1)
	require.Equal(t, mp4.TypeStco, boxes[0].Header.BoxType)
	require.Equal(t, []uint32{100}, boxes[0].Stco.Entries)
}

// TestParseMarksCorrupt checks the propagation policy: a format error mid
// traversal is swallowed, the file is marked corrupt, and subsequent reads
// short-circuit.
func TestParseMarksCorrupt(t *testing.T) {
	ftyp := &mp4.Box{Header: mp4.Header{BoxType: mp4.TypeFtyp, HeaderSize: 8}}
	ftyp.Ftyp = &mp4.Ftyp{Brand: [4]byte{'M', '4', 'A', ' '}}
	good := mp4.EncodeToBytes(ftyp)

	// A box declaring a size smaller than its own header.
	bad := []byte{0x00, 0x00, 0x00, 0x04, 'j', 'u', 'n', 'k'}
	buf := append(append([]byte(nil), good...), bad...)

	f := mp4.NewMemoryFile(buf)
	p, err := mp4.NewParser(f)
	require.NoError(t, err)

	p.ParseTag()
	require.Error(t, f.Corrupt())

	_, err = f.ReadAll()
	require.ErrorIs(t, err, mp4.ErrCorrupt)
}

// TestParserEntryPointsAreIdempotent re-runs a traversal and expects the
// same structure, not an accumulation of state.
func TestParserEntryPointsAreIdempotent(t *testing.T) {
	buf, _ := buildFileBytes(t, []byte("x"))

	f := mp4.NewMemoryFile(buf)
	p, err := mp4.NewParser(f)
	require.NoError(t, err)

	p.ParseTag()
	first := len(p.TopLevel)
	firstUdtas := len(p.Udtas)

	p.ParseTag()
	require.Equal(t, first, len(p.TopLevel))
	require.Equal(t, firstUdtas, len(p.Udtas))
}
