package mp4_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	mp4 "github.com/tetsuo/m4atag"
)

func TestByteBufferTypedReads(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{
		0x12, 0x34,
		0x00, 0x00, 0x00, 0x2A,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
	})

	v16, err := b.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), v16)

	v32, err := b.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(42), v32)

	v64, err := b.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(256), v64)

	require.Equal(t, 14, b.Tell())

	_, err = b.ReadUint16()
	require.Error(t, err)
}

func TestByteBufferCursorShorthands(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{
		0x07,
		0x12, 0x34,
		0x00, 0x00, 0x00, 0x2A,
		0xAA, 0xBB,
		0x01, 0x02, 0x03,
	})

	require.Equal(t, byte(0x07), b.U8())
	require.Equal(t, uint16(0x1234), b.U16())
	require.Equal(t, uint32(42), b.U32())
	b.Skip(2)
	require.Equal(t, []byte{0x01, 0x02}, b.Take(2))
	require.NoError(t, b.Err())
	require.Equal(t, 1, b.Remaining())

	// A short read records the error and yields zero; later reads keep it.
	require.Equal(t, uint32(0), b.U32())
	require.Error(t, b.Err())
	require.Nil(t, b.Take(4))
}

func TestByteBufferOutOfRangeReadsError(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{0x01})
	_, err := b.ReadUint32()
	require.Error(t, err)

	require.Error(t, b.Seek(2))
	require.NoError(t, b.Seek(1))
}

func TestByteBufferStrings(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{0xE9, 't', 0xE9})
	s, err := b.ReadLatin1(3)
	require.NoError(t, err)
	require.Equal(t, "été", s)

	b = mp4.NewByteBuffer([]byte("héllo"))
	s, err = b.ReadUTF8(b.Len())
	require.NoError(t, err)
	require.Equal(t, "héllo", s)

	b = mp4.NewByteBuffer([]byte{0xFF, 0xFE})
	_, err = b.ReadUTF8(2)
	require.Error(t, err)

	b = mp4.NewByteBuffer([]byte("abc\x00def"))
	s, err = b.ReadCString(b.Len())
	require.NoError(t, err)
	require.Equal(t, "abc", s)
	require.Equal(t, 4, b.Tell())
}

func TestByteBufferSliceAndEqual(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{1, 2, 3, 4, 5})
	s, err := b.Slice(1, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, s)

	_, err = b.Slice(4, 3)
	require.Error(t, err)

	require.True(t, b.Equal(mp4.NewByteBuffer([]byte{1, 2, 3, 4, 5})))
	require.False(t, b.Equal(mp4.NewByteBuffer([]byte{1, 2, 3})))
	require.False(t, b.Equal(nil))
}

func TestByteBufferInsertAndConcat(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{1, 2, 5})
	require.NoError(t, b.Insert([]byte{3, 4}, 2, 0))
	require.Equal(t, []byte{1, 2, 3, 4, 5}, b.Bytes())

	require.NoError(t, b.Insert([]byte{9}, 0, 2))
	require.Equal(t, []byte{9, 3, 4, 5}, b.Bytes())

	require.Error(t, b.Insert(nil, 3, 5))

	require.NoError(t, b.Concat(mp4.NewByteBuffer([]byte{6})))
	require.Equal(t, []byte{9, 3, 4, 5, 6}, b.Bytes())
}

func TestByteBufferReadOnlyGuard(t *testing.T) {
	b := mp4.NewByteBuffer([]byte{1, 2, 3})
	ro := b.ReadOnly()

	require.ErrorIs(t, ro.Insert([]byte{4}, 0, 0), mp4.ErrReadOnly)
	require.ErrorIs(t, ro.Concat(b), mp4.ErrReadOnly)

	// Reads still work on the read-only handle.
	v, err := ro.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), v)
}

func TestBuilderWritesBigEndian(t *testing.T) {
	w := mp4.NewBuilder()
	w.WriteUint16(0x0102)
	w.WriteUint32(0x03040506)
	w.WriteUint64(0x0708090A0B0C0D0E)
	w.WriteBytes([]byte{0xFF})
	w.WriteLatin1("é")
	w.WriteUint8(0x10)
	w.WriteZeros(2)

	require.Equal(t, []byte{
		0x01, 0x02,
		0x03, 0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E,
		0xFF,
		0xE9,
		0x10,
		0x00, 0x00,
	}, w.Bytes())
	require.Equal(t, 19, w.Len())

	require.NoError(t, w.Insert([]byte{0x00}, 0, 1))
	require.Equal(t, byte(0x00), w.Bytes()[0])
}
