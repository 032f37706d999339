package tag_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	mp4 "github.com/tetsuo/m4atag"
	"github.com/tetsuo/m4atag/tag"
)

func newTag() *tag.Tag {
	moov := mp4.NewContainer(mp4.TypeMoov)
	_, meta, ilst := mp4.FindOrCreateTagChain(moov)
	return tag.New(meta, ilst)
}

func TestTextFieldRoundTrip(t *testing.T) {
	tg := newTag()
	require.Equal(t, "", tg.Title())

	tg.SetTitle("Song Name")
	require.Equal(t, "Song Name", tg.Title())
	require.False(t, tg.IsEmpty())

	tg.SetTitle("")
	require.Equal(t, "", tg.Title())
	require.True(t, tg.IsEmpty())
}

func TestListFieldJoinAndSplit(t *testing.T) {
	tg := newTag()
	tg.SetPerformers([]string{"Alice", "Bob"})
	require.Equal(t, "Alice; Bob", tg.Artist())
	require.Equal(t, []string{"Alice", "Bob"}, tg.Performers())
}

func TestTrackAndDiskPairs(t *testing.T) {
	tg := newTag()
	require.Equal(t, 0, tg.Track())
	require.Equal(t, 0, tg.TrackCount())

	tg.SetTrack(3, 12)
	require.Equal(t, 3, tg.Track())
	require.Equal(t, 12, tg.TrackCount())

	tg.SetDisk(1, 2)
	require.Equal(t, 1, tg.Disk())
	require.Equal(t, 2, tg.DiskCount())

	tg.SetTrack(0, 0)
	require.Nil(t, tg.Ilst.Child(mp4.TypeTrkn))
}

// TestLegacyGenreIndex: a gnre payload of 00 0D addresses ID3v1
// index 13, "Pop".
func TestLegacyGenreIndex(t *testing.T) {
	tg := newTag()
	box := mp4.NewAnnotationBox(mp4.TypeGnre)
	box.AppendChild(mp4.NewDataBox(mp4.ContainsData, []byte{0x00, 0x0D}))
	tg.Ilst.AppendChild(box)

	require.Equal(t, "Pop", tg.Genre())
	require.Equal(t, []string{"Pop"}, tg.Genres())
}

// TestGenreRewriteClearsLegacyAtom checks that setting a genre by name
// removes any legacy gnre atom and writes the ©gen text atom instead.
func TestGenreRewriteClearsLegacyAtom(t *testing.T) {
	tg := newTag()
	box := mp4.NewAnnotationBox(mp4.TypeGnre)
	box.AppendChild(mp4.NewDataBox(mp4.ContainsData, []byte{0x00, 0x01}))
	tg.Ilst.AppendChild(box)

	tg.SetGenre("Rock")

	require.Nil(t, tg.Ilst.Child(mp4.TypeGnre))
	require.Equal(t, "Rock", tg.Genre())
}

func TestGenreTextAtomPreferredOverLegacy(t *testing.T) {
	tg := newTag()
	legacy := mp4.NewAnnotationBox(mp4.TypeGnre)
	legacy.AppendChild(mp4.NewDataBox(mp4.ContainsData, []byte{0x00, 0x01}))
	tg.Ilst.AppendChild(legacy)
	tg.SetGenres([]string{"Jazz", "Fusion"})

	require.Equal(t, []string{"Jazz", "Fusion"}, tg.Genres())
	require.Nil(t, tg.Ilst.Child(mp4.TypeGnre))

	// With both atoms present, the text atom wins.
	tg.Ilst.AppendChild(legacy)
	require.Equal(t, []string{"Jazz", "Fusion"}, tg.Genres())
}

func TestYearParsing(t *testing.T) {
	tg := newTag()
	require.Equal(t, 0, tg.Year())

	tg.SetYear(1999)
	require.Equal(t, "1999", tg.DateTagged())
	require.Equal(t, 1999, tg.Year())

	tg.SetYear(0)
	require.Equal(t, "", tg.DateTagged())
}

func TestPerformerRolesSlashSemicolonTranslation(t *testing.T) {
	tg := newTag()
	tg.SetPerformerRoles([]string{"Lead Vocals", "Guitar"})
	require.Equal(t, "Lead Vocals/Guitar", tg.Dash("Performer Role"))
	require.Equal(t, []string{"Lead Vocals", "Guitar"}, tg.PerformerRoles())
}

func TestDashAtomMusicBrainz(t *testing.T) {
	tg := newTag()
	require.Equal(t, "", tg.MusicBrainzTrackId())

	tg.SetMusicBrainzTrackId("11111111-2222-3333-4444-555555555555")
	require.Equal(t, "11111111-2222-3333-4444-555555555555", tg.MusicBrainzTrackId())

	tg.SetMusicBrainzArtistId([]string{"aaa", "bbb"})
	require.Equal(t, []string{"aaa", "bbb"}, tg.MusicBrainzArtistId())

	tg.SetMusicBrainzTrackId("")
	require.Equal(t, "", tg.MusicBrainzTrackId())
}

func TestReplayGainFormatting(t *testing.T) {
	tg := newTag()
	tg.SetReplayGainTrackGain(-6.5)
	require.Equal(t, "-6.50 dB", tg.Dash("replaygain_track_gain"))
	require.InDelta(t, -6.5, tg.ReplayGainTrackGain(), 0.001)

	tg.SetReplayGainTrackPeak(0.987654)
	require.InDelta(t, 0.987654, tg.ReplayGainTrackPeak(), 0.000001)
}

func TestBPMAndCompilation(t *testing.T) {
	tg := newTag()
	tg.SetBPM(128)
	require.Equal(t, uint16(128), tg.BPM())

	require.False(t, tg.Compilation())
	tg.SetCompilation(true)
	require.True(t, tg.Compilation())
	tg.SetCompilation(false)
	require.False(t, tg.Compilation())
}

func TestArtwork(t *testing.T) {
	tg := newTag()
	data, isPNG := tg.Artwork()
	require.Nil(t, data)
	require.False(t, isPNG)

	tg.SetArtwork([]byte{0x89, 'P', 'N', 'G'}, true)
	data, isPNG = tg.Artwork()
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
	require.True(t, isPNG)
}

func TestGenreIndexTable(t *testing.T) {
	require.Equal(t, "Pop", tag.GenreName(13))
	require.Equal(t, "Hard Rock", tag.GenreName(79))
	require.Equal(t, "", tag.GenreName(80))

	idx, ok := tag.GenreIndex("Pop")
	require.True(t, ok)
	require.Equal(t, 13, idx)

	_, ok = tag.GenreIndex("Not A Genre")
	require.False(t, ok)
}
