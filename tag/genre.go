// Package tag implements the Apple iTunes ilst metadata façade over the
// mp4 box tree.
package tag

// id3v1Genres is the classic 80-entry ID3v1 genre table. The legacy
// gnre atom stores a 16-bit big-endian value that addresses this table
// directly, 0 meaning "unset". Some real-world taggers store index+1
// instead; this package uses the bare index.
var id3v1Genres = [...]string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient",
	"Trip-Hop", "Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical",
	"Instrumental", "Acid", "House", "Game", "Sound Clip", "Gospel",
	"Noise", "AlternRock", "Bass", "Soul", "Punk", "Space", "Meditative",
	"Instrumental Pop", "Instrumental Rock", "Ethnic", "Gothic",
	"Darkwave", "Techno-Industrial", "Electronic", "Pop-Folk", "Eurodance",
	"Dream", "Southern Rock", "Comedy", "Cult", "Gangsta", "Top 40",
	"Christian Rap", "Pop/Funk", "Jungle", "Native American", "Cabaret",
	"New Wave", "Psychedelic", "Rave", "Showtunes", "Trailer", "Lo-Fi",
	"Tribal", "Acid Punk", "Acid Jazz", "Polka", "Retro", "Musical",
	"Rock & Roll", "Hard Rock",
}

// GenreName returns the ID3v1 genre name for a 0-based index, or "" if
// index is out of range.
func GenreName(index int) string {
	if index < 0 || index >= len(id3v1Genres) {
		return ""
	}
	return id3v1Genres[index]
}

// GenreIndex looks up the 0-based ID3v1 index for a genre name
// (case-sensitive, matching the table above), or ok=false if not found.
func GenreIndex(name string) (index int, ok bool) {
	for i, g := range id3v1Genres {
		if g == name {
			return i, true
		}
	}
	return 0, false
}
