package tag

import (
	"fmt"
	"strconv"
	"strings"

	mp4 "github.com/tetsuo/m4atag"
)

// dashMean is the vendor namespace iTunes uses for every free-form
// "----" annotation this facade writes.
const dashMean = "com.apple.iTunes"

// Tag is a facade over an Apple ilst item-list box. It is iTunes-only:
// there is no mdta keyed-metadata support, since the tag-bearing meta's
// hdlr is always mdir. Every mutation method mutates ilst's child list
// directly; there is no separate staging buffer.
type Tag struct {
	Meta *mp4.Box
	Ilst *mp4.Box
}

// New wraps an existing (or freshly created) meta/ilst pair.
func New(meta, ilst *mp4.Box) *Tag {
	return &Tag{Meta: meta, Ilst: ilst}
}

// IsEmpty reports whether the item list carries no atoms at all.
func (t *Tag) IsEmpty() bool { return len(t.Ilst.Children) == 0 }

// Clear empties the item list.
func (t *Tag) Clear() { t.Ilst.Children = nil }

// --- generic single-value text atom ---

func (t *Tag) findAnnotation(tagType mp4.BoxType) *mp4.Box {
	return t.Ilst.Child(tagType)
}

func (t *Tag) getText(tagType mp4.BoxType) string {
	box := t.findAnnotation(tagType)
	if box == nil {
		return ""
	}
	data := box.Child(mp4.TypeData)
	if data == nil || data.Data == nil {
		return ""
	}
	return data.Data.Text()
}

// setText writes a text atom; an empty value removes the atom instead.
func (t *Tag) setText(tagType mp4.BoxType, value string) {
	box := t.findAnnotation(tagType)
	if value == "" {
		if box != nil {
			t.Ilst.RemoveChild(box)
		}
		return
	}
	if box != nil {
		data := box.Child(mp4.TypeData)
		if data != nil {
			data.Flags = mp4.ContainsText
			data.Data = &mp4.AppleData{Payload: []byte(value)}
			return
		}
		box.AppendChild(mp4.NewDataBox(mp4.ContainsText, []byte(value)))
		return
	}
	box = mp4.NewAnnotationBox(tagType)
	box.AppendChild(mp4.NewDataBox(mp4.ContainsText, []byte(value)))
	t.Ilst.AppendChild(box)
}

// --- multi-valued text lists: "; "-joined on disk, trimmed on read ---

func joinList(vals []string) string { return strings.Join(vals, "; ") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (t *Tag) getList(tagType mp4.BoxType) []string { return splitList(t.getText(tagType)) }

func (t *Tag) setList(tagType mp4.BoxType, vals []string) { t.setText(tagType, joinList(vals)) }

// --- basic single-value text fields ---

func (t *Tag) Title() string      { return t.getText(mp4.TypeNam) }
func (t *Tag) SetTitle(v string)  { t.setText(mp4.TypeNam, v) }
func (t *Tag) Album() string      { return t.getText(mp4.TypeAlb) }
func (t *Tag) SetAlbum(v string)  { t.setText(mp4.TypeAlb, v) }
func (t *Tag) Artist() string     { return t.getText(mp4.TypeArt) }
func (t *Tag) SetArtist(v string) { t.setText(mp4.TypeArt, v) }

func (t *Tag) AlbumArtist() string     { return t.getText(mp4.TypeAART) }
func (t *Tag) SetAlbumArtist(v string) { t.setText(mp4.TypeAART, v) }

func (t *Tag) Composer() string     { return t.getText(mp4.TypeWrt) }
func (t *Tag) SetComposer(v string) { t.setText(mp4.TypeWrt, v) }

func (t *Tag) Comment() string     { return t.getText(mp4.TypeCmt) }
func (t *Tag) SetComment(v string) { t.setText(mp4.TypeCmt, v) }

func (t *Tag) Grouping() string     { return t.getText(mp4.TypeGrp) }
func (t *Tag) SetGrouping(v string) { t.setText(mp4.TypeGrp, v) }

func (t *Tag) Lyrics() string     { return t.getText(mp4.TypeLyr) }
func (t *Tag) SetLyrics(v string) { t.setText(mp4.TypeLyr, v) }

func (t *Tag) Conductor() string     { return t.getText(mp4.TypeCon) }
func (t *Tag) SetConductor(v string) { t.setText(mp4.TypeCon, v) }

func (t *Tag) Copyright() string     { return t.getText(mp4.TypeCprt) }
func (t *Tag) SetCopyright(v string) { t.setText(mp4.TypeCprt, v) }

func (t *Tag) Publisher() string     { return t.getText(mp4.TypePub) }
func (t *Tag) SetPublisher(v string) { t.setText(mp4.TypePub, v) }

// DateTagged is the raw text held in ©day, the same atom Year parses.
func (t *Tag) DateTagged() string     { return t.getText(mp4.TypeDay) }
func (t *Tag) SetDateTagged(v string) { t.setText(mp4.TypeDay, v) }

// --- sort variants ---

func (t *Tag) SortTitle() string          { return t.getText(mp4.TypeSonm) }
func (t *Tag) SetSortTitle(v string)      { t.setText(mp4.TypeSonm, v) }
func (t *Tag) SortAlbum() string          { return t.getText(mp4.TypeSoal) }
func (t *Tag) SetSortAlbum(v string)      { t.setText(mp4.TypeSoal, v) }
func (t *Tag) SortArtist() string         { return t.getText(mp4.TypeSoar) }
func (t *Tag) SetSortArtist(v string)     { t.setText(mp4.TypeSoar, v) }
func (t *Tag) SortAlbumArtist() string    { return t.getText(mp4.TypeSoaa) }
func (t *Tag) SetSortAlbumArtist(v string) { t.setText(mp4.TypeSoaa, v) }
func (t *Tag) SortComposer() string       { return t.getText(mp4.TypeSoco) }
func (t *Tag) SetSortComposer(v string)   { t.setText(mp4.TypeSoco, v) }

// --- multi-valued fields sharing storage with the single-value atoms ---

func (t *Tag) Performers() []string        { return t.getList(mp4.TypeArt) }
func (t *Tag) SetPerformers(vals []string) { t.setList(mp4.TypeArt, vals) }

func (t *Tag) AlbumArtists() []string        { return t.getList(mp4.TypeAART) }
func (t *Tag) SetAlbumArtists(vals []string) { t.setList(mp4.TypeAART, vals) }

func (t *Tag) Composers() []string        { return t.getList(mp4.TypeWrt) }
func (t *Tag) SetComposers(vals []string) { t.setList(mp4.TypeWrt, vals) }

// PerformerRoles is stored in a custom dash atom (iTunes has no standard
// atom for this) using "/" to separate roles internally; the translation
// to and from ";" lets it reuse the ordinary list join/split convention.
const performerRoleDashName = "Performer Role"

func (t *Tag) PerformerRoles() []string {
	raw := t.getDash(performerRoleDashName)
	return splitList(strings.ReplaceAll(raw, "/", ";"))
}

func (t *Tag) SetPerformerRoles(vals []string) {
	joined := strings.ReplaceAll(joinList(vals), "; ", "/")
	t.setDash(performerRoleDashName, joined)
}

// --- genre: text atom preferred, legacy binary index as fallback ---

// Genres returns the genre list: the text atom ©gen when present, else the
// legacy gnre ID3v1 index translated through the genre table, else nil.
func (t *Tag) Genres() []string {
	if text := t.getText(mp4.TypeGen); text != "" {
		return splitList(text)
	}
	if box := t.findAnnotation(mp4.TypeGnre); box != nil {
		if data := box.Child(mp4.TypeData); data != nil && data.Data != nil && len(data.Data.Payload) >= 2 {
			idx := int(data.Data.Payload[0])<<8 | int(data.Data.Payload[1])
			// idx==0 means unset; a nonzero idx addresses the ID3v1
			// table directly, not via the +1 shift some taggers use.
			if idx > 0 {
				if name := GenreName(idx); name != "" {
					return []string{name}
				}
			}
		}
	}
	return nil
}

// Genre returns the first genre, or "" if none is set.
func (t *Tag) Genre() string {
	g := t.Genres()
	if len(g) == 0 {
		return ""
	}
	return g[0]
}

// SetGenres clears any legacy gnre atom and writes the ©gen text atom.
func (t *Tag) SetGenres(vals []string) {
	if box := t.findAnnotation(mp4.TypeGnre); box != nil {
		t.Ilst.RemoveChild(box)
	}
	t.setList(mp4.TypeGen, vals)
}

func (t *Tag) SetGenre(v string) {
	if v == "" {
		t.SetGenres(nil)
		return
	}
	t.SetGenres([]string{v})
}

// --- year ---

// Year parses the first 4 characters of the ©day text field as decimal;
// a non-numeric value yields 0.
func (t *Tag) Year() int {
	date := t.getText(mp4.TypeDay)
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// SetYear writes the decimal form of year to ©day; 0 clears the atom.
func (t *Tag) SetYear(year int) {
	if year == 0 {
		t.setText(mp4.TypeDay, "")
		return
	}
	t.setText(mp4.TypeDay, strconv.Itoa(year))
}

// --- integer pairs: track / disk ---

func (t *Tag) getPair(tagType mp4.BoxType) (index, total int) {
	box := t.findAnnotation(tagType)
	if box == nil {
		return 0, 0
	}
	data := box.Child(mp4.TypeData)
	if data == nil || data.Data == nil || len(data.Data.Payload) < 6 {
		return 0, 0
	}
	p := data.Data.Payload
	return int(p[2])<<8 | int(p[3]), int(p[4])<<8 | int(p[5])
}

// setPair removes the atom entirely when both sides become 0.
func (t *Tag) setPair(tagType mp4.BoxType, index, total int) {
	box := t.findAnnotation(tagType)
	if index == 0 && total == 0 {
		if box != nil {
			t.Ilst.RemoveChild(box)
		}
		return
	}
	payload := []byte{0, 0, byte(index >> 8), byte(index), byte(total >> 8), byte(total), 0, 0}
	if box != nil {
		data := box.Child(mp4.TypeData)
		if data != nil {
			data.Flags = mp4.ContainsData
			data.Data = &mp4.AppleData{Payload: payload}
			return
		}
		box.AppendChild(mp4.NewDataBox(mp4.ContainsData, payload))
		return
	}
	box = mp4.NewAnnotationBox(tagType)
	box.AppendChild(mp4.NewDataBox(mp4.ContainsData, payload))
	t.Ilst.AppendChild(box)
}

func (t *Tag) Track() int               { idx, _ := t.getPair(mp4.TypeTrkn); return idx }
func (t *Tag) TrackCount() int          { _, n := t.getPair(mp4.TypeTrkn); return n }
func (t *Tag) SetTrack(index, count int) { t.setPair(mp4.TypeTrkn, index, count) }

func (t *Tag) Disk() int               { idx, _ := t.getPair(mp4.TypeDisk); return idx }
func (t *Tag) DiskCount() int          { _, n := t.getPair(mp4.TypeDisk); return n }
func (t *Tag) SetDisk(index, count int) { t.setPair(mp4.TypeDisk, index, count) }

// --- bpm ---

func (t *Tag) BPM() uint16 {
	box := t.findAnnotation(mp4.TypeTmpo)
	if box == nil {
		return 0
	}
	data := box.Child(mp4.TypeData)
	if data == nil || data.Data == nil || len(data.Data.Payload) < 2 {
		return 0
	}
	return uint16(data.Data.Payload[0])<<8 | uint16(data.Data.Payload[1])
}

func (t *Tag) SetBPM(bpm uint16) {
	box := t.findAnnotation(mp4.TypeTmpo)
	if bpm == 0 {
		if box != nil {
			t.Ilst.RemoveChild(box)
		}
		return
	}
	payload := []byte{byte(bpm >> 8), byte(bpm)}
	if box != nil {
		data := box.Child(mp4.TypeData)
		if data != nil {
			data.Flags = mp4.ForTempo
			data.Data = &mp4.AppleData{Payload: payload}
			return
		}
		box.AppendChild(mp4.NewDataBox(mp4.ForTempo, payload))
		return
	}
	box = mp4.NewAnnotationBox(mp4.TypeTmpo)
	box.AppendChild(mp4.NewDataBox(mp4.ForTempo, payload))
	t.Ilst.AppendChild(box)
}

// --- compilation ---

// Compilation reports the one-byte cpil flag. Flags = ForTempo is the
// historical iTunes choice preserved bit-exactly.
func (t *Tag) Compilation() bool {
	box := t.findAnnotation(mp4.TypeCpil)
	if box == nil {
		return false
	}
	data := box.Child(mp4.TypeData)
	if data == nil || data.Data == nil || len(data.Data.Payload) < 1 {
		return false
	}
	return data.Data.Payload[0] != 0
}

func (t *Tag) SetCompilation(v bool) {
	box := t.findAnnotation(mp4.TypeCpil)
	if !v {
		if box != nil {
			t.Ilst.RemoveChild(box)
		}
		return
	}
	payload := []byte{1}
	if box != nil {
		data := box.Child(mp4.TypeData)
		if data != nil {
			data.Flags = mp4.ForTempo
			data.Data = &mp4.AppleData{Payload: payload}
			return
		}
		box.AppendChild(mp4.NewDataBox(mp4.ForTempo, payload))
		return
	}
	box = mp4.NewAnnotationBox(mp4.TypeCpil)
	box.AppendChild(mp4.NewDataBox(mp4.ForTempo, payload))
	t.Ilst.AppendChild(box)
}

// --- artwork ---

// Artwork returns the covr payload and whether it looks like PNG (by the
// flags' well-known type), or (nil, false) if absent.
func (t *Tag) Artwork() (data []byte, isPNG bool) {
	box := t.findAnnotation(mp4.TypeCovr)
	if box == nil {
		return nil, false
	}
	d := box.Child(mp4.TypeData)
	if d == nil || d.Data == nil {
		return nil, false
	}
	return d.Data.Payload, d.Flags == mp4.ContainsPngData
}

func (t *Tag) SetArtwork(data []byte, isPNG bool) {
	box := t.findAnnotation(mp4.TypeCovr)
	if len(data) == 0 {
		if box != nil {
			t.Ilst.RemoveChild(box)
		}
		return
	}
	flags := mp4.ContainsJpegData
	if isPNG {
		flags = mp4.ContainsPngData
	}
	if box != nil {
		d := box.Child(mp4.TypeData)
		if d != nil {
			d.Flags = flags
			d.Data = &mp4.AppleData{Payload: append([]byte(nil), data...)}
			return
		}
		box.AppendChild(mp4.NewDataBox(flags, data))
		return
	}
	box = mp4.NewAnnotationBox(mp4.TypeCovr)
	box.AppendChild(mp4.NewDataBox(flags, data))
	t.Ilst.AppendChild(box)
}

// --- dash ("----") custom atoms: mean/name/data, keyed by exact mean and
// case-insensitive name ---

func (t *Tag) findDash(name string) *mp4.Box {
	for _, box := range t.Ilst.ChildList(mp4.TypeDash) {
		mean := box.Child(mp4.TypeMean)
		nameBox := box.Child(mp4.TypeName)
		if mean == nil || nameBox == nil || mean.Text == nil || nameBox.Text == nil {
			continue
		}
		if mean.Text.Value == dashMean && strings.EqualFold(nameBox.Text.Value, name) {
			return box
		}
	}
	return nil
}

// getDash returns the text payload of the custom dash atom named name under
// the com.apple.iTunes namespace, or "" if absent.
func (t *Tag) getDash(name string) string {
	box := t.findDash(name)
	if box == nil {
		return ""
	}
	data := box.Child(mp4.TypeData)
	if data == nil || data.Data == nil {
		return ""
	}
	return data.Data.Text()
}

// setDash writes (or removes, for an empty value) a custom dash atom.
func (t *Tag) setDash(name, value string) {
	box := t.findDash(name)
	if value == "" {
		if box != nil {
			t.Ilst.RemoveChild(box)
		}
		return
	}
	if box != nil {
		data := box.Child(mp4.TypeData)
		if data != nil {
			data.Flags = mp4.ContainsText
			data.Data = &mp4.AppleData{Payload: []byte(value)}
			return
		}
		box.AppendChild(mp4.NewDataBox(mp4.ContainsText, []byte(value)))
		return
	}
	box = mp4.NewAnnotationBox(mp4.TypeDash)
	box.AppendChild(mp4.NewTextBox(mp4.TypeMean, dashMean))
	box.AppendChild(mp4.NewTextBox(mp4.TypeName, name))
	box.AppendChild(mp4.NewDataBox(mp4.ContainsText, []byte(value)))
	t.Ilst.AppendChild(box)
}

// Dash exposes the generic custom dash-atom namespace for callers that
// need a key this facade does not name explicitly.
func (t *Tag) Dash(name string) string         { return t.getDash(name) }
func (t *Tag) SetDash(name, value string)      { t.setDash(name, value) }

// --- replay gain ---

func (t *Tag) replayGainFloat(name string) float64 {
	raw := strings.TrimSpace(t.getDash(name))
	raw = strings.TrimSuffix(raw, "dB")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "db")
	raw = strings.TrimSpace(raw)
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}

func (t *Tag) ReplayGainTrackGain() float64 { return t.replayGainFloat("replaygain_track_gain") }
func (t *Tag) SetReplayGainTrackGain(db float64) {
	t.setDash("replaygain_track_gain", fmt.Sprintf("%.2f dB", db))
}

func (t *Tag) ReplayGainTrackPeak() float64 { return t.replayGainFloat("replaygain_track_peak") }
func (t *Tag) SetReplayGainTrackPeak(peak float64) {
	t.setDash("replaygain_track_peak", fmt.Sprintf("%.6f", peak))
}

func (t *Tag) ReplayGainAlbumGain() float64 { return t.replayGainFloat("replaygain_album_gain") }
func (t *Tag) SetReplayGainAlbumGain(db float64) {
	t.setDash("replaygain_album_gain", fmt.Sprintf("%.2f dB", db))
}

func (t *Tag) ReplayGainAlbumPeak() float64 { return t.replayGainFloat("replaygain_album_peak") }
func (t *Tag) SetReplayGainAlbumPeak(peak float64) {
	t.setDash("replaygain_album_peak", fmt.Sprintf("%.6f", peak))
}

// --- MusicBrainz / Amazon / ISRC / InitialKey ---

func (t *Tag) MusicBrainzTrackId() string     { return t.getDash("MusicBrainz Track Id") }
func (t *Tag) SetMusicBrainzTrackId(v string) { t.setDash("MusicBrainz Track Id", v) }

func (t *Tag) MusicBrainzAlbumId() string     { return t.getDash("MusicBrainz Album Id") }
func (t *Tag) SetMusicBrainzAlbumId(v string) { t.setDash("MusicBrainz Album Id", v) }

func (t *Tag) MusicBrainzReleaseGroupId() string { return t.getDash("MusicBrainz Release Group Id") }
func (t *Tag) SetMusicBrainzReleaseGroupId(v string) {
	t.setDash("MusicBrainz Release Group Id", v)
}

// MusicBrainzArtistId and MusicBrainzReleaseArtistId are the multi-valued
// MusicBrainz identifiers join/split on "/" rather than the ordinary
// "; " list convention.
func (t *Tag) MusicBrainzArtistId() []string {
	raw := t.getDash("MusicBrainz Artist Id")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "/")
}

func (t *Tag) SetMusicBrainzArtistId(ids []string) {
	t.setDash("MusicBrainz Artist Id", strings.Join(ids, "/"))
}

func (t *Tag) MusicBrainzReleaseArtistId() []string {
	raw := t.getDash("MusicBrainz Release Artist Id")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "/")
}

func (t *Tag) SetMusicBrainzReleaseArtistId(ids []string) {
	t.setDash("MusicBrainz Release Artist Id", strings.Join(ids, "/"))
}

func (t *Tag) AmazonId() string     { return t.getDash("ASIN") }
func (t *Tag) SetAmazonId(v string) { t.setDash("ASIN", v) }

func (t *Tag) ISRC() string     { return t.getDash("ISRC") }
func (t *Tag) SetISRC(v string) { t.setDash("ISRC", v) }

func (t *Tag) InitialKey() string     { return t.getDash("initialkey") }
func (t *Tag) SetInitialKey(v string) { t.setDash("initialkey", v) }

func (t *Tag) Remixer() string     { return t.getDash("Remixer") }
func (t *Tag) SetRemixer(v string) { t.setDash("Remixer", v) }
