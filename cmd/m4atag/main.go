// Command m4atag dumps the box structure of an m4a/mp4 file and
// reads or rewrites its Apple iTunes tag fields.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	mp4 "github.com/tetsuo/m4atag"
	"github.com/tetsuo/m4atag/m4a"
	"github.com/tetsuo/m4atag/tag"
)

func main() {
	dump := flag.Bool("dump", false, "print the full box tree")
	get := flag.String("get", "", "print one tag field (e.g. title, track, genre)")
	set := flag.String("set", "", "set one tag field, as field=value, and save")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-dump] [-get field] [-set field=value] <file.m4a>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	f, err := m4a.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	switch {
	case *set != "":
		field, value, ok := strings.Cut(*set, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "error: -set wants field=value, got %q\n", *set)
			os.Exit(1)
		}
		if err := setField(f.Tag, field, value); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := f.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "error saving %s: %v\n", path, err)
			os.Exit(1)
		}
	case *get != "":
		v, err := getField(f.Tag, *get)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(v)
	case *dump:
		printBox(f.Moov(), 0)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

// printBox renders one box and its children as an indented tree, in the
// style of tetsuo-mp4/cmd/mp4dump's printBox.
func printBox(box *mp4.Box, depth int) {
	if box == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	vf := ""
	if box.Version != 0 || box.Flags != 0 {
		vf = fmt.Sprintf(" v=%d flags=0x%06x", box.Version, box.Flags)
	}
	fmt.Printf("%s[%s] size=%d%s%s\n", indent, box.Type(), box.Header.TotalBoxSize, vf, boxInfo(box))
	for _, child := range box.Children {
		printBox(child, depth+1)
	}
}

func boxInfo(box *mp4.Box) string {
	switch {
	case box.Ftyp != nil:
		return fmt.Sprintf(" brand=%s", string(box.Ftyp.Brand[:]))
	case box.Mvhd != nil:
		return fmt.Sprintf(" timescale=%d duration=%d", box.Mvhd.TimeScale, box.Mvhd.Duration)
	case box.Hdlr != nil:
		return fmt.Sprintf(" type=%s", string(box.Hdlr.HandlerType[:]))
	case box.Stco != nil:
		return fmt.Sprintf(" entries=%d", len(box.Stco.Entries))
	case box.Co64 != nil:
		return fmt.Sprintf(" entries=%d", len(box.Co64.Entries))
	case box.Data != nil:
		return fmt.Sprintf(" dataLen=%d", len(box.Data.Payload))
	case box.Text != nil:
		return fmt.Sprintf(" text=%q", box.Text.Value)
	case box.Buffer != nil:
		return fmt.Sprintf(" (raw %d bytes)", len(box.Buffer))
	default:
		return ""
	}
}

func getField(t *tag.Tag, field string) (string, error) {
	switch strings.ToLower(field) {
	case "title":
		return t.Title(), nil
	case "album":
		return t.Album(), nil
	case "artist":
		return t.Artist(), nil
	case "albumartist":
		return t.AlbumArtist(), nil
	case "composer":
		return t.Composer(), nil
	case "comment":
		return t.Comment(), nil
	case "genre":
		return t.Genre(), nil
	case "grouping":
		return t.Grouping(), nil
	case "lyrics":
		return t.Lyrics(), nil
	case "conductor":
		return t.Conductor(), nil
	case "copyright":
		return t.Copyright(), nil
	case "publisher":
		return t.Publisher(), nil
	case "year":
		return strconv.Itoa(t.Year()), nil
	case "track":
		return fmt.Sprintf("%d/%d", t.Track(), t.TrackCount()), nil
	case "disk":
		return fmt.Sprintf("%d/%d", t.Disk(), t.DiskCount()), nil
	case "bpm":
		return strconv.Itoa(int(t.BPM())), nil
	case "compilation":
		return strconv.FormatBool(t.Compilation()), nil
	case "sorttitle":
		return t.SortTitle(), nil
	case "sortalbum":
		return t.SortAlbum(), nil
	case "sortartist":
		return t.SortArtist(), nil
	case "replaygaintrackgain":
		return fmt.Sprintf("%.2f dB", t.ReplayGainTrackGain()), nil
	case "musicbrainztrackid":
		return t.MusicBrainzTrackId(), nil
	case "isrc":
		return t.ISRC(), nil
	default:
		if strings.HasPrefix(field, "dash:") {
			return t.Dash(strings.TrimPrefix(field, "dash:")), nil
		}
		return "", fmt.Errorf("unknown field %q", field)
	}
}

func setField(t *tag.Tag, field, value string) error {
	switch strings.ToLower(field) {
	case "title":
		t.SetTitle(value)
	case "album":
		t.SetAlbum(value)
	case "artist":
		t.SetArtist(value)
	case "albumartist":
		t.SetAlbumArtist(value)
	case "composer":
		t.SetComposer(value)
	case "comment":
		t.SetComment(value)
	case "genre":
		t.SetGenre(value)
	case "grouping":
		t.SetGrouping(value)
	case "lyrics":
		t.SetLyrics(value)
	case "conductor":
		t.SetConductor(value)
	case "copyright":
		t.SetCopyright(value)
	case "publisher":
		t.SetPublisher(value)
	case "year":
		y, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("year must be an integer: %w", err)
		}
		t.SetYear(y)
	case "track":
		idx, cnt, err := parsePair(value)
		if err != nil {
			return err
		}
		t.SetTrack(idx, cnt)
	case "disk":
		idx, cnt, err := parsePair(value)
		if err != nil {
			return err
		}
		t.SetDisk(idx, cnt)
	case "bpm":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("bpm must be an integer: %w", err)
		}
		t.SetBPM(uint16(n))
	case "compilation":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("compilation must be a bool: %w", err)
		}
		t.SetCompilation(b)
	case "sorttitle":
		t.SetSortTitle(value)
	case "sortalbum":
		t.SetSortAlbum(value)
	case "sortartist":
		t.SetSortArtist(value)
	case "musicbrainztrackid":
		t.SetMusicBrainzTrackId(value)
	case "isrc":
		t.SetISRC(value)
	default:
		if strings.HasPrefix(field, "dash:") {
			t.SetDash(strings.TrimPrefix(field, "dash:"), value)
			return nil
		}
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func parsePair(value string) (index, count int, err error) {
	idxStr, cntStr, ok := strings.Cut(value, "/")
	if !ok {
		idxStr, cntStr = value, "0"
	}
	index, err = strconv.Atoi(idxStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid index %q: %w", idxStr, err)
	}
	count, err = strconv.Atoi(cntStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid count %q: %w", cntStr, err)
	}
	return index, count, nil
}
