// Package m4a binds a File to a Parser and the Apple tag facade, and
// implements the in-place save protocol that keeps chunk-offset tables
// consistent under a metadata size change.
package m4a

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	mp4 "github.com/tetsuo/m4atag"
	"github.com/tetsuo/m4atag/tag"
)

var logger = log.WithField("component", "m4a")

// ErrNoMoov is returned by Save when the file has no moov box to anchor
// the tag chain to.
var ErrNoMoov = errors.New("m4a: file has no moov box")

// ErrNoMdat is returned by Save when the file has no mdat box: the save
// protocol's invariant-range split has nothing to preserve, so there is
// no safe splice point.
var ErrNoMdat = errors.New("m4a: file has no mdat box")

// File binds an mp4.File to its parsed box tree and the udta/meta/ilst
// chain the Apple tag facade wraps.
type File struct {
	file   *mp4.File
	parser *mp4.Parser

	moov *mp4.Box
	udta *mp4.Box
	meta *mp4.Box
	ilst *mp4.Box
	mdat *mp4.Box

	mdatStart int64
	mdatEnd   int64

	Tag *tag.Tag
}

// Open opens path, parses the complete tag-and-properties tree, and
// selects or creates the tag chain.
func Open(path string) (*File, error) {
	f, err := mp4.Open(path)
	if err != nil {
		return nil, err
	}
	af, err := assemble(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return af, nil
}

// OpenMemory wraps an in-memory buffer the same way Open does, for tests
// and callers that already hold the bytes.
func OpenMemory(buf []byte) (*File, error) {
	return assemble(mp4.NewMemoryFile(buf))
}

func assemble(f *mp4.File) (*File, error) {
	p, err := mp4.NewParser(f)
	if err != nil {
		return nil, err
	}
	p.ParseTagAndProperties()

	af := &File{file: f, parser: p, moov: p.Moov, mdatStart: p.MdatStart, mdatEnd: p.MdatEnd}
	for _, b := range p.TopLevel {
		if b.Header.BoxType == mp4.TypeMdat {
			af.mdat = b
			break
		}
	}

	if p.Moov != nil {
		af.udta, af.meta, af.ilst = chooseOrCreateTagChain(p)
	}
	if af.ilst == nil {
		// No moov at all: wrap a detached chain so reads/writes never
		// panic, even though such a file cannot be meaningfully saved.
		af.udta = mp4.NewUdta()
		af.meta, af.ilst = mp4.EnsureMetaIlst(af.udta)
	}

	af.Tag = tag.New(af.meta, af.ilst)
	return af, nil
}

// chooseOrCreateTagChain selects the tag chain: prefer the
// shallowest udta (by ancestor-chain length) whose subtree already
// contains an ilst; otherwise repair the first discovered udta; otherwise
// create one from scratch under moov.
func chooseOrCreateTagChain(p *mp4.Parser) (udta, meta, ilst *mp4.Box) {
	var best *mp4.UdtaEntry
	for i := range p.Udtas {
		e := &p.Udtas[i]
		if m := e.Udta.Child(mp4.TypeMeta); m != nil && m.Child(mp4.TypeIlst) != nil {
			if best == nil || len(e.ParentTree) < len(best.ParentTree) {
				best = e
			}
		}
	}
	if best != nil {
		udta = best.Udta
		meta, ilst = mp4.EnsureMetaIlst(udta)
		return
	}
	if len(p.Udtas) > 0 {
		udta = p.Udtas[0].Udta
		meta, ilst = mp4.EnsureMetaIlst(udta)
		return
	}
	return mp4.FindOrCreateTagChain(p.Moov)
}

// MdatRange returns the invariant byte range [start, end) captured at
// parse time: the region a metadata save must never touch.
func (f *File) MdatRange() (start, end int64) { return f.mdatStart, f.mdatEnd }

// Moov exposes the parsed moov box, for callers (the CLI's -dump) that
// need to walk the whole tree rather than just the tag chain.
func (f *File) Moov() *mp4.Box { return f.moov }

// Underlying exposes the wrapped file handle, for callers that need the
// raw bytes back after a save.
func (f *File) Underlying() *mp4.File { return f.file }

// IsEmpty reports whether the wrapped tag carries no atoms.
func (f *File) IsEmpty() bool { return f.Tag.IsEmpty() }

// Close releases the underlying file handle without saving.
func (f *File) Close() error { return f.file.Close() }

// Save serialises the modified metadata region and splices it into the
// file in a single operation. When the region precedes mdat (a faststart
// layout), every stco/co64 entry addressing the now-shifted mdat is
// patched first; when moov follows mdat (the layout iTunes itself
// writes), the region is rewritten after the invariant range and no
// offset moves.
func (f *File) Save() error {
	if f.moov == nil {
		return ErrNoMoov
	}
	if f.mdat == nil {
		return ErrNoMdat
	}
	if f.moovPrecedesMdat() {
		return f.savePrefix()
	}
	return f.saveSuffix()
}

func (f *File) moovPrecedesMdat() bool {
	for _, b := range f.parser.TopLevel {
		switch b {
		case f.moov:
			return true
		case f.mdat:
			return false
		}
	}
	return true
}

// savePrefix rewrites [0, mdatStart): every top-level box up to and
// including the mdat header, shifting chunk offsets by the size delta.
func (f *File) savePrefix() error {
	oldMdatStart := f.mdatStart
	delta := f.newPrefixLen() - oldMdatStart

	if delta != 0 {
		logger.WithField("delta", delta).Debug("patching chunk offsets")
		for _, box := range chunkOffsetBoxes(f.moov) {
			if err := patchChunkOffsets(box, oldMdatStart, delta); err != nil {
				return err
			}
		}
	}

	prefix := make([]byte, f.newPrefixLen())
	ptr := 0
	for _, b := range f.parser.TopLevel {
		if b == f.mdat {
			ptr += b.Header.Render(prefix, ptr)
			break
		}
		n, err := mp4.Encode(b, prefix, ptr)
		if err != nil {
			return fmt.Errorf("m4a: encoding top-level box %s: %w", b.Header.BoxType, err)
		}
		ptr += n
	}

	if err := f.file.EnableWrite(); err != nil {
		return err
	}
	if err := f.file.Insert(prefix, 0, oldMdatStart); err != nil {
		return err
	}
	f.mdatStart += delta
	f.mdatEnd += delta
	return f.file.Close()
}

// saveSuffix rewrites [mdatEnd, EOF): every top-level box after mdat.
// Chunk offsets address bytes at or before mdatEnd, so none move.
func (f *File) saveSuffix() error {
	after := false
	var boxes []*mp4.Box
	var suffixLen int64
	for _, b := range f.parser.TopLevel {
		if b == f.mdat {
			after = true
			continue
		}
		if after {
			boxes = append(boxes, b)
			suffixLen += mp4.EncodingLength(b)
		}
	}

	suffix := make([]byte, suffixLen)
	ptr := 0
	for _, b := range boxes {
		n, err := mp4.Encode(b, suffix, ptr)
		if err != nil {
			return fmt.Errorf("m4a: encoding top-level box %s: %w", b.Header.BoxType, err)
		}
		ptr += n
	}

	if err := f.file.EnableWrite(); err != nil {
		return err
	}
	if err := f.file.Insert(suffix, f.mdatEnd, f.file.Length()-f.mdatEnd); err != nil {
		return err
	}
	return f.file.Close()
}

// newPrefixLen computes the encoded length of every top-level box up to
// and including the mdat header (but not its payload), recomputing every
// descendant's size bottom-up as it goes.
func (f *File) newPrefixLen() int64 {
	var total int64
	for _, b := range f.parser.TopLevel {
		if b == f.mdat {
			total += b.Header.RenderedHeaderSize()
			break
		}
		total += mp4.EncodingLength(b)
	}
	return total
}

// chunkOffsetBoxes collects every stco/co64 box reachable from moov in the
// already-decoded tree. It duplicates mp4.Parser.ParseChunkOffsets'
// traversal rather than calling it, since that method resets the parser
// and rebuilds a fresh, disconnected box tree — which would orphan the
// udta/meta/ilst/mdat pointers captured at open time.
func chunkOffsetBoxes(moov *mp4.Box) []*mp4.Box {
	var out []*mp4.Box
	for _, trak := range moov.ChildList(mp4.TypeTrak) {
		mdia := trak.Child(mp4.TypeMdia)
		if mdia == nil {
			continue
		}
		minf := mdia.Child(mp4.TypeMinf)
		if minf == nil {
			continue
		}
		stbl := minf.Child(mp4.TypeStbl)
		if stbl == nil {
			continue
		}
		if s := stbl.Child(mp4.TypeStco); s != nil {
			out = append(out, s)
		}
		if c := stbl.Child(mp4.TypeCo64); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// ErrOffsetOverflow is returned by Save when shifting a 32-bit stco
// entry would push it past the uint32 range. Upgrading the table to
// co64 would change the entry array's size, which the save protocol
// never does, so the save is refused instead.
var ErrOffsetOverflow = errors.New("m4a: shifted chunk offset exceeds 32-bit stco range")

// patchChunkOffsets shifts every entry addressing at-or-past
// oldMdatStart by delta, per the invariant that offsets before the
// rewritten region are untouched and offsets into (or past) mdat move
// with it.
func patchChunkOffsets(box *mp4.Box, oldMdatStart, delta int64) error {
	if s := box.Stco; s != nil {
		for i, e := range s.Entries {
			if int64(e) >= oldMdatStart {
				shifted := int64(e) + delta
				if shifted < 0 || shifted > math.MaxUint32 {
					logger.WithFields(log.Fields{"entry": i, "offset": shifted}).Warn("stco entry out of 32-bit range after shift")
					return ErrOffsetOverflow
				}
				s.Entries[i] = uint32(shifted)
			}
		}
	}
	if c := box.Co64; c != nil {
		for i, e := range c.Entries {
			if int64(e) >= oldMdatStart {
				c.Entries[i] = uint64(int64(e) + delta)
			}
		}
	}
	return nil
}
