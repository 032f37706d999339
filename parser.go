package mp4

import (
	"errors"
	"fmt"
)

// ErrNoFtyp is returned by NewParser when the file does not begin with an
// ftyp box.
var ErrNoFtyp = errors.New("mp4: file does not start with an ftyp box")

// UdtaEntry is one discovered udta box together with its ancestor chain,
// from the top-level box down to (not including) the udta itself.
type UdtaEntry struct {
	Udta       *Box
	ParentTree []*Box
}

// Parser performs the four traversal policies over a File's top-level
// box sequence: open once, scan the top level, dispatch per box type.
// It materialises an owned, mutable tree as it descends, since the tag
// and assembly layers need to mutate it in place.
//
// Each of the four public entry points is idempotent: it resets internal
// state and performs its own traversal from scratch.
type Parser struct {
	file *File

	TopLevel []*Box
	Moov     *Box
	Udtas    []UdtaEntry

	MdatStart int64
	MdatEnd   int64

	Mvhd *Box
	Hdlr *Box
	Stsd *Box
}

// NewParser constructs a Parser over f, validating that the file begins
// with an ftyp box. f must be positioned for reading (mode Read).
func NewParser(f *File) (*Parser, error) {
	buf, err := f.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(buf) < 8 || string(buf[4:8]) != "ftyp" {
		return nil, ErrNoFtyp
	}
	return &Parser{file: f}, nil
}

func (p *Parser) reset() {
	p.TopLevel = nil
	p.Moov = nil
	p.Udtas = nil
	p.MdatStart, p.MdatEnd = 0, 0
	p.Mvhd, p.Hdlr, p.Stsd = nil, nil, nil
}

// safely runs fn, converting any returned error into a corrupt-file
// marker rather than letting it propagate, so a partially-readable file
// still yields whatever was decoded up to the fault.
func (p *Parser) safely(fn func() error) {
	if err := fn(); err != nil {
		p.file.MarkAsCorrupt(err)
	}
}

// ParseBoxHeaders is the header-only traversal: it records every top-level
// box header and captures the mdat byte range, without decoding any box
// payload. It does not descend into moov, so Moov and Udtas stay empty and
// no parent chain is recorded.
func (p *Parser) ParseBoxHeaders() {
	p.reset()
	p.safely(func() error {
		buf, err := p.file.ReadAll()
		if err != nil {
			return err
		}
		fileLength := int64(len(buf))
		pos := int64(0)
		for pos < fileLength {
			h, err := ReadHeader(buf, pos, fileLength)
			if err != nil {
				return err
			}
			total := h.TotalBoxSize
			if total == 0 {
				total = fileLength - pos
			}
			box := &Box{Header: h}
			p.TopLevel = append(p.TopLevel, box)
			if h.BoxType == TypeMdat {
				p.MdatStart, p.MdatEnd = h.DataPos(), pos+total
			}
			if total == 0 {
				break
			}
			pos += total
		}
		return nil
	})
}

// ParseTag descends moov → trak → mdia → minf → stbl and moov → udta,
// materialising every udta encountered (with its parentTree) and
// capturing mdat boundaries.
func (p *Parser) ParseTag() {
	p.reset()
	p.safely(p.fullDecode)
}

// ParseTagAndProperties is ParseTag plus exposing mvhd, hdlr (handler
// propagated into the recursion), and stsd.
func (p *Parser) ParseTagAndProperties() {
	p.reset()
	p.safely(p.fullDecode)
	if p.Moov != nil {
		p.Mvhd = p.Moov.Child(TypeMvhd)
		for _, trak := range p.Moov.ChildList(TypeTrak) {
			mdia := trak.Child(TypeMdia)
			if mdia == nil {
				continue
			}
			if h := mdia.Child(TypeHdlr); h != nil && p.Hdlr == nil {
				p.Hdlr = h
			}
			minf := mdia.Child(TypeMinf)
			if minf == nil {
				continue
			}
			stbl := minf.Child(TypeStbl)
			if stbl == nil {
				continue
			}
			if s := stbl.Child(TypeStsd); s != nil && p.Stsd == nil {
				p.Stsd = s
			}
		}
	}
}

// ParseChunkOffsets collects every stco and co64 box in the file.
func (p *Parser) ParseChunkOffsets() []*Box {
	p.reset()
	var out []*Box
	p.safely(func() error {
		if err := p.fullDecode(); err != nil {
			return err
		}
		if p.Moov == nil {
			return nil
		}
		for _, trak := range p.Moov.ChildList(TypeTrak) {
			mdia := trak.Child(TypeMdia)
			if mdia == nil {
				continue
			}
			minf := mdia.Child(TypeMinf)
			if minf == nil {
				continue
			}
			stbl := minf.Child(TypeStbl)
			if stbl == nil {
				continue
			}
			if s := stbl.Child(TypeStco); s != nil {
				out = append(out, s)
			}
			if c := stbl.Child(TypeCo64); c != nil {
				out = append(out, c)
			}
		}
		return nil
	})
	return out
}

// fullDecode materialises the complete top-level box sequence, recursing
// into the known container set. A declared size of 0 terminates the loop
// (it is only legal for the last top-level box) and that box is not added
// as a child of anything further.
func (p *Parser) fullDecode() error {
	buf, err := p.file.ReadAll()
	if err != nil {
		return err
	}
	fileLength := int64(len(buf))
	pos := int64(0)
	for pos < fileLength {
		box, err := Decode(buf, pos, fileLength, nil)
		if err != nil {
			return fmt.Errorf("mp4: top-level box at %d: %w", pos, err)
		}
		p.TopLevel = append(p.TopLevel, box)

		switch box.Header.BoxType {
		case TypeMoov:
			if p.Moov == nil {
				p.Moov = box
			}
			p.collectUdtas(box, nil)
		case TypeMdat:
			if p.MdatStart == 0 && p.MdatEnd == 0 {
				p.MdatStart = box.Header.DataPos()
				p.MdatEnd = box.Header.Position + box.Header.TotalBoxSize
			}
		}

		step := box.Header.TotalBoxSize
		if step == 0 {
			break
		}
		pos += step
	}
	return nil
}

// collectUdtas walks container descends to find every udta box reachable
// from root (moov → udta, moov → trak → udta), recording its ancestor
// chain as parentTree.
func (p *Parser) collectUdtas(box *Box, chain []*Box) {
	if box.Header.BoxType == TypeUdta {
		tree := append([]*Box(nil), chain...)
		p.Udtas = append(p.Udtas, UdtaEntry{Udta: box, ParentTree: tree})
		return
	}
	for _, c := range box.Children {
		nextChain := append(append([]*Box(nil), chain...), box)
		p.collectUdtas(c, nextChain)
	}
}
