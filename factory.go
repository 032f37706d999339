package mp4

// NewContainer builds an empty generic container box of the given type,
// ready to receive children via AppendChild. NewUdta and NewMeta build on
// it when a udta or meta box is absent from a file and must be synthesised
// on first write.
func NewContainer(t BoxType) *Box {
	return &Box{Header: Header{BoxType: t, HeaderSize: 8}}
}

// NewFullBox builds an empty FullBox container (version 0, flags 0).
func NewFullBox(t BoxType) *Box {
	b := NewContainer(t)
	return b
}

// NewHdlr builds an hdlr box declaring handlerType. A meta box that
// carries iTunes tags requires handler type "mdir".
func NewHdlr(handlerType [4]byte) *Box {
	b := &Box{Header: Header{BoxType: TypeHdlr, HeaderSize: 8}}
	b.Hdlr = &Hdlr{HandlerType: handlerType}
	return b
}

// HandlerMdir is the handler type stamped on the hdlr box under a
// tag-bearing meta.
var HandlerMdir = [4]byte{'m', 'd', 'i', 'r'}
var HandlerSoun = [4]byte{'s', 'o', 'u', 'n'}
var HandlerVide = [4]byte{'v', 'i', 'd', 'e'}
var HandlerAlis = [4]byte{'a', 'l', 'i', 's'}

// NewUdta builds an empty udta box.
func NewUdta() *Box { return NewContainer(TypeUdta) }

// NewMeta builds an empty meta box (a FullBox container) with its required
// hdlr child (handler type mdir) and an empty ilst child, matching the
// shape the parser expects when it repairs a tag-bearing meta missing its
// hdlr (boundary behaviour in the testable-properties section).
func NewMeta() *Box {
	meta := NewFullBox(TypeMeta)
	hdlr := NewHdlr(HandlerMdir)
	meta.Handler = hdlr
	meta.AppendChild(hdlr)
	ilst := NewIlst()
	ilst.Handler = hdlr
	meta.AppendChild(ilst)
	return meta
}

// NewIlst builds an empty Apple item-list box.
func NewIlst() *Box {
	return &Box{Header: Header{BoxType: TypeIlst, HeaderSize: 8}}
}

// EnsureMetaIlst guarantees udta carries a meta child (with an mdir
// hdlr, repairing one that is missing) and an ilst child, creating
// whichever is absent.
func EnsureMetaIlst(udta *Box) (meta, ilst *Box) {
	meta = udta.Child(TypeMeta)
	if meta == nil {
		meta = NewMeta()
		udta.AppendChild(meta)
		return meta, meta.Child(TypeIlst)
	}
	if meta.Child(TypeHdlr) == nil {
		hdlr := NewHdlr(HandlerMdir)
		meta.Handler = hdlr
		meta.Children = append([]*Box{hdlr}, meta.Children...)
	}
	ilst = meta.Child(TypeIlst)
	if ilst == nil {
		ilst = NewIlst()
		ilst.Handler = meta.Handler
		meta.AppendChild(ilst)
	}
	return meta, ilst
}

// FindOrCreateTagChain locates the udta → meta → ilst chain under moov,
// creating any missing link.
func FindOrCreateTagChain(moov *Box) (udta, meta, ilst *Box) {
	udta = moov.Child(TypeUdta)
	if udta == nil {
		udta = NewUdta()
		moov.AppendChild(udta)
	}
	meta, ilst = EnsureMetaIlst(udta)
	return udta, meta, ilst
}
