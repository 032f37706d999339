// Package mp4 implements encoding and decoding of ISO Base Media File Format
// (MP4/.m4a) boxes and the Apple iTunes metadata tree carried inside them.
package mp4

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// newBoxType creates a BoxType from a 4-character string.
func newBoxType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// canonicalBoxType pads a legacy 3-byte iTunes identifier with the 0xA9
// ("©") sigil so that "alb" and "©alb" compare equal downstream.
func canonicalBoxType(raw [4]byte) BoxType {
	if raw[0] != 0 && raw[1] != 0 && raw[2] != 0 && raw[3] == 0 {
		return BoxType{0xA9, raw[0], raw[1], raw[2]}
	}
	return BoxType(raw)
}

// Known ISO box types.
var (
	TypeFtyp = newBoxType("ftyp")
	TypeMoov = newBoxType("moov")
	TypeMvhd = newBoxType("mvhd")
	TypeTrak = newBoxType("trak")
	TypeTkhd = newBoxType("tkhd")
	TypeTref = newBoxType("tref")
	TypeTrgr = newBoxType("trgr")
	TypeEdts = newBoxType("edts")
	TypeElst = newBoxType("elst")
	TypeMdia = newBoxType("mdia")
	TypeMdhd = newBoxType("mdhd")
	TypeHdlr = newBoxType("hdlr")
	TypeElng = newBoxType("elng")
	TypeMinf = newBoxType("minf")
	TypeVmhd = newBoxType("vmhd")
	TypeSmhd = newBoxType("smhd")
	TypeHmhd = newBoxType("hmhd")
	TypeSthd = newBoxType("sthd")
	TypeNmhd = newBoxType("nmhd")
	TypeDinf = newBoxType("dinf")
	TypeDref = newBoxType("dref")
	TypeStbl = newBoxType("stbl")
	TypeStsd = newBoxType("stsd")
	TypeStts = newBoxType("stts")
	TypeCtts = newBoxType("ctts")
	TypeCslg = newBoxType("cslg")
	TypeStsc = newBoxType("stsc")
	TypeStsz = newBoxType("stsz")
	TypeStz2 = newBoxType("stz2")
	TypeStco = newBoxType("stco")
	TypeCo64 = newBoxType("co64")
	TypeStss = newBoxType("stss")
	TypeStsh = newBoxType("stsh")
	TypePadb = newBoxType("padb")
	TypeStdp = newBoxType("stdp")
	TypeSdtp = newBoxType("sdtp")
	TypeSbgp = newBoxType("sbgp")
	TypeSgpd = newBoxType("sgpd")
	TypeSubs = newBoxType("subs")
	TypeSaiz = newBoxType("saiz")
	TypeSaio = newBoxType("saio")
	TypeMvex = newBoxType("mvex")
	TypeMehd = newBoxType("mehd")
	TypeTrex = newBoxType("trex")
	TypeLeva = newBoxType("leva")
	TypeMoof = newBoxType("moof")
	TypeMfhd = newBoxType("mfhd")
	TypeTraf = newBoxType("traf")
	TypeTfhd = newBoxType("tfhd")
	TypeTfdt = newBoxType("tfdt")
	TypeTrun = newBoxType("trun")
	TypeMeta = newBoxType("meta")
	TypeUdta = newBoxType("udta")
	TypeMdat = newBoxType("mdat")
	TypeFree = newBoxType("free")
	TypeSkip = newBoxType("skip")
	TypeAvc1 = newBoxType("avc1")
	TypeAvcC = newBoxType("avcC")
	TypeMp4a = newBoxType("mp4a")
	TypeEsds = newBoxType("esds")
	TypeUUID = newBoxType("uuid")
	TypeText = newBoxType("text")
	TypeURL  = newBoxType("url ")

	// Apple iTunes metadata box types.
	TypeIlst = newBoxType("ilst")
	TypeData = newBoxType("data")
	TypeMean = newBoxType("mean")
	TypeName = newBoxType("name")
	TypeDash = newBoxType("----")

	// Apple iTunes ilst annotation tag keys.
	TypeNam  = BoxType{0xA9, 'n', 'a', 'm'} // title
	TypeAlb  = BoxType{0xA9, 'a', 'l', 'b'} // album
	TypeArt  = BoxType{0xA9, 'A', 'R', 'T'} // artist
	TypeAART = newBoxType("aART")           // album artist
	TypeWrt  = BoxType{0xA9, 'w', 'r', 't'} // composer
	TypeCmt  = BoxType{0xA9, 'c', 'm', 't'} // comment
	TypeGen  = BoxType{0xA9, 'g', 'e', 'n'} // genre (text)
	TypeGnre = newBoxType("gnre")           // genre (legacy ID3v1 index)
	TypeDay  = BoxType{0xA9, 'd', 'a', 'y'} // year / date-tagged
	TypeGrp  = BoxType{0xA9, 'g', 'r', 'p'} // grouping
	TypeLyr  = BoxType{0xA9, 'l', 'y', 'r'} // lyrics
	TypeCon  = BoxType{0xA9, 'c', 'o', 'n'} // conductor
	TypeCprt = newBoxType("cprt")           // copyright
	TypePub  = BoxType{0xA9, 'p', 'u', 'b'} // publisher
	TypeTrkn = newBoxType("trkn")           // track number / count
	TypeDisk = newBoxType("disk")           // disk number / count
	TypeCpil = newBoxType("cpil")           // compilation flag
	TypeTmpo = newBoxType("tmpo")           // tempo (bpm)
	TypeCovr = newBoxType("covr")           // artwork

	TypeSonm = newBoxType("sonm") // sort title
	TypeSoal = newBoxType("soal") // sort album
	TypeSoar = newBoxType("soar") // sort artist
	TypeSoaa = newBoxType("soaa") // sort album artist
	TypeSoco = newBoxType("soco") // sort composer
)

// containerSet is the set of box types the parser recurses into because
// their children matter to the tag/properties traversals.
var containerSet = map[BoxType]bool{
	TypeMoov: true,
	TypeTrak: true,
	TypeMdia: true,
	TypeMinf: true,
	TypeStbl: true,
	TypeUdta: true,
	TypeMeta: true,
	TypeIlst: true,
	TypeDinf: true,
	TypeEdts: true,
	TypeMvex: true,
	TypeDash: true,
}

// fullBoxes is the set of box types that carry the FullBox version+flags
// preamble ahead of their payload.
var fullBoxes = map[BoxType]bool{
	TypeMvhd: true,
	TypeTkhd: true,
	TypeMdhd: true,
	TypeVmhd: true,
	TypeSmhd: true,
	TypeHdlr: true,
	TypeStsd: true,
	TypeStts: true,
	TypeCtts: true,
	TypeStsc: true,
	TypeStsz: true,
	TypeStco: true,
	TypeCo64: true,
	TypeDref: true,
	TypeElst: true,
	TypeMeta: true,
	TypeMehd: true,
	TypeTrex: true,
	TypeMfhd: true,
	TypeTfhd: true,
	TypeTfdt: true,
	TypeTrun: true,
	TypeData: true,
	TypeMean: true,
	TypeName: true,
}
