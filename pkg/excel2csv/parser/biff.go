package parser

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// BIFF record identifiers.
const (
	recFormula    uint16 = 0x0006
	recEOF        uint16 = 0x000A
	recFilePass   uint16 = 0x002F
	recContinue   uint16 = 0x003C
	recCodePage   uint16 = 0x0042
	recBoundSheet uint16 = 0x0085
	recMulRK      uint16 = 0x00BD
	recMulBlank   uint16 = 0x00BE
	recRString    uint16 = 0x00D6
	recSST        uint16 = 0x00FC
	recLabelSST   uint16 = 0x00FD
	recBlank      uint16 = 0x0201
	recNumber     uint16 = 0x0203
	recLabel      uint16 = 0x0204
	recBoolErr    uint16 = 0x0205
	recString     uint16 = 0x0207
	recRow        uint16 = 0x0208
	recRK         uint16 = 0x027E
	recBOF        uint16 = 0x0809
)

// BOF versions.
const (
	biff5 uint16 = 0x0500
	biff8 uint16 = 0x0600
)

// Unicode string option flags.
const (
	strHighByte uint8 = 0x01
	strExtended uint8 = 0x04
	strRich     uint8 = 0x08
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// record is one BIFF record. parts holds the record body followed by the
// bodies of its CONTINUE records; data is their concatenation.
type record struct {
	typ    uint16
	offset int
	data   []byte
	parts  [][]byte
}

// recordReader walks the records of a workbook stream.
type recordReader struct {
	stream []byte
	pos    int
}

func (r *recordReader) seek(offset int) error {
	if offset < 0 || offset > len(r.stream) {
		return fmt.Errorf("%w: record offset %d outside stream", ErrUnrecognizedFormat, offset)
	}
	r.pos = offset
	return nil
}

func (r *recordReader) header() (typ uint16, size int, ok bool) {
	if r.pos+4 > len(r.stream) {
		return 0, 0, false
	}
	typ = binary.LittleEndian.Uint16(r.stream[r.pos:])
	size = int(binary.LittleEndian.Uint16(r.stream[r.pos+2:]))
	return typ, size, true
}

// next returns the record at the current position with its continuations
// attached, or io.EOF at the end of the stream.
func (r *recordReader) next() (record, error) {
	typ, size, ok := r.header()
	if !ok {
		return record{}, io.EOF
	}
	rec := record{typ: typ, offset: r.pos}
	body, err := r.body(size)
	if err != nil {
		return rec, err
	}
	rec.parts = append(rec.parts, body)
	for {
		typ, size, ok := r.header()
		if !ok || typ != recContinue {
			break
		}
		body, err := r.body(size)
		if err != nil {
			return rec, err
		}
		rec.parts = append(rec.parts, body)
	}

	if len(rec.parts) == 1 {
		rec.data = rec.parts[0]
	} else {
		for _, p := range rec.parts {
			rec.data = append(rec.data, p...)
		}
	}
	return rec, nil
}

func (r *recordReader) body(size int) ([]byte, error) {
	start := r.pos + 4
	end := start + size
	if end > len(r.stream) {
		return nil, fmt.Errorf("%w: record at %d runs past the end of the stream", ErrUnrecognizedFormat, r.pos)
	}
	r.pos = end
	return r.stream[start:end], nil
}

func truncated(rec record) error {
	return fmt.Errorf("%w: truncated record 0x%04X at %d", ErrUnrecognizedFormat, rec.typ, rec.offset)
}

// decodeRK unpacks the compressed RK number representation.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// stringDecoder decodes the strings of one workbook. BIFF8 strings are
// UTF-16 or compressed Latin-1; BIFF5 strings are bytes in the workbook
// code page.
type stringDecoder struct {
	version  uint16
	codePage encoding.Encoding
}

func newStringDecoder(version uint16) *stringDecoder {
	return &stringDecoder{version: version, codePage: charmap.Windows1252}
}

// setCodePage applies a CODEPAGE record. Unknown code pages keep the default.
func (d *stringDecoder) setCodePage(cp uint16) {
	if enc := codePageEncoding(cp); enc != nil {
		d.codePage = enc
	}
}

// codePages maps Windows code page identifiers to IANA charset names.
var codePages = map[uint16]string{
	367:   "US-ASCII",
	437:   "IBM437",
	850:   "IBM850",
	852:   "IBM852",
	866:   "IBM866",
	874:   "windows-874",
	932:   "Shift_JIS",
	936:   "GBK",
	949:   "EUC-KR",
	950:   "Big5",
	1250:  "windows-1250",
	1251:  "windows-1251",
	1252:  "windows-1252",
	1253:  "windows-1253",
	1254:  "windows-1254",
	1255:  "windows-1255",
	1256:  "windows-1256",
	1257:  "windows-1257",
	1258:  "windows-1258",
	10000: "macintosh",
	32768: "macintosh",
	32769: "windows-1252",
}

func codePageEncoding(cp uint16) encoding.Encoding {
	name, ok := codePages[cp]
	if !ok {
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil
	}
	return enc
}

// bytes decodes a BIFF5 byte string.
func (d *stringDecoder) bytes(b []byte) string {
	s, err := d.codePage.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// short decodes a string with an 8-bit length prefix (sheet names).
func (d *stringDecoder) short(b []byte) (string, error) {
	if len(b) < 1 {
		return "", io.ErrUnexpectedEOF
	}
	s, _, err := d.counted(b[1:], int(b[0]))
	return s, err
}

// long decodes a string with a 16-bit length prefix and returns the number
// of bytes consumed.
func (d *stringDecoder) long(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, io.ErrUnexpectedEOF
	}
	s, n, err := d.counted(b[2:], int(binary.LittleEndian.Uint16(b)))
	return s, n + 2, err
}

func (d *stringDecoder) counted(b []byte, cch int) (string, int, error) {
	if d.version < biff8 {
		if len(b) < cch {
			return "", 0, io.ErrUnexpectedEOF
		}
		return d.bytes(b[:cch]), cch, nil
	}

	if len(b) < 1 {
		return "", 0, io.ErrUnexpectedEOF
	}
	flags := b[0]
	pos := 1
	runs, ext := 0, 0
	if flags&strRich != 0 {
		if len(b) < pos+2 {
			return "", 0, io.ErrUnexpectedEOF
		}
		runs = int(binary.LittleEndian.Uint16(b[pos:]))
		pos += 2
	}
	if flags&strExtended != 0 {
		if len(b) < pos+4 {
			return "", 0, io.ErrUnexpectedEOF
		}
		ext = int(binary.LittleEndian.Uint32(b[pos:]))
		pos += 4
	}
	width := 1
	if flags&strHighByte != 0 {
		width = 2
	}
	if len(b) < pos+cch*width {
		return "", 0, io.ErrUnexpectedEOF
	}
	units := widen(b[pos:pos+cch*width], width == 2)
	pos += cch*width + runs*4 + ext
	s, err := utf16le.NewDecoder().Bytes(units)
	if err != nil {
		return "", 0, err
	}
	return string(s), pos, nil
}

// widen returns UTF-16LE code units for character data stored either as
// UTF-16LE or as compressed single bytes.
func widen(b []byte, high bool) []byte {
	if high {
		return b
	}
	units := make([]byte, 2*len(b))
	for i, c := range b {
		units[2*i] = c
	}
	return units
}

// sstReader reads the shared string table across its CONTINUE records.
// Character data split at a record boundary resumes with a fresh option
// byte; every other field continues unchanged.
type sstReader struct {
	parts [][]byte
	part  int
	pos   int
}

func (r *sstReader) advance() bool {
	for r.part < len(r.parts) && r.pos >= len(r.parts[r.part]) {
		r.part++
		r.pos = 0
	}
	return r.part < len(r.parts)
}

func (r *sstReader) read(n int) ([]byte, error) {
	var out []byte
	for n > 0 {
		if !r.advance() {
			return nil, io.ErrUnexpectedEOF
		}
		p := r.parts[r.part]
		k := min(n, len(p)-r.pos)
		out = append(out, p[r.pos:r.pos+k]...)
		r.pos += k
		n -= k
	}
	return out, nil
}

func (r *sstReader) skip(n int) error {
	_, err := r.read(n)
	return err
}

// chars reads cch characters starting in the current part. When the data
// continues in the next part, that part opens with a new option byte.
func (r *sstReader) chars(cch int, high bool) ([]byte, error) {
	var units []byte
	for {
		width := 1
		if high {
			width = 2
		}
		p := r.parts[r.part]
		k := min(cch, (len(p)-r.pos)/width)
		units = append(units, widen(p[r.pos:r.pos+k*width], high)...)
		r.pos += k * width
		cch -= k
		if cch == 0 {
			return units, nil
		}

		r.part++
		if r.part >= len(r.parts) || len(r.parts[r.part]) == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		high = r.parts[r.part][0]&strHighByte != 0
		r.pos = 1
	}
}

func (r *sstReader) next() (string, error) {
	head, err := r.read(3)
	if err != nil {
		return "", err
	}
	cch := int(binary.LittleEndian.Uint16(head))
	flags := head[2]
	runs, ext := 0, 0
	if flags&strRich != 0 {
		b, err := r.read(2)
		if err != nil {
			return "", err
		}
		runs = int(binary.LittleEndian.Uint16(b))
	}
	if flags&strExtended != 0 {
		b, err := r.read(4)
		if err != nil {
			return "", err
		}
		ext = int(binary.LittleEndian.Uint32(b))
	}
	units, err := r.chars(cch, flags&strHighByte != 0)
	if err != nil {
		return "", err
	}
	if err := r.skip(runs*4 + ext); err != nil {
		return "", err
	}
	s, err := utf16le.NewDecoder().Bytes(units)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// parseSST decodes a BIFF8 shared string table record.
func parseSST(rec record) ([]string, error) {
	if len(rec.parts[0]) < 8 {
		return nil, truncated(rec)
	}
	unique := int(binary.LittleEndian.Uint32(rec.parts[0][4:]))
	r := &sstReader{parts: rec.parts, pos: 8}

	strs := make([]string, 0, min(unique, 1<<16))
	for i := 0; i < unique; i++ {
		s, err := r.next()
		if err != nil {
			return strs, fmt.Errorf("%w: shared string %d: %v", ErrUnrecognizedFormat, i, err)
		}
		strs = append(strs, s)
	}
	return strs, nil
}
