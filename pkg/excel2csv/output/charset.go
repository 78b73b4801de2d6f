package output

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultCharset is used when no output charset is configured.
const DefaultCharset = "UTF-8"

// LookupCharset resolves an IANA or WHATWG charset name. The empty name is UTF-8.
func LookupCharset(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultCharset
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", name, err)
	}
	return enc, nil
}

// NewEncodingWriter returns a writer that encodes UTF-8 input into enc before
// writing to w. Characters enc cannot represent are replaced. Close must be
// called to flush pending bytes; it does not close w.
func NewEncodingWriter(w io.Writer, enc encoding.Encoding) io.WriteCloser {
	if enc == nil || enc == unicode.UTF8 || enc == encoding.Nop {
		return nopWriteCloser{w}
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder()))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
