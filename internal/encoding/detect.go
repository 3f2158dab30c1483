package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	UTF8        = "UTF-8"
	UTF16LE     = "UTF-16LE"
	UTF16BE     = "UTF-16BE"
	Windows1252 = "windows-1252"
)

// sniffSize is how much of the input is inspected before deciding.
const sniffSize = 4096

var boms = []struct {
	prefix  []byte
	charset string
}{
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

// decoders maps chardet charset names to decoders. Latin-1 is read as
// Windows-1252, its superset, which is what spreadsheet exports produce.
var decoders = map[string]encoding.Encoding{
	UTF16LE:       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:       unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	"ISO-8859-1":  charmap.Windows1252,
	Windows1252:   charmap.Windows1252,
	"ISO-8859-15": charmap.ISO8859_15,
	"ISO-8859-9":  charmap.ISO8859_9,
}

// NewUTF8Reader returns a reader yielding the input as UTF-8 together with
// the name of the charset it was decoded from. A BOM wins over content
// sniffing; input that is already valid UTF-8 is passed through; anything
// chardet cannot place is read as Windows-1252.
func NewUTF8Reader(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	for _, bom := range boms {
		if !bytes.HasPrefix(head, bom.prefix) {
			continue
		}

		if bom.charset == UTF8 {
			_, _ = br.Discard(len(bom.prefix))
			return br, UTF8, nil
		}

		return transform.NewReader(br, decoders[bom.charset].NewDecoder()), bom.charset, nil
	}

	if validUTF8Prefix(head) {
		return br, UTF8, nil
	}

	if res, err := chardet.NewTextDetector().DetectBest(head); err == nil {
		if res.Charset == UTF8 {
			return br, UTF8, nil
		}

		if enc, ok := decoders[res.Charset]; ok {
			return transform.NewReader(br, enc.NewDecoder()), res.Charset, nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), Windows1252, nil
}

// validUTF8Prefix is utf8.Valid tolerating a rune cut off by the sniff
// window.
func validUTF8Prefix(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}

	for i := 1; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) && !utf8.FullRune(b[len(b)-i:]) {
			return true
		}
	}

	return false
}
