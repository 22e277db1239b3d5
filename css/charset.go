package css

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8     = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE  = []byte{0xFE, 0xFF}
	bomUTF16LE  = []byte{0xFF, 0xFE}
	charsetRule = []byte(`@charset "`)
)

// ReadFile reads stylesheet from path converting it to UTF-8.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode converts stylesheet to UTF-8 following its byte order mark or
// leading @charset rule. Stylesheets without either are assumed to be UTF-8.
func Decode(data []byte) ([]byte, error) {
	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], nil
	case bytes.HasPrefix(data, bomUTF16BE):
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, bomUTF16LE):
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, charsetRule):
		end := bytes.IndexByte(data[len(charsetRule):], '"')
		if end < 0 {
			return data, nil
		}
		label := string(data[len(charsetRule) : len(charsetRule)+end])
		e, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported stylesheet charset %q: %w", label, err)
		}
		// @charset can only be read if the file is ASCII compatible, UTF-16
		// labels are treated as UTF-8 then
		switch name, _ := htmlindex.Name(e); name {
		case "utf-8", "utf-16be", "utf-16le":
			return data, nil
		}
		enc = e
	default:
		return data, nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet: %w", err)
	}
	return out, nil
}
