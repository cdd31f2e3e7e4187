// Package textutil holds the small text helpers shared by the importer,
// the tagger and the CLI output.
package textutil

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// fallbacks are tried in order when detection is inconclusive. Chat exports
// re-saved on Windows are almost always 1252.
var fallbacks = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1252", charmap.Windows1252},
	{"ISO-8859-1", charmap.ISO8859_1},
	{"Shift_JIS", japanese.ShiftJIS},
	{"EUC-KR", korean.EUCKR},
	{"GBK", simplifiedchinese.GBK},
	{"Big5", traditionalchinese.Big5},
}

// DecodeToUTF8 converts a whole document to UTF-8 and reports the charset it
// was read as. Valid UTF-8 input is returned unchanged except for a leading
// byte order mark, which is stripped. UTF-16 documents with a BOM are decoded.
func DecodeToUTF8(data []byte) ([]byte, string) {
	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
	}
	if utf8.Valid(data) {
		return data, "UTF-8"
	}

	if len(data) >= 2 && (data[0] == 0xFF && data[1] == 0xFE || data[0] == 0xFE && data[1] == 0xFF) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil && utf8.Valid(out) {
			return out, "UTF-16"
		}
	}

	minConfidence := 30
	if len(data) > 50 {
		minConfidence = 50
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err == nil && result.Confidence >= minConfidence {
		if enc := EncodingByName(result.Charset); enc != nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(out) {
				return out, result.Charset
			}
		}
	}

	for _, fb := range fallbacks {
		if out, err := fb.enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(out) {
			return out, fb.name
		}
	}

	return []byte(SanitizeUTF8(string(data))), "unknown"
}

// EnsureUTF8 returns s if it is valid UTF-8 and otherwise the best-effort
// conversion from DecodeToUTF8.
func EnsureUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, _ := DecodeToUTF8([]byte(s))
	return string(out)
}

// SanitizeUTF8 replaces invalid UTF-8 bytes with U+FFFD.
func SanitizeUTF8(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune('�')
			i++
			continue
		}
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}

// EncodingByName maps a chardet charset name to a decoder.
func EncodingByName(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "iso-8859-15":
		return charmap.ISO8859_15
	case "iso-8859-2":
		return charmap.ISO8859_2
	case "koi8-r":
		return charmap.KOI8R
	case "shift_jis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	case "euc-kr":
		return korean.EUCKR
	case "gb2312", "gbk", "gb-18030", "gb18030":
		return simplifiedchinese.GB18030
	case "big5":
		return traditionalchinese.Big5
	default:
		return nil
	}
}

// TruncateRunes shortens s to at most maxRunes runes, ending in "..." when
// anything was cut.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// SingleLine collapses all whitespace runs, including newlines, to a single
// space. Used for table output and LLM prompts where one message must stay on
// one line.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstLine returns the first non-empty line of s.
func FirstLine(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}
