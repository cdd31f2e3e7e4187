package textutil

import (
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

func TestDecodeToUTF8_ValidPassthrough(t *testing.T) {
	in := []byte(`{"text":"héllo 世界"}`)
	out, cs := DecodeToUTF8(in)
	if string(out) != string(in) {
		t.Errorf("DecodeToUTF8 changed valid input: %q", out)
	}
	if cs != "UTF-8" {
		t.Errorf("charset = %q, want UTF-8", cs)
	}
}

func TestDecodeToUTF8_StripsBOM(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[]`)...)
	out, _ := DecodeToUTF8(in)
	if string(out) != "[]" {
		t.Errorf("got %q, want []", out)
	}
}

func TestDecodeToUTF8_Windows1252(t *testing.T) {
	want := `{"text":"It’s a “quote” – café"}`
	enc, err := charmap.Windows1252.NewEncoder().String(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if utf8.ValidString(enc) {
		t.Fatal("fixture should not be valid UTF-8")
	}

	out, _ := DecodeToUTF8([]byte(enc))
	if !utf8.Valid(out) {
		t.Fatalf("output is not valid UTF-8: %q", out)
	}
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestEnsureUTF8(t *testing.T) {
	if got := EnsureUTF8("plain"); got != "plain" {
		t.Errorf("EnsureUTF8(plain) = %q", got)
	}
	got := EnsureUTF8("caf\xe9")
	if !utf8.ValidString(got) {
		t.Errorf("EnsureUTF8 returned invalid UTF-8: %q", got)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ok", "ok"},
		{"a\xffb", "a�b"},
		{"\xfe\xff", "��"},
	}
	for _, tt := range tests {
		if got := SanitizeUTF8(tt.in); got != tt.want {
			t.Errorf("SanitizeUTF8(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodingByName(t *testing.T) {
	for _, name := range []string{"windows-1252", "ISO-8859-1", "Shift_JIS", "EUC-KR", "GB-18030", "Big5"} {
		if EncodingByName(name) == nil {
			t.Errorf("EncodingByName(%q) = nil", name)
		}
	}
	if EncodingByName("UTF-8") != nil {
		t.Error("EncodingByName(UTF-8) should be nil")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"日本語テキスト", 5, "日本..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("  one\n two\t\tthree \r\n"); got != "one two three" {
		t.Errorf("SingleLine = %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"single", "single"},
		{"first\nsecond", "first"},
		{"\n\nafter blank\nmore", "after blank"},
		{"crlf\r\nnext", "crlf"},
	}
	for _, tt := range tests {
		if got := FirstLine(tt.in); got != tt.want {
			t.Errorf("FirstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
