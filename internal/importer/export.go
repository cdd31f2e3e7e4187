// Package importer loads a chat export file into the message store.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/wesm/chatarchive/internal/textutil"
)

// ExportCreator is the nested author object of an exported message.
type ExportCreator struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// ExportMessage is one entry of the export file.
type ExportMessage struct {
	MessageID   string        `json:"message_id"`
	Creator     ExportCreator `json:"creator"`
	CreatedDate string        `json:"created_date"`
	Text        string        `json:"text"`
	TopicID     string        `json:"topic_id"`
}

type exportFile struct {
	Messages []ExportMessage `json:"messages"`
}

// Export is a parsed export file.
type Export struct {
	Messages []ExportMessage
	Charset  string // encoding the file was read as
}

// ParseExport reads an export document. Both the {"messages": [...]} wrapper
// and a bare top-level array are accepted. Non-UTF-8 files are converted
// before decoding.
func ParseExport(r io.Reader) (*Export, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	data, charset := textutil.DecodeToUTF8(raw)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("parse export: empty document")
	}

	exp := &Export{Charset: charset}
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &exp.Messages); err != nil {
			return nil, fmt.Errorf("parse export: %w", err)
		}
	case '{':
		var f exportFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("parse export: %w", err)
		}
		if f.Messages == nil {
			return nil, fmt.Errorf("parse export: missing \"messages\" array")
		}
		exp.Messages = f.Messages
	default:
		return nil, fmt.Errorf("parse export: expected JSON object or array, got %q", trimmed[0])
	}
	return exp, nil
}

// Export dates look like "Friday, 1 April 2016 at 10:41:58 UTC". The weekday
// and zone name are ignored; the clock is always UTC.
var createdDateRe = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})\s+at\s+(\d{1,2}):(\d{2}):(\d{2})`)

// ParseCreatedDate converts an export display date to epoch milliseconds.
// ok is false when the string does not match the export format.
func ParseCreatedDate(s string) (millis int64, ok bool) {
	m := createdDateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	month, err := time.Parse("January", m[2])
	if err != nil {
		return 0, false
	}
	n := make([]int, 0, 5)
	for _, idx := range []int{1, 3, 4, 5, 6} {
		v, err := strconv.Atoi(m[idx])
		if err != nil {
			return 0, false
		}
		n = append(n, v)
	}
	day, year, hour, minute, second := n[0], n[1], n[2], n[3], n[4]
	if day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return 0, false
	}
	t := time.Date(year, month.Month(), day, hour, minute, second, 0, time.UTC)
	return t.UnixMilli(), true
}
