package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseCreatedDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"Friday, 1 April 2016 at 10:41:58 UTC", time.Date(2016, 4, 1, 10, 41, 58, 0, time.UTC), true},
		{"Tuesday, 31 December 2019 at 23:59:59 UTC", time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC), true},
		{"Monday, 9 January 2023 at 7:05:00 UTC", time.Date(2023, 1, 9, 7, 5, 0, 0, time.UTC), true},
		// weekday mismatch is ignored
		{"Sunday, 1 April 2016 at 10:41:58 UTC", time.Date(2016, 4, 1, 10, 41, 58, 0, time.UTC), true},
		{"2016-04-01T10:41:58Z", time.Time{}, false},
		{"Friday, 1 Avril 2016 at 10:41:58 UTC", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCreatedDate(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if got != 0 {
					t.Errorf("millis = %d on failure, want 0", got)
				}
				return
			}
			if got != tt.want.UnixMilli() {
				t.Errorf("millis = %d (%s), want %s", got, time.UnixMilli(got).UTC(), tt.want)
			}
		})
	}
}

func TestParseExport_Wrapper(t *testing.T) {
	doc := `{"messages":[
		{"message_id":"m1","creator":{"name":"Alice","email":"alice@example.com","user_type":"Human"},
		 "created_date":"Friday, 1 April 2016 at 10:41:58 UTC","text":"hi","topic_id":"t1"}
	]}`
	exp, err := ParseExport(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseExport: %v", err)
	}
	want := []ExportMessage{{
		MessageID:   "m1",
		Creator:     ExportCreator{Name: "Alice", Email: "alice@example.com", UserType: "Human"},
		CreatedDate: "Friday, 1 April 2016 at 10:41:58 UTC",
		Text:        "hi",
		TopicID:     "t1",
	}}
	if diff := cmp.Diff(want, exp.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if exp.Charset != "UTF-8" {
		t.Errorf("charset = %q", exp.Charset)
	}
}

func TestParseExport_BareArray(t *testing.T) {
	exp, err := ParseExport(strings.NewReader(` [{"message_id":"a"},{"message_id":"b"}] `))
	if err != nil {
		t.Fatalf("ParseExport: %v", err)
	}
	if len(exp.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(exp.Messages))
	}
}

func TestParseExport_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "   ", "empty document"},
		{"no messages key", `{"items":[]}`, "missing \"messages\""},
		{"scalar", `42`, "expected JSON object or array"},
		{"truncated", `{"messages":[{"message_id":`, "parse export"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExport(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
