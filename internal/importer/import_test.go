package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/wesm/chatarchive/internal/testutil"
)

func exportMsg(id, date, text string) ExportMessage {
	return ExportMessage{
		MessageID:   id,
		Creator:     ExportCreator{Name: "Alice", Email: "alice@example.com", UserType: "Human"},
		CreatedDate: date,
		Text:        text,
		TopicID:     "t1",
	}
}

func TestImportFile(t *testing.T) {
	st := testutil.NewTestStore(t)
	dir := t.TempDir()

	doc := map[string][]ExportMessage{"messages": {
		exportMsg("1", "Friday, 1 April 2016 at 10:41:58 UTC", "first"),
		exportMsg("2", "Saturday, 2 April 2016 at 08:00:00 UTC", "second"),
		exportMsg("3", "not a date", "third"),
	}}
	data, err := json.Marshal(doc)
	testutil.MustNoErr(t, err, "marshal")
	path := testutil.WriteFile(t, dir, "messages.json", data)

	summary, err := ImportFile(context.Background(), st, path, ImportOptions{})
	testutil.MustNoErr(t, err, "ImportFile")

	if summary.Total != 3 || summary.Imported != 3 || summary.Errors != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.DateWarnings != 1 {
		t.Errorf("DateWarnings = %d, want 1", summary.DateWarnings)
	}
	if summary.Earliest != 0 {
		t.Errorf("Earliest = %d, want 0 (unparsed date row)", summary.Earliest)
	}

	m, err := st.GetMessage("3")
	testutil.MustNoErr(t, err, "GetMessage")
	if m.CreatedTimestamp != 0 || m.CreatedDate != "not a date" {
		t.Errorf("row 3 = %+v", m)
	}
	m, err = st.GetMessage("1")
	testutil.MustNoErr(t, err, "GetMessage")
	if m.CreatedTimestamp != 1459507318000 {
		t.Errorf("row 1 timestamp = %d, want 1459507318000", m.CreatedTimestamp)
	}
	if m.CreatorUserType != "Human" || m.TopicID != "t1" {
		t.Errorf("row 1 = %+v", m)
	}
}

func TestImport_BatchesAndRowErrors(t *testing.T) {
	st := testutil.NewTestStore(t)

	var msgs []ExportMessage
	for i := 0; i < 25; i++ {
		msgs = append(msgs, exportMsg(fmt.Sprintf("m%02d", i), "Friday, 1 April 2016 at 10:41:58 UTC", "x"))
	}
	msgs = append(msgs,
		exportMsg("m03", "Friday, 1 April 2016 at 10:41:58 UTC", "duplicate"),
		ExportMessage{MessageID: "no-creator"},
		ExportMessage{Creator: ExportCreator{Email: "x@example.com"}},
	)

	var progress []int
	summary, err := Import(context.Background(), st, msgs, ImportOptions{
		BatchSize:       10,
		MaxLoggedErrors: 1,
		Progress:        func(done, _ int) { progress = append(progress, done) },
	})
	testutil.MustNoErr(t, err, "Import")

	if summary.Imported != 25 {
		t.Errorf("Imported = %d, want 25", summary.Imported)
	}
	if summary.Errors != 3 {
		t.Errorf("Errors = %d, want 3", summary.Errors)
	}
	testutil.AssertEqualSlices(t, progress, 10, 20, 28)

	n, err := st.CountMessages()
	testutil.MustNoErr(t, err, "CountMessages")
	if n != 25 {
		t.Errorf("CountMessages = %d, want 25", n)
	}
	dup, _ := st.GetMessage("m03")
	if dup.Text != "x" {
		t.Errorf("duplicate replaced the original row: %+v", dup)
	}
}

func TestImport_Cancelled(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Import(ctx, st, []ExportMessage{exportMsg("1", "", "")}, ImportOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestToStoreMessage_Invalid(t *testing.T) {
	_, err := toStoreMessage(ExportMessage{Creator: ExportCreator{Email: "a@b"}})
	if !errors.Is(err, ErrInvalidRow) {
		t.Errorf("err = %v, want ErrInvalidRow", err)
	}
}
