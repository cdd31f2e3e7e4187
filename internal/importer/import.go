package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/textutil"
)

const (
	defaultBatchSize       = 1000
	defaultMaxLoggedErrors = 10
)

// ImportOptions controls an import run.
type ImportOptions struct {
	// BatchSize is the number of rows per transaction. Defaults to 1000.
	BatchSize int

	// MaxLoggedErrors caps how many row failures are logged individually.
	// All failures are still counted. Defaults to 10.
	MaxLoggedErrors int

	// Progress, if set, is called after each committed batch.
	Progress func(done, total int)

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

// ImportSummary reports the outcome of an import.
type ImportSummary struct {
	Total        int
	Imported     int
	Errors       int
	DateWarnings int // rows stored with timestamp 0
	Earliest     int64
	Latest       int64
	Charset      string
	Duration     time.Duration
}

// ErrInvalidRow marks an export entry missing a required field.
var ErrInvalidRow = errors.New("invalid export row")

// ImportFile parses the export at path and imports it into st.
func ImportFile(ctx context.Context, st *store.Store, path string, opts ImportOptions) (*ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	exp, err := ParseExport(f)
	if err != nil {
		return nil, err
	}
	summary, err := Import(ctx, st, exp.Messages, opts)
	if summary != nil {
		summary.Charset = exp.Charset
	}
	return summary, err
}

// Import converts and inserts msgs in batches. A cancelled context stops
// the run between batches; rows already committed stay committed.
func Import(ctx context.Context, st *store.Store, msgs []ExportMessage, opts ImportOptions) (*ImportSummary, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxLogged := opts.MaxLoggedErrors
	if maxLogged <= 0 {
		maxLogged = defaultMaxLoggedErrors
	}

	summary := &ImportSummary{Total: len(msgs)}
	logRowErr := func(id string, err error) {
		summary.Errors++
		if summary.Errors <= maxLogged {
			log.Warn("skipping message", "message_id", id, "error", err)
		}
	}

	batch := make([]store.Message, 0, batchSize)
	for i := 0; i < len(msgs); i += batchSize {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		end := min(i+batchSize, len(msgs))
		batch = batch[:0]
		for _, em := range msgs[i:end] {
			m, err := toStoreMessage(em)
			if err != nil {
				logRowErr(em.MessageID, err)
				continue
			}
			if m.CreatedTimestamp == 0 {
				summary.DateWarnings++
				if summary.DateWarnings <= maxLogged {
					log.Warn("unparseable created_date, storing timestamp 0",
						"message_id", m.MessageID, "created_date", m.CreatedDate)
				}
			}
			batch = append(batch, m)
		}

		inserted, rowErrs, err := st.InsertMessages(batch)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("import batch at %d: %w", i, err)
		}
		summary.Imported += inserted
		for _, re := range rowErrs {
			logRowErr(re.MessageID, re.Err)
		}

		if opts.Progress != nil {
			opts.Progress(end, len(msgs))
		}
	}

	if stats, err := st.GetStats(); err == nil {
		summary.Earliest = stats.EarliestMillis
		summary.Latest = stats.LatestMillis
	}
	summary.Duration = time.Since(start)
	if summary.Errors > maxLogged {
		log.Warn("additional row errors not logged", "count", summary.Errors-maxLogged)
	}
	return summary, nil
}

func toStoreMessage(em ExportMessage) (store.Message, error) {
	if em.MessageID == "" {
		return store.Message{}, fmt.Errorf("%w: missing message_id", ErrInvalidRow)
	}
	if em.Creator.Email == "" {
		return store.Message{}, fmt.Errorf("%w: missing creator email", ErrInvalidRow)
	}
	ts, _ := ParseCreatedDate(em.CreatedDate)
	return store.Message{
		MessageID:        em.MessageID,
		CreatorName:      textutil.EnsureUTF8(em.Creator.Name),
		CreatorEmail:     em.Creator.Email,
		CreatorUserType:  em.Creator.UserType,
		CreatedDate:      em.CreatedDate,
		CreatedTimestamp: ts,
		Text:             textutil.EnsureUTF8(em.Text),
		TopicID:          em.TopicID,
	}, nil
}
