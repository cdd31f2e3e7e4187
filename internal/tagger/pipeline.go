// Package tagger runs the offline classification jobs that populate the
// tags column: the LLM tagging pipeline and the conversation-stopper pass.
package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tags"
)

// Store is the subset of *store.Store the pipeline needs.
type Store interface {
	ListTagCandidates(afterID int64, limit int, untaggedOnly bool) ([]store.TagCandidate, error)
	CountTagCandidates(afterID int64, untaggedOnly bool) (int64, error)
	UpdateTags(updates []store.TagUpdate) error
}

// Options configures a tagging run.
type Options struct {
	BatchSize         int // messages per LLM request (default 50)
	Concurrency       int // requests in flight (default 3)
	RequestsPerMinute int // 0 disables the limiter

	// All reclassifies every row instead of only untagged ones.
	All bool
	// Tags restricts the run to a vocabulary subset. Existing values of
	// these tags are replaced; other tags on the row are kept. Implies All.
	Tags []tags.Tag

	// CheckpointPath enables resumable runs when set.
	CheckpointPath string
	// Restart ignores any saved checkpoint.
	Restart bool

	Progress func(done, total int64)
}

// Summary reports the outcome of a run.
type Summary struct {
	Candidates    int64
	Processed     int64
	Updated       int64
	FailedBatches int64
	ResumedFrom   int64
	LastID        int64
	Duration      time.Duration
}

// Pipeline classifies messages with an LLM and writes the results back.
type Pipeline struct {
	store   Store
	llm     LLMClient
	opts    Options
	vocab   []tags.Tag
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New validates opts and builds a pipeline.
func New(st Store, llm LLMClient, opts Options) (*Pipeline, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}

	vocab := tags.Classifiable()
	if len(opts.Tags) > 0 {
		for _, t := range opts.Tags {
			info, ok := tags.Lookup(t)
			if !ok {
				return nil, fmt.Errorf("unknown tag %q", t)
			}
			if info.Computed {
				return nil, fmt.Errorf("tag %q is computed, not classified", t)
			}
		}
		vocab = opts.Tags
		opts.All = true
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}

	return &Pipeline{
		store:   st,
		llm:     llm,
		opts:    opts,
		vocab:   vocab,
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default(),
	}, nil
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// mode identifies the kind of run for checkpoint matching.
func (p *Pipeline) mode() string {
	switch {
	case len(p.opts.Tags) > 0:
		return "tags:" + strings.Join(tags.Strings(p.vocab), ",")
	case p.opts.All:
		return "all"
	default:
		return "untagged"
	}
}

// Run processes candidates in rounds of Concurrency batches. Each batch is
// written in its own transaction. A batch whose LLM call fails is left
// untouched, and the checkpoint stops advancing at the first failure so
// the next run revisits it.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	untaggedOnly := !p.opts.All
	mode := p.mode()

	var cursor int64
	if p.opts.CheckpointPath != "" && !p.opts.Restart {
		cp, err := LoadCheckpoint(p.opts.CheckpointPath)
		if err != nil {
			return nil, err
		}
		if cp.Mode == mode {
			cursor = cp.LastID
		}
	}

	total, err := p.store.CountTagCandidates(cursor, untaggedOnly)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Candidates: total, ResumedFrom: cursor, LastID: cursor}
	if cursor > 0 {
		p.logger.Info("resuming tagging run", "mode", mode, "after_id", cursor, "remaining", total)
	}

	checkpointID := cursor
	frozen := false
	roundSize := p.opts.BatchSize * p.opts.Concurrency

	for {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}

		rows, err := p.store.ListTagCandidates(cursor, roundSize, untaggedOnly)
		if err != nil {
			return sum, err
		}
		if len(rows) == 0 {
			break
		}
		cursor = rows[len(rows)-1].ID

		batches := chunk(rows, p.opts.BatchSize)
		ok := make([]bool, len(batches))
		var updated atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.Concurrency)
		for i, batch := range batches {
			g.Go(func() error {
				results, err := p.classify(gctx, batch)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					p.logger.Warn("classification failed; batch left untouched",
						"first_id", batch[0].ID, "last_id", batch[len(batch)-1].ID, "error", err)
					return nil
				}
				updates := p.applyResults(batch, results)
				if err := p.store.UpdateTags(updates); err != nil {
					return fmt.Errorf("write tags for ids %d-%d: %w", batch[0].ID, batch[len(batch)-1].ID, err)
				}
				updated.Add(int64(len(updates)))
				ok[i] = true
				return nil
			})
		}
		err = g.Wait()
		sum.Updated += updated.Load()
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}

		for i, batch := range batches {
			if !ok[i] {
				sum.FailedBatches++
				frozen = true
				continue
			}
			if !frozen {
				checkpointID = batch[len(batch)-1].ID
			}
		}
		sum.Processed += int64(len(rows))
		sum.LastID = checkpointID

		if p.opts.CheckpointPath != "" {
			cp := Checkpoint{Mode: mode, LastID: checkpointID, Processed: sum.Processed, UpdatedAt: time.Now().UTC()}
			if err := SaveCheckpoint(p.opts.CheckpointPath, cp); err != nil {
				return sum, err
			}
		}
		if p.opts.Progress != nil {
			p.opts.Progress(sum.Processed, total)
		}
	}

	sum.Duration = time.Since(start)
	p.logger.Info("tagging complete",
		"processed", sum.Processed, "updated", sum.Updated,
		"failed_batches", sum.FailedBatches, "duration", sum.Duration.Round(time.Millisecond))
	return sum, nil
}

func (p *Pipeline) classify(ctx context.Context, batch []store.TagCandidate) (map[int][]tags.Tag, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	reply, err := p.llm.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(texts, p.vocab)},
	})
	if err != nil {
		return nil, err
	}
	return ParseReply(reply, len(batch), p.vocab), nil
}

// applyResults computes the new column for every row the model answered.
// Rows missing from the reply, and rows whose column would not change, are
// skipped.
func (p *Pipeline) applyResults(batch []store.TagCandidate, results map[int][]tags.Tag) []store.TagUpdate {
	var updates []store.TagUpdate
	for i, c := range batch {
		got, answered := results[i]
		if !answered {
			continue
		}
		next := c.Tags
		for _, t := range p.vocab {
			next = tags.Without(next, t)
		}
		next = tags.Merge(next, got...)
		if next != c.Tags {
			updates = append(updates, store.TagUpdate{ID: c.ID, Tags: next})
		}
	}
	return updates
}

func chunk(rows []store.TagCandidate, size int) [][]store.TagCandidate {
	var out [][]store.TagCandidate
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}
