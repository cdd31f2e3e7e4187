package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tags"
)

// StopperScope selects which messages count as "the next message".
type StopperScope string

const (
	// ScopeTopic compares each message with the next one in the same topic.
	ScopeTopic StopperScope = "topic"
	// ScopeGlobal compares with the next message anywhere in the corpus.
	ScopeGlobal StopperScope = "global"
)

// ParseScope accepts "topic", "global", or "" (topic).
func ParseScope(s string) (StopperScope, error) {
	switch StopperScope(s) {
	case "", ScopeTopic:
		return ScopeTopic, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	}
	return "", fmt.Errorf("invalid stopper scope %q: want %q or %q", s, ScopeTopic, ScopeGlobal)
}

// TimelineStore is the subset of *store.Store the stopper pass needs.
type TimelineStore interface {
	ListTimeline(byTopic bool) ([]store.TimelineEntry, error)
	UpdateTags(updates []store.TagUpdate) error
}

// StopperSummary reports the outcome of a stopper pass.
type StopperSummary struct {
	Messages int64
	Stoppers int64
	Added    int64
	Removed  int64
}

// DetectStoppers recomputes the Conversation Stopper tag on every row. A
// message is a stopper when the next message in its scope arrives more
// than gap later, or when there is no next message. Rows whose state is
// already correct are not written, so reruns are no-ops.
func DetectStoppers(ctx context.Context, st TimelineStore, gap time.Duration, scope StopperScope, logger *slog.Logger) (*StopperSummary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if gap <= 0 {
		return nil, fmt.Errorf("stopper gap must be positive, got %s", gap)
	}

	entries, err := st.ListTimeline(scope != ScopeGlobal)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updates, sum := stopperUpdates(entries, gap, scope)
	if err := st.UpdateTags(updates); err != nil {
		return nil, fmt.Errorf("write stopper tags: %w", err)
	}

	logger.Info("conversation stoppers updated",
		"scope", scope, "gap", gap, "messages", sum.Messages,
		"stoppers", sum.Stoppers, "added", sum.Added, "removed", sum.Removed)
	return sum, nil
}

// stopperUpdates expects entries ordered as ListTimeline returns them.
func stopperUpdates(entries []store.TimelineEntry, gap time.Duration, scope StopperScope) ([]store.TagUpdate, *StopperSummary) {
	gapMillis := gap.Milliseconds()
	sum := &StopperSummary{Messages: int64(len(entries))}
	var updates []store.TagUpdate

	for i, e := range entries {
		stopper := true
		if i+1 < len(entries) {
			next := entries[i+1]
			if scope == ScopeGlobal || next.TopicID == e.TopicID {
				stopper = next.Timestamp-e.Timestamp > gapMillis
			}
		}

		had := tags.Has(e.Tags, tags.ConversationStopper)
		switch {
		case stopper && !had:
			updates = append(updates, store.TagUpdate{ID: e.ID, Tags: tags.Merge(e.Tags, tags.ConversationStopper)})
			sum.Added++
		case !stopper && had:
			updates = append(updates, store.TagUpdate{ID: e.ID, Tags: tags.Without(e.Tags, tags.ConversationStopper)})
			sum.Removed++
		}
		if stopper {
			sum.Stoppers++
		}
	}
	return updates, sum
}
