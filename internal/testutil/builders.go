package testutil

import (
	"time"

	"github.com/wesm/chatarchive/internal/store"
)

// MessageBuilder provides a fluent API for constructing store.Message in tests.
type MessageBuilder struct {
	m store.Message
}

// NewMessage creates a builder with sensible defaults.
func NewMessage(messageID string) *MessageBuilder {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &MessageBuilder{
		m: store.Message{
			MessageID:        messageID,
			CreatorName:      "Alice Smith",
			CreatorEmail:     "alice@example.com",
			CreatorUserType:  "Human",
			CreatedDate:      ts.Format("Monday, 2 January 2006 at 15:04:05 UTC"),
			CreatedTimestamp: ts.UnixMilli(),
			Text:             "Test message " + messageID,
			TopicID:          "topic-1",
		},
	}
}

func (b *MessageBuilder) WithCreator(name, email string) *MessageBuilder {
	b.m.CreatorName = name
	b.m.CreatorEmail = email
	return b
}

func (b *MessageBuilder) WithText(s string) *MessageBuilder {
	b.m.Text = s
	return b
}

func (b *MessageBuilder) WithTopic(id string) *MessageBuilder {
	b.m.TopicID = id
	return b
}

func (b *MessageBuilder) WithTags(tags string) *MessageBuilder {
	b.m.Tags = tags
	return b
}

// WithTimestamp sets the epoch-millisecond timestamp. The display date is
// left untouched.
func (b *MessageBuilder) WithTimestamp(ms int64) *MessageBuilder {
	b.m.CreatedTimestamp = ms
	return b
}

// WithTime sets both the timestamp and the display date from t.
func (b *MessageBuilder) WithTime(t time.Time) *MessageBuilder {
	t = t.UTC()
	b.m.CreatedTimestamp = t.UnixMilli()
	b.m.CreatedDate = t.Format("Monday, 2 January 2006 at 15:04:05 UTC")
	return b
}

func (b *MessageBuilder) Build() store.Message {
	return b.m
}
