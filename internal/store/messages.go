package store

import (
	"database/sql"
	"fmt"
)

// Message represents a message row in the database.
type Message struct {
	ID               int64
	MessageID        string
	CreatorName      string
	CreatorEmail     string
	CreatorUserType  string
	CreatedDate      string // display date exactly as exported
	CreatedTimestamp int64  // epoch milliseconds, UTC
	Text             string
	TopicID          string
	Tags             string
}

// RowError records a message that could not be inserted.
type RowError struct {
	MessageID string
	Err       error
}

func (e RowError) Error() string {
	return fmt.Sprintf("message %s: %v", e.MessageID, e.Err)
}

// InsertMessages inserts msgs in a single transaction. Rows that fail
// individually (duplicate message_id, constraint violations) are skipped
// and reported; any other failure aborts the batch.
func (s *Store) InsertMessages(msgs []Message) (inserted int, rowErrs []RowError, err error) {
	if len(msgs) == 0 {
		return 0, nil, nil
	}

	err = s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO messages (
				message_id, creator_name, creator_email, creator_user_type,
				created_date, created_timestamp, text, topic_id, tags
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			_, execErr := stmt.Exec(
				m.MessageID, m.CreatorName, m.CreatorEmail, m.CreatorUserType,
				m.CreatedDate, m.CreatedTimestamp, m.Text, m.TopicID, m.Tags,
			)
			if execErr != nil {
				if isSQLiteError(execErr, "constraint failed") {
					rowErrs = append(rowErrs, RowError{MessageID: m.MessageID, Err: execErr})
					continue
				}
				return fmt.Errorf("insert message %s: %w", m.MessageID, execErr)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return inserted, rowErrs, nil
}

// GetMessage returns a message by its exported identifier, or nil if absent.
func (s *Store) GetMessage(messageID string) (*Message, error) {
	var m Message
	err := s.db.QueryRow(`
		SELECT id, message_id, creator_name, creator_email, creator_user_type,
			created_date, created_timestamp, text, topic_id, COALESCE(tags, '')
		FROM messages
		WHERE message_id = ?
	`, messageID).Scan(
		&m.ID, &m.MessageID, &m.CreatorName, &m.CreatorEmail, &m.CreatorUserType,
		&m.CreatedDate, &m.CreatedTimestamp, &m.Text, &m.TopicID, &m.Tags,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	return &m, nil
}

// CountMessages returns the number of message rows.
func (s *Store) CountMessages() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
