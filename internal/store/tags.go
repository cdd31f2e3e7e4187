package store

import (
	"database/sql"
	"fmt"
)

// TagCandidate is a message selected for classification.
type TagCandidate struct {
	ID   int64
	Text string
	Tags string
}

// TagUpdate sets the stored tags column for one row.
type TagUpdate struct {
	ID   int64
	Tags string
}

// TimelineEntry is the minimal projection used by the conversation
// stopper heuristic.
type TimelineEntry struct {
	ID        int64
	TopicID   string
	Timestamp int64
	Tags      string
}

// ListTagCandidates returns up to limit messages with id > afterID in id
// order. When untaggedOnly is set, rows that already carry tags are skipped.
// Paging by id keeps reruns resumable from a checkpoint.
func (s *Store) ListTagCandidates(afterID int64, limit int, untaggedOnly bool) ([]TagCandidate, error) {
	q := `
		SELECT id, text, COALESCE(tags, '')
		FROM messages
		WHERE id > ?`
	if untaggedOnly {
		q += ` AND (tags IS NULL OR tags = '')`
	}
	q += ` ORDER BY id LIMIT ?`

	rows, err := s.db.Query(q, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tag candidates: %w", err)
	}
	defer rows.Close()

	var out []TagCandidate
	for rows.Next() {
		var c TagCandidate
		if err := rows.Scan(&c.ID, &c.Text, &c.Tags); err != nil {
			return nil, fmt.Errorf("scan tag candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountTagCandidates counts rows ListTagCandidates would eventually visit.
func (s *Store) CountTagCandidates(afterID int64, untaggedOnly bool) (int64, error) {
	q := `SELECT COUNT(*) FROM messages WHERE id > ?`
	if untaggedOnly {
		q += ` AND (tags IS NULL OR tags = '')`
	}
	var n int64
	if err := s.db.QueryRow(q, afterID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tag candidates: %w", err)
	}
	return n, nil
}

// UpdateTags applies all updates in one transaction.
func (s *Store) UpdateTags(updates []TagUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE messages SET tags = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare tag update: %w", err)
		}
		defer stmt.Close()
		for _, u := range updates {
			if _, err := stmt.Exec(u.Tags, u.ID); err != nil {
				return fmt.Errorf("update tags for %d: %w", u.ID, err)
			}
		}
		return nil
	})
}

// ClearTags empties the tags column on every row and returns the number of
// rows that had tags.
func (s *Store) ClearTags() (int64, error) {
	res, err := s.db.Exec(`UPDATE messages SET tags = '' WHERE tags IS NOT NULL AND tags != ''`)
	if err != nil {
		return 0, fmt.Errorf("clear tags: %w", err)
	}
	return res.RowsAffected()
}

// ListTimeline returns every message ordered for the stopper heuristic:
// by topic then time when byTopic is set, otherwise by time alone. Ties on
// timestamp are broken by id so the order is deterministic.
func (s *Store) ListTimeline(byTopic bool) ([]TimelineEntry, error) {
	order := `created_timestamp, id`
	if byTopic {
		order = `topic_id, created_timestamp, id`
	}
	rows, err := s.db.Query(`
		SELECT id, topic_id, created_timestamp, COALESCE(tags, '')
		FROM messages
		ORDER BY ` + order)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.TopicID, &e.Timestamp, &e.Tags); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
