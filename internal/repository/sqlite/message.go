package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

var _ repository.MessageRepository = (*MessageStore)(nil)

// MessageStore keeps direct messages in the messages table.
//
// Expiry is enforced twice: Conversation filters on expires_at at read time,
// and DeleteExpired (driven by the sweeper) physically removes dead rows.
// Only the read filter is needed for correctness.
type MessageStore struct {
	conn *sqlx.DB
	now  func() time.Time
}

type messageRow struct {
	ID             string `db:"id"`
	SenderID       string `db:"sender_id"`
	RecipientID    string `db:"recipient_id"`
	SenderUsername string `db:"sender_username"`
	Content        string `db:"content"`
	CreatedAt      int64  `db:"created_at"`
	ExpiresAt      int64  `db:"expires_at"`
}

func (r messageRow) toModel() model.Message {
	return model.Message{
		ID:             r.ID,
		SenderID:       r.SenderID,
		RecipientID:    r.RecipientID,
		SenderUsername: r.SenderUsername,
		Content:        r.Content,
		CreatedAt:      fromMillis(r.CreatedAt),
		ExpiresAt:      fromMillis(r.ExpiresAt),
	}
}

// Create stores msg. ID and CreatedAt are filled in when empty, CreatedAt is
// truncated to the stored millisecond precision, and ExpiresAt is always
// CreatedAt + model.MessageTTL.
func (s *MessageStore) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = xid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)
	msg.ExpiresAt = msg.CreatedAt.Add(model.MessageTTL)

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, sender_username, content, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.SenderID,
		msg.RecipientID,
		msg.SenderUsername,
		msg.Content,
		toMillis(msg.CreatedAt),
		toMillis(msg.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating message: %w", err)
	}
	return nil
}

// Conversation returns the unexpired messages exchanged between userA and
// userB in either direction, oldest first. Messages sent in the same
// millisecond keep insertion order.
func (s *MessageStore) Conversation(ctx context.Context, userA, userB string, now time.Time) ([]model.Message, error) {
	var rows []messageRow

	err := s.conn.SelectContext(ctx, &rows,
		`SELECT id, sender_id, recipient_id, sender_username, content, created_at, expires_at
		 FROM messages
		 WHERE ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))
		   AND expires_at > ?
		 ORDER BY created_at, rowid`,
		userA, userB,
		userB, userA,
		toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing conversation %s/%s: %w", userA, userB, err)
	}

	messages := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, r.toModel())
	}
	return messages, nil
}

// DeleteExpired removes every message whose deadline is at or before now and
// returns how many rows went.
func (s *MessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM messages WHERE expires_at <= ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired messages: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
