// Package redis implements repository.MessageRepository on Redis.
//
// Each message is its own key with a native TTL, so Redis deletes it on
// schedule without a sweeper. Conversations are found through a sorted set
// per unordered pair of accounts:
//
//	dm:msg:{id}            JSON body, EX 24h
//	dm:pair:{lo}:{hi}      ZSET member=id score=createdAt (unix ms)
//
// The pair index can briefly hold ids whose message key already expired.
// Reads drop those, and trim index entries older than the TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

const (
	messagePrefix = "dm:msg:"
	pairPrefix    = "dm:pair:"
)

var _ repository.MessageRepository = (*MessageStore)(nil)

// NewClient builds a go-redis client for the message store.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// MessageStore keeps direct messages in Redis.
type MessageStore struct {
	rdb goredis.Cmdable
	now func() time.Time
}

// Option configures a MessageStore.
type Option func(*MessageStore)

// WithClock overrides the time source used for CreatedAt and key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *MessageStore) { s.now = now }
}

// NewMessageStore wraps an existing client. The caller owns the client.
func NewMessageStore(rdb goredis.Cmdable, opts ...Option) *MessageStore {
	s := &MessageStore{rdb: rdb, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// storedMessage is the on-wire body. Unlike model.Message it keeps ExpiresAt.
type storedMessage struct {
	ID             string `json:"id"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	SenderUsername string `json:"senderUsername"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"createdAt"`
	ExpiresAt      int64  `json:"expiresAt"`
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return pairPrefix + a + ":" + b
}

// Create stores msg with a TTL that ends at msg.ExpiresAt.
func (s *MessageStore) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = xid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)
	msg.ExpiresAt = msg.CreatedAt.Add(model.MessageTTL)

	ttl := msg.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already dead on arrival; nothing a reader could ever see.
		return nil
	}

	body, err := json.Marshal(storedMessage{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		SenderUsername: msg.SenderUsername,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt.UnixMilli(),
		ExpiresAt:      msg.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("redis: encoding message: %w", err)
	}

	key := pairKey(msg.SenderID, msg.RecipientID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, messagePrefix+msg.ID, body, ttl)
		pipe.ZAdd(ctx, key, goredis.Z{Score: float64(msg.CreatedAt.UnixMilli()), Member: msg.ID})
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: creating message: %w", err)
	}
	return nil
}

// Conversation returns the unexpired messages between userA and userB,
// oldest first.
func (s *MessageStore) Conversation(ctx context.Context, userA, userB string, now time.Time) ([]model.Message, error) {
	key := pairKey(userA, userB)
	cutoff := strconv.FormatInt(now.Add(-model.MessageTTL).UnixMilli(), 10)

	if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
		return nil, fmt.Errorf("redis: trimming conversation index: %w", err)
	}

	ids, err := s.rdb.ZRangeByScore(ctx, key, &goredis.ZRangeBy{Min: "(" + cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: listing conversation index: %w", err)
	}

	messages := make([]model.Message, 0, len(ids))
	if len(ids) == 0 {
		return messages, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = messagePrefix + id
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: loading messages: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between ZRANGE and MGET
			continue
		}
		var sm storedMessage
		if err := json.Unmarshal([]byte(raw), &sm); err != nil {
			return nil, fmt.Errorf("redis: decoding message: %w", err)
		}
		msg := model.Message{
			ID:             sm.ID,
			SenderID:       sm.SenderID,
			RecipientID:    sm.RecipientID,
			SenderUsername: sm.SenderUsername,
			Content:        sm.Content,
			CreatedAt:      time.UnixMilli(sm.CreatedAt).UTC(),
			ExpiresAt:      time.UnixMilli(sm.ExpiresAt).UTC(),
		}
		if msg.Expired(now) {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// DeleteExpired trims stale ids out of every pair index. Message bodies need
// no help: Redis expires them itself.
func (s *MessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := strconv.FormatInt(now.Add(-model.MessageTTL).UnixMilli(), 10)

	var removed int64
	iter := s.rdb.Scan(ctx, 0, pairPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.rdb.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return removed, fmt.Errorf("redis: trimming %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis: scanning pair indexes: %w", err)
	}

	return removed, nil
}

// Ping checks that Redis is reachable.
func (s *MessageStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
