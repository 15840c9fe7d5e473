package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CareChat/model"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig mirrors the knobs the gateway config file exposes.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// HistoryWindow caps how many message ids the per-conversation index
	// keeps (rolling window); <=0 means 10000.
	HistoryWindow int64
}

// Redis shares gateway state across nodes.
type Redis struct {
	rdb    *redis.Client
	window int64
}

func NewRedis(c RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10_000
	}
	return &Redis{rdb: rdb, window: c.HistoryWindow}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func convKey(id string) string            { return "chat:conv:" + id }
func indexKey(convID string) string       { return "chat:conv:" + convID + ":index" }
func msgKey(convID, msgID string) string  { return fmt.Sprintf("chat:conv:%s:msg:%s", convID, msgID) }

func (r *Redis) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	raw, err := r.rdb.Get(ctx, convKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get conversation")
	}
	var conv model.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, errors.Wrap(err, "decode conversation")
	}
	return &conv, nil
}

func (r *Redis) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return errors.Wrap(err, "encode conversation")
	}
	return errors.Wrap(r.rdb.Set(ctx, convKey(conv.ID), raw, 0).Err(), "save conversation")
}

func (r *Redis) RemoveParticipant(ctx context.Context, convID, userID string) error {
	key := convKey(convID)
	// Optimistic transaction: re-read and rewrite the participant list.
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var conv model.Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			return err
		}
		out := conv.Participants[:0]
		for _, p := range conv.Participants {
			if p.UserID != userID {
				out = append(out, p)
			}
		}
		conv.Participants = out
		next, err := json.Marshal(&conv)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}, key)
}

func (r *Redis) Messages(ctx context.Context, convID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := r.rdb.LRange(ctx, indexKey(convID), int64(-limit), -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "range message index")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = msgKey(convID, id)
	}
	raws, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget messages")
	}
	out := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue // evicted by the rolling window
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *Redis) Message(ctx context.Context, convID, msgID string) (*model.Message, error) {
	raw, err := r.rdb.Get(ctx, msgKey(convID, msgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get message")
	}
	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	return &msg, nil
}

func (r *Redis) AppendMessage(ctx context.Context, msg *model.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, msgKey(msg.ConversationID, msg.ID), raw, 0)
	pipe.RPush(ctx, indexKey(msg.ConversationID), msg.ID)
	pipe.LTrim(ctx, indexKey(msg.ConversationID), -r.window, -1)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "append message")
}

func (r *Redis) UpdateMessage(ctx context.Context, msg *model.Message) error {
	key := msgKey(msg.ConversationID, msg.ID)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "check message")
	}
	if exists == 0 {
		return ErrNotFound
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	return errors.Wrap(r.rdb.Set(ctx, key, raw, 0).Err(), "update message")
}

func (r *Redis) AddReaction(ctx context.Context, convID, msgID, emoji string, reactor model.Reactor) (bool, error) {
	added := false
	err := r.mutateMessage(ctx, convID, msgID, func(msg *model.Message) {
		for _, have := range msg.Metadata.Reactions[emoji] {
			if have.UserID == reactor.UserID {
				return
			}
		}
		if msg.Metadata.Reactions == nil {
			msg.Metadata.Reactions = model.ReactionSnapshot{}
		}
		msg.Metadata.Reactions[emoji] = append(msg.Metadata.Reactions[emoji], reactor)
		added = true
	})
	return added, err
}

func (r *Redis) RemoveReaction(ctx context.Context, convID, msgID, emoji, userID string) (bool, error) {
	removed := false
	err := r.mutateMessage(ctx, convID, msgID, func(msg *model.Message) {
		set := msg.Metadata.Reactions[emoji]
		out := set[:0]
		for _, have := range set {
			if have.UserID == userID {
				removed = true
				continue
			}
			out = append(out, have)
		}
		if !removed {
			return
		}
		if len(out) == 0 {
			delete(msg.Metadata.Reactions, emoji)
		} else {
			msg.Metadata.Reactions[emoji] = out
		}
	})
	return removed, err
}

// mutateMessage applies fn to the stored message under an optimistic WATCH
// transaction so concurrent reaction toggles on different nodes cannot lose
// updates.
func (r *Redis) mutateMessage(ctx context.Context, convID, msgID string, fn func(*model.Message)) error {
	key := msgKey(convID, msgID)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var msg model.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		fn(&msg)
		next, err := json.Marshal(&msg)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}, key)
}
