package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/cheese-chess-server/internal/domain"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKey = "presence:online"

// maxTxRetries bounds optimistic retries when a counter changes under WATCH.
const maxTxRetries = 8

// FriendSource resolves a user's friend list.
type FriendSource interface {
	GetFriends(ctx context.Context, login string) ([]domain.Friend, error)
}

// Tracker keeps a live-connection count per identity in a Redis hash. An
// identity is online while its count is positive, so a second tab closing
// does not hide a user whose first tab is still open.
type Tracker struct {
	rdb     *redis.Client
	friends FriendSource
	key     string
}

type Option func(*Tracker)

// WithKey namespaces the presence hash, e.g. per deployment.
func WithKey(key string) Option {
	return func(t *Tracker) {
		if strings.TrimSpace(key) != "" {
			t.key = key
		}
	}
}

// NewTracker returns a tracker over the shared presence hash.
func NewTracker(rdb *redis.Client, friends FriendSource, opts ...Option) *Tracker {
	t := &Tracker{rdb: rdb, friends: friends, key: defaultKey}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) MarkOnline(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil
	}
	n, err := t.rdb.HIncrBy(ctx, t.key, identity, 1).Result()
	if err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	obslog.L().Debug("presence_online", zap.String("identity", identity), zap.Int64("connections", n))
	return nil
}

// Reset clears every count. One server process owns the hash, so at startup
// any entry left by a previous run has no live connection behind it.
func (t *Tracker) Reset(ctx context.Context) error {
	n, err := t.rdb.HLen(ctx, t.key).Result()
	if err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	if err := t.rdb.Del(ctx, t.key).Err(); err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	if n > 0 {
		obslog.L().Info("presence_reset", zap.String("key", t.key), zap.Int64("stale", n))
	}
	return nil
}

// MarkOffline drops one connection of identity and removes it from the set
// when none are left.
func (t *Tracker) MarkOffline(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil
	}
	dec := func(tx *redis.Tx) error {
		n, err := tx.HGet(ctx, t.key, identity).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if n <= 1 {
				pipe.HDel(ctx, t.key, identity)
			} else {
				pipe.HIncrBy(ctx, t.key, identity, -1)
			}
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := t.rdb.Watch(ctx, dec, t.key)
		if err == nil {
			obslog.L().Debug("presence_offline", zap.String("identity", identity))
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("mark offline: %w", err)
	}
	return fmt.Errorf("mark offline: %w", redis.TxFailedErr)
}

func (t *Tracker) IsOnline(ctx context.Context, identity string) (bool, error) {
	n, err := t.rdb.HGet(ctx, t.key, strings.TrimSpace(identity)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is online: %w", err)
	}
	return n > 0, nil
}

// OnlineFriendsOf returns the friends of identity that are connected right now.
func (t *Tracker) OnlineFriendsOf(ctx context.Context, identity string) ([]domain.Friend, error) {
	if t.friends == nil {
		return nil, nil
	}
	friends, err := t.friends.GetFriends(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	if len(friends) == 0 {
		return nil, nil
	}
	logins := make([]string, len(friends))
	for i, f := range friends {
		logins[i] = f.Login
	}
	vals, err := t.rdb.HMGet(ctx, t.key, logins...).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	out := make([]domain.Friend, 0, len(friends))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			out = append(out, friends[i])
		}
	}
	return out, nil
}

// Ping reports whether Redis is reachable.
func (t *Tracker) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}
