package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// StreamMessage is one entry of a Redis stream.
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

// PendingEntry describes a delivered but unacknowledged stream entry.
type PendingEntry struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	RetryCount int64
}

// Adapter is the subset of Redis the gateway uses: short lived keys for
// idempotency and streams for the re-index queue. Every key is prefixed.
type Adapter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error

	XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error)
	XReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]StreamMessage, error)
	XAck(ctx context.Context, stream, group string, ids ...string) error
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) error
	XLen(ctx context.Context, stream string) (int64, error)
	XTrimApprox(ctx context.Context, stream string, maxLen int64) error
	XPendingCount(ctx context.Context, stream, group string) (int64, error)
	XPendingIdle(ctx context.Context, stream, group string, minIdle time.Duration, count int64) ([]PendingEntry, error)
	XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type adapter struct {
	prefix string
	conn   goredis.UniversalClient
}

// New connects and pings. prefix is prepended to every key and stream name.
func New(ctx context.Context, prefix string, opts *Options) (Adapter, error) {
	c := goredis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	if prefix != "" {
		prefix += ":"
	}
	return &adapter{prefix: prefix, conn: c}, nil
}

func (r *adapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.conn.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *adapter) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.conn.SetNX(ctx, r.prefix+key, value, ttl).Result()
}

func (r *adapter) Get(ctx context.Context, key string) ([]byte, error) {
	return r.conn.Get(ctx, r.prefix+key).Bytes()
}

func (r *adapter) Del(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.prefix + k
	}
	return r.conn.Del(ctx, prefixed...).Err()
}

func (r *adapter) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.conn.Exists(ctx, r.prefix+key).Result()
	return n > 0, err
}

func (r *adapter) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx).Err()
}

func (r *adapter) Close() error {
	return r.conn.Close()
}

func (r *adapter) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	return r.conn.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.prefix + stream,
		ID:     "*",
		Values: values,
	}).Result()
}

// XReadGroup reads new entries without blocking; an empty stream yields no
// messages and no error.
func (r *adapter) XReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]StreamMessage, error) {
	streams, err := r.conn.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.prefix + stream, ">"},
		Count:    count,
		Block:    -1,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{ID: msg.ID, Values: msg.Values})
		}
	}
	return messages, nil
}

func (r *adapter) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return r.conn.XAck(ctx, r.prefix+stream, group, ids...).Err()
}

func (r *adapter) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	return r.conn.XGroupCreateMkStream(ctx, r.prefix+stream, group, start).Err()
}

func (r *adapter) XLen(ctx context.Context, stream string) (int64, error) {
	return r.conn.XLen(ctx, r.prefix+stream).Result()
}

func (r *adapter) XTrimApprox(ctx context.Context, stream string, maxLen int64) error {
	return r.conn.XTrimMaxLenApprox(ctx, r.prefix+stream, maxLen, 0).Err()
}

func (r *adapter) XPendingCount(ctx context.Context, stream, group string) (int64, error) {
	p, err := r.conn.XPending(ctx, r.prefix+stream, group).Result()
	if err != nil {
		return 0, err
	}
	return p.Count, nil
}

func (r *adapter) XPendingIdle(ctx context.Context, stream, group string, minIdle time.Duration, count int64) ([]PendingEntry, error) {
	ext, err := r.conn.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: r.prefix + stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]PendingEntry, 0, len(ext))
	for _, e := range ext {
		if e.Idle < minIdle {
			continue
		}
		out = append(out, PendingEntry{ID: e.ID, Consumer: e.Consumer, Idle: e.Idle, RetryCount: e.RetryCount})
	}
	return out, nil
}

func (r *adapter) XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	claimed, err := r.conn.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   r.prefix + stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	messages := make([]StreamMessage, 0, len(claimed))
	for _, msg := range claimed {
		messages = append(messages, StreamMessage{ID: msg.ID, Values: msg.Values})
	}
	return messages, nil
}
