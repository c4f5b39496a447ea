package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/expense-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.Adapter) {
	mr := miniredis.RunT(t)

	adapter, err := redis.New(context.Background(), "test", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	return mr, adapter
}

func testConfig(name string) QueueConfig {
	return QueueConfig{
		Name:              name,
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
}

func TestQueue_PublishAndConsume(t *testing.T) {
	_, adapter := setupTestRedis(t)

	q, err := NewQueue(adapter, testConfig("test:queue"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	_, err = q.PublishJSON(context.Background(), map[string]string{"key": "value"}, map[string]string{"type": "test"})
	require.NoError(t, err)

	received := make(chan *Message, 1)
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		received <- msg
		return nil
	}))

	select {
	case msg := <-received:
		var data map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "value", data["key"])
		assert.Equal(t, "test", msg.Metadata["type"])
		assert.Equal(t, int64(1), msg.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	require.Eventually(t, func() bool {
		stats, err := q.GetStats(context.Background())
		return err == nil && stats.PendingMessages == 0 && stats.ProcessedCount == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestQueue_GroupCreationIsIdempotent(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := NewQueue(adapter, testConfig("test:twice"))
	require.NoError(t, err)
	_, err = NewQueue(adapter, testConfig("test:twice"))
	assert.NoError(t, err)
}

func TestQueue_RequiresName(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := NewQueue(adapter, QueueConfig{})
	assert.Error(t, err)
}

func TestQueue_FailedMessageIsRedelivered(t *testing.T) {
	_, adapter := setupTestRedis(t)

	cfg := testConfig("test:retry")
	cfg.VisibilityTimeout = 100 * time.Millisecond
	q, err := NewQueue(adapter, cfg)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	_, err = q.PublishJSON(context.Background(), map[string]string{"test": "retry"}, nil)
	require.NoError(t, err)

	var calls int64
	succeeded := make(chan int64, 1)
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		if atomic.AddInt64(&calls, 1) == 1 {
			return assert.AnError
		}
		succeeded <- msg.Attempts
		return nil
	}))

	select {
	case attempt := <-succeeded:
		assert.Equal(t, int64(2), attempt)
	case <-time.After(3 * time.Second):
		t.Fatal("message was not redelivered")
	}
}

func TestQueue_ExhaustedMessageGoesToDeadLetter(t *testing.T) {
	_, adapter := setupTestRedis(t)

	cfg := testConfig("test:dlq")
	cfg.MaxRetries = 2
	cfg.VisibilityTimeout = 80 * time.Millisecond
	q, err := NewQueue(adapter, cfg)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	_, err = q.PublishJSON(context.Background(), map[string]int{"record_id": 9}, nil)
	require.NoError(t, err)

	var calls int64
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		atomic.AddInt64(&calls, 1)
		return assert.AnError
	}))

	require.Eventually(t, func() bool {
		n, err := adapter.XLen(context.Background(), q.DeadLetterName())
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		stats, err := q.GetStats(context.Background())
		return err == nil && stats.PendingMessages == 0 && stats.DeadLetterCount == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestQueue_GetStats(t *testing.T) {
	_, adapter := setupTestRedis(t)

	q, err := NewQueue(adapter, testConfig("test:stats"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	for i := 0; i < 5; i++ {
		_, err := q.PublishJSON(context.Background(), map[string]int{"count": i}, nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalMessages)
	assert.Equal(t, int64(0), stats.PendingMessages)
}

func TestMessage_AckNack(t *testing.T) {
	_, adapter := setupTestRedis(t)

	q, err := NewQueue(adapter, testConfig("test:ack"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	t.Run("ack marks message as processed", func(t *testing.T) {
		id, err := q.Publish(context.Background(), []byte(`{"test":"data"}`), nil)
		require.NoError(t, err)

		msg := &Message{ID: id, queue: q}
		assert.NoError(t, msg.Ack())
		assert.True(t, msg.acked)
	})

	t.Run("nack leaves message pending", func(t *testing.T) {
		msg := &Message{ID: "1-1", queue: q}
		assert.NoError(t, msg.Nack())
		assert.True(t, msg.nacked)
	})

	t.Run("cannot ack twice", func(t *testing.T) {
		msg := &Message{ID: "1-2", acked: true}
		err := msg.Ack()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already acknowledged")
	})

	t.Run("cannot nack a rejected message", func(t *testing.T) {
		msg := &Message{ID: "1-3", nacked: true}
		err := msg.Nack()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already rejected")
	})
}

func TestQueue_Stop(t *testing.T) {
	_, adapter := setupTestRedis(t)

	q, err := NewQueue(adapter, testConfig("test:stop"))
	require.NoError(t, err)

	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}))

	assert.NoError(t, q.Stop(2*time.Second))
}

func TestReindexPublisher_RoundTrip(t *testing.T) {
	_, adapter := setupTestRedis(t)

	q, err := NewQueue(adapter, testConfig("test:reindex"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	locatedAt := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	require.NoError(t, NewReindexPublisher(q).PublishReindex(context.Background(), 42, locatedAt))

	jobs := make(chan ReindexJob, 1)
	require.NoError(t, q.Consume(func(ctx context.Context, msg *Message) error {
		job, err := DecodeReindexJob(msg)
		if err != nil {
			return err
		}
		assert.Equal(t, "reindex", msg.Metadata["type"])
		jobs <- job
		return nil
	}))

	select {
	case job := <-jobs:
		assert.Equal(t, int64(42), job.RecordID)
		assert.True(t, locatedAt.Equal(job.LocatedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("reindex job not received")
	}
}

func TestDecodeReindexJob_Invalid(t *testing.T) {
	_, err := DecodeReindexJob(&Message{ID: "1-0", Data: []byte("not json")})
	assert.Error(t, err)

	_, err = DecodeReindexJob(&Message{ID: "1-0", Data: []byte(`{"record_id":0}`)})
	assert.Error(t, err)
}

func TestReindexJob_Key(t *testing.T) {
	at := time.Unix(100, 5)
	a := ReindexJob{RecordID: 1, LocatedAt: at}
	b := ReindexJob{RecordID: 1, LocatedAt: at.Add(time.Second)}

	assert.Equal(t, a.Key(), ReindexJob{RecordID: 1, LocatedAt: at}.Key())
	assert.NotEqual(t, a.Key(), b.Key())
}
