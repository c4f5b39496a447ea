package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/redis"
)

type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	// Attempts counts deliveries of this entry, starting at 1.
	Attempts int64
	acked    bool
	nacked   bool
	queue    *Queue
}

// Ack marks the message as processed.
func (m *Message) Ack() error {
	if m.acked {
		return fmt.Errorf("message already acknowledged")
	}
	if m.nacked {
		return fmt.Errorf("message already rejected")
	}

	m.acked = true
	return m.queue.ackMessage(m.ID)
}

// Nack leaves the message pending so it is reclaimed after the visibility timeout.
func (m *Message) Nack() error {
	if m.acked {
		return fmt.Errorf("message already acknowledged")
	}
	if m.nacked {
		return fmt.Errorf("message already rejected")
	}

	m.nacked = true
	return nil
}

// MessageHandler processes one message. A nil return acks it, an error
// leaves it pending for redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

type Queue struct {
	adapter redis.Adapter
	config  QueueConfig
	log     logger.Logger
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed  int64
	failed     int64
	deadLetter int64
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	ProcessedCount  int64
	FailedCount     int64
	DeadLetterCount int64
}

func NewQueue(adapter redis.Adapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter: adapter,
		config:  config,
		log:     logger.With("queue", config.Name),
		ctx:     ctx,
		cancel:  cancel,
	}

	err := adapter.XGroupCreateMkStream(ctx, config.Name, config.ConsumerGroup, "0")
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

func (q *Queue) Name() string {
	return q.config.Name
}

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(ctx, q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(ctx, q.config.Name, q.config.MaxLen); err != nil {
			q.log.Warn("queue trim failed", "error", err)
		}
	}

	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, raw, metadata)
}

// Consume starts the poll loop in the background. Stop ends it.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processMessages()
			q.claimStuckMessages()
		}
	}
}

func (q *Queue) processMessages() {
	messages, err := q.adapter.XReadGroup(q.ctx, q.config.Name, q.config.ConsumerGroup, q.config.ConsumerName, q.config.BatchSize)
	if err != nil {
		if q.ctx.Err() == nil {
			q.log.Error("queue read failed", "error", err)
		}
		return
	}

	for _, sm := range messages {
		msg := q.toMessage(sm)
		msg.Attempts = 1
		q.handleMessage(msg)
	}
}

// claimStuckMessages takes over entries that stayed unacknowledged longer
// than the visibility timeout. The delivery count kept by Redis decides
// whether another attempt is allowed.
func (q *Queue) claimStuckMessages() {
	pending, err := q.adapter.XPendingIdle(q.ctx, q.config.Name, q.config.ConsumerGroup, q.config.VisibilityTimeout, 100)
	if err != nil || len(pending) == 0 {
		return
	}

	deliveries := make(map[string]int64, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		deliveries[p.ID] = p.RetryCount
		ids = append(ids, p.ID)
	}

	messages, err := q.adapter.XClaim(q.ctx, q.config.Name, q.config.ConsumerGroup, q.config.ConsumerName, q.config.VisibilityTimeout, ids...)
	if err != nil {
		q.log.Warn("queue claim failed", "error", err)
		return
	}

	for _, sm := range messages {
		msg := q.toMessage(sm)
		msg.Attempts = deliveries[sm.ID] + 1
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	if msg.Attempts > int64(q.config.MaxRetries) {
		q.moveToDeadLetterQueue(msg)
		if err := q.ackMessage(msg.ID); err != nil {
			q.log.Error("failed to ack dead message", "id", msg.ID, "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		atomic.AddInt64(&q.failed, 1)
		q.log.Warn("message handling failed", "id", msg.ID, "attempt", msg.Attempts, "error", err)
		return
	}

	atomic.AddInt64(&q.processed, 1)
	if msg.acked || msg.nacked {
		return
	}
	if err := q.ackMessage(msg.ID); err != nil {
		q.log.Error("failed to ack message", "id", msg.ID, "error", err)
	}
}

func (q *Queue) ackMessage(id string) error {
	return q.adapter.XAck(context.Background(), q.config.Name, q.config.ConsumerGroup, id)
}

func (q *Queue) moveToDeadLetterQueue(msg *Message) {
	atomic.AddInt64(&q.deadLetter, 1)
	q.log.Error("message exceeded max retries", "id", msg.ID, "attempts", msg.Attempts-1)
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts - 1,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(context.Background(), q.DeadLetterName(), values); err != nil {
		q.log.Error("failed to write dead letter", "id", msg.ID, "error", err)
	}
}

func (q *Queue) DeadLetterName() string {
	return q.config.Name + ":dlq"
}

func (q *Queue) toMessage(sm redis.StreamMessage) *Message {
	msg := &Message{
		ID:       sm.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}

	for k, v := range sm.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == "data":
			msg.Data = []byte(s)
		case k == "timestamp":
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				msg.Timestamp = ts
			}
		case strings.HasPrefix(k, "meta_"):
			msg.Metadata[strings.TrimPrefix(k, "meta_")] = s
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats(ctx context.Context) (*QueueStats, error) {
	total, err := q.adapter.XLen(ctx, q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{
		TotalMessages:   total,
		ProcessedCount:  atomic.LoadInt64(&q.processed),
		FailedCount:     atomic.LoadInt64(&q.failed),
		DeadLetterCount: atomic.LoadInt64(&q.deadLetter),
	}
	if pending, err := q.adapter.XPendingCount(ctx, q.config.Name, q.config.ConsumerGroup); err == nil {
		stats.PendingMessages = pending
	}
	return stats, nil
}
