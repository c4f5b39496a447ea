package processor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/expense-gateway/internal/queue"
	"github.com/nimasrn/expense-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReindexer struct {
	mu     sync.Mutex
	calls  [][]int64
	err    error
	report *services.ReindexReport
}

func (f *fakeReindexer) ReindexRecords(ctx context.Context, ids []int64) (*services.ReindexReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &services.ReindexReport{Found: len(ids), Indexed: len(ids)}, nil
}

func (f *fakeReindexer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func jobMessage(t *testing.T, id int64, at time.Time) *queue.Message {
	t.Helper()
	data, err := json.Marshal(queue.ReindexJob{RecordID: id, LocatedAt: at.UTC()})
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data}
}

func TestReindexProcessor_IndexesOnce(t *testing.T) {
	_, adapter := setupTestRedis(t)
	reindexer := &fakeReindexer{}
	p := NewReindexProcessor(reindexer, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, p.Process(context.Background(), jobMessage(t, 12, at)))
	require.NoError(t, p.Process(context.Background(), jobMessage(t, 12, at)))

	assert.Equal(t, 1, reindexer.callCount())
	assert.Equal(t, []int64{12}, reindexer.calls[0])
	assert.Equal(t, "reindex", p.GetType())
}

func TestReindexProcessor_NewLocationIsIndexedAgain(t *testing.T) {
	_, adapter := setupTestRedis(t)
	reindexer := &fakeReindexer{}
	p := NewReindexProcessor(reindexer, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, p.Process(context.Background(), jobMessage(t, 12, at)))
	require.NoError(t, p.Process(context.Background(), jobMessage(t, 12, at.Add(time.Minute))))

	assert.Equal(t, 2, reindexer.callCount())
}

func TestReindexProcessor_FailureIsRetryable(t *testing.T) {
	_, adapter := setupTestRedis(t)
	reindexer := &fakeReindexer{err: assert.AnError}
	p := NewReindexProcessor(reindexer, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	at := time.Now()
	assert.Error(t, p.Process(context.Background(), jobMessage(t, 3, at)))

	reindexer.err = nil
	assert.NoError(t, p.Process(context.Background(), jobMessage(t, 3, at)))
	assert.Equal(t, 2, reindexer.callCount())
}

func TestReindexProcessor_IndexRejectionIsRetryable(t *testing.T) {
	_, adapter := setupTestRedis(t)
	reindexer := &fakeReindexer{report: &services.ReindexReport{Found: 1, Errors: []string{"mapper_parsing_exception"}}}
	p := NewReindexProcessor(reindexer, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	err := p.Process(context.Background(), jobMessage(t, 3, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestReindexProcessor_MalformedJobIsDropped(t *testing.T) {
	_, adapter := setupTestRedis(t)
	reindexer := &fakeReindexer{}
	p := NewReindexProcessor(reindexer, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	assert.NoError(t, p.Process(context.Background(), &queue.Message{ID: "1-0", Data: []byte("{")}))
	assert.Equal(t, 0, reindexer.callCount())
}

func TestProcessorService_ConsumesPublishedJobs(t *testing.T) {
	_, adapter := setupTestRedis(t)
	reindexer := &fakeReindexer{}
	p := NewReindexProcessor(reindexer, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	qcfg := queue.QueueConfig{
		Name:              "reindex",
		ConsumerGroup:     "reindexers",
		ConsumerName:      "test",
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      20 * time.Millisecond,
	}
	svc, err := NewProcessorService(adapter, p, Options{Queue: qcfg, Consumers: 2, Workers: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	publisherQueue, err := queue.NewQueue(adapter, qcfg)
	require.NoError(t, err)
	publisher := queue.NewReindexPublisher(publisherQueue)
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, publisher.PublishReindex(context.Background(), id, time.Now()))
	}

	require.Eventually(t, func() bool { return reindexer.callCount() == 3 }, 3*time.Second, 20*time.Millisecond)

	svc.Stop()
	assert.Equal(t, int64(3), svc.Metrics().Processed)
}

func TestNewProcessorService_RequiresProcessor(t *testing.T) {
	_, err := NewProcessorService(nil, nil, Options{})
	assert.Error(t, err)
}

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)
	m.RecordFailure()

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, 20*time.Millisecond, stats.AvgDuration)

	m.Reset()
	assert.Equal(t, int64(0), m.GetStats().Processed)
}
