package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/expense-gateway/internal/queue"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/nimasrn/expense-gateway/pkg/redis"
	"github.com/nimasrn/expense-gateway/pkg/worker"
)

const ProcessingTimeout = 30 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

// Processor handles one kind of queued job.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Options struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
}

// ProcessorService reads jobs from the stream with a few consumers and runs
// them on a worker pool.
type ProcessorService struct {
	adapter   redis.Adapter
	opts      Options
	processor Processor
	queues    []*queue.Queue
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewProcessorService(adapter redis.Adapter, processor Processor, opts Options) (*ProcessorService, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if opts.Consumers <= 0 {
		opts.Consumers = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter:   adapter,
		opts:      opts,
		processor: processor,
		metrics:   NewServiceMetrics(),
		worker:    worker.NewWorkerManager(opts.Workers*4, opts.Workers),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service", "type", s.processor.GetType())

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(s.ctx); err != nil {
			logger.Info("worker manager stopped", "reason", err)
		}
	}()

	for i := 0; i < s.opts.Consumers; i++ {
		cfg := s.opts.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-instance-%d", cfg.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("processor service started", "consumers", len(s.queues), "workers", s.opts.Workers)
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("processor metrics",
		"total_processed", stats.Processed,
		"total_failed", stats.Failed,
		"rate_per_second", stats.RatePerSecond,
		"avg_duration_ms", stats.AvgDuration.Milliseconds(),
		"uptime_seconds", stats.Uptime.Seconds())

	if len(s.queues) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if qs, err := s.queues[0].GetStats(ctx); err == nil {
			logger.Info("queue stats", "queue", s.queues[0].Name(), "total", qs.TotalMessages, "pending", qs.PendingMessages)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()

	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}
	if len(s.queues) == 0 {
		return
	}
	stats, err := s.queues[0].GetStats(ctx)
	if err != nil {
		logger.Warn("health check: queue stats unavailable", "error", err)
		return
	}
	if stats.PendingMessages > 1000 {
		logger.Warn("health check: reindex backlog is high", "pending_messages", stats.PendingMessages)
	}
}

func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")

	var stopping sync.WaitGroup
	for _, q := range s.queues {
		stopping.Add(1)
		go func(q *queue.Queue) {
			defer stopping.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue", "queue", q.Name(), "error", err)
			}
		}(q)
	}
	stopping.Wait()

	s.worker.Exit()
	s.cancel()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("processor service stopped")
}

func (s *ProcessorService) Metrics() Stats {
	return s.metrics.GetStats()
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

// messageHandler hands the message to the pool and waits for its outcome so
// the queue can ack or leave it pending.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	j := &job{ctx: jobCtx, msg: msg, result: make(chan error, 1)}
	if err := s.worker.Enqueue(jobCtx, j); err != nil {
		return err
	}

	select {
	case err := <-j.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(_ context.Context, workerIndex int, payload interface{}) {
	j, ok := payload.(*job)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("failed to process job", "worker", workerIndex, "id", j.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	j.result <- err
}
