package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/expense-gateway/pkg/logger"
)

var ErrStopped = errors.New("worker manager stopped")

type WorkerHandler = func(ctx context.Context, workerIndex int, job interface{})

// WorkerManager distributes jobs from a buffered channel over a fixed number
// of goroutines. Start blocks until Exit is called or the context ends.
type WorkerManager struct {
	numberOfWorker int
	jobChannel     chan interface{}
	do             WorkerHandler
	quit           chan struct{}
	once           sync.Once
	waiter         sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan interface{}, bufferSize),
		quit:           make(chan struct{}),
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue blocks while the buffer is full. It fails once the manager exited
// or ctx is done.
func (w *WorkerManager) Enqueue(ctx context.Context, job interface{}) error {
	select {
	case <-w.quit:
		return ErrStopped
	default:
	}

	select {
	case w.jobChannel <- job:
		return nil
	case <-w.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	if w.do == nil {
		return errors.New("worker handler is not set")
	}

	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(ctx, index, job)
				case <-w.quit:
					return
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return ErrStopped
}

func (w *WorkerManager) Exit() {
	w.once.Do(func() {
		logger.Info("worker manager is shutting down", "workers", w.numberOfWorker, "unread", len(w.jobChannel))
		close(w.quit)
	})
}
