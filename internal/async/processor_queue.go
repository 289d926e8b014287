package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

type ProcessorQueue struct {
	handler Handler
	logger  *zap.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	quit    chan struct{}
	senders sync.WaitGroup // ch is closed only after every in-flight Enqueue returns
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(handler Handler, log *zap.Logger, opts ...Option) *ProcessorQueue {
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger.OrNop(log).Named("queue"),
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Task, 256),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", zap.Int("worker_id", workerID))

				for task := range q.ch {
					q.run(workerID, task)
				}

				q.logger.Debug("queue.worker.stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue.task.panic", zap.Int("worker_id", workerID), zap.String("job_id", task.JobID.String()), zap.Any("panic", r))
		}
	}()

	if err := q.handler.Process(ctx, task); err != nil {
		q.logger.Error("queue.task.failed", zap.Int("worker_id", workerID), zap.String("job_id", task.JobID.String()), zap.Error(err))
		return
	}
	q.logger.Info("queue.task.done",
		zap.Int("worker_id", workerID),
		zap.String("job_id", task.JobID.String()),
		zap.Duration("queued_for", time.Since(task.SubmittedAt)),
	)
}

// Enqueue blocks when the buffer is full until a worker frees a slot, ctx ends
// or the queue shuts down. The lock is not held while waiting.
func (q *ProcessorQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("queue.enqueue.closed", zap.String("job_id", task.JobID.String()))
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- task:
		q.logger.Debug("queue.enqueued", zap.String("job_id", task.JobID.String()))
		return nil
	default:
	}
	q.logger.Warn("queue.full", zap.String("job_id", task.JobID.String()))
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		q.logger.Warn("queue.enqueue.closed", zap.String("job_id", task.JobID.String()))
		return ErrQueueClosed
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	// blocked senders see quit and return before the channel closes
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
