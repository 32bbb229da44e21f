package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one accepted generation request.
type Task struct {
	JobID  string
	Prompt string
}

// Handler processes a single task.
type Handler interface {
	Process(ctx context.Context, id, prompt string) error
}

// Queue is a bounded task buffer drained by a fixed number of workers.
type Queue struct {
	tasks   chan Task
	workers int
	handler Handler
	logger  *slog.Logger
}

func NewQueue(h Handler, workers, size int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	return &Queue{
		tasks:   make(chan Task, size),
		workers: workers,
		handler: h,
		logger:  logger,
	}
}

// Submit enqueues t without blocking.
func (q *Queue) Submit(t Task) error {
	select {
	case q.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of tasks waiting for a worker.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight task has returned. Tasks still buffered at that point are dropped.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("starting workers", "workers", q.workers, "queue_size", cap(q.tasks))

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.work(ctx, n)
		}(i)
	}
	wg.Wait()

	if n := len(q.tasks); n > 0 {
		q.logger.Warn("workers stopped with queued tasks", "dropped", n)
	}
	return ctx.Err()
}

func (q *Queue) work(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.logger.Info("received job", "job_id", t.JobID, "worker", n)
			if err := q.handler.Process(ctx, t.JobID, t.Prompt); err != nil {
				q.logger.Debug("job returned error", "job_id", t.JobID, "error", err)
			}
		}
	}
}
