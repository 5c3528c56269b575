package tasks

import (
	"context"
	"sync"
	"time"

	"kirana/internal/util"

	"go.uber.org/zap"
)

// Task is a unit of best-effort background work. Failures are logged, never
// retried and never propagated to the submitter.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue runs fire-and-forget tasks on a single background worker. Submission
// never blocks: when the buffer is full the task is dropped and counted.
// The eventual-consistency contract is deliberate; callers must not depend
// on a submitted task having run.
type Queue struct {
	ch      chan Task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	timeout time.Duration
	log     *zap.Logger

	closeOnce sync.Once
}

// NewQueue creates and starts a queue with the given buffer size.
func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ch:      make(chan Task, buffer),
		cancel:  cancel,
		timeout: 10 * time.Second,
		log:     util.GetLogger(),
	}

	q.wg.Add(1)
	go q.run(ctx)
	return q
}

// Submit enqueues a task. Returns false if the queue is full or closed and
// the task was dropped.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) bool {
	defer func() {
		// Submitting to a closed queue is a drop, not a panic.
		_ = recover()
	}()

	select {
	case q.ch <- Task{Name: name, Run: fn}:
		return true
	default:
		util.BackgroundTasksDropped.Inc()
		q.log.Warn("background task dropped", zap.String("task", name))
		return false
	}
}

// Close stops accepting tasks and waits for queued work to drain.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
		q.wg.Wait()
		q.cancel()
	})
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for task := range q.ch {
		taskCtx, cancel := context.WithTimeout(ctx, q.timeout)
		if err := task.Run(taskCtx); err != nil {
			q.log.Warn("background task failed",
				zap.String("task", task.Name),
				zap.Error(err))
		}
		cancel()
	}
}
