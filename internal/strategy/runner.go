package strategy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/rs/zerolog/log"
)

// RunnerConfig holds configuration for the background runner.
type RunnerConfig struct {
	// QueueSize is the number of tasks that may wait for a worker.
	QueueSize int
	// Workers is the number of goroutines executing tasks.
	Workers int
	// TaskTimeout bounds each task.
	TaskTimeout time.Duration
}

// DefaultRunnerConfig returns sensible defaults for the runner.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		QueueSize:   256,
		Workers:     4,
		TaskTimeout: 30 * time.Second,
	}
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// RunnerStats counts what happened to submitted tasks.
type RunnerStats struct {
	Enqueued  int64 `json:"enqueued"`
	Dropped   int64 `json:"dropped"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Runner executes detached background tasks on a fixed worker pool.
// A full queue drops the task instead of blocking the caller.
type Runner struct {
	taskCh  chan task
	stopCh  chan struct{}
	wg      sync.WaitGroup
	timeout time.Duration

	// mu guards stopped against concurrent Submit and Stop.
	mu      sync.RWMutex
	stopped bool

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int

	enqueued  int64
	dropped   int64
	completed int64
	failed    int64
}

// NewRunner starts a runner with the given configuration.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	r := &Runner{
		taskCh:  make(chan task, cfg.QueueSize),
		stopCh:  make(chan struct{}),
		timeout: cfg.TaskTimeout,
	}
	r.pendingCond = sync.NewCond(&r.pendingMu)

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for {
		select {
		case t := <-r.taskCh:
			r.execute(t)
		case <-r.stopCh:
			// Drain remaining tasks before stopping
			for {
				select {
				case t := <-r.taskCh:
					r.execute(t)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) execute(t task) {
	defer r.done()

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := t.fn(ctx); err != nil {
		atomic.AddInt64(&r.failed, 1)
		metrics.RecordBackgroundTask("error")
		log.Warn().Err(err).Str("task", t.name).Msg("Background task failed")
		return
	}
	atomic.AddInt64(&r.completed, 1)
	metrics.RecordBackgroundTask("ok")
}

func (r *Runner) done() {
	r.pendingMu.Lock()
	r.pending--
	if r.pending == 0 {
		r.pendingCond.Broadcast()
	}
	r.pendingMu.Unlock()
}

// Submit enqueues fn. It returns false when the queue is full or the runner is stopped.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		atomic.AddInt64(&r.dropped, 1)
		metrics.RecordBackgroundTask("dropped")
		return false
	}

	r.pendingMu.Lock()
	r.pending++
	r.pendingMu.Unlock()

	select {
	case r.taskCh <- task{name: name, fn: fn}:
		atomic.AddInt64(&r.enqueued, 1)
		return true
	default:
		r.done()
		atomic.AddInt64(&r.dropped, 1)
		metrics.RecordBackgroundTask("dropped")
		log.Debug().Str("task", name).Msg("Background queue full, task dropped")
		return false
	}
}

// Wait blocks until every accepted task has finished.
func (r *Runner) Wait() {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	for r.pending > 0 {
		r.pendingCond.Wait()
	}
}

// Stop rejects new tasks, drains the queue and waits for the workers. Safe to call twice.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
}

// Stats returns current runner statistics.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Enqueued:  atomic.LoadInt64(&r.enqueued),
		Dropped:   atomic.LoadInt64(&r.dropped),
		Completed: atomic.LoadInt64(&r.completed),
		Failed:    atomic.LoadInt64(&r.failed),
	}
}
