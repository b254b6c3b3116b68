// Package work runs fire-and-forget background tasks on a single bounded
// queue. The analysis path uses it to persist observations without holding
// up the response; a full queue drops work rather than blocking a request.
package work

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one unit of background work. The context carries the per-task
// timeout; errors are logged, never propagated.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes submitted tasks sequentially on one worker goroutine.
type Runner struct {
	tasks       chan Task
	taskTimeout time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	pending sync.WaitGroup
}

// NewRunner creates and starts a runner with the given queue capacity and
// per-task timeout.
func NewRunner(queueSize int, taskTimeout time.Duration, log zerolog.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 64
	}
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}

	r := &Runner{
		tasks:       make(chan Task, queueSize),
		taskTimeout: taskTimeout,
		log:         log.With().Str("component", "work_runner").Logger(),
		done:        make(chan struct{}),
	}
	go r.loop()
	return r
}

// Submit enqueues a task without blocking. When the queue is full or the
// runner is closed the task is dropped and logged; callers must treat
// submission as best-effort.
func (r *Runner) Submit(task Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.log.Warn().Str("task", task.Name).Msg("Runner closed, dropping task")
		return false
	}

	r.pending.Add(1)
	select {
	case r.tasks <- task:
		return true
	default:
		r.pending.Done()
		r.log.Warn().Str("task", task.Name).Msg("Queue full, dropping task")
		return false
	}
}

// Flush blocks until every task submitted so far has finished, or the
// context expires.
func (r *Runner) Flush(ctx context.Context) error {
	settled := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(settled)
	}()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs whatever is queued and waits for the
// worker to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	<-r.done
}

func (r *Runner) loop() {
	defer close(r.done)
	for task := range r.tasks {
		r.execute(task)
		r.pending.Done()
	}
}

// execute runs one task under its timeout, containing panics so a bad task
// cannot kill the worker.
func (r *Runner) execute(task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("task", task.Name).Interface("panic", rec).Msg("Background task panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.taskTimeout)
	defer cancel()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		r.log.Error().Err(err).Str("task", task.Name).Msg("Background task failed")
		return
	}
	r.log.Debug().Str("task", task.Name).Dur("took", time.Since(start)).Msg("Background task done")
}
