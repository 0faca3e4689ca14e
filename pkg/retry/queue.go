// Package retry runs bounded, fixed-delay retries as tracked background tasks
// that can be listed and cancelled.
package retry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrCancelled is recorded on tasks stopped via Cancel or Stop.
var ErrCancelled = errors.New("retry cancelled")

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Status of a task.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Task is a point-in-time view of a retried job.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	Status      Status    `json:"status"`
	NextRunAt   time.Time `json:"next_run_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type entry struct {
	task   Task
	cancel context.CancelFunc
}

// Queue owns the goroutines running retries. Finished tasks are kept for
// inspection up to a fixed history size.
type Queue struct {
	mu         sync.Mutex
	tasks      map[string]*entry
	order      []string
	maxHistory int

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func NewQueue(logger zerolog.Logger) *Queue {
	ctx, stop := context.WithCancel(context.Background())
	return &Queue{
		tasks:      make(map[string]*entry),
		maxHistory: 100,
		ctx:        ctx,
		stop:       stop,
		logger:     logger,
	}
}

// Run executes attempt 1 inline. If it fails and the policy allows more
// attempts, the rest are scheduled in the background and the returned id
// identifies that task. The returned error is the first attempt's.
func (q *Queue) Run(ctx context.Context, name string, p Policy, fn Func) (string, error) {
	err := fn(ctx, 1)
	if err == nil || p.MaxAttempts <= 1 {
		return "", err
	}
	return q.schedule(name, p, 2, err, fn), err
}

// Submit schedules fn with its first attempt after p.Delay.
func (q *Queue) Submit(name string, p Policy, fn Func) string {
	return q.schedule(name, p, 1, nil, fn)
}

func (q *Queue) schedule(name string, p Policy, next int, lastErr error, fn Func) string {
	now := time.Now()
	taskCtx, cancel := context.WithCancel(q.ctx)
	e := &entry{
		task: Task{
			ID:          uuid.New().String(),
			Name:        name,
			Attempt:     next - 1,
			MaxAttempts: p.MaxAttempts,
			Status:      StatusWaiting,
			NextRunAt:   now.Add(p.Delay),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		cancel: cancel,
	}
	if lastErr != nil {
		e.task.LastError = lastErr.Error()
	}

	q.mu.Lock()
	q.tasks[e.task.ID] = e
	q.order = append(q.order, e.task.ID)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.loop(taskCtx, e.task.ID, p, next, fn)
	return e.task.ID
}

func (q *Queue) loop(ctx context.Context, id string, p Policy, attempt int, fn Func) {
	defer q.wg.Done()
	log := q.logger.With().Str("task_id", id).Logger()

	for ; attempt <= p.MaxAttempts; attempt++ {
		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			q.finish(id, StatusCancelled, ErrCancelled)
			return
		case <-timer.C:
		}

		q.update(id, func(t *Task) {
			t.Attempt = attempt
			t.Status = StatusRunning
			t.NextRunAt = time.Time{}
		})

		err := fn(ctx, attempt)
		if err == nil {
			q.finish(id, StatusSucceeded, nil)
			log.Info().Int("attempt", attempt).Msg("retry succeeded")
			return
		}
		if ctx.Err() != nil {
			q.finish(id, StatusCancelled, ErrCancelled)
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", p.MaxAttempts).Msg("retry attempt failed")
		q.update(id, func(t *Task) {
			t.Status = StatusWaiting
			t.LastError = err.Error()
			t.NextRunAt = time.Now().Add(p.Delay)
		})
	}

	q.finish(id, StatusFailed, nil)
	log.Error().Int("max_attempts", p.MaxAttempts).Msg("retry attempts exhausted")
}

// Cancel stops a pending task. It reports false if the id is unknown or already finished.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	e, ok := q.tasks[id]
	if !ok || isTerminal(e.task.Status) {
		q.mu.Unlock()
		return false
	}
	cancel := e.cancel
	q.mu.Unlock()

	cancel()
	return true
}

// Snapshot lists tasks in submission order.
func (q *Queue) Snapshot() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.tasks[id].task)
	}
	return out
}

// Get returns a task by id.
func (q *Queue) Get(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// Wait blocks until every scheduled task has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Stop cancels all pending tasks and waits for their goroutines.
func (q *Queue) Stop() {
	q.stop()
	q.wg.Wait()
}

func (q *Queue) update(id string, fn func(*Task)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.tasks[id]; ok {
		fn(&e.task)
		e.task.UpdatedAt = time.Now()
	}
}

func (q *Queue) finish(id string, status Status, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[id]
	if !ok {
		return
	}
	e.task.Status = status
	e.task.NextRunAt = time.Time{}
	e.task.UpdatedAt = time.Now()
	if err != nil {
		e.task.LastError = err.Error()
	}
	e.cancel()
	q.pruneLocked()
}

// pruneLocked drops the oldest finished tasks beyond maxHistory.
func (q *Queue) pruneLocked() {
	finished := 0
	for _, id := range q.order {
		if isTerminal(q.tasks[id].task.Status) {
			finished++
		}
	}
	if finished <= q.maxHistory {
		return
	}

	drop := finished - q.maxHistory
	kept := q.order[:0]
	for _, id := range q.order {
		if drop > 0 && isTerminal(q.tasks[id].task.Status) {
			delete(q.tasks, id)
			drop--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

func isTerminal(s Status) bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}
