// Package scheduler runs the periodic maintenance jobs: showing
// reconciliation, contract expiry, notification sweeps and rescans.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one periodic job
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run; zero means the interval
	Timeout time.Duration
	// RunOnStart runs the task once before the first tick
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// TaskStatus is the last observed outcome of a task
type TaskStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Scheduler ticks each task on its own goroutine. Runs of the same task
// never overlap.
type Scheduler struct {
	tasks  []Task
	logger *zap.Logger

	mu      sync.RWMutex
	status  map[string]*TaskStatus
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates tasks and builds a scheduler
func New(logger *zap.Logger, tasks ...Task) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	status := make(map[string]*TaskStatus, len(tasks))
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil {
			return nil, fmt.Errorf("task needs a name and a run func")
		}
		if t.Interval <= 0 {
			return nil, fmt.Errorf("task %s: interval must be positive", t.Name)
		}
		if _, dup := status[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %s", t.Name)
		}
		status[t.Name] = &TaskStatus{Name: t.Name, Interval: t.Interval.String()}
	}
	return &Scheduler{
		tasks:  tasks,
		logger: logger.With(zap.String("component", "scheduler")),
		status: status,
	}, nil
}

// Start launches every task. It returns immediately; cancel ctx or call Stop
// to end the loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.logger.Info("scheduler started", zap.Int("tasks", len(s.tasks)))
}

// Stop cancels all loops and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Status returns a snapshot of every task
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *s.status[t.Name])
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	if t.RunOnStart {
		s.runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = t.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	err := t.Run(runCtx)
	duration := time.Since(started)

	s.mu.Lock()
	st := s.status[t.Name]
	st.Runs++
	st.LastRun = &started
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled task failed",
			zap.String("task", t.Name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("scheduled task completed", zap.String("task", t.Name), zap.Duration("duration", duration))
}
