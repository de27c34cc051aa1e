// Package schedule provides periodic callbacks attached to components,
// driven by a cron scheduler and resolved through the dependency
// injector.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tanjun/pkg/injector"
	"tanjun/pkg/logger"
)

// Callback is the body of a scheduled job. Its arguments are resolved
// from the declared parameters before every run.
type Callback func(ctx context.Context, args injector.Args) error

// Schedule declares one periodic callback. Build with NewCron or
// NewInterval.
type Schedule struct {
	name   string
	expr   string
	every  time.Duration
	params []injector.Param
	fn     Callback
}

// NewCron declares a schedule from a standard cron expression.
func NewCron(name, expr string, fn Callback) *Schedule {
	return &Schedule{name: name, expr: expr, fn: fn}
}

// NewInterval declares a schedule that fires every d.
func NewInterval(name string, d time.Duration, fn Callback) *Schedule {
	return &Schedule{name: name, every: d, fn: fn}
}

// WithParams declares injected parameters resolved before each run.
func (s *Schedule) WithParams(params ...injector.Param) *Schedule {
	s.params = append(s.params, params...)
	return s
}

// Name returns the schedule's name.
func (s *Schedule) Name() string { return s.name }

// Runner executes schedules against a cron scheduler. One runner is
// owned by the client and started/stopped with it.
type Runner struct {
	log *logger.Logger
	reg *injector.Registry

	scheduler *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a schedule runner resolving arguments from reg.
func NewRunner(log *logger.Logger, reg *injector.Registry) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:       log,
		reg:       reg,
		scheduler: cron.New(),
		entries:   make(map[string]cron.EntryID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Add registers a schedule with the runner.
func (r *Runner) Add(s *Schedule) error {
	job := func() { r.run(s) }

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[s.name]; exists {
		return fmt.Errorf("schedule %q already registered", s.name)
	}

	if s.expr != "" {
		id, err := r.scheduler.AddFunc(s.expr, job)
		if err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", s.expr, err)
		}
		r.entries[s.name] = id
		return nil
	}

	if s.every <= 0 {
		return fmt.Errorf("schedule %q has no cron expression or interval", s.name)
	}
	id := r.scheduler.Schedule(cron.Every(s.every), cron.FuncJob(job))
	r.entries[s.name] = id
	return nil
}

// Remove drops a schedule by name.
func (r *Runner) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.entries[name]; ok {
		r.scheduler.Remove(id)
		delete(r.entries, name)
	}
}

// Start starts the underlying scheduler.
func (r *Runner) Start() {
	r.scheduler.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	stopCtx := r.scheduler.Stop()
	<-stopCtx.Done()
	r.cancel()
}

func (r *Runner) run(s *Schedule) {
	res := injector.NewResolver(r.reg)
	args, err := res.ResolveParams(r.ctx, s.name, s.params)
	if err != nil {
		r.log.Error("Failed to resolve schedule arguments",
			zap.String("schedule", s.name),
			zap.Error(err))
		return
	}

	if err := s.fn(r.ctx, args); err != nil {
		r.log.Error("Scheduled callback failed",
			zap.String("schedule", s.name),
			zap.Error(err))
	}
}
