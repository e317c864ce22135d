package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptofolio/pkg/logger"

	"github.com/robfig/cron/v3"
)

const minStartDelay = time.Second

// Task is one named periodic tick. StartDelay holds the first firing
// back so dependent subsystems can finish initializing; it is clamped
// to a non-zero grace period.
type Task struct {
	Name       string
	Interval   time.Duration
	StartDelay time.Duration
	Run        func(ctx context.Context) error
}

// TaskStatus is the operational snapshot exposed over the status API.
type TaskStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int           `json:"runs"`
	Failures  int           `json:"failures"`
	LastRun   *time.Time    `json:"last_run"`
	LastError string        `json:"last_error,omitempty"`
}

// Scheduler owns the engine's periodic tasks. Each task enforces
// at-most-one concurrent execution: a firing that lands while the
// previous one is still processing is skipped, not queued. Different
// tasks run independently of each other.
type Scheduler struct {
	log     *logger.Logger
	timeout time.Duration
	cron    *cron.Cron
	tasks   []Task

	// baseCtx parents every tick; Stop cancels it so an in-flight tick
	// ends at its next record boundary instead of running to completion.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	status map[string]*TaskStatus
}

func NewScheduler(log *logger.Logger, tickTimeout time.Duration) *Scheduler {
	cronLog := cronLogger{log: log}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:     log,
		timeout: tickTimeout,
		cron:    cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		baseCtx: baseCtx,
		cancel:  cancel,
		status:  make(map[string]*TaskStatus),
	}
}

func (s *Scheduler) Register(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task needs a name")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %q needs a positive interval", task.Name)
	}
	if task.Run == nil {
		return fmt.Errorf("task %q needs a run function", task.Name)
	}
	if _, exists := s.status[task.Name]; exists {
		return fmt.Errorf("task %q already registered", task.Name)
	}
	if task.StartDelay < minStartDelay {
		task.StartDelay = minStartDelay
	}

	s.tasks = append(s.tasks, task)
	s.status[task.Name] = &TaskStatus{Name: task.Name, Interval: task.Interval}
	return nil
}

// Start schedules every registered task and begins ticking. First runs
// are staggered by each task's StartDelay relative to now.
func (s *Scheduler) Start() {
	now := time.Now()
	for _, task := range s.tasks {
		task := task
		s.cron.Schedule(
			newStaggeredSchedule(task.Interval, now.Add(task.StartDelay)),
			cron.FuncJob(func() { s.runTask(task) }),
		)
		s.log.Info("Scheduled task",
			logger.StringField("task", task.Name),
			logger.StringField("interval", task.Interval.String()),
			logger.StringField("start_delay", task.StartDelay.String()),
		)
	}
	s.cron.Start()
}

// Stop cancels the base context, halts scheduling and waits for
// in-flight ticks, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runTask is the single funnel every tick goes through. Task errors are
// logged and recorded but never propagate: the engine must keep running
// unattended, so a failed tick only means the next one starts clean.
func (s *Scheduler) runTask(task Task) {
	ctx := logger.NewContext(s.baseCtx, s.log.With(logger.StringField("task", task.Name)))
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.Debug("Tick started", logger.StringField("task", task.Name))
	start := time.Now()
	err := task.Run(ctx)

	s.mu.Lock()
	status := s.status[task.Name]
	status.Runs++
	status.LastRun = &start
	if err != nil {
		status.Failures++
		status.LastError = err.Error()
	} else {
		status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Tick failed",
			logger.StringField("task", task.Name),
			logger.StringField("elapsed", time.Since(start).String()),
			logger.ErrorField(err),
		)
		return
	}
	s.log.Info("Tick completed",
		logger.StringField("task", task.Name),
		logger.StringField("elapsed", time.Since(start).String()),
	)
}

// Status returns a snapshot per task, in registration order.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *s.status[task.Name])
	}
	return out
}

// staggeredSchedule fires at a constant interval but never before the
// notBefore instant, which delays only the first activation.
type staggeredSchedule struct {
	every     time.Duration
	notBefore time.Time
}

// newStaggeredSchedule rounds the interval the way cron.Every does:
// sub-second intervals clamp to one second and sub-second remainders
// are truncated, so Next always advances.
func newStaggeredSchedule(every time.Duration, notBefore time.Time) staggeredSchedule {
	if every < time.Second {
		every = time.Second
	}
	every = every - time.Duration(every.Nanoseconds())%time.Second
	return staggeredSchedule{every: every, notBefore: notBefore}
}

func (s staggeredSchedule) Next(t time.Time) time.Time {
	if t.Before(s.notBefore) {
		return s.notBefore
	}
	return t.Add(s.every - time.Duration(t.Nanosecond())*time.Nanosecond)
}

// cronLogger adapts the zap wrapper to cron's logging interface.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
