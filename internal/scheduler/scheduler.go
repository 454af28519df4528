// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

// New creates a new scheduler. A job that is still running when its next
// tick arrives skips that tick.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLog := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger: logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started",
		zap.String("op", "scheduler.Start"),
		zap.Int("jobs", len(s.cron.Entries())),
	)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("scheduler stopped", zap.String("op", "scheduler.Stop"))
}

// AddJob registers a job with a cron schedule
// Schedule examples:
//   - "*/5 * * * *"   - Every 5 minutes
//   - "@hourly"       - Every hour
//   - "@every 30m"    - Every 30 minutes
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return err
	}

	s.logger.Info("job registered",
		zap.String("op", "scheduler.AddJob"),
		zap.String("schedule", schedule),
		zap.String("job", job.Name()),
	)
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info("running job immediately",
		zap.String("op", "scheduler.RunNow"),
		zap.String("job", job.Name()),
	)
	return job.Run()
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) execute(job Job) {
	s.logger.Debug("running job",
		zap.String("op", "scheduler.execute"),
		zap.String("job", job.Name()),
	)
	if err := job.Run(); err != nil {
		s.logger.Error("job failed",
			zap.String("op", "scheduler.execute"),
			zap.String("job", job.Name()),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("job completed",
		zap.String("op", "scheduler.execute"),
		zap.String("job", job.Name()),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
