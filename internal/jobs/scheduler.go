package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"toolrental/internal/logger"
)

// Scheduler runs the JobRunner's jobs on their cron schedules.
type Scheduler struct {
	cron *cron.Cron
	jobs *JobRunner
}

// NewScheduler registers every job. Schedules use UTC and seconds precision.
func NewScheduler(jobRunner *JobRunner) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.ReportOverdueLoans, s.jobs.ReportOverdueLoans); err != nil {
		logger.Error("Failed to register ReportOverdueLoans job",
			zap.String("schedule", cfg.ReportOverdueLoans), zap.Error(err))
	}

	logger.Info("Cron jobs registered", zap.Int("jobs", len(s.cron.Entries())))
}

func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning reports whether any job is registered.
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
