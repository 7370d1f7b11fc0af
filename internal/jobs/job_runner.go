// Package jobs holds the loans service's scheduled work.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"toolrental/internal/config"
	"toolrental/internal/loan"
	"toolrental/internal/logger"
)

const jobTimeout = time.Minute

// OverdueLister is the slice of the loan service the jobs read.
type OverdueLister interface {
	ListOverdue(ctx context.Context) ([]*loan.LoanView, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	loans  OverdueLister
	config *config.Config
}

func NewJobRunner(loans OverdueLister, cfg *config.Config) *JobRunner {
	return &JobRunner{loans: loans, config: cfg}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", zap.String("job", jobName), zap.Any("panic", r))
		}
	}()

	logger.Info("Starting job", zap.String("job", jobName))
	jobFunc()
	logger.Info("Job completed", zap.String("job", jobName))
}
