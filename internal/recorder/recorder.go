// Package recorder hands ledger movements to the kardex service in the
// background. Delivery is best effort: nothing is retried or persisted.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"toolrental/internal/config"
	"toolrental/internal/kardex"
	"toolrental/internal/logger"
)

// Sink stores one movement. clients.KardexClient is the production sink.
type Sink interface {
	RecordMovement(ctx context.Context, req kardex.RecordRequest) (*kardex.Movement, error)
}

// job carries the submitting request's id so the kardex write can be traced
// back to it. Submissions outside a request get a fresh id.
type job struct {
	id  string
	req kardex.RecordRequest
}

// Recorder is a bounded queue drained by a fixed set of workers.
type Recorder struct {
	sink    Sink
	jobs    chan job
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// New starts cfg.Workers workers draining a queue of cfg.QueueSize jobs.
func New(sink Sink, cfg config.RecorderConfig) *Recorder {
	r := &Recorder{
		sink:    sink,
		jobs:    make(chan job, cfg.QueueSize),
		timeout: cfg.Timeout,
	}
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// Submit queues req without blocking. It returns false when the request was
// dropped because the queue is full or the recorder is stopped. ctx only
// supplies the request id; the write runs on its own timeout.
func (r *Recorder) Submit(ctx context.Context, req kardex.RecordRequest) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		logger.Error("Movement dropped: recorder stopped",
			zap.String("movement_type", string(req.MovementType)),
			zap.Int64("tool_unit_id", req.ToolUnitID),
		)
		return false
	}

	j := job{id: middleware.GetReqID(ctx), req: req}
	if j.id == "" {
		j.id = uuid.NewString()
	}
	select {
	case r.jobs <- j:
		return true
	default:
		logger.Error("Movement dropped: recorder queue full",
			zap.String("request_id", j.id),
			zap.String("movement_type", string(req.MovementType)),
			zap.Int64("tool_unit_id", req.ToolUnitID),
			zap.Int("queue_size", cap(r.jobs)),
		)
		return false
	}
}

// Stop refuses new work, waits for the queue to drain, and returns early with
// ctx's error if ctx ends first.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("Recorder stopped before draining", zap.Int("pending", len(r.jobs)))
		return ctx.Err()
	}
}

func (r *Recorder) worker(n int) {
	defer r.wg.Done()
	for j := range r.jobs {
		r.process(n, j)
	}
}

func (r *Recorder) process(worker int, j job) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, j.id)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("request_id", j.id),
		zap.Int("worker", worker),
		zap.String("movement_type", string(j.req.MovementType)),
		zap.Int64("tool_unit_id", j.req.ToolUnitID),
	}

	m, err := r.sink.RecordMovement(ctx, j.req)
	if err != nil {
		logger.Error("Failed to record movement", append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("Movement recorded", append(fields, zap.Int64("movement_id", m.ID))...)
}
