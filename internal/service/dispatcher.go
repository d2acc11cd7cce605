package service

import (
	"context"
	"errors"
	"sync"

	"backtest-api/internal/dto"
	"backtest-api/pkg/logger"
)

// ErrQueueFull is returned when the bounded work queue cannot accept another
// job. The caller records it as the job's terminal failure.
var ErrQueueFull = errors.New("worker queue is full")

type jobTask struct {
	jobID   string
	request *dto.BacktestRequest
}

// Dispatcher is the bounded worker pool behind job submission: handlers
// enqueue and return immediately, consumer goroutines execute.
type Dispatcher struct {
	log     *logger.Logger
	tasks   chan jobTask
	workers int
	execute func(ctx context.Context, jobID string, req *dto.BacktestRequest)

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewDispatcher(log *logger.Logger, workers, queueSize int, execute func(ctx context.Context, jobID string, req *dto.BacktestRequest)) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		log:     log,
		tasks:   make(chan jobTask, queueSize),
		workers: workers,
		execute: execute,
	}
}

// Start launches the consumer loops. Workers drain the queue until Stop
// closes it. Jobs run under a context detached from ctx: a shutdown signal
// must not abort in-flight runs or their terminal-state writes, and queued
// jobs still execute during the drain.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("Starting job dispatcher",
		logger.IntField("workers", d.workers),
		logger.IntField("queue_size", cap(d.tasks)),
	)

	execCtx := context.WithoutCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(execCtx)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for task := range d.tasks {
		d.run(ctx, task)
	}
}

func (d *Dispatcher) run(ctx context.Context, task jobTask) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Panic while executing job",
				logger.StringField("job_id", task.jobID),
				logger.Field("panic", r),
			)
		}
	}()
	d.execute(ctx, task.jobID, task.request)
}

// Submit enqueues without blocking; a full queue is reported to the caller
// instead of stalling the submission path.
func (d *Dispatcher) Submit(jobID string, req *dto.BacktestRequest) error {
	select {
	case d.tasks <- jobTask{jobID: jobID, request: req}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.tasks)
	})
	d.wg.Wait()
	d.log.Info("Job dispatcher stopped")
}
