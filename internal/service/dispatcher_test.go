package service

import (
	"context"
	"sync"
	"testing"

	"backtest-api/internal/dto"
	"backtest-api/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_ExecutesSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	var executed []string

	d := NewDispatcher(logger.NewNop(), 2, 8, func(ctx context.Context, jobID string, req *dto.BacktestRequest) {
		mu.Lock()
		executed = append(executed, jobID)
		mu.Unlock()
	})
	d.Start(context.Background())

	assert.NoError(t, d.Submit("job-a", &dto.BacktestRequest{}))
	assert.NoError(t, d.Submit("job-b", &dto.BacktestRequest{}))
	d.Stop()

	assert.ElementsMatch(t, []string{"job-a", "job-b"}, executed)
}

func TestDispatcher_SubmitFailsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(logger.NewNop(), 1, 1, func(ctx context.Context, jobID string, req *dto.BacktestRequest) {})

	// Workers never started, so the single slot stays occupied.
	assert.NoError(t, d.Submit("job-a", &dto.BacktestRequest{}))
	assert.ErrorIs(t, d.Submit("job-b", &dto.BacktestRequest{}), ErrQueueFull)
}

func TestDispatcher_JobsSurviveStartContextCancellation(t *testing.T) {
	var mu sync.Mutex
	var ctxErrs []error

	d := NewDispatcher(logger.NewNop(), 1, 8, func(ctx context.Context, jobID string, req *dto.BacktestRequest) {
		mu.Lock()
		ctxErrs = append(ctxErrs, ctx.Err())
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()

	// A job queued after the shutdown signal still runs to completion under a
	// live context, so its terminal-state write cannot be aborted.
	assert.NoError(t, d.Submit("job-late", &dto.BacktestRequest{}))
	d.Stop()

	if assert.Len(t, ctxErrs, 1) {
		assert.NoError(t, ctxErrs[0])
	}
}

func TestDispatcher_PanicInJobDoesNotKillWorker(t *testing.T) {
	var mu sync.Mutex
	var executed []string

	d := NewDispatcher(logger.NewNop(), 1, 8, func(ctx context.Context, jobID string, req *dto.BacktestRequest) {
		if jobID == "job-bad" {
			panic("strategy blew up")
		}
		mu.Lock()
		executed = append(executed, jobID)
		mu.Unlock()
	})
	d.Start(context.Background())

	assert.NoError(t, d.Submit("job-bad", &dto.BacktestRequest{}))
	assert.NoError(t, d.Submit("job-good", &dto.BacktestRequest{}))
	d.Stop()

	assert.Equal(t, []string{"job-good"}, executed)
}
