package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backtest-api/config"
	"backtest-api/internal/dto"
	"backtest-api/internal/engine"
	"backtest-api/internal/model"
	"backtest-api/internal/repository"
	"backtest-api/pkg/cache"
	"backtest-api/pkg/logger"
	"backtest-api/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const defaultParamsCacheKey = "backtest:default_params"

// BacktestService is the job orchestrator: it owns the queued → running →
// {completed | failed} lifecycle and is the only writer of job rows.
type BacktestService interface {
	CreateJob(ctx context.Context, req *dto.BacktestRequest) (*model.BacktestJob, error)
	Schedule(jobID string, req *dto.BacktestRequest)
	ExecuteJob(ctx context.Context, jobID string, req *dto.BacktestRequest)
	GetJob(ctx context.Context, jobID string) (*model.BacktestJob, error)
	GetEquityCurve(ctx context.Context, jobID string) (*dto.EquityCurveResponse, error)
	DefaultParameters() map[string]any

	// StartWorkers launches the background consumer pool; StopWorkers drains
	// it, letting in-flight jobs reach a terminal state.
	StartWorkers(ctx context.Context)
	StopWorkers()
}

type backtestService struct {
	cfg          *config.Config
	log          *logger.Logger
	backtestRepo repository.BacktestRepository
	runner       *Runner
	dispatcher   *Dispatcher
	cache        cache.Cache
}

func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	backtestRepo repository.BacktestRepository,
	runner *Runner,
	inmemoryCache cache.Cache,
) BacktestService {
	s := &backtestService{
		cfg:          cfg,
		log:          log,
		backtestRepo: backtestRepo,
		runner:       runner,
		cache:        inmemoryCache,
	}
	s.dispatcher = NewDispatcher(log, cfg.Worker.PoolSize, cfg.Worker.QueueSize, s.ExecuteJob)
	return s
}

func (s *backtestService) StartWorkers(ctx context.Context) {
	s.dispatcher.Start(ctx)
}

func (s *backtestService) StopWorkers() {
	s.dispatcher.Stop()
}

// CreateJob persists a queued row with the verbatim request payload and
// returns immediately, without waiting for execution.
func (s *backtestService) CreateJob(ctx context.Context, req *dto.BacktestRequest) (*model.BacktestJob, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request payload: %w", err)
	}

	now := utils.TimeNowUTC()
	job := &model.BacktestJob{
		ID:        uuid.NewString(),
		Status:    model.JobStatusQueued,
		Request:   datatypes.JSON(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.backtestRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create backtest job: %w", err)
	}

	s.log.InfoContext(ctx, "Backtest job created", logger.StringField("job_id", job.ID))
	return job, nil
}

// Schedule hands the job to the background worker pool without blocking the
// submission path. A full queue turns into the job's terminal failure instead
// of an error to the submitter.
func (s *backtestService) Schedule(jobID string, req *dto.BacktestRequest) {
	if err := s.dispatcher.Submit(jobID, req); err != nil {
		s.log.Error("Failed to enqueue backtest job",
			logger.ErrorField(err),
			logger.StringField("job_id", jobID),
		)
		s.markFailed(context.Background(), jobID, err)
	}
}

// ExecuteJob drives the full pipeline for one job. Every failure inside the
// pipeline is caught here, exactly once, and committed as the terminal failed
// state; nothing escapes to the worker loop. That includes panics: a job must
// never stay running because its pipeline blew up.
func (s *backtestService) ExecuteJob(ctx context.Context, jobID string, req *dto.BacktestRequest) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "Panic while executing backtest job",
				logger.StringField("job_id", jobID),
				logger.Field("panic", r),
			)
			s.markFailed(ctx, jobID, fmt.Errorf("panic during execution: %v", r))
		}
	}()

	if err := s.backtestRepo.UpdateStatus(ctx, jobID, model.JobStatusRunning, nil); err != nil {
		s.log.ErrorContext(ctx, "Failed to mark job running",
			logger.ErrorField(err),
			logger.StringField("job_id", jobID),
		)
		return
	}

	result, err := s.runPipeline(ctx, jobID, req)
	if err != nil {
		s.log.WarnContext(ctx, "Backtest job failed",
			logger.ErrorField(err),
			logger.StringField("job_id", jobID),
		)
		s.markFailed(ctx, jobID, err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.markFailed(ctx, jobID, fmt.Errorf("failed to encode result: %w", err))
		return
	}
	if err := s.backtestRepo.SaveResult(ctx, jobID, datatypes.JSON(payload)); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist job result",
			logger.ErrorField(err),
			logger.StringField("job_id", jobID),
		)
		return
	}

	s.log.InfoContext(ctx, "Backtest job completed",
		logger.StringField("job_id", jobID),
		logger.IntField("total_trades", result.TotalTrades),
		logger.Float64Field("final_value", result.FinalValue),
	)
}

func (s *backtestService) runPipeline(ctx context.Context, jobID string, req *dto.BacktestRequest) (*dto.BacktestResult, error) {
	cfg := ResolveConfig(req, s.cfg.Backtest, s.DefaultParameters())
	params := cfg.StrategyParams

	var artifact *RunArtifact
	if dualRunRequested(cfg, params) {
		longArt, shortArt, err := s.runner.RunDual(ctx, cfg, params)
		if err != nil {
			return nil, err
		}
		artifact = MergeDualRun(longArt, shortArt, cfg)
	} else {
		art, err := s.runner.RunOnce(ctx, cfg, params)
		if err != nil {
			return nil, err
		}
		artifact = art
	}

	result := BuildBacktestResult(jobID, artifact)
	result.CompletedAt = utils.FormatISO(utils.TimeNowUTC())
	return &result, nil
}

// dualRunRequested: dual mode applies only when the config asks for it and
// both trade sides are enabled in the resolved parameters.
func dualRunRequested(cfg model.BacktestConfig, params map[string]any) bool {
	return cfg.RunDualEngine &&
		engine.BoolParam(params, "enable_long_trades", false) &&
		engine.BoolParam(params, "enable_short_trades", false)
}

func (s *backtestService) markFailed(ctx context.Context, jobID string, cause error) {
	msg := cause.Error()
	if err := s.backtestRepo.UpdateStatus(ctx, jobID, model.JobStatusFailed, &msg); err != nil {
		s.log.ErrorContext(ctx, "Failed to mark job failed",
			logger.ErrorField(err),
			logger.StringField("job_id", jobID),
		)
	}
}

// GetJob is a read-only lookup. An unknown identifier surfaces as
// gorm.ErrRecordNotFound, distinct from a found-but-unfinished job.
func (s *backtestService) GetJob(ctx context.Context, jobID string) (*model.BacktestJob, error) {
	return s.backtestRepo.FindByID(ctx, jobID)
}

// GetEquityCurve returns the equity curve alone when the job is completed,
// otherwise an empty array with the current status.
func (s *backtestService) GetEquityCurve(ctx context.Context, jobID string) (*dto.EquityCurveResponse, error) {
	job, err := s.backtestRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &dto.EquityCurveResponse{
		ID:          job.ID,
		Status:      string(job.Status),
		EquityCurve: []dto.EquityPoint{},
	}
	if job.Status != model.JobStatusCompleted || len(job.Result) == 0 {
		return resp, nil
	}

	var result dto.BacktestResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	if result.EquityCurve != nil {
		resp.EquityCurve = result.EquityCurve
	}
	return resp, nil
}

// DefaultParameters returns the default parameter table of the configured
// strategy. Cached: the table is static for the process lifetime.
func (s *backtestService) DefaultParameters() map[string]any {
	if params, ok := cache.GetTyped[map[string]any](s.cache, defaultParamsCacheKey); ok {
		return engine.CloneParams(params)
	}

	params := engine.DefaultParams(s.cfg.Backtest.Strategy)
	if params == nil {
		params = map[string]any{}
	}
	s.cache.Set(defaultParamsCacheKey, params, 24*time.Hour)
	return engine.CloneParams(params)
}
