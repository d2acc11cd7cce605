package service

import (
	"backtest-api/config"
	"backtest-api/internal/engine"
	"backtest-api/internal/repository"
	"backtest-api/pkg/cache"
	"backtest-api/pkg/logger"
)

type Service struct {
	BacktestService  BacktestService
	RetentionService RetentionService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	eng engine.Engine,
) *Service {
	runner := NewRunner(eng)

	return &Service{
		BacktestService:  NewBacktestService(cfg, log, repo.BacktestRepo, runner, inmemoryCache),
		RetentionService: NewRetentionService(cfg, log, repo.BacktestRepo),
	}
}
