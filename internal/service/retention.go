package service

import (
	"context"
	"fmt"
	"time"

	"backtest-api/config"
	"backtest-api/internal/repository"
	"backtest-api/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RetentionService periodically deletes terminal jobs older than the
// configured retention window. Queued and running rows are never swept.
type RetentionService interface {
	Start() error
	Stop()
}

type retentionService struct {
	cfg          *config.Config
	log          *logger.Logger
	backtestRepo repository.BacktestRepository
	cron         *cron.Cron
}

func NewRetentionService(cfg *config.Config, log *logger.Logger, backtestRepo repository.BacktestRepository) RetentionService {
	return &retentionService{
		cfg:          cfg,
		log:          log,
		backtestRepo: backtestRepo,
		cron:         cron.New(),
	}
}

func (s *retentionService) Start() error {
	if s.cfg.Backtest.RetentionDays <= 0 {
		s.log.Info("Job retention sweep disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.Backtest.RetentionSchedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	s.cron.Start()

	s.log.Info("Job retention sweep scheduled",
		logger.StringField("schedule", s.cfg.Backtest.RetentionSchedule),
		logger.IntField("retention_days", s.cfg.Backtest.RetentionDays),
	)
	return nil
}

func (s *retentionService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *retentionService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.Backtest.RetentionDays)
	deleted, err := s.backtestRepo.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Retention sweep failed", logger.ErrorField(err))
		return
	}
	if deleted > 0 {
		s.log.InfoContext(ctx, "Retention sweep deleted old jobs", logger.IntField("deleted", int(deleted)))
	}
}
