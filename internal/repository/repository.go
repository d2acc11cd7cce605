package repository

import (
	"backtest-api/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	BacktestRepo BacktestRepository
}

func NewRepository(db *gorm.DB, log *logger.Logger) *Repository {
	return &Repository{
		BacktestRepo: NewBacktestRepository(db),
	}
}
