package repository

import (
	"context"
	"database/sql"
	"time"

	"backtest-api/internal/model"
	"backtest-api/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BacktestRepository interface {
	Create(ctx context.Context, job *model.BacktestJob, opts ...utils.DBOption) error
	UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg *string, opts ...utils.DBOption) error
	SaveResult(ctx context.Context, id string, result datatypes.JSON, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id string) (*model.BacktestJob, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time, opts ...utils.DBOption) (int64, error)
}

type backtestRepository struct {
	db *gorm.DB
}

func NewBacktestRepository(db *gorm.DB) BacktestRepository {
	return &backtestRepository{db: db}
}

func (r *backtestRepository) Create(ctx context.Context, job *model.BacktestJob, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(job).Error
}

// UpdateStatus rewrites status, error and updated_at in one atomic UPDATE.
// Rows already in a terminal state are never touched.
func (r *backtestRepository) UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg *string, opts ...utils.DBOption) error {
	errValue := sql.NullString{}
	if errMsg != nil {
		errValue = sql.NullString{String: *errMsg, Valid: true}
	}

	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.BacktestJob{}).
		Where("id = ?", id).
		Where("status NOT IN ?", []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":     status,
			"error":      errValue,
			"updated_at": utils.TimeNowUTC(),
		}).Error
}

// SaveResult commits the completed terminal state together with the result
// payload, clearing any stale error.
func (r *backtestRepository) SaveResult(ctx context.Context, id string, result datatypes.JSON, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.BacktestJob{}).
		Where("id = ?", id).
		Where("status NOT IN ?", []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":     model.JobStatusCompleted,
			"result":     result,
			"error":      sql.NullString{},
			"updated_at": utils.TimeNowUTC(),
		}).Error
}

func (r *backtestRepository) FindByID(ctx context.Context, id string) (*model.BacktestJob, error) {
	var job model.BacktestJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *backtestRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("status IN ?", []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}).
		Where("updated_at < ?", cutoff).
		Delete(&model.BacktestJob{})
	return result.RowsAffected, result.Error
}
