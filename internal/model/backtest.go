package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BacktestJob is one persisted backtest job row. The orchestrator is the only
// writer; status readers never mutate.
type BacktestJob struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	Status    JobStatus      `gorm:"type:varchar(20);not null"`
	Request   datatypes.JSON `gorm:"type:jsonb;not null"`
	Result    datatypes.JSON `gorm:"type:jsonb"`
	Error     sql.NullString `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (BacktestJob) TableName() string {
	return "backtest_jobs"
}

// BacktestConfig is the fully resolved simulation configuration. It is built once
// per job and never mutated afterwards; StrategyParams already has every alias
// applied.
type BacktestConfig struct {
	Symbol               string
	Timeframe            string
	StartDate            string
	EndDate              string
	DataFile             string
	InitialCash          float64
	LimitBars            int
	RunDualEngine        bool
	UseForexPositionCalc bool
	Strategy             string
	StrategyParams       map[string]any
}
