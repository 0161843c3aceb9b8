// Package store persists pipeline run history so operators can audit which
// source file, model, and stages produced a given set of artifacts.
package store

import (
	"context"
	"time"

	"github.com/meridian-rcm/revperf/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	SourceFile   string          `json:"source_file,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run registry.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, sourceFile string, kind model.ModelKind) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	StartStage(ctx context.Context, runID, name string) (*model.StageRecord, error)
	FinishStage(ctx context.Context, stageID, status string, rowsOut int, artifacts []string, errMsg string) error
	ListStages(ctx context.Context, runID string) ([]model.StageRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
