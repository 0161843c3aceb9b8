package model

import "time"

// RunStatus tracks a pipeline run's lifecycle in the run registry.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one end-to-end pipeline invocation.
type Run struct {
	ID         string     `json:"id"`
	SourceFile string     `json:"source_file"`
	Status     RunStatus  `json:"status"`
	Model      ModelKind  `json:"model"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StageRecord is one stage execution within a run.
type StageRecord struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	RowsOut   int        `json:"rows_out"`
	Artifacts []string   `json:"artifacts,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
