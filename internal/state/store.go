// Package state records build history in SQLite: one row per build run and
// one row per projection outcome of a run.
package state

import "time"

// RunStatus is the state of a build run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// ProjectionStatus is the outcome of one projection in a run.
type ProjectionStatus string

// Projection statuses.
const (
	ProjectionStatusSuccess ProjectionStatus = "success"
	ProjectionStatusBroken  ProjectionStatus = "broken"
	ProjectionStatusFailed  ProjectionStatus = "failed"
)

// Run is a single invocation of the build.
type Run struct {
	ID          string     `json:"id"`
	ConfigPath  string     `json:"config_path,omitempty"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ProjectionRecord is the recorded outcome of a projection.
type ProjectionRecord struct {
	ID         string           `json:"id"`
	RunID      string           `json:"run_id"`
	Projection string           `json:"projection"`
	Status     ProjectionStatus `json:"status"`
	Shapes     int              `json:"shapes"`
	Errors     int              `json:"errors"`
	Warnings   int              `json:"warnings"`
	Plugins    []string         `json:"plugins"`
	Error      string           `json:"error,omitempty"`
	RecordedAt time.Time        `json:"recorded_at"`
}
