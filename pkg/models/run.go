package models

import "time"

// RunStatus represents the outcome of an annotation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusRejected  RunStatus = "rejected"
	RunStatusFailed    RunStatus = "failed"
)

// AnnotationRun is the history record of one annotate-design call
type AnnotationRun struct {
	ID           string     `json:"id"`
	Status       RunStatus  `json:"status"`
	Libraries    []string   `json:"libraries"`
	Cleaned      bool       `json:"cleaned"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Finish stamps completion time and duration
func (r *AnnotationRun) Finish(status RunStatus, errorMsg string) {
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
	if errorMsg != "" {
		r.ErrorMessage = errorMsg
	}
}

// IsTerminal reports whether the run has finished
func (r *AnnotationRun) IsTerminal() bool {
	return r.Status != RunStatusRunning
}
