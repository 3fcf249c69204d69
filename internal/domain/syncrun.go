package domain

import "time"

// SyncKind identifies which scheduled partner task a run belongs to.
type SyncKind string

const (
	SyncKindJobs       SyncKind = "jobs"
	SyncKindCandidates SyncKind = "candidates"
	SyncKindPlacements SyncKind = "placements"
)

// SyncRunStatus is the lifecycle state of one sync run.
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncRun records one execution of a scheduled partner-side task.
// A run finishes completed even with per-item failures; failed is
// reserved for unrecoverable errors (bad credentials, store down).
type SyncRun struct {
	ID                string        `db:"id"                 json:"id"`
	Kind              SyncKind      `db:"kind"               json:"kind"`
	Status            SyncRunStatus `db:"status"             json:"status"`
	StartedAt         time.Time     `db:"started_at"         json:"started_at"`
	FinishedAt        *time.Time    `db:"finished_at"        json:"finished_at,omitempty"`
	JobsSynced        int           `db:"jobs_synced"        json:"jobs_synced"`
	CandidatesSynced  int           `db:"candidates_synced"  json:"candidates_synced"`
	PlacementsUpdated int           `db:"placements_updated" json:"placements_updated"`
	ErrorsCount       int           `db:"errors_count"       json:"errors_count"`
	ErrorLog          []string      `db:"-"                  json:"error_log,omitempty"`
}
