package models

import "time"

// SyncRun records one full sync cycle for the history views.
type SyncRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    int
	Synced     int
	Failed     int
}

// Duration returns the cycle runtime.
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PlaylistSync records one playlist outcome within a run.
type PlaylistSync struct {
	ID         int64
	RunID      int64
	Title      string
	TargetID   string
	SourceURL  string
	Matched    int
	Total      int
	Created    bool
	Err        string
	FinishedAt time.Time
}

// Succeeded reports whether the playlist converged without a fatal error.
func (s PlaylistSync) Succeeded() bool {
	return s.Err == ""
}
