package ipc

// StartRequest triggers daemon sweep-loop startup.
type StartRequest struct{}

// StartResponse indicates whether the loop was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon sweep loop.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// CycleSummary mirrors one recorded sweep cycle for IPC callers.
type CycleSummary struct {
	ID             int64         `json:"id"`
	StartedAt      string        `json:"started_at"`
	FinishedAt     string        `json:"finished_at"`
	FilesSeen      int           `json:"files_seen"`
	FilesProcessed int           `json:"files_processed"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesFailed    int           `json:"files_failed"`
	LinesRead      int           `json:"lines_read"`
	LinesWritten   int           `json:"lines_written"`
	LinesDropped   int           `json:"lines_dropped"`
	Error          string        `json:"error,omitempty"`
	Files          []FileSummary `json:"files,omitempty"`
}

// FileSummary mirrors one per-file result within a cycle.
type FileSummary struct {
	Source       string `json:"source"`
	Outcome      string `json:"outcome"`
	LinesWritten int    `json:"lines_written"`
	Error        string `json:"error,omitempty"`
}

// StatusResponse represents combined daemon/sweep status information.
type StatusResponse struct {
	Running        bool          `json:"running"`
	PID            int           `json:"pid"`
	LockPath       string        `json:"lock_path"`
	CheckpointPath string        `json:"checkpoint_path"`
	HistoryDBPath  string        `json:"history_db_path"`
	TrackedFiles   int           `json:"tracked_files"`
	LastCycle      *CycleSummary `json:"last_cycle,omitempty"`
}

// SweepRequest asks for an immediate cycle.
type SweepRequest struct{}

// SweepResponse reports whether a cycle was triggered.
type SweepResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// CheckpointListRequest fetches the tracked source table.
type CheckpointListRequest struct{}

// CheckpointEntry is one row of the checkpoint table.
type CheckpointEntry struct {
	Source      string `json:"source"`
	Offset      int64  `json:"offset"`
	Destination string `json:"destination"`
}

// CheckpointListResponse contains the checkpoint table.
type CheckpointListResponse struct {
	Entries []CheckpointEntry `json:"entries"`
}

// HistoryRequest fetches recent cycles. Limit <= 0 uses the server default.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains recent cycles, newest first.
type HistoryResponse struct {
	Cycles []CycleSummary `json:"cycles"`
}
