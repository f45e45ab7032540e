package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID            int64  `json:"id"`
	RecordID      int64  `json:"recordId"`
	RecordTitle   string `json:"recordTitle,omitempty"`
	UploadStatus  string `json:"uploadStatus,omitempty"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	PartialPasses int    `json:"partialPasses"`
	LastError     string `json:"lastError,omitempty"`
	AvailableAt   string `json:"availableAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// Record describes a synchronized record.
type Record struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	DateBucket     string `json:"dateBucket"`
	SessionID      string `json:"sessionId,omitempty"`
	HasNoteText    bool   `json:"hasNoteText"`
	UploadStatus   string `json:"uploadStatus"`
	RemoteFolderID string `json:"remoteFolderId,omitempty"`
	UploadedAt     string `json:"uploadedAt,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

// RecordDetail pairs a record with its queue row and capture files.
type RecordDetail struct {
	Record     Record      `json:"record"`
	Item       *QueueItem  `json:"item,omitempty"`
	Recordings []Recording `json:"recordings,omitempty"`
}

// Recording describes a capture file reference.
type Recording struct {
	SessionID       string  `json:"sessionId,omitempty"`
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// DrainStatus summarizes the most recent drain pass.
type DrainStatus struct {
	ID         string `json:"id,omitempty"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
	Completed  int    `json:"completed"`
	NoContent  int    `json:"noContent"`
	Retried    int    `json:"retried"`
	Deferred   int    `json:"deferred"`
	Failed     int    `json:"failed"`
	AuthHalted bool   `json:"authHalted,omitempty"`
}

// WorkflowStatus summarizes upload worker state.
type WorkflowStatus struct {
	Running       bool           `json:"running"`
	Draining      bool           `json:"draining"`
	QueueStats    map[string]int `json:"queueStats"`
	UploadStats   map[string]int `json:"uploadStats"`
	LastError     string         `json:"lastError,omitempty"`
	LastItem      *QueueItem     `json:"lastItem,omitempty"`
	LastDrain     DrainStatus    `json:"lastDrain"`
	DroppedEvents int64          `json:"droppedEvents"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Backend      string             `json:"backend"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Preflight    []CheckStatus      `json:"preflight,omitempty"`
	WatchEnabled bool               `json:"watchEnabled"`
}

// CheckStatus is the outcome of one startup preflight check.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// RecordResponse wraps a single record detail.
type RecordResponse struct {
	Detail RecordDetail `json:"detail"`
}

// ErrorResponse is the body of every non-2xx HTTP reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
