package queue

import (
	"strings"
	"time"
)

// Status represents the processing lifecycle of a video.
type Status string

const (
	StatusPending           Status = "pending"
	StatusDuplicateChecking Status = "duplicate_checking"
	StatusDuplicateChecked  Status = "duplicate_checked"
	StatusTranscoding       Status = "transcoding"
	StatusTranscoded        Status = "transcoded"
	StatusTranscribing      Status = "transcribing"
	StatusTranscribed       Status = "transcribed"
	StatusAnalyzing         Status = "analyzing"
	StatusCompleted         Status = "completed"
	StatusDuplicate         Status = "duplicate"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

// External integer status codes, the stable contract exposed to callers.
// In-progress phases are positive, complete is zero, terminal outcomes that
// are not completion are negative.
const (
	CodePreTranscode = 1
	CodeTranscoding  = 2
	CodeTranscribing = 3
	CodeAnalyzing    = 4
	CodeComplete     = 0
	CodeDuplicate    = -1
	CodeFailed       = -2
	CodeCancelled    = -3
)

var allStatuses = []Status{
	StatusPending,
	StatusDuplicateChecking,
	StatusDuplicateChecked,
	StatusTranscoding,
	StatusTranscoded,
	StatusTranscribing,
	StatusTranscribed,
	StatusAnalyzing,
	StatusCompleted,
	StatusDuplicate,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDuplicateChecking: {},
	StatusTranscoding:       {},
	StatusTranscribing:      {},
	StatusAnalyzing:         {},
}

// stageStart maps each processing status to the start-of-stage status a video
// returns to when its lease is reclaimed or a retryable failure is requeued.
var stageStart = map[Status]Status{
	StatusDuplicateChecking: StatusPending,
	StatusTranscoding:       StatusDuplicateChecked,
	StatusTranscribing:      StatusTranscoded,
	StatusAnalyzing:         StatusTranscribed,
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusDuplicate: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Video is the persisted pipeline record: the video's state plus the durable
// (stage, attempt, not-before) tuple the orchestrator reconstructs pending
// work from after a restart.
type Video struct {
	ID              string
	Title           string
	SourceKey       string
	Status          Status
	DurationSeconds float64
	Fingerprint     string
	Attempts        int
	NotBefore       *time.Time
	ManifestKey     string
	ThumbnailKey    string
	TranscriptKey   string
	ErrorMessage    string
	ErrorKind       string
	ResumeStatus    Status
	CancelRequested bool
	LeaseOwner      string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// StageStart returns the start-of-stage status for a processing status.
func StageStart(processing Status) (Status, bool) {
	start, ok := stageStart[processing]
	return start, ok
}

// IsProcessing returns true when the video has an in-flight stage.
func (v Video) IsProcessing() bool {
	return IsProcessingStatus(v.Status)
}

// IsTerminal returns true when no further jobs may be enqueued for the video.
func (v Video) IsTerminal() bool {
	return IsTerminalStatus(v.Status)
}

// StatusCode projects the internal status onto the external integer contract.
func (v Video) StatusCode() int {
	return StatusCodeFor(v.Status)
}

// StatusCodeFor flattens an internal status to the legacy integer code.
func StatusCodeFor(status Status) int {
	switch status {
	case StatusPending, StatusDuplicateChecking, StatusDuplicateChecked:
		return CodePreTranscode
	case StatusTranscoding, StatusTranscoded:
		return CodeTranscoding
	case StatusTranscribing, StatusTranscribed:
		return CodeTranscribing
	case StatusAnalyzing:
		return CodeAnalyzing
	case StatusCompleted:
		return CodeComplete
	case StatusDuplicate:
		return CodeDuplicate
	case StatusCancelled:
		return CodeCancelled
	default:
		return CodeFailed
	}
}

// SetFailed marks the video failed, recording the stage it can be manually
// requeued to and the error classification shown to operators.
func (v *Video) SetFailed(resume Status, kind, message string) {
	v.Status = StatusFailed
	v.ResumeStatus = resume
	v.ErrorKind = kind
	v.ErrorMessage = message
	v.LeaseOwner = ""
	v.LastHeartbeat = nil
	v.NotBefore = nil
}

// Stats aggregates queue counts for the operator surface.
type Stats struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Duplicate  int
	Failed     int
	Cancelled  int
}
