package domain

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// ParseJobStatus maps a raw service status onto the job lifecycle.
// Anything that is not a recognized terminal value counts as running.
func ParseJobStatus(raw string) JobStatus {
	switch raw {
	case "done":
		return JobDone
	case "failed", "error":
		return JobFailed
	case "pending", "queued":
		return JobPending
	default:
		return JobRunning
	}
}

func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// ExtractionJob tracks one asynchronous OCR attempt.
type ExtractionJob struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
	Text   string    `json:"text,omitempty"`
	Error  string    `json:"error,omitempty"`
	Polls  int       `json:"polls"`
}
