package domain

import "time"

// JobState enumerates render job lifecycle states. Terminal states are
// immutable once written.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// OutputSpec describes the rendered artifact the caller wants.
type OutputSpec struct {
	Format     string     `json:"format,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
	FPS        float64    `json:"fps,omitempty"`
	Bitrate    string     `json:"bitrate,omitempty"`
	Codec      string     `json:"codec,omitempty"`
}

// Payload is the unit of work a render job carries.
type Payload struct {
	Timeline    Timeline       `json:"timeline"`
	Output      OutputSpec     `json:"output"`
	MergeFields map[string]any `json:"mergeFields,omitempty"`
	WebhookURL  string         `json:"webhook,omitempty"`
	Priority    int            `json:"priority,omitempty"`
}

// Result describes a completed render.
type Result struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds"`
	SizeBytes       int64   `json:"sizeBytes"`
	Format          string  `json:"format"`
}

// Failure is the structured error surfaced on a failed job. Never a raw
// stack trace.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (f Failure) Error() string {
	if f.Detail != "" {
		return f.Code + ": " + f.Message + ": " + f.Detail
	}
	return f.Code + ": " + f.Message
}

// Job is one asynchronous "render this timeline" unit of work.
type Job struct {
	ID           string
	State        JobState
	Progress     int
	AttemptsMade int
	MaxAttempts  int
	Priority     int
	Payload      Payload
	Result       *Result
	Failure      *Failure
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRunAt    time.Time
}
