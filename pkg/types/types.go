package types

import (
	"time"
)

// ReadinessState is the state of the backend readiness poller
type ReadinessState string

const (
	ReadinessPolling ReadinessState = "polling"
	ReadinessReady   ReadinessState = "ready"
	ReadinessBlocked ReadinessState = "blocked"
)

// Terminal reports whether polling has stopped in this state
func (s ReadinessState) Terminal() bool {
	return s == ReadinessReady || s == ReadinessBlocked
}

// JobState is the lifecycle state of the job progress controller
type JobState string

const (
	JobStateIdle             JobState = "idle"
	JobStateSubmitting       JobState = "submitting"
	JobStateAwaitingProgress JobState = "awaiting_progress"
	JobStateSucceeded        JobState = "succeeded"
	JobStateFailed           JobState = "failed"
)

// Active reports whether a job is in flight in this state
func (s JobState) Active() bool {
	return s == JobStateSubmitting || s == JobStateAwaitingProgress
}

// Terminal reports whether the state ends a job's observed lifecycle
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// Progress percentages with special meaning
const (
	PercentSucceeded = 100
	PercentFailed    = -1
)

// Job is a background ETL run identified by a backend-issued ID
type Job struct {
	ID         string `json:"job_id"`
	WindowDays *int   `json:"window_days,omitempty"`
}

// StartJobRequest is the body of POST /start_etl.
// A nil WindowDays serializes to an empty object.
type StartJobRequest struct {
	WindowDays *int `json:"window_days,omitempty"`
}

// AskRequest is the body of POST /ask
type AskRequest struct {
	Question string `json:"question"`
}

// AskResult is the answer to a natural-language query
type AskResult struct {
	SQL      string `json:"sql"`
	Summary  string `json:"resumen"` // Markdown
	Table    string `json:"table"`   // HTML
	ExcelURL string `json:"excel"`
}

// EventKind names an inbound push channel event
type EventKind string

const (
	EventKindProgress EventKind = "progress"
	EventKindDetail   EventKind = "detail"
)

// Event is an inbound push channel message. It is either a
// ProgressEvent or a DetailEvent.
type Event interface {
	Kind() EventKind
}

// ProgressEvent reports job progress. Percent is in [-1, 100].
type ProgressEvent struct {
	Message string `json:"msg"`
	Percent int    `json:"pct"`
}

// Kind implements Event
func (ProgressEvent) Kind() EventKind { return EventKindProgress }

// Succeeded reports whether this is the success terminal event
func (e ProgressEvent) Succeeded() bool { return e.Percent == PercentSucceeded }

// Failed reports whether this is the failure terminal event
func (e ProgressEvent) Failed() bool { return e.Percent == PercentFailed }

// Terminal reports whether the event ends the job
func (e ProgressEvent) Terminal() bool { return e.Succeeded() || e.Failed() }

// DetailEvent carries an auxiliary log line
type DetailEvent struct {
	Line string `json:"line"`
}

// Kind implements Event
func (DetailEvent) Kind() EventKind { return EventKindDetail }

// JobRecord is the locally persisted history entry of a job launched by
// this client
type JobRecord struct {
	ID          string
	WindowDays  *int
	State       JobState
	Percent     int
	LastMessage string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// QueryRecord is the locally persisted history entry of a chat query
type QueryRecord struct {
	ID       string
	Question string
	SQL      string
	ExcelURL string
	Error    string
	AskedAt  time.Time
}
