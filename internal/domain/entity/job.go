package entity

import "time"

// JobStatus import job holati
type JobStatus string

const (
	JobCreated    JobStatus = "created"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal terminal holatmi
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// IsCancellable only jobs that have not finished can be cancelled.
func (s JobStatus) IsCancellable() bool {
	return s == JobCreated || s == JobProcessing
}

// Job import job
type Job struct {
	ID              string            `json:"id"`
	Status          JobStatus         `json:"status"`
	Progress        int               `json:"progress"`
	Stage           string            `json:"stage,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Error           string            `json:"error,omitempty"`
	Errors          []ErrorEntry      `json:"errors,omitempty"`
	ErrorsTotal     int               `json:"errors_total"`
	Result          *ImportStats      `json:"result,omitempty"`
	Storage         *GuardResult      `json:"storage,omitempty"`
	CancelRequested bool              `json:"cancel_requested"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a copy safe to hand out of a store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Metadata != nil {
		cp.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	if j.Errors != nil {
		cp.Errors = append([]ErrorEntry(nil), j.Errors...)
	}
	return &cp
}

// JobUpdate carries the optional parts of a status change.
type JobUpdate struct {
	Stage       string
	Error       string
	Errors      []ErrorEntry
	ErrorsTotal int
	Result      *ImportStats
	Storage     *GuardResult
}

// JobFilter ro'yxat filtri
type JobFilter struct {
	Status JobStatus
	Limit  int
}

// JobEventType hodisa turi
type JobEventType string

const (
	EventJobUpdated   JobEventType = "job-updated"
	EventJobCancelled JobEventType = "job-cancelled"
)

// JobEvent subscriberlarga yuboriladigan hodisa
type JobEvent struct {
	Type JobEventType
	Job  *Job
}
