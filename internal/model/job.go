package model

import (
	"errors"
	"time"
)

// JobStatus is the lifecycle state of one ingestion job.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

var (
	// ErrJobNotFound is returned when no job exists for an identifier.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a status change would move a job
	// backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing || next == JobFailed
	case JobProcessing:
		return next == JobCompleted || next == JobFailed
	}
	return false
}

// Job is one uploaded file's processing lifecycle.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	ErrorDetail string     `json:"detalhes_erro,omitempty"`
	FileName    string     `json:"nome_arquivo"`
	SizeKB      int64      `json:"tamanho_arquivo_kb"`
	TotalRows   int        `json:"total_linhas"`
	Written     int        `json:"linhas_gravadas"`
	Skipped     int        `json:"linhas_ignoradas"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// JobResult carries the counters recorded when a job completes.
type JobResult struct {
	TotalRows int
	Written   int
	Skipped   int
}
