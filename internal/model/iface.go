package model

import (
	"context"
	"time"
)

// RecordWriter provides upsert and delete operations on records.
type RecordWriter interface {
	UpsertRecords(ctx context.Context, records []Record) (int, error)
	DeleteAllRecords(ctx context.Context) (int64, error)
	DeleteRecords(ctx context.Context, ids []int64) (int64, error)
}

// RecordQuerier provides paginated record reads.
type RecordQuerier interface {
	QueryRecords(q RecordQuery) (RecordPage, error)
	ExportRecords(q RecordQuery) ([]Record, error)
	TotalRecordCount() (int64, error)
	GetRecordBySerial(serial string) (Record, error)
}

// StatsQuerier provides the aggregate views of the dashboard.
type StatsQuerier interface {
	ClientsByRegion(limit int) ([]LabelCount, error)
	ClientsByCity(limit int) ([]LabelCount, error)
	OfflineHistory(days int) ([]DayCount, error)
	KPISummary() (KPISummary, error)
	ListRegions() ([]string, error)
}

// JobStore persists ingestion jobs and enforces monotonic transitions.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(id string) (Job, error)
	ListJobs(limit int) ([]Job, error)
	JobsByStatus(status JobStatus) ([]Job, error)
	StartJob(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string, res JobResult) error
	FailJob(ctx context.Context, id string, detail string) error
	FailStaleJobs(ctx context.Context, olderThan time.Time, detail string) (int64, error)
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReadAPI is the read contract for the HTTP surface.
type ReadAPI interface {
	RecordQuerier
	StatsQuerier
}
