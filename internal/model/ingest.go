package model

import "time"

// Upload describes an accepted file whose contents are spooled on disk
// until its job reaches a terminal state.
type Upload struct {
	JobID      string    `json:"job_id"`
	FileName   string    `json:"file_name"`
	SpoolPath  string    `json:"spool_path"`
	SizeBytes  int64     `json:"size_bytes"`
	AcceptedAt time.Time `json:"accepted_at"`
}
