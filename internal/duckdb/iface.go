package duckdb

import "github.com/tinytelemetry/onuwatch/internal/model"

var (
	_ model.RecordWriter  = (*Store)(nil)
	_ model.RecordQuerier = (*Store)(nil)
	_ model.StatsQuerier  = (*Store)(nil)
	_ model.JobStore      = (*Store)(nil)
	_ model.ReadAPI       = (*Store)(nil)
)
