package model

import "time"

// Shared defaults used by both the server and CLI binaries.
const (
	DefaultPageSize        = 10
	MaxPageSize            = 500
	DefaultMinHours        = 48
	CriticalHours          = 48
	DefaultHistoryDays     = 30
	DefaultPollInterval    = 5 * time.Second
	DefaultPollTimeout     = 120 * time.Second
	DefaultRefreshInterval = 30 * time.Second
)
