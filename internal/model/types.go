package model

import (
	"errors"
	"math"
	"time"
)

// ErrRecordNotFound is returned when no record exists for a serial.
var ErrRecordNotFound = errors.New("record not found")

// Record is one offline client/device entry, keyed by device serial.
// Empty strings and nil pointers are stored as NULL.
type Record struct {
	ID             int64     `json:"id"`
	ClientName     string    `json:"nome_cliente,omitempty"`
	Serial         string    `json:"serial_onu"`
	Region         string    `json:"olt_regiao,omitempty"`
	HoursOffline   int       `json:"horas_offline"`
	DisconnectedAt time.Time `json:"data_desconexao"`
	City           string    `json:"cidade,omitempty"`
	Reason         string    `json:"motivo_desconexao,omitempty"`
	CTO            string    `json:"cto,omitempty"`
	SlotPonOnu     string    `json:"slot_pon_onu,omitempty"`
	Model          string    `json:"modelo_onu,omitempty"`
	RxONU          *float64  `json:"rx_onu,omitempty"`
	RxOLT          *float64  `json:"rx_olt,omitempty"`
	DistanceM      *int64    `json:"distancia_m,omitempty"`
	JobID          string    `json:"relatorio_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Sort keys accepted by RecordQuery. Anything else falls back to SortHoursOffline.
const (
	SortClientName     = "nome_cliente"
	SortSerial         = "serial_onu"
	SortRegion         = "olt_regiao"
	SortHoursOffline   = "horas_offline"
	SortDisconnectedAt = "data_desconexao"
)

// SortKeys lists the allowed sort keys in display order.
var SortKeys = []string{SortClientName, SortSerial, SortRegion, SortHoursOffline, SortDisconnectedAt}

// ValidSortKey reports whether key is in the sort allow-list.
func ValidSortKey(key string) bool {
	for _, k := range SortKeys {
		if k == key {
			return true
		}
	}
	return false
}

// RecordQuery holds filter, sort and pagination for record reads.
type RecordQuery struct {
	Search   string // substring over client name or serial, case-insensitive
	Region   string // exact OLT/region match, empty = all
	MinHours int    // horas_offline >= MinHours, 0 = no threshold
	SortKey  string
	SortDesc bool
	Page     int // 1-based
	PageSize int
}

// Normalize fills defaults and clamps out-of-range values.
func (q RecordQuery) Normalize() RecordQuery {
	if !ValidSortKey(q.SortKey) {
		q.SortKey = SortHoursOffline
		q.SortDesc = true
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.MinHours < 0 {
		q.MinHours = 0
	}
	// Keeps Offset from overflowing on absurd page numbers.
	if maxPage := math.MaxInt/q.PageSize + 1; q.Page > maxPage {
		q.Page = maxPage
	}
	return q
}

// Offset returns the row offset of the first record on the requested page.
func (q RecordQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// RecordPage is one page of records plus the unpaginated match count.
type RecordPage struct {
	Records    []Record `json:"records"`
	TotalCount int64    `json:"totalCount"`
}

// LabelCount is a grouped count by region or city.
type LabelCount struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
}

// DayCount is the number of disconnections that started on one UTC day.
type DayCount struct {
	Day   string `json:"data"` // YYYY-MM-DD
	Total int64  `json:"total"`
}

// KPISummary holds the headline dashboard numbers.
type KPISummary struct {
	Total               int64  `json:"total"`
	NewCriticalCases24h int64  `json:"new_critical_cases_24h"`
	MostCriticalOLT     string `json:"most_critical_olt"`
	OldestCaseDays      int    `json:"oldest_case_days"`
}
