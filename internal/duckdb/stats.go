package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

// ClientsByRegion returns record counts grouped by OLT/region, largest first.
func (s *Store) ClientsByRegion(limit int) ([]model.LabelCount, error) {
	return s.labelCounts("ClientsByRegion", "olt_regiao", limit)
}

// ClientsByCity returns record counts grouped by city, largest first.
func (s *Store) ClientsByCity(limit int) ([]model.LabelCount, error) {
	return s.labelCounts("ClientsByCity", "cidade", limit)
}

// labelCounts groups by column, which must be a trusted identifier.
func (s *Store) labelCounts(op, column string, limit int) ([]model.LabelCount, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %[1]s AS label, COUNT(*) AS total
		FROM clientes_off
		WHERE %[1]s IS NOT NULL AND %[1]s != ''
		GROUP BY %[1]s
		ORDER BY total DESC, label
		LIMIT ?`, column)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	results := make([]model.LabelCount, 0)
	for rows.Next() {
		var lc model.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Total); err != nil {
			s.log.Warn("duckdb scan error", "op", op, "err", err)
			continue
		}
		results = append(results, lc)
	}
	return results, rows.Err()
}

// OfflineHistory returns disconnections per UTC day for the last days days,
// oldest first. Days without disconnections are omitted.
func (s *Store) OfflineHistory(days int) ([]model.DayCount, error) {
	if days <= 0 {
		days = model.DefaultHistoryDays
	}
	since := s.utcNow().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime(date_trunc('day', data_desconexao), '%Y-%m-%d') AS dia, COUNT(*) AS total
		FROM clientes_off
		WHERE data_desconexao >= ?
		GROUP BY dia
		ORDER BY dia`, since)
	if err != nil {
		return nil, fmt.Errorf("OfflineHistory: %w", err)
	}
	defer rows.Close()

	results := make([]model.DayCount, 0, days)
	for rows.Next() {
		var dc model.DayCount
		if err := rows.Scan(&dc.Day, &dc.Total); err != nil {
			s.log.Warn("duckdb scan error", "op", "OfflineHistory", "err", err)
			continue
		}
		results = append(results, dc)
	}
	return results, rows.Err()
}

// KPISummary computes the headline numbers of the dashboard.
func (s *Store) KPISummary() (model.KPISummary, error) {
	since := s.utcNow().Add(-24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var kpi model.KPISummary
	var maxHours int64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= ? AND horas_offline >= ?),
			COALESCE(MAX(horas_offline), 0)
		FROM clientes_off`, since, model.CriticalHours).Scan(&kpi.Total, &kpi.NewCriticalCases24h, &maxHours)
	if err != nil {
		return kpi, fmt.Errorf("KPISummary totals: %w", err)
	}
	kpi.OldestCaseDays = int(maxHours / 24)

	kpi.MostCriticalOLT, err = s.mostCriticalOLT(ctx)
	if err != nil {
		return kpi, err
	}
	return kpi, nil
}

func (s *Store) mostCriticalOLT(ctx context.Context) (string, error) {
	var olt string
	err := s.db.QueryRowContext(ctx, `
		SELECT olt_regiao
		FROM clientes_off
		WHERE olt_regiao IS NOT NULL AND olt_regiao != ''
		GROUP BY olt_regiao
		ORDER BY COUNT(*) DESC, olt_regiao
		LIMIT 1`).Scan(&olt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("KPISummary most critical olt: %w", err)
	}
	return olt, nil
}

// ListRegions returns the distinct non-empty regions, sorted.
func (s *Store) ListRegions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT olt_regiao
		FROM clientes_off
		WHERE olt_regiao IS NOT NULL AND olt_regiao != ''
		ORDER BY olt_regiao`)
	if err != nil {
		return nil, fmt.Errorf("ListRegions: %w", err)
	}
	defer rows.Close()

	regions := make([]string, 0)
	for rows.Next() {
		var region string
		if err := rows.Scan(&region); err != nil {
			s.log.Warn("duckdb scan error", "op", "ListRegions", "err", err)
			continue
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}
