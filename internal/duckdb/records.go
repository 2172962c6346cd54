package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

const recordColumns = `id, serial_onu, nome_cliente, olt_regiao, horas_offline, data_desconexao,
	cidade, motivo_desconexao, cto, slot_pon_onu, modelo_onu, rx_onu, rx_olt, distancia_m,
	relatorio_id, created_at, updated_at`

// Optional text columns keep their previous value when a later report does
// not carry them.
const upsertRecordSQL = `
	INSERT INTO clientes_off (serial_onu, nome_cliente, olt_regiao, horas_offline, data_desconexao,
		cidade, motivo_desconexao, cto, slot_pon_onu, modelo_onu, rx_onu, rx_olt, distancia_m,
		relatorio_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (serial_onu) DO UPDATE SET
		nome_cliente      = COALESCE(EXCLUDED.nome_cliente, nome_cliente),
		olt_regiao        = COALESCE(EXCLUDED.olt_regiao, olt_regiao),
		horas_offline     = EXCLUDED.horas_offline,
		data_desconexao   = EXCLUDED.data_desconexao,
		cidade            = EXCLUDED.cidade,
		motivo_desconexao = COALESCE(EXCLUDED.motivo_desconexao, motivo_desconexao),
		cto               = COALESCE(EXCLUDED.cto, cto),
		slot_pon_onu      = COALESCE(EXCLUDED.slot_pon_onu, slot_pon_onu),
		modelo_onu        = COALESCE(EXCLUDED.modelo_onu, modelo_onu),
		rx_onu            = EXCLUDED.rx_onu,
		rx_olt            = EXCLUDED.rx_olt,
		distancia_m       = EXCLUDED.distancia_m,
		relatorio_id      = EXCLUDED.relatorio_id,
		updated_at        = EXCLUDED.updated_at`

// UpsertRecords inserts or updates records keyed by serial in a single
// transaction and returns the number of rows written. Records without a
// serial are ignored. When a serial repeats in the batch the last one wins.
func (s *Store) UpsertRecords(ctx context.Context, records []model.Record) (int, error) {
	batch := dedupeBySerial(records)
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.utcNow()
	for _, r := range batch {
		var rxONU, rxOLT, dist any
		if r.RxONU != nil {
			rxONU = *r.RxONU
		}
		if r.RxOLT != nil {
			rxOLT = *r.RxOLT
		}
		if r.DistanceM != nil {
			dist = *r.DistanceM
		}
		city := r.City
		if city == "" {
			city = "Outra"
		}
		if _, err := stmt.ExecContext(ctx,
			r.Serial,
			nullString(r.ClientName),
			nullString(r.Region),
			r.HoursOffline,
			r.DisconnectedAt.UTC(),
			city,
			nullString(r.Reason),
			nullString(r.CTO),
			nullString(r.SlotPonOnu),
			nullString(r.Model),
			rxONU,
			rxOLT,
			dist,
			nullString(r.JobID),
			now,
			now,
		); err != nil {
			return 0, fmt.Errorf("upsert serial %q: %w", r.Serial, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	committed = true
	return len(batch), nil
}

func dedupeBySerial(records []model.Record) []model.Record {
	index := make(map[string]int, len(records))
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		r.Serial = strings.TrimSpace(r.Serial)
		if r.Serial == "" {
			continue
		}
		if i, ok := index[r.Serial]; ok {
			out[i] = r
			continue
		}
		index[r.Serial] = len(out)
		out = append(out, r)
	}
	return out
}

// DeleteAllRecords removes every record and returns how many were deleted.
func (s *Store) DeleteAllRecords(ctx context.Context) (int64, error) {
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM clientes_off`)
	if err != nil {
		return 0, fmt.Errorf("delete all records: %w", err)
	}
	return res.RowsAffected()
}

// DeleteRecords removes the records with the given identifiers. Unknown
// identifiers are ignored.
func (s *Store) DeleteRecords(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM clientes_off WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return res.RowsAffected()
}

// recordFilter returns a WHERE clause and args for the query filters.
// The clause is empty when no filter is set.
func recordFilter(q model.RecordQuery) (string, []any) {
	var conds []string
	var args []any

	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		conds = append(conds, "(contains(lower(coalesce(nome_cliente, '')), ?) OR contains(lower(serial_onu), ?))")
		args = append(args, term, term)
	}
	if region := strings.TrimSpace(q.Region); region != "" {
		conds = append(conds, "olt_regiao = ?")
		args = append(args, region)
	}
	if q.MinHours > 0 {
		conds = append(conds, "horas_offline >= ?")
		args = append(args, q.MinHours)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// recordOrder builds the ORDER BY clause. The key must come from the
// allow-list; Normalize guarantees that.
func recordOrder(q model.RecordQuery) string {
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, id ASC", q.SortKey, dir)
}

// QueryRecords returns one page of records plus the total match count.
func (s *Store) QueryRecords(q model.RecordQuery) (model.RecordPage, error) {
	q = q.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	where, args := recordFilter(q)

	var page model.RecordPage
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM clientes_off %s`, where), args...).Scan(&page.TotalCount); err != nil {
		return page, fmt.Errorf("count records: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM clientes_off %s %s LIMIT ? OFFSET ?`, recordColumns, where, recordOrder(q))
	records, err := s.selectRecords(ctx, "QueryRecords", query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return page, err
	}
	page.Records = records
	return page, nil
}

// ExportRecords returns every record matching the filters, ignoring pagination.
func (s *Store) ExportRecords(q model.RecordQuery) ([]model.Record, error) {
	q = q.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	where, args := recordFilter(q)
	query := fmt.Sprintf(`SELECT %s FROM clientes_off %s %s`, recordColumns, where, recordOrder(q))
	return s.selectRecords(ctx, "ExportRecords", query, args...)
}

// TotalRecordCount returns the number of stored records.
func (s *Store) TotalRecordCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clientes_off`).Scan(&count)
	return count, err
}

// GetRecordBySerial returns the record for serial, or model.ErrRecordNotFound.
func (s *Store) GetRecordBySerial(serial string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	records, err := s.selectRecords(ctx, "GetRecordBySerial",
		fmt.Sprintf(`SELECT %s FROM clientes_off WHERE serial_onu = ?`, recordColumns), strings.TrimSpace(serial))
	if err != nil {
		return model.Record{}, err
	}
	if len(records) == 0 {
		return model.Record{}, model.ErrRecordNotFound
	}
	return records[0], nil
}

func (s *Store) selectRecords(ctx context.Context, op, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			s.log.Warn("duckdb scan error", "op", op, "err", err)
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (model.Record, error) {
	var (
		r                                    model.Record
		name, region, reason, cto, slot, mdl sql.NullString
		jobID                                sql.NullString
		rxONU, rxOLT                         sql.NullFloat64
		dist                                 sql.NullInt64
		disconnected, created, updated       time.Time
	)
	if err := rows.Scan(
		&r.ID, &r.Serial, &name, &region, &r.HoursOffline, &disconnected,
		&r.City, &reason, &cto, &slot, &mdl, &rxONU, &rxOLT, &dist,
		&jobID, &created, &updated,
	); err != nil {
		return r, err
	}

	r.ClientName = name.String
	r.Region = region.String
	r.Reason = reason.String
	r.CTO = cto.String
	r.SlotPonOnu = slot.String
	r.Model = mdl.String
	r.JobID = jobID.String
	r.DisconnectedAt = disconnected.UTC()
	r.CreatedAt = created.UTC()
	r.UpdatedAt = updated.UTC()
	if rxONU.Valid {
		v := rxONU.Float64
		r.RxONU = &v
	}
	if rxOLT.Valid {
		v := rxOLT.Float64
		r.RxOLT = &v
	}
	if dist.Valid {
		v := dist.Int64
		r.DistanceM = &v
	}
	return r, nil
}
