package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

const jobColumns = `id, status, detalhes_erro, nome_arquivo, tamanho_arquivo_kb, total_linhas,
	linhas_gravadas, linhas_ignoradas, created_at, updated_at, started_at, finished_at`

// CreateJob inserts a new job. The status must be PENDING.
func (s *Store) CreateJob(ctx context.Context, job model.Job) error {
	if job.ID == "" {
		return errors.New("create job: empty id")
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	if job.Status != model.JobPending {
		return fmt.Errorf("create job %s with status %s: %w", job.ID, job.Status, model.ErrInvalidTransition)
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = s.utcNow()
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relatorios (id, status, nome_arquivo, tamanho_arquivo_kb, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.FileName, job.SizeKB, created.UTC(), created.UTC())
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the job with the given identifier or model.ErrJobNotFound.
func (s *Store) GetJob(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	jobs, err := s.selectJobs(ctx, "GetJob", fmt.Sprintf(`SELECT %s FROM relatorios WHERE id = ?`, jobColumns), id)
	if err != nil {
		return model.Job{}, err
	}
	if len(jobs) == 0 {
		return model.Job{}, model.ErrJobNotFound
	}
	return jobs[0], nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *Store) ListJobs(limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	return s.selectJobs(ctx, "ListJobs",
		fmt.Sprintf(`SELECT %s FROM relatorios ORDER BY created_at DESC, id LIMIT ?`, jobColumns), limit)
}

// JobsByStatus returns every job in the given state, oldest first.
func (s *Store) JobsByStatus(status model.JobStatus) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	return s.selectJobs(ctx, "JobsByStatus",
		fmt.Sprintf(`SELECT %s FROM relatorios WHERE status = ? ORDER BY created_at, id`, jobColumns), string(status))
}

// StartJob moves a job from PENDING to PROCESSING.
func (s *Store) StartJob(ctx context.Context, id string) error {
	now := s.utcNow()
	return s.transition(ctx, id, model.JobProcessing,
		`UPDATE relatorios SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.JobProcessing), now, now, id, string(model.JobPending))
}

// CompleteJob moves a job from PROCESSING to COMPLETED and records its counters.
func (s *Store) CompleteJob(ctx context.Context, id string, res model.JobResult) error {
	now := s.utcNow()
	return s.transition(ctx, id, model.JobCompleted, `
		UPDATE relatorios
		SET status = ?, total_linhas = ?, linhas_gravadas = ?, linhas_ignoradas = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.JobCompleted), res.TotalRows, res.Written, res.Skipped, now, now, id, string(model.JobProcessing))
}

// FailJob moves a PENDING or PROCESSING job to FAILED with a detail message.
func (s *Store) FailJob(ctx context.Context, id string, detail string) error {
	now := s.utcNow()
	return s.transition(ctx, id, model.JobFailed, `
		UPDATE relatorios
		SET status = ?, detalhes_erro = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(model.JobFailed), detail, now, now, id, string(model.JobPending), string(model.JobProcessing))
}

// SetJobProgress updates the counters of a PROCESSING job. It is a no-op
// for jobs in any other state.
func (s *Store) SetJobProgress(ctx context.Context, id string, res model.JobResult) error {
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE relatorios SET total_linhas = ?, linhas_gravadas = ?, linhas_ignoradas = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		res.TotalRows, res.Written, res.Skipped, s.utcNow(), id, string(model.JobProcessing))
	if err != nil {
		return fmt.Errorf("job %s progress: %w", id, err)
	}
	return nil
}

// transition runs a conditional UPDATE. Zero affected rows means the job is
// missing or not in a state that allows moving to target.
func (s *Store) transition(ctx context.Context, id string, target model.JobStatus, query string, args ...any) error {
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("job %s -> %s: %w", id, target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job %s -> %s: %w", id, target, err)
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM relatorios WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("job %s -> %s: %w", id, target, err)
	}
	return fmt.Errorf("job %s %s -> %s: %w", id, current, target, model.ErrInvalidTransition)
}

// FailStaleJobs fails PROCESSING jobs not updated since olderThan and
// returns how many were failed.
func (s *Store) FailStaleJobs(ctx context.Context, olderThan time.Time, detail string) (int64, error) {
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.utcNow()
	res, err := s.db.ExecContext(ctx, `
		UPDATE relatorios
		SET status = ?, detalhes_erro = ?, finished_at = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?`,
		string(model.JobFailed), detail, now, now, string(model.JobProcessing), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteJobsBefore removes terminal jobs that finished before cutoff.
// Records written by those jobs are kept.
func (s *Store) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM relatorios
		WHERE status IN (?, ?) AND COALESCE(finished_at, updated_at) < ?`,
		string(model.JobCompleted), string(model.JobFailed), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return res.RowsAffected()
}

// JobStatusCounts returns the number of jobs per status.
func (s *Store) JobStatusCounts() (map[model.JobStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT status, total FROM relatorios_por_status`)
	if err != nil {
		return nil, fmt.Errorf("job status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int64)
	for rows.Next() {
		var status string
		var total int64
		if err := rows.Scan(&status, &total); err != nil {
			s.log.Warn("duckdb scan error", "op", "JobStatusCounts", "err", err)
			continue
		}
		counts[model.JobStatus(status)] = total
	}
	return counts, rows.Err()
}

func (s *Store) selectJobs(ctx context.Context, op, query string, args ...any) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		var (
			j                 model.Job
			status            string
			detail            sql.NullString
			started, finished sql.NullTime
		)
		if err := rows.Scan(&j.ID, &status, &detail, &j.FileName, &j.SizeKB, &j.TotalRows,
			&j.Written, &j.Skipped, &j.CreatedAt, &j.UpdatedAt, &started, &finished); err != nil {
			s.log.Warn("duckdb scan error", "op", op, "err", err)
			continue
		}
		j.Status = model.JobStatus(status)
		j.ErrorDetail = detail.String
		j.CreatedAt = j.CreatedAt.UTC()
		j.UpdatedAt = j.UpdatedAt.UTC()
		if started.Valid {
			t := started.Time.UTC()
			j.StartedAt = &t
		}
		if finished.Valid {
			t := finished.Time.UTC()
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
