// Package ingest accepts uploaded reports and turns them into offline-client
// records on a background worker, tracking each upload as a job.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/onuwatch/internal/journal"
	"github.com/tinytelemetry/onuwatch/internal/model"
	"github.com/tinytelemetry/onuwatch/internal/region"
	"github.com/tinytelemetry/onuwatch/internal/sheet"
)

const (
	DefaultQueueSize = 32
	DefaultBatchSize = 500
)

// Job error details shown to operators.
const (
	InvalidFormatDetail = "Formato de arquivo inválido. Use Excel ou CSV."
	EmptyFileDetail     = "O arquivo enviado está vazio ou não contém linhas de dados."
	QueueFullDetail     = "fila de processamento cheia"
	InterruptedDetail   = "processamento interrompido: o serviço foi reiniciado durante o processamento"
	LostUploadDetail    = "processamento interrompido: o arquivo enviado não está mais disponível"
)

var (
	// ErrValidation rejects uploads that are not spreadsheets.
	ErrValidation = errors.New("invalid upload")
	// ErrEmptyFile rejects uploads without data rows.
	ErrEmptyFile = errors.New("empty upload")
	// ErrQueueFull is returned when the ingestion queue cannot take the job.
	ErrQueueFull = errors.New("ingest queue full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("ingest service stopped")
)

// RejectError carries the operator-facing detail of a rejected upload.
type RejectError struct {
	Err    error
	Detail string
}

func (e *RejectError) Error() string { return e.Err.Error() + ": " + e.Detail }
func (e *RejectError) Unwrap() error { return e.Err }

func reject(err error, detail string) error {
	return &RejectError{Err: err, Detail: detail}
}

// Store is what the service needs from the record store.
type Store interface {
	model.JobStore
	model.RecordWriter
	SetJobProgress(ctx context.Context, id string, res model.JobResult) error
}

type durableJournal interface {
	Append(upload model.Upload, contents []byte) (uint64, model.Upload, error)
	Commit(seq uint64, upload model.Upload) error
	Discard(seq uint64, upload model.Upload) error
	Replay(fn func(seq uint64, upload model.Upload) error) error
}

type task struct {
	seq      uint64
	upload   model.Upload
	format   sheet.Format
	contents []byte
}

// Config holds tunable parameters for the service.
type Config struct {
	QueueSize int
	BatchSize int
	Journal   *journal.Journal // nil keeps uploads in memory only
	Regions   *region.Map
	Now       func() time.Time
}

// Service validates uploads, creates their jobs and processes them on a
// single worker in submission order.
type Service struct {
	store      Store
	journal    durableJournal
	normalizer *Normalizer
	queue      chan task
	batchSize  int
	now        func() time.Time
	newID      func() string
	log        *slog.Logger

	inQueue  sync.Map // job id -> struct{}, queued but not yet picked up
	mu       sync.RWMutex
	stopped  bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  atomic.Bool
	busy     atomic.Bool
}

// NewService creates a service. Call Start to run the worker.
func NewService(store Store, conf ...Config) *Service {
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		store:      store,
		normalizer: NewNormalizer(cfg.Regions, cfg.Now),
		queue:      make(chan task, cfg.QueueSize),
		batchSize:  cfg.BatchSize,
		now:        cfg.Now,
		newID:      uuid.NewString,
		log:        slog.Default().With("component", "ingest"),
		done:       make(chan struct{}),
	}
	if cfg.Journal != nil {
		s.journal = cfg.Journal
	}
	return s
}

// Start recovers interrupted jobs and starts the worker. Jobs left
// PROCESSING by a previous run are failed; PENDING jobs are re-queued from
// the journal when their upload is spooled, otherwise failed.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("ingest service already started")
	}

	if n, err := s.store.FailStaleJobs(ctx, s.now().UTC().Add(time.Second), InterruptedDetail); err != nil {
		return fmt.Errorf("fail interrupted jobs: %w", err)
	} else if n > 0 {
		s.log.Warn("failed jobs interrupted by restart", "count", n)
	}

	replayed, err := s.replayable()
	if err != nil {
		return err
	}
	journaled := make(map[string]struct{}, len(replayed))
	for _, t := range replayed {
		journaled[t.upload.JobID] = struct{}{}
	}

	// The worker is not running yet, so no PENDING job can move under us.
	pending, err := s.store.JobsByStatus(model.JobPending)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, job := range pending {
		if _, ok := journaled[job.ID]; ok {
			continue
		}
		if _, ok := s.inQueue.Load(job.ID); ok {
			continue
		}
		s.log.Warn("failing job without upload", "job_id", job.ID)
		s.failJob(job.ID, LostUploadDetail)
	}

	s.wg.Add(1)
	go s.worker()

	for _, t := range replayed {
		if _, queued := s.inQueue.LoadOrStore(t.upload.JobID, struct{}{}); queued {
			continue
		}
		select {
		case s.queue <- t:
			s.log.Info("requeued upload", "job_id", t.upload.JobID, "file", t.upload.FileName)
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrStopped
		}
	}
	return nil
}

// replayable loads the journaled uploads whose job is still PENDING. Spool
// files of every other entry are discarded.
func (s *Service) replayable() ([]task, error) {
	if s.journal == nil {
		return nil, nil
	}

	var tasks []task
	err := s.journal.Replay(func(seq uint64, upload model.Upload) error {
		job, err := s.store.GetJob(upload.JobID)
		if err != nil || job.Status != model.JobPending {
			// Rejected, already processed or expired.
			return s.journal.Discard(seq, upload)
		}
		format, err := sheet.DetectFormat(upload.FileName)
		if err != nil {
			return s.journal.Discard(seq, upload)
		}
		contents, err := journal.ReadSpool(upload)
		if err != nil {
			s.log.Warn("spooled upload unreadable", "job_id", upload.JobID, "err", err)
			return s.journal.Discard(seq, upload)
		}
		tasks = append(tasks, task{seq: seq, upload: upload, format: format, contents: contents})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	return tasks, nil
}

// Submit validates an upload, creates its PENDING job and queues it. It
// returns before any row is processed. Validation failures return a
// *RejectError wrapping ErrValidation or ErrEmptyFile and create no job.
func (s *Service) Submit(ctx context.Context, filename, contentType string, contents []byte) (model.Job, error) {
	format, err := sheet.DetectFormat(filename)
	if err != nil || !spreadsheetContentType(contentType) {
		return model.Job{}, reject(ErrValidation, InvalidFormatDetail)
	}
	if len(contents) == 0 {
		return model.Job{}, reject(ErrEmptyFile, EmptyFileDetail)
	}
	peek, err := sheet.Peek(format, contents, 1)
	switch {
	case errors.Is(err, sheet.ErrNoHeader):
		return model.Job{}, reject(ErrEmptyFile, EmptyFileDetail)
	case err != nil:
		return model.Job{}, reject(ErrValidation, "Não foi possível ler o arquivo: "+err.Error())
	case len(peek.Rows) == 0:
		return model.Job{}, reject(ErrEmptyFile, EmptyFileDetail)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return model.Job{}, ErrStopped
	}

	now := s.now().UTC()
	job := model.Job{
		ID:        s.newID(),
		Status:    model.JobPending,
		FileName:  filename,
		SizeKB:    int64(len(contents)) / 1024,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.inQueue.Store(job.ID, struct{}{})
	if err := s.store.CreateJob(ctx, job); err != nil {
		s.inQueue.Delete(job.ID)
		return model.Job{}, fmt.Errorf("create job: %w", err)
	}

	t := task{
		upload: model.Upload{
			JobID:      job.ID,
			FileName:   filename,
			SizeBytes:  int64(len(contents)),
			AcceptedAt: now,
		},
		format:   format,
		contents: contents,
	}
	if s.journal != nil {
		seq, upload, err := s.journal.Append(t.upload, contents)
		if err != nil {
			s.inQueue.Delete(job.ID)
			s.failJob(job.ID, "não foi possível registrar o arquivo enviado")
			return model.Job{}, fmt.Errorf("journal upload: %w", err)
		}
		t.seq, t.upload = seq, upload
	}

	select {
	case s.queue <- t:
	default:
		s.inQueue.Delete(job.ID)
		s.failJob(job.ID, QueueFullDetail)
		if s.journal != nil {
			_ = s.journal.Discard(t.seq, t.upload)
		}
		return model.Job{}, ErrQueueFull
	}

	s.log.Info("upload accepted", "job_id", job.ID, "file", filename, "size_kb", job.SizeKB)
	return job, nil
}

// spreadsheetContentType rejects clearly non-spreadsheet media types. Empty,
// unparsable and generic types pass.
func spreadsheetContentType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	switch strings.SplitN(media, "/", 2)[0] {
	case "image", "audio", "video", "font":
		return false
	}
	return true
}

// QueueDepth returns the number of queued jobs, counting the one being
// processed.
func (s *Service) QueueDepth() int {
	n := len(s.queue)
	if s.busy.Load() {
		n++
	}
	return n
}

// Stop stops accepting uploads, lets the worker finish the current job and
// waits for it until ctx is done. Queued jobs stay PENDING.
func (s *Service) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.done)
	})

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		// Stop wins over queued work.
		select {
		case <-s.done:
			return
		default:
		}

		select {
		case t := <-s.queue:
			s.busy.Store(true)
			s.process(t)
			s.busy.Store(false)
		case <-s.done:
			return
		}
	}
}

// process runs one job to a terminal state.
func (s *Service) process(t task) {
	ctx := context.Background()
	jobID := t.upload.JobID
	log := s.log.With("job_id", jobID)
	start := time.Now()
	s.inQueue.Delete(jobID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("ingest worker panic", "panic", r)
			s.failJob(jobID, fmt.Sprintf("Erro ao processar o arquivo: %v", r))
		}
		s.commit(t)
	}()

	if err := s.store.StartJob(ctx, jobID); err != nil {
		log.Warn("job not started", "err", err)
		return
	}

	res, err := s.run(ctx, t, log)
	if err != nil {
		log.Warn("job failed", "err", err, "written", res.Written)
		s.failJob(jobID, failureDetail(err))
		return
	}

	if err := s.store.CompleteJob(ctx, jobID, res); err != nil {
		log.Error("complete job", "err", err)
		return
	}
	log.Info("job completed",
		"rows", res.TotalRows, "written", res.Written, "skipped", res.Skipped,
		"duration", time.Since(start).Round(time.Millisecond))
}

func (s *Service) run(ctx context.Context, t task, log *slog.Logger) (model.JobResult, error) {
	var res model.JobResult

	table, err := sheet.Read(t.format, t.contents)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", t.format, err)
	}
	res.TotalRows = len(table.Rows)

	normalized, err := s.normalizer.Normalize(table, t.upload.JobID)
	if err != nil {
		return res, err
	}
	res.Skipped = normalized.Skipped
	if normalized.Skipped > 0 {
		log.Debug("skipped offline rows without serial or date", "count", normalized.Skipped)
	}
	if err := s.store.SetJobProgress(ctx, t.upload.JobID, res); err != nil {
		log.Warn("job progress", "err", err)
	}

	records := normalized.Records
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		n, err := s.store.UpsertRecords(ctx, records[start:end])
		if err != nil {
			return res, fmt.Errorf("save records: %w", err)
		}
		res.Written += n
		if end < len(records) {
			if err := s.store.SetJobProgress(ctx, t.upload.JobID, res); err != nil {
				log.Warn("job progress", "err", err)
			}
		}
	}
	return res, nil
}

func failureDetail(err error) string {
	if errors.Is(err, ErrMissingColumns) {
		return MissingColumnsDetail
	}
	return "Erro ao processar o arquivo: " + err.Error()
}

func (s *Service) failJob(id, detail string) {
	if err := s.store.FailJob(context.Background(), id, detail); err != nil {
		s.log.Error("fail job", "job_id", id, "err", err)
	}
}

func (s *Service) commit(t task) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Commit(t.seq, t.upload); err != nil {
		s.log.Error("journal commit", "job_id", t.upload.JobID, "err", err)
	}
}
