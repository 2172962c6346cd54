package httpserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/onuwatch/internal/ingest"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 200
)

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			detail(c, http.StatusRequestEntityTooLarge, tooLargeDetail(s.maxUpload))
			return
		}
		detail(c, http.StatusBadRequest, "Nenhum arquivo enviado no campo 'file'.")
		return
	}
	if fh.Size > s.maxUpload {
		detail(c, http.StatusRequestEntityTooLarge, tooLargeDetail(s.maxUpload))
		return
	}

	f, err := fh.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, "Não foi possível ler o arquivo enviado.")
		return
	}
	contents, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		detail(c, http.StatusBadRequest, "Não foi possível ler o arquivo enviado.")
		return
	}

	job, err := s.uploads.Submit(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), contents)
	if err != nil {
		var rejected *ingest.RejectError
		switch {
		case errors.As(err, &rejected):
			detail(c, http.StatusBadRequest, rejected.Detail)
		case errors.Is(err, ingest.ErrQueueFull):
			detail(c, http.StatusServiceUnavailable, ingest.QueueFullDetail)
		case errors.Is(err, ingest.ErrStopped):
			detail(c, http.StatusServiceUnavailable, "serviço em desligamento")
		default:
			slog.Error("submit upload failed", "file", fh.Filename, "error", err)
			detail(c, http.StatusInternalServerError, "Erro interno ao registrar o relatório.")
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"relatorio_id": job.ID,
		"message":      "Arquivo recebido e em processamento.",
	})
}

func tooLargeDetail(limit int64) string {
	return "Arquivo excede o limite de " + strconv.FormatInt(limit>>20, 10) + " MB."
}

func (s *Server) handleJobStatus(c *gin.Context) {
	job, err := s.store.GetJob(c.Param("job_id"))
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			detail(c, http.StatusNotFound, "Relatório não encontrado.")
			return
		}
		slog.Error("get job failed", "job_id", c.Param("job_id"), "error", err)
		detail(c, http.StatusInternalServerError, "failed to read job")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListJobs(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultJobListLimit)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	if limit > maxJobListLimit {
		limit = maxJobListLimit
	}

	jobs, err := s.store.ListJobs(limit)
	if err != nil {
		slog.Error("list jobs failed", "error", err)
		detail(c, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

// intQuery parses an optional integer query parameter. On a malformed value
// it writes a 400 and returns false.
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		detail(c, http.StatusBadRequest, "parâmetro inválido: "+key)
		return 0, false
	}
	return n, true
}
