package httpserver

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

// exportHeader is the column order of GET /clients/export.
var exportHeader = []string{
	"Nome Cliente", "Serial ONU", "OLT/Região", "CTO", "Cidade", "Horas Offline",
	"Data Desconexão", "Motivo", "RX ONU", "RX OLT", "Distância (m)",
}

func (s *Server) recordQuery(c *gin.Context) (model.RecordQuery, bool) {
	q := model.RecordQuery{
		Search:  strings.TrimSpace(c.Query("search")),
		Region:  strings.TrimSpace(c.Query("region")),
		SortKey: c.Query("sort"),
	}
	switch strings.ToLower(c.DefaultQuery("direction", "desc")) {
	case "asc":
	case "desc":
		q.SortDesc = true
	default:
		detail(c, http.StatusBadRequest, "parâmetro inválido: direction")
		return q, false
	}

	var ok bool
	if q.MinHours, ok = intQuery(c, "min_hours", 0); !ok {
		return q, false
	}
	if q.Page, ok = intQuery(c, "page", 1); !ok {
		return q, false
	}
	if q.PageSize, ok = intQuery(c, "page_size", model.DefaultPageSize); !ok {
		return q, false
	}
	return q.Normalize(), true
}

func (s *Server) handleClients(c *gin.Context) {
	q, ok := s.recordQuery(c)
	if !ok {
		return
	}
	page, err := s.store.QueryRecords(q)
	if err != nil {
		slog.Error("query records failed", "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao consultar clientes.")
		return
	}
	if page.Records == nil {
		page.Records = []model.Record{}
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleClientBySerial(c *gin.Context) {
	serial := strings.TrimSpace(c.Param("serial"))
	rec, err := s.store.GetRecordBySerial(serial)
	if err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			detail(c, http.StatusNotFound, "Cliente não encontrado.")
			return
		}
		slog.Error("get record failed", "serial", serial, "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao consultar cliente.")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleExport(c *gin.Context) {
	q, ok := s.recordQuery(c)
	if !ok {
		return
	}
	records, err := s.store.ExportRecords(q)
	if err != nil {
		slog.Error("export records failed", "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao exportar clientes.")
		return
	}

	filename := "clientes_offline_" + s.now().UTC().Format("2006-01-02") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, r := range records {
		_ = w.Write(exportRow(r))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		slog.Warn("export write failed", "error", err)
	}
}

func exportRow(r model.Record) []string {
	row := []string{
		r.ClientName,
		r.Serial,
		r.Region,
		r.CTO,
		r.City,
		strconv.Itoa(r.HoursOffline),
		r.DisconnectedAt.UTC().Format("2006-01-02 15:04:05"),
		r.Reason,
		"", "", "",
	}
	if r.RxONU != nil {
		row[8] = strconv.FormatFloat(*r.RxONU, 'f', -1, 64)
	}
	if r.RxOLT != nil {
		row[9] = strconv.FormatFloat(*r.RxOLT, 'f', -1, 64)
	}
	if r.DistanceM != nil {
		row[10] = strconv.FormatInt(*r.DistanceM, 10)
	}
	return row
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	n, err := s.store.DeleteAllRecords(c.Request.Context())
	if err != nil {
		slog.Error("delete all records failed", "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao apagar clientes.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Todos os clientes foram apagados.",
		"deleted": n,
	})
}

func (s *Server) handleDeleteClients(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "corpo JSON inválido: esperado {\"ids\": [...]}")
		return
	}
	if len(req.IDs) == 0 {
		detail(c, http.StatusBadRequest, "Nenhum ID de cliente fornecido.")
		return
	}

	n, err := s.store.DeleteRecords(c.Request.Context(), req.IDs)
	if err != nil {
		slog.Error("delete records failed", "count", len(req.IDs), "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao apagar clientes.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": strconv.FormatInt(n, 10) + " cliente(s) apagado(s).",
		"deleted": n,
	})
}
