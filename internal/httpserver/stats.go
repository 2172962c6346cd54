package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

const defaultStatsLimit = 20

func (s *Server) handleStatsRegions(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultStatsLimit)
	if !ok {
		return
	}
	counts, err := s.store.ClientsByRegion(limit)
	respondCounts(c, "regions", counts, err)
}

func (s *Server) handleStatsCities(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultStatsLimit)
	if !ok {
		return
	}
	counts, err := s.store.ClientsByCity(limit)
	respondCounts(c, "cities", counts, err)
}

func respondCounts(c *gin.Context, op string, counts []model.LabelCount, err error) {
	if err != nil {
		slog.Error("stats query failed", "op", op, "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao calcular estatísticas.")
		return
	}
	if counts == nil {
		counts = []model.LabelCount{}
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleStatsHistory(c *gin.Context) {
	days, ok := intQuery(c, "days", model.DefaultHistoryDays)
	if !ok {
		return
	}
	if days <= 0 {
		days = model.DefaultHistoryDays
	}
	history, err := s.store.OfflineHistory(days)
	if err != nil {
		slog.Error("stats query failed", "op", "history", "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao calcular estatísticas.")
		return
	}
	if history == nil {
		history = []model.DayCount{}
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleKPIs(c *gin.Context) {
	kpis, err := s.store.KPISummary()
	if err != nil {
		slog.Error("stats query failed", "op", "kpis", "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao calcular estatísticas.")
		return
	}
	c.JSON(http.StatusOK, kpis)
}

func (s *Server) handleRegions(c *gin.Context) {
	regions, err := s.store.ListRegions()
	if err != nil {
		slog.Error("list regions failed", "error", err)
		detail(c, http.StatusInternalServerError, "Erro ao listar regiões.")
		return
	}
	if regions == nil {
		regions = []string{}
	}
	c.JSON(http.StatusOK, regions)
}
