// internal/api/handlers/po_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/internal/service"
)

type POHandler struct {
	poService *service.POService
}

func NewPOHandler(poService *service.POService) *POHandler {
	return &POHandler{poService: poService}
}

func parseDateParam(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Param("date"))
	date, err := domain.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query(name))); err == nil && v > 0 {
		return v
	}
	return fallback
}

// GetAvailableDates lists business dates that have published results
func (h *POHandler) GetAvailableDates(c *gin.Context) {
	dates, err := h.poService.GetAvailableDates(c.Request.Context(), queryInt(c, "limit", 90))
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch available dates")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch available dates"})
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(domain.DateLayout))
	}
	c.JSON(http.StatusOK, gin.H{"dates": out})
}

// GetSummary returns the run summary of a business date
func (h *POHandler) GetSummary(c *gin.Context) {
	date, ok := parseDateParam(c)
	if !ok {
		return
	}

	summary, err := h.poService.GetSummary(c.Request.Context(), date)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no results for date"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch run summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch run summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetSupplierOrders returns one page of purchase-order lines
func (h *POHandler) GetSupplierOrders(c *gin.Context) {
	date, ok := parseDateParam(c)
	if !ok {
		return
	}

	filter := repository.OrderFilter{
		WarehouseCode: strings.TrimSpace(c.Query("warehouse")),
		SupplierCode:  strings.TrimSpace(c.Query("supplier")),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 50),
	}

	page, err := h.poService.GetSupplierOrders(c.Request.Context(), date, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch supplier orders")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch supplier orders"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetNetDemand returns net requirement rows, optionally for one warehouse
func (h *POHandler) GetNetDemand(c *gin.Context) {
	date, ok := parseDateParam(c)
	if !ok {
		return
	}

	rows, err := h.poService.GetNetDemand(c.Request.Context(), date, strings.TrimSpace(c.Query("warehouse")))
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch net demand")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch net demand"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": len(rows)})
}

// GetExceptions returns exception records, optionally for one stage
func (h *POHandler) GetExceptions(c *gin.Context) {
	date, ok := parseDateParam(c)
	if !ok {
		return
	}

	items, err := h.poService.GetExceptions(c.Request.Context(), date, strings.TrimSpace(c.Query("stage")))
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch exceptions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch exceptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// GetRecentRuns lists the latest tracked runs, optionally by final status
func (h *POHandler) GetRecentRuns(c *gin.Context) {
	var status domain.RunStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, ok := domain.ParseRunStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be succeeded, failed or incomplete"})
			return
		}
		status = parsed
	}

	runs, err := h.poService.GetRecentRuns(c.Request.Context(), queryInt(c, "limit", 20), status)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns the tracked run of a date with its stage log
func (h *POHandler) GetRun(c *gin.Context) {
	date, ok := parseDateParam(c)
	if !ok {
		return
	}

	run, stages, err := h.poService.GetRun(c.Request.Context(), date)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run for date"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "stages": stages})
}

// TriggerRun executes the pipeline for a date and waits for the outcome
func (h *POHandler) TriggerRun(c *gin.Context) {
	date, ok := parseDateParam(c)
	if !ok {
		return
	}

	summary, err := h.poService.RunDate(c.Request.Context(), date)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil && summary == nil:
		log.Error().Err(err).Msg("failed to run pipeline")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run pipeline"})
	case err != nil:
		status := http.StatusInternalServerError
		if procurement.IsStructural(err) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error(), "summary": summary})
	default:
		c.JSON(http.StatusOK, summary)
	}
}
