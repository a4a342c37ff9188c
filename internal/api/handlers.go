package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/config"
	"intel-correlation-service/internal/db"
	"intel-correlation-service/internal/jobevents"
	"intel-correlation-service/internal/models"
	"intel-correlation-service/internal/notify"
	"intel-correlation-service/internal/scheduler"
)

type Handler struct {
	db         *db.DB
	store      *config.Store
	runner     *scheduler.Runner
	controller *scheduler.Controller
	notifier   *notify.Engine
	events     *jobevents.Log
	logger     *logrus.Logger
}

func NewHandler(database *db.DB, store *config.Store, runner *scheduler.Runner,
	controller *scheduler.Controller, notifier *notify.Engine, events *jobevents.Log,
	logger *logrus.Logger) *Handler {
	return &Handler{
		db:         database,
		store:      store,
		runner:     runner,
		controller: controller,
		notifier:   notifier,
		events:     events,
		logger:     logger,
	}
}

// TriggerJob starts a named job out of schedule. The job runs in the
// background; 202 means accepted, not finished.
func (h *Handler) TriggerJob(c *gin.Context) {
	kind := scheduler.Kind(c.Param("kind"))
	err := h.runner.Run(kind)
	switch {
	case err == nil:
		h.logger.Infof("Manual trigger accepted: %s", kind)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "kind": kind})
	case errors.Is(err, scheduler.ErrBusy):
		h.logger.Warnf("Manual trigger rejected, %s already running", kind)
		c.JSON(http.StatusConflict, gin.H{"error": "job already running", "kind": kind})
	case errors.Is(err, scheduler.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("Trigger %s failed: %v", kind, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Get())
}

// UpdateSettings replaces the runtime settings and asks the schedule
// controller to recompute its timers. Unknown fields are rejected so typos
// do not silently disable notifications.
func (h *Handler) UpdateSettings(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	parsed, err := config.Parse(raw)
	if err != nil {
		h.logger.Errorf("Invalid settings update: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Save(parsed); err != nil {
		h.logger.Errorf("Save settings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.controller.Reload()
	h.logger.Infof("Settings updated, schedule reload requested")
	c.JSON(http.StatusOK, h.store.Get())
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.runner.Status()})
}

func (h *Handler) ListJobEvents(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	events, err := h.events.ListRecent(limit)
	if err != nil {
		h.logger.Errorf("List job events failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// TestSend runs the weekly report immediately, bypassing period
// idempotency. An optional recipient override replaces the configured
// recipient list for this run only.
func (h *Handler) TestSend(c *gin.Context) {
	var req struct {
		To string `json:"to"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	if err := h.notifier.RunWeekly(c.Request.Context(), time.Now(), true, req.To); err != nil {
		h.logger.Errorf("Test send failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *Handler) ListThreats(c *gin.Context) {
	minScore := 0.0
	if v := c.Query("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_score"})
			return
		}
		minScore = f
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	threats, err := h.db.ListThreats(c.Request.Context(), minScore, limit)
	if err != nil {
		h.logger.Errorf("List threats failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threats": threats})
}

func (h *Handler) AcknowledgeThreat(c *gin.Context) {
	h.setThreatStatus(c, models.ThreatAcknowledged)
}

func (h *Handler) ResolveThreat(c *gin.Context) {
	h.setThreatStatus(c, models.ThreatResolved)
}

func (h *Handler) setThreatStatus(c *gin.Context, status models.ThreatStatus) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threat id"})
		return
	}
	if err := h.db.UpdateThreatStatus(c.Request.Context(), id, status); err != nil {
		h.logger.Errorf("Update threat %d to %s failed: %v", id, status, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Threat not found"})
		return
	}
	h.logger.Infof("Threat %d marked %s", id, status)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}
