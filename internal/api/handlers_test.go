package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"intel-correlation-service/internal/config"
	"intel-correlation-service/internal/jobevents"
	"intel-correlation-service/internal/models"
	"intel-correlation-service/internal/scheduler"
)

func testRouter(t *testing.T) (*gin.Engine, *config.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := config.NewStore(filepath.Join(t.TempDir(), "settings.json"), logger)
	require.NoError(t, err)

	runner := scheduler.NewRunner(nil, nil, nil, nil, store.Get, logger)
	controller := scheduler.NewController(runner, store.Get, logger)
	events := jobevents.New(t.TempDir())

	var cfg config.Config
	cfg.API.BasePath = "/api/v0"

	h := NewHandler(nil, store, runner, controller, nil, events, logger)
	return NewRouter(h, NewWebSocketManager(logger), cfg, logger), store
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTriggerUnknownKind(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodPost, "/api/v0/trigger/vacuum", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatus(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodGet, "/api/v0/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "collection")
	assert.Contains(t, w.Body.String(), "idle")
}

func TestGetSchedule(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodGet, "/api/v0/schedule", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "day_of_week")
}

func TestUpdateScheduleRejectsUnknownKeys(t *testing.T) {
	r, store := testRouter(t)
	before := store.Get()

	w := doRequest(r, http.MethodPut, "/api/v0/schedule", `{"schedul": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, before, store.Get())
}

func TestUpdateSchedule(t *testing.T) {
	r, store := testRouter(t)

	body := `{
		"schedule": {"interval": {"minutes": 90}, "weekly": {"day_of_week": "fri", "hour": 17, "minute": 30, "timezone": "UTC"}},
		"notification": {"recipients": {"ciso": ["ciso@corp.example"]}, "types": {"weekly_report": {"enabled": true, "recipients": ["ciso"]}}}
	}`
	w := doRequest(r, http.MethodPut, "/api/v0/schedule", body)
	require.Equal(t, http.StatusOK, w.Code)

	got := store.Get()
	assert.Equal(t, 90, got.Schedule.Interval.Minutes)
	assert.Equal(t, "fri", got.Schedule.Weekly.DayOfWeek)
	assert.True(t, got.Type(models.NotifyWeeklyReport).Enabled)
}

func TestListJobEvents(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(r, http.MethodGet, "/api/v0/job-events?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v0/job-events", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "events")
}

func TestThreatStatusInvalidID(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodPost, "/api/v0/threats/abc/acknowledge", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
