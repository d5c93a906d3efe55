package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/hydrowatch/hydrowatch-backend/internal/pkg/logger"
	"github.com/hydrowatch/hydrowatch-backend/internal/pkg/validate"
	"github.com/hydrowatch/hydrowatch-backend/internal/service"
	"golang.org/x/time/rate"
)

// Handler manages HTTP request handlers. The REST surface is deliberately
// thin glue over the analytics facade and rule evaluator.
type Handler struct {
	analytics service.AnalyticsService
	rules     *service.RuleService

	// Per-device ingest token buckets. Nil limit disables limiting.
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	ratePerSec float64
	burst      int

	trendWindow    int
	defaultVariety string
	defaultStage   string
}

// Options carries the config-driven handler tunables.
type Options struct {
	// RatePerSec == 0 disables the per-device ingest rate limit.
	RatePerSec float64
	Burst      int

	// TrendWindow is the trailing sample window used when the request does
	// not pass an explicit ?window=.
	TrendWindow int

	// DefaultVariety/DefaultStage apply to ingest payloads that omit them.
	DefaultVariety string
	DefaultStage   string
}

// NewHandler creates a new HTTP handler.
func NewHandler(analytics service.AnalyticsService, rules *service.RuleService, opts Options) *Handler {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Handler{
		analytics:      analytics,
		rules:          rules,
		limiters:       make(map[string]*rate.Limiter),
		ratePerSec:     opts.RatePerSec,
		burst:          opts.Burst,
		trendWindow:    opts.TrendWindow,
		defaultVariety: opts.DefaultVariety,
		defaultStage:   opts.DefaultStage,
	}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	// Ingestion
	router.HandleFunc("/devices/{id}/readings", h.IngestReading).Methods("POST")

	// Dashboard reads
	router.HandleFunc("/devices", h.ListDevices).Methods("GET")
	router.HandleFunc("/devices/{id}/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/devices/{id}/trends", h.GetTrends).Methods("GET")

	// Alerts
	router.HandleFunc("/alerts/active", h.ListActiveAlerts).Methods("GET")
	router.HandleFunc("/alerts/history", h.ListResolutionHistory).Methods("GET")
	router.HandleFunc("/alerts/{ruleId}/devices/{id}", h.ClearAlert).Methods("DELETE")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")
}

// ingestRequest is the sensor payload POSTed by edge devices.
type ingestRequest struct {
	Fields  map[string]float64 `json:"fields"`
	Variety string             `json:"variety,omitempty"`
	Stage   string             `json:"stage,omitempty"`
}

// IngestReading handles POST /devices/{id}/readings
func (h *Handler) IngestReading(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	reqID := logger.FromContext(r.Context())

	if !validate.DeviceID(deviceID) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid device id", reqID)
		return
	}
	if !h.allowIngest(deviceID) {
		respondErrorWithCode(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded,
			"ingest rate limit exceeded for device", reqID)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body", reqID)
		return
	}
	if len(req.Fields) == 0 {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "no sensor fields supplied", reqID)
		return
	}
	for name := range req.Fields {
		if !validate.SensorField(name) {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid sensor field name: "+name, reqID)
			return
		}
	}

	if req.Variety == "" {
		req.Variety = h.defaultVariety
	}
	if req.Stage == "" {
		req.Stage = h.defaultStage
	}

	snapshot := h.analytics.Ingest(r.Context(), deviceID, req.Fields, service.IngestOptions{
		Variety: req.Variety,
		Stage:   req.Stage,
	})
	decisions := h.rules.Evaluate(r.Context(), deviceID, req.Fields)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snapshot,
		"alerts":   decisions,
	})
}

// ListDevices handles GET /devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"devices": h.analytics.Devices()})
}

// GetSummary handles GET /devices/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	window := queryInt(r, "window", h.trendWindow)
	respondJSON(w, http.StatusOK, h.analytics.Summary(deviceID, window))
}

// GetTrends handles GET /devices/{id}/trends
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	window := queryInt(r, "window", h.trendWindow)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"device_id": deviceID,
		"trends":    h.analytics.Trends(deviceID, window),
	})
}

// ListActiveAlerts handles GET /alerts/active
func (h *Handler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": h.rules.ActiveAlerts()})
}

// ListResolutionHistory handles GET /alerts/history
func (h *Handler) ListResolutionHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": h.rules.ResolutionHistory()})
}

// ClearAlert handles DELETE /alerts/{ruleId}/devices/{id} — a manual
// dashboard acknowledgement.
func (h *Handler) ClearAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reqID := logger.FromContext(r.Context())

	if !validate.RuleID(vars["ruleId"]) || !validate.DeviceID(vars["id"]) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid rule or device id", reqID)
		return
	}

	finalValue := 0.0
	if s := r.URL.Query().Get("value"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid value parameter", reqID)
			return
		}
		finalValue = v
	}

	rec := h.rules.ClearAlert(r.Context(), vars["ruleId"], vars["id"], finalValue)
	if rec == nil {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "no active alert for rule", reqID)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) allowIngest(deviceID string) bool {
	if h.ratePerSec <= 0 {
		return true
	}

	h.limitersMu.Lock()
	lim, ok := h.limiters[deviceID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(h.ratePerSec), h.burst)
		h.limiters[deviceID] = lim
	}
	h.limitersMu.Unlock()

	return lim.Allow()
}

func queryInt(r *http.Request, name string, fallback int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
