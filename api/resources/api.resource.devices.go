// FilePath: api/resources/api.resource.devices.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/factoriot/hub/api/middleware"
	"github.com/factoriot/hub/internal/errors"
	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/service"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"
)

// DeviceHandlers encapsulates the device telemetry HTTP handlers
type DeviceHandlers struct {
	service   *service.Service
	publisher DevicePublisher
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}

// @Summary Get device history
// @Description Get raw telemetry events for a device, newest first
// @Tags devices
// @Produce json
// @Param deviceId path int true "Device ID"
// @Param start query string false "Start time (RFC3339)"
// @Param end query string false "End time (RFC3339)"
// @Param limit query int false "Maximum rows (default 1000)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.APIError
// @Router /devices/{deviceId}/history [get]
func (h *DeviceHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	deviceID, ok := parseDeviceID(w, r, requestID)
	if !ok {
		return
	}

	var filters models.HistoryFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	events, err := h.service.GetHistory(r.Context(), deviceID, filters)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to get device history", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"deviceId": deviceID,
		"count":    len(events),
		"data":     events,
	})
}

// @Summary Get device statistics
// @Description Compute min/max/avg/count over raw events in a window
// @Tags devices
// @Produce json
// @Param deviceId path int true "Device ID"
// @Param dataType query string false "Data type (default temperature)"
// @Param start query string false "Start time (RFC3339, default now-24h)"
// @Param end query string false "End time (RFC3339, default now)"
// @Success 200 {object} map[string]interface{}
// @Router /devices/{deviceId}/statistics [get]
func (h *DeviceHandlers) GetStatistics(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	deviceID, ok := parseDeviceID(w, r, requestID)
	if !ok {
		return
	}

	var filters models.StatisticsFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	stats, err := h.service.GetStatistics(r.Context(), deviceID, filters)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to compute statistics", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"deviceId":   deviceID,
		"dataType":   stats.DataType,
		"statistics": stats,
	})
}

// @Summary Get device trend
// @Description Hour-bucketed aggregates derived live from raw history
// @Tags devices
// @Produce json
// @Param deviceId path int true "Device ID"
// @Param hours query int false "Window in hours (default 24)"
// @Success 200 {object} map[string]interface{}
// @Router /devices/{deviceId}/trend [get]
func (h *DeviceHandlers) GetTrend(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	deviceID, ok := parseDeviceID(w, r, requestID)
	if !ok {
		return
	}

	var filters models.TrendFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}
	hours := filters.Hours
	if hours <= 0 {
		hours = service.DefaultTrendHours
	}

	trend, err := h.service.GetTrend(r.Context(), deviceID, hours)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to compute trend", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"deviceId": deviceID,
		"hours":    hours,
		"trend":    trend,
	})
}

// @Summary Publish device data
// @Description Publish a telemetry message on the device data topic
// @Tags devices
// @Accept json
// @Produce json
// @Param deviceId path int true "Device ID"
// @Param message body models.TelemetryMessage true "Telemetry message"
// @Success 202 {object} map[string]string
// @Failure 400 {object} errors.APIError
// @Router /devices/{deviceId}/publish [post]
func (h *DeviceHandlers) PublishData(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	deviceID, ok := parseDeviceID(w, r, requestID)
	if !ok {
		return
	}
	if h.publisher == nil {
		respondWithError(w, errors.NewUnavailableError("transport not configured", nil).WithRequestID(requestID))
		return
	}

	var msg models.TelemetryMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	msg.DeviceID = deviceID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if err := h.publisher.PublishDeviceData(deviceID, msg); err != nil {
		respondWithError(w, errors.NewInternalError("failed to publish device data", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

// @Summary Publish device status
// @Description Publish a status message on the device status topic
// @Tags devices
// @Accept json
// @Produce json
// @Param deviceId path int true "Device ID"
// @Success 202 {object} map[string]string
// @Router /devices/{deviceId}/status [post]
func (h *DeviceHandlers) PublishStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	deviceID, ok := parseDeviceID(w, r, requestID)
	if !ok {
		return
	}
	if h.publisher == nil {
		respondWithError(w, errors.NewUnavailableError("transport not configured", nil).WithRequestID(requestID))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if err := h.publisher.PublishDeviceStatus(deviceID, body.Status); err != nil {
		respondWithError(w, errors.NewInternalError("failed to publish device status", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

// Helper functions

func parseDeviceID(w http.ResponseWriter, r *http.Request, requestID string) (int, bool) {
	vars := mux.Vars(r)
	deviceID, err := strconv.Atoi(vars["deviceId"])
	if err != nil || deviceID <= 0 {
		respondWithError(w, errors.NewValidationError("invalid device id", err).WithRequestID(requestID))
		return 0, false
	}
	return deviceID, true
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
