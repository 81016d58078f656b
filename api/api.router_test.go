package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/factoriot/hub/internal/aggregator"
	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository/memory"
	"github.com/factoriot/hub/internal/service"
)

type stubPublisher struct {
	dataCalls   int
	statusCalls int
}

func (p *stubPublisher) PublishDeviceData(deviceID int, msg models.TelemetryMessage) error {
	p.dataCalls++
	return nil
}

func (p *stubPublisher) PublishDeviceStatus(deviceID int, status string) error {
	p.statusCalls++
	return nil
}

func newTestRouter(t *testing.T, now time.Time) (*Router, *memory.EventRepo, *stubPublisher) {
	t.Helper()
	events := memory.NewEventRepository()
	stats := memory.NewStatisticsRepository()
	svc := service.New(events, stats).WithClock(func() time.Time { return now })
	agg := aggregator.New(events, stats, time.Hour, 30*24*time.Hour,
		aggregator.WithClock(func() time.Time { return now }))
	publisher := &stubPublisher{}
	return NewRouter(svc, agg, publisher), events, publisher
}

func seed(t *testing.T, events *memory.EventRepo, deviceID int, dataType string, value float64, ts time.Time) {
	t.Helper()
	_, err := events.Append(context.Background(), &models.Event{
		DeviceID:        deviceID,
		DataType:        dataType,
		Value:           value,
		ReceivedAt:      ts,
		DeviceTimestamp: ts,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetHistoryEndpoint(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	router, events, _ := newTestRouter(t, now)

	seed(t, events, 7, "temperature", 22.5, now.Add(-time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/7/history?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		DeviceID int            `json:"deviceId"`
		Count    int            `json:"count"`
		Data     []models.Event `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.DeviceID != 7 || body.Count != 1 || len(body.Data) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Data[0].Value != 22.5 {
		t.Errorf("value = %f, want 22.5", body.Data[0].Value)
	}
}

func TestGetHistoryEndpointRejectsBadDeviceID(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	router, _, _ := newTestRouter(t, now)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/abc/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetStatisticsEndpointEmptyWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	router, _, _ := newTestRouter(t, now)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/7/statistics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Statistics models.StatisticsRecord `json:"statistics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Statistics.Count != 0 {
		t.Errorf("count = %d, want 0", body.Statistics.Count)
	}
}

func TestGetTrendEndpoint(t *testing.T) {
	now := time.Date(2026, 8, 31, 16, 30, 0, 0, time.UTC)
	router, events, _ := newTestRouter(t, now)

	seed(t, events, 7, "temperature", 10, time.Date(2026, 8, 31, 15, 10, 0, 0, time.UTC))
	seed(t, events, 7, "temperature", 20, time.Date(2026, 8, 31, 15, 40, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/7/trend?hours=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Hours int                  `json:"hours"`
		Trend []models.TrendBucket `json:"trend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Hours != 2 {
		t.Errorf("hours = %d, want 2", body.Hours)
	}
	if len(body.Trend) != 1 {
		t.Fatalf("expected 1 sparse bucket, got %d", len(body.Trend))
	}
	if body.Trend[0].Avg != 15 || body.Trend[0].Count != 2 {
		t.Errorf("bucket wrong: %+v", body.Trend[0])
	}
}

func TestRunAggregationEndpoint(t *testing.T) {
	now := time.Date(2026, 8, 31, 11, 30, 0, 0, time.UTC)
	router, events, _ := newTestRouter(t, now)

	seed(t, events, 1, "temperature", 20, time.Date(2026, 8, 31, 10, 5, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/aggregation/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPublishEndpoints(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	router, _, publisher := newTestRouter(t, now)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/7/publish",
		strings.NewReader(`{"dataType":"temperature","value":22.5,"unit":"°C"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("publish status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if publisher.dataCalls != 1 {
		t.Errorf("data publish not forwarded")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/devices/7/status",
		strings.NewReader(`{"status":"online"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status publish status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if publisher.statusCalls != 1 {
		t.Errorf("status publish not forwarded")
	}
}

func TestHealthEndpoint(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	router, _, _ := newTestRouter(t, now)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
