package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-manager-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(nil, ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }})
	r := newRouter("")
	r.GET("/ready", healthy.Ready)

	w := serve(r, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	failing := NewMetricsHandler(nil,
		ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "cache", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	r = newRouter("")
	r.GET("/ready", failing.Ready)

	w = serve(r, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "connection refused", body.Checks["cache"])
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordUpload(service.OutcomeCreated, 10)
	h := NewMetricsHandler(metrics)
	r := newRouter("")
	r.GET("/metrics", h.Prometheus)
	r.GET("/health", h.Health)

	w := serve(r, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "file_uploads_total")

	w = serve(r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	r = newRouter("")
	r.GET("/metrics", NewMetricsHandler(nil).Prometheus)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/metrics", nil, "").Code)
}

func TestMetricsHandlerSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordUpload(service.OutcomeCreated, 2048)
	metrics.RecordUpload(service.OutcomeDuplicate, 0)
	r := newRouter("")
	r.GET("/metrics/summary", NewMetricsHandler(metrics).Summary)

	w := serve(r, http.MethodGet, "/metrics/summary", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["uploads_created"])
	assert.EqualValues(t, 1, body["uploads_duplicate"])
	assert.EqualValues(t, 2048, body["uploaded_bytes"])
}
