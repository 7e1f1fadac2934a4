package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/config"
)

func TestNewAppWiresDefaults(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	assert.NotNil(t, a.journal)
	assert.Equal(t, []string{"GLM-4.6", "Qwen3-Next-80B"}, a.gateway.Providers())
	assert.Equal(t, 0, a.scheduler.InFlight())

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["sessions"])

	rec = httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "interviewer_evaluations_in_flight 0")
}

func TestNewAppWithoutJournal(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Enabled = false
	cfg.Transcription.Enabled = false

	a, err := newApp(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()
	assert.Nil(t, a.journal)

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/journal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewAppRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{{Name: "x", Kind: "carrier-pigeon", Model: "m"}}

	_, err := newApp(cfg, prometheus.NewRegistry())
	assert.ErrorContains(t, err, "unsupported provider kind")
}
