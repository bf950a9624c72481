package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerHealthReturnsPublishedSnapshot(t *testing.T) {
	Publish("Degraded", 2, []probe.Result{
		{Name: "colima", Passed: true},
		{Name: "docker", Passed: false},
	}, 1, 1700000000)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.OK)
	assert.Equal(t, "Degraded", snap.State)
	assert.Equal(t, []string{"docker"}, snap.FailedProbes)
}

func TestHandlerUnknownPathReturns404(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/anything-else", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "not_found", body["error"])
}

func TestPublishOKTrueOnlyWhenHealthyAndNoFailures(t *testing.T) {
	Publish("Healthy", 0, []probe.Result{{Name: "colima", Passed: true}}, 0, 0)
	assert.True(t, Current().OK)

	Publish("Healthy", 0, []probe.Result{{Name: "colima", Passed: false}}, 0, 0)
	assert.False(t, Current().OK)
}
