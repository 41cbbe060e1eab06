package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doHealth(h *HealthHandler) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func TestHealthAllUp(t *testing.T) {
	h := NewHealthHandler(
		DependencyCheck{Name: "datastore", Check: func(context.Context) error { return nil }},
		DependencyCheck{Name: "generation", Check: func(context.Context) error { return nil }},
	)

	w := doHealth(h)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	deps := body["dependencies"].(map[string]interface{})
	require.Contains(t, deps, "datastore")
	require.Contains(t, deps, "generation")
	assert.Equal(t, "up", deps["datastore"].(map[string]interface{})["status"])
}

func TestHealthDegraded(t *testing.T) {
	h := NewHealthHandler(
		DependencyCheck{Name: "datastore", Check: func(context.Context) error { return nil }},
		DependencyCheck{Name: "generation", Check: func(context.Context) error { return errors.New("unreachable") }},
	)

	w := doHealth(h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])

	deps := body["dependencies"].(map[string]interface{})
	gen := deps["generation"].(map[string]interface{})
	assert.Equal(t, "down", gen["status"])
	assert.Equal(t, "unreachable", gen["error"])
}
