// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AMD-AGI/Primus-Deploy/pkg/config"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database"
	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, registry *health.Registry) *gin.Engine {
	t.Helper()
	mock := database.NewMockFacade()
	previous := database.GetFacade()
	database.SetFacade(mock)
	t.Cleanup(func() { database.SetFacade(previous) })

	server := NewServer(&config.Config{}, nil, nil, nil, nil, nil, registry)
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CorsMiddleware())
	engine.Use(AuthMiddleware())
	server.registerRoutes(engine)
	return engine
}

func TestPreflightRequestsAreAlwaysAllowed(t *testing.T) {
	engine := testEngine(t, health.NewRegistry())
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/api/environments", nil)
	engine.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), "X-Session-Token")
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Headers"), "X-Impersonate-Username")
}

func TestStatusEndpointReflectsHealth(t *testing.T) {
	registry := health.NewRegistry()
	engine := testEngine(t, registry)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	registry.AddDegraded("releases", "env prod out of sync")
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "not healthy")
}

func TestUnknownSessionTokenIsRejected(t *testing.T) {
	engine := testEngine(t, health.NewRegistry())
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/environments", nil)
	request.Header.Set("X-Session-Token", "bogus")
	engine.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestMissingPermissionsYield403(t *testing.T) {
	engine := testEngine(t, health.NewRegistry())
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/environments", nil))
	// No default user exists in the mock store: the request has no account.
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
