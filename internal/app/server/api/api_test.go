package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"

	"lifelog/internal/app/server/config"
	"lifelog/internal/infrastructure/storage/memory"
)

func testConfig(token string) *config.Config {
	return &config.Config{
		Env:     config.EnvLocal,
		Storage: config.StorageMemory,
		Auth:    config.Auth{Token: token},
	}
}

func TestNew_Routes(t *testing.T) {
	mux := New(testConfig("secret"), Deps{Repository: memory.NewEntryRepository()}, slog.Default())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		header     string
		wantStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK},
		{name: "list requires token", method: http.MethodGet, path: "/api/entries", wantStatus: http.StatusUnauthorized},
		{name: "list with token", method: http.MethodGet, path: "/api/entries", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "post with token", method: http.MethodPost, path: "/api/entries", header: "Bearer secret", body: "[]", wantStatus: http.StatusBadRequest},
		{name: "unknown route", method: http.MethodGet, path: "/api/records", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestNew_HealthReportsStorageFailure(t *testing.T) {
	deps := Deps{
		Repository:   memory.NewEntryRepository(),
		StorageCheck: func(context.Context) error { return errors.New("connection refused") },
	}
	mux := New(testConfig("secret"), deps, slog.Default())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNew_MissingServerToken(t *testing.T) {
	mux := New(testConfig(""), Deps{Repository: memory.NewEntryRepository()}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
