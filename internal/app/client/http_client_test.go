package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "tok", time.Second, slog.Default())
}

func TestHTTPClient_UploadSendsBatch(t *testing.T) {
	batch := []entry.Entry{textEntry("a", base), textEntry("b", base.Add(time.Minute))}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/entries", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "synced")

		var got []entry.Entry
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Len(t, got, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":2}`))
	})

	require.NoError(t, client.Upload(context.Background(), batch))
}

func TestHTTPClient_UploadRejectsBeforeNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	invalid := textEntry("x", base)
	invalid.DeviceID = ""

	tooMany := make([]entry.Entry, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = textEntry("x", base)
	}

	tests := []struct {
		name  string
		batch []entry.Entry
	}{
		{name: "empty", batch: nil},
		{name: "too large", batch: tooMany},
		{name: "missing field", batch: []entry.Entry{invalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Upload(context.Background(), tt.batch)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	assert.False(t, called)
}

func TestHTTPClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
		wantMsg  string
	}{
		{name: "unauthorized", status: 401, body: `{"error":"Unauthorized"}`, wantKind: ErrUnauthorized, wantMsg: "Unauthorized"},
		{name: "validation", status: 400, body: `{"title":"Bad Request","status":400,"detail":"missing required field: device_id"}`, wantKind: ErrInvalidRequest, wantMsg: "missing required field: device_id"},
		{name: "unprocessable", status: 422, body: `{"detail":"validation failed"}`, wantKind: ErrInvalidRequest, wantMsg: "validation failed"},
		{name: "misconfigured server", status: 500, body: `{"error":"server misconfigured"}`, wantKind: ErrServer, wantMsg: "server misconfigured"},
		{name: "gateway without body", status: 502, body: ``, wantKind: ErrServer},
		{name: "created mismatch", status: 200, body: `{"created":1}`, wantKind: ErrMalformedResponse},
		{name: "not json", status: 200, body: `<html>`, wantKind: ErrMalformedResponse},
		{name: "created missing", status: 200, body: `{}`, wantKind: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := client.Upload(context.Background(), []entry.Entry{textEntry("a", base), textEntry("b", base)})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.Status)
			assert.Equal(t, tt.body, te.Body)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, te.Message)
			}
		})
	}
}

func TestHTTPClient_MalformedIsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"created":"many"}`))
	})

	err := client.Upload(context.Background(), []entry.Entry{textEntry("a", base)})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, Retryable(err))
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewHTTPClient(srv.URL, "tok", 50*time.Millisecond, slog.Default())

	_, err := client.Download(context.Background(), entry.Filter{})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, Retryable(err))
}

func TestHTTPClient_Connectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(url, "tok", time.Second, slog.Default())

	err := client.HealthCheck(context.Background())

	assert.ErrorIs(t, err, ErrConnectivity)
	assert.True(t, Retryable(err))
}

func TestHTTPClient_DownloadQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	remote := textEntry("r", base)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("since"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "200", q.Get("offset"))
		assert.Equal(t, "watch", q.Get("source"))
		assert.False(t, q.Has("until"))
		assert.False(t, q.Has("category"))

		_ = json.NewEncoder(w).Encode([]entry.Entry{remote})
	})

	got, err := client.Download(context.Background(), entry.Filter{
		Since:  &since,
		Source: entry.SourceWatch,
		Limit:  100,
		Offset: 200,
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, remote.ID, got[0].ID)
	assert.True(t, remote.OccurredAt.Equal(got[0].OccurredAt))
}

func TestHTTPClient_FetchOne(t *testing.T) {
	known := textEntry("k", base)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/entries/"+known.ID.String() {
			_ = json.NewEncoder(w).Encode(known)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"entry not found"}`))
	})

	got, err := client.FetchOne(context.Background(), known.ID)
	require.NoError(t, err)
	assert.Equal(t, "k", got.Text())

	_, err = client.FetchOne(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_NotFoundOnListIsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Download(context.Background(), entry.Filter{})

	assert.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrNotFound)
}
