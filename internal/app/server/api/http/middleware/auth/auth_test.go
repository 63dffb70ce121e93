package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

type pingOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func setupAPI(t *testing.T, token string) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)

	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Middlewares: huma.Middlewares{New(token, slog.Default()).Middleware()},
	}, func(ctx context.Context, _ *struct{}) (*pingOutput, error) {
		out := &pingOutput{}
		out.Body.OK = true
		return out, nil
	})

	return api
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		serverToken string
		headers     []any
		wantStatus  int
		wantBody    string
	}{
		{name: "valid token", serverToken: "s3cret", headers: []any{"Authorization: Bearer s3cret"}, wantStatus: http.StatusOK},
		{name: "missing header", serverToken: "s3cret", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized"},
		{name: "wrong scheme", serverToken: "s3cret", headers: []any{"Authorization: Basic s3cret"}, wantStatus: http.StatusUnauthorized},
		{name: "wrong token", serverToken: "s3cret", headers: []any{"Authorization: Bearer nope"}, wantStatus: http.StatusUnauthorized},
		{name: "token prefix only", serverToken: "s3cret", headers: []any{"Authorization: Bearer s3c"}, wantStatus: http.StatusUnauthorized},
		{name: "server not configured", serverToken: "", headers: []any{"Authorization: Bearer "}, wantStatus: http.StatusInternalServerError, wantBody: "server misconfigured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupAPI(t, tt.serverToken)

			resp := api.Get("/ping", tt.headers...)

			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
		})
	}
}
