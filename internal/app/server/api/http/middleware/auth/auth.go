package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const bearerPrefix = "Bearer "

// Auth проверяет единственный bearer-токен API.
type Auth struct {
	token []byte
	log   *slog.Logger
}

func New(token string, log *slog.Logger) *Auth {
	return &Auth{
		token: []byte(token),
		log:   log.With("component", "auth_middleware"),
	}
}

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context)).
// Сервер без настроенного токена отклоняет все вызовы с 500, а не пропускает их.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if len(a.token) == 0 {
			a.log.Error("API token is not configured, rejecting request", "path", ctx.URL().Path)
			a.writeError(ctx, http.StatusInternalServerError, "server misconfigured")
			return
		}

		header := ctx.Header("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			a.log.Warn("missing bearer token", "path", ctx.URL().Path)
			a.writeError(ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		provided := []byte(strings.TrimSpace(header[len(bearerPrefix):]))
		if subtle.ConstantTimeCompare(provided, a.token) != 1 {
			a.log.Warn("invalid bearer token", "path", ctx.URL().Path)
			a.writeError(ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next(ctx)
	}
}

func (a *Auth) writeError(ctx huma.Context, status int, message string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(status)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error": message,
	})
	if err != nil {
		a.log.Error("failed to encode auth error", "error", err)
	}
}
