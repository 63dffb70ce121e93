package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Checker проверяет доступность зависимости (например, пинг БД).
type Checker func(ctx context.Context) error

type Handler struct {
	log        *slog.Logger
	middleware huma.Middlewares
	storage    Checker
}

func NewHandler(log *slog.Logger, middleware huma.Middlewares, storage Checker) *Handler {
	return &Handler{
		log:        log,
		middleware: middleware,
		storage:    storage,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	if h.storage == nil {
		return &Output{Body: Response{Status: "OK"}}, nil
	}

	if err := h.storage(ctx); err != nil {
		h.log.Error("storage health check failed", "error", err)
		return nil, huma.Error503ServiceUnavailable("storage unavailable")
	}

	return &Output{Body: Response{Status: "OK", Storage: "OK"}}, nil
}
