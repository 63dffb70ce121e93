//POST /api/entries       # Загрузить пачку записей (auth)
//GET  /api/entries       # Список записей с фильтрами (auth)
//GET  /api/entries/{id}  # Получить запись по id (auth)
//GET  /api/health        # Проверка живости (публичный)

package api

import (
	entryAPI "lifelog/internal/app/server/api/http/entry"
	healthAPI "lifelog/internal/app/server/api/http/health"
	"lifelog/internal/app/server/api/http/middleware"
	"lifelog/internal/app/server/api/http/middleware/auth"
	"lifelog/internal/app/server/api/http/middleware/logger"
	"lifelog/internal/app/server/config"
	"lifelog/internal/domain/entry"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health *healthAPI.Handler
	Entry  *entryAPI.Handler
}

// Deps - зависимости, которые main собирает в зависимости от типа хранилища.
type Deps struct {
	Repository entry.Repository
	// StorageCheck может быть nil, тогда health не проверяет хранилище.
	StorageCheck healthAPI.Checker
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(cfg *config.Config, deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	hc := huma.DefaultConfig("Lifelog API", "1.0.0")
	hc.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, hc)

	h := handlers(cfg, deps, log)
	h.Health.SetupRoutes(API)
	h.Entry.SetupRoutes(API)

	return mux
}

func handlers(cfg *config.Config, deps Deps, log *slog.Logger) *Handlers {
	authMW := auth.New(cfg.Auth.Token, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear(), deps.StorageCheck)

	entryService := entry.NewService(deps.Repository, log)
	middlewares.Add(loggerMW.Middleware(), authMW.Middleware())
	entryHandler := entryAPI.NewHandler(entryService, log, middlewares.GetAllAndClear(), cfg.Server.MaxBodyBytes)

	return &Handlers{
		Health: healthHandler,
		Entry:  entryHandler,
	}
}
