package entry

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:  "entries-upsert",
		Method:       http.MethodPost,
		Path:         "/api/entries",
		Summary:      "Создать или перезаписать записи",
		Description:  "Принимает одну запись или массив записей. Каждая запись вставляется или перезаписывается по id.",
		Tags:         []string{"entries"},
		Security:     []map[string][]string{{"bearer": {}}},
		Middlewares:  h.middleware,
		MaxBodyBytes: h.maxBodyBytes,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "entries-list",
		Method:      http.MethodGet,
		Path:        "/api/entries",
		Summary:     "Список записей",
		Description: "Записи по фильтру, отсортированные по времени события по убыванию.",
		Tags:        []string{"entries"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "entries-find",
		Method:      http.MethodGet,
		Path:        "/api/entries/{id}",
		Summary:     "Получить запись",
		Tags:        []string{"entries"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
