package entry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

type Handler struct {
	service      entry.Servicer
	log          *slog.Logger
	middleware   huma.Middlewares
	maxBodyBytes int64
}

func NewHandler(service entry.Servicer, log *slog.Logger, mws huma.Middlewares, maxBodyBytes int64) *Handler {
	return &Handler{
		service:      service,
		log:          log.With("component", "entry_handler"),
		middleware:   mws,
		maxBodyBytes: maxBodyBytes,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.findOp(), h.find)
}

func (h *Handler) create(ctx context.Context, input *createInput) (*createOutput, error) {
	entries, err := decodeEntries(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	created, err := h.service.Upsert(ctx, entries)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &createOutput{
		Body: createResponse{Created: created},
	}, nil
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	filter := entry.Filter{
		Category: input.Category,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}

	var err error
	if filter.Since, err = parseTime(input.Since); err != nil {
		return nil, huma.Error400BadRequest("invalid since: " + err.Error())
	}
	if filter.Until, err = parseTime(input.Until); err != nil {
		return nil, huma.Error400BadRequest("invalid until: " + err.Error())
	}
	if input.Source != "" {
		if filter.Source, err = entry.ParseSource(input.Source); err != nil {
			return nil, huma.Error400BadRequest("invalid source: " + input.Source)
		}
	}

	entries, err := h.service.List(ctx, filter)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &listOutput{Body: entries}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid id: " + input.ID)
	}

	e, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &findOutput{Body: *e}, nil
}

func (h *Handler) mapError(err error) error {
	var vErr *entry.ValidationError
	switch {
	case errors.As(err, &vErr):
		return huma.Error400BadRequest(vErr.Error())
	case errors.Is(err, entry.ErrEmptyBatch):
		return huma.Error400BadRequest("request must contain at least one entry")
	case errors.Is(err, entry.ErrNotFound):
		return huma.Error404NotFound("entry not found")
	}

	h.log.Error("request failed", "error", err)
	return huma.Error500InternalServerError("internal server error")
}

// decodeEntries разбирает тело запроса: одиночный объект или массив.
func decodeEntries(body []byte) ([]entry.Entry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty request body")
	}

	if body[0] == '[' {
		var entries []entry.Entry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return entries, nil
	}

	var single entry.Entry
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return []entry.Entry{single}, nil
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
