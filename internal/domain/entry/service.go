package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Servicer - бизнес-логика удаленного хранилища записей.
type Servicer interface {
	Upsert(ctx context.Context, entries []Entry) (int, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "entry_service"),
	}
}

// Upsert проверяет весь пакет и сохраняет его. Возвращает число
// переданных записей, а не число новых строк: дубликаты перезаписываются.
func (s *Service) Upsert(ctx context.Context, entries []Entry) (int, error) {
	if err := ValidateBatch(entries); err != nil {
		return 0, err
	}

	normalized := make([]Entry, len(entries))
	for i, e := range entries {
		normalized[i] = e.Normalize()
	}

	if err := s.repo.Upsert(ctx, normalized); err != nil {
		s.log.Error("failed to upsert entries", "count", len(entries), "error", err)
		return 0, fmt.Errorf("upsert entries: %w", err)
	}

	s.log.Debug("entries upserted", "count", len(entries))
	return len(entries), nil
}

// List нормализует фильтр и возвращает записи.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	filter = NormalizeFilter(filter)

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		s.log.Error("failed to list entries", "error", err)
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}

	return entries, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Error("failed to get entry", "id", id, "error", err)
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// NormalizeFilter подставляет лимит по умолчанию и ограничивает его сверху.
func NormalizeFilter(f Filter) Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Match сообщает, подходит ли запись под фильтр (без учета limit/offset).
func (f Filter) Match(e Entry) bool {
	if f.Since != nil && e.OccurredAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.OccurredAt.After(*f.Until) {
		return false
	}
	if f.Category != "" && e.CategoryOrEmpty() != f.Category {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	return true
}
