package entry

import (
	"context"

	"github.com/google/uuid"
)

// Repository - контракт удаленного хранилища: одна таблица с ключом по UUID.
type Repository interface {
	// Upsert вставляет или перезаписывает записи по id одной транзакцией.
	Upsert(ctx context.Context, entries []Entry) error
	// List возвращает записи по фильтру, occurred_at по убыванию.
	List(ctx context.Context, filter Filter) ([]Entry, error)
	// Get возвращает запись или ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
}
