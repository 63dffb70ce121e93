package client

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"lifelog/internal/domain/entry"
)

var ErrEntryNotFound = errors.New("запись не найдена")

// Storage - локальное хранилище записей устройства вместе с флагом synced.
type Storage interface {
	// QueryUnsynced возвращает записи с synced = false по возрастанию времени события.
	QueryUnsynced(ctx context.Context) ([]entry.Entry, error)
	// MarkSynced идемпотентна, неизвестные id пропускаются.
	MarkSynced(ctx context.Context, ids []uuid.UUID) error
	AllIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
	// UpsertFromRemote перезаписывает запись серверной копией с synced = true.
	// Удаленные локально id не воскрешаются.
	UpsertFromRemote(ctx context.Context, e entry.Entry) error

	Save(ctx context.Context, e entry.Entry) error
	Get(ctx context.Context, id uuid.UUID) (*LocalEntry, error)
	List(ctx context.Context, filter LocalFilter) ([]*LocalEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	IsDeleted(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
