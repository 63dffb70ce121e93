package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifelog/internal/domain/entry"
)

// LocalEntry - локальная модель записи: запись плюс флаг синхронизации.
type LocalEntry struct {
	entry.Entry
	Synced    bool      `json:"synced"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocalFilter - фильтр локального списка. Nil Synced означает любые записи.
type LocalFilter struct {
	Synced   *bool
	Category string
	Source   entry.Source
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

func (f LocalFilter) match(le *LocalEntry) bool {
	if f.Synced != nil && le.Synced != *f.Synced {
		return false
	}
	return entry.Filter{
		Since:    f.Since,
		Until:    f.Until,
		Category: f.Category,
		Source:   f.Source,
	}.Match(le.Entry)
}

// MemoryStorage - in-memory хранилище. Используется, если SQLite недоступен, и в тестах.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*LocalEntry
	deleted map[uuid.UUID]time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[uuid.UUID]*LocalEntry),
		deleted: make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryStorage) QueryUnsynced(_ context.Context) ([]entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []entry.Entry
	for _, le := range m.entries {
		if !le.Synced {
			result = append(result, le.Entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})

	return result, nil
}

func (m *MemoryStorage) MarkSynced(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if le, ok := m.entries[id]; ok {
			le.Synced = true
		}
	}
	return nil
}

func (m *MemoryStorage) AllIDs(_ context.Context) (map[uuid.UUID]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[uuid.UUID]struct{}, len(m.entries))
	for id := range m.entries {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *MemoryStorage) UpsertFromRemote(_ context.Context, e entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, gone := m.deleted[e.ID]; gone {
		return nil
	}
	m.entries[e.ID] = &LocalEntry{Entry: e, Synced: true, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStorage) Save(_ context.Context, e entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[e.ID] = &LocalEntry{Entry: e, Synced: false, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, id uuid.UUID) (*LocalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	le, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *le
	return &cp, nil
}

func (m *MemoryStorage) List(_ context.Context, filter LocalFilter) ([]*LocalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*LocalEntry, 0, len(m.entries))
	for _, le := range m.entries {
		if filter.match(le) {
			cp := *le
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*LocalEntry{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (m *MemoryStorage) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	m.deleted[id] = time.Now().UTC()
	return nil
}

func (m *MemoryStorage) IsDeleted(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, gone := m.deleted[id]
	return gone, nil
}

func (m *MemoryStorage) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries), nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
