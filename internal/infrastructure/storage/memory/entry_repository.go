// Package memory - хранилище записей в памяти процесса. Используется
// при STORAGE=memory и в тестах вместо PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"lifelog/internal/domain/entry"
)

type EntryRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]entry.Entry
}

func NewEntryRepository() *EntryRepository {
	return &EntryRepository{
		entries: make(map[uuid.UUID]entry.Entry),
	}
}

func (r *EntryRepository) Upsert(_ context.Context, entries []entry.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		r.entries[e.ID] = cloneEntry(e)
	}
	return nil
}

func (r *EntryRepository) List(_ context.Context, filter entry.Filter) ([]entry.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]entry.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.Match(e) {
			matched = append(matched, cloneEntry(e))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	if filter.Offset >= len(matched) {
		return []entry.Entry{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (r *EntryRepository) Get(_ context.Context, id uuid.UUID) (*entry.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, entry.ErrNotFound
	}
	c := cloneEntry(e)
	return &c, nil
}

// Len возвращает число строк в таблице.
func (r *EntryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func cloneEntry(e entry.Entry) entry.Entry {
	if e.Payload.Tags != nil {
		e.Payload.Tags = append([]string(nil), e.Payload.Tags...)
	}
	return e
}
