package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

const entryColumns = `id, occurred_at, recorded_at, source, device_id, category, payload`

// upsertQuery при повторной вставке того же id заменяет строку целиком.
const upsertQuery = `
	INSERT INTO entries (id, occurred_at, recorded_at, source, device_id, category, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		occurred_at = EXCLUDED.occurred_at,
		recorded_at = EXCLUDED.recorded_at,
		source = EXCLUDED.source,
		device_id = EXCLUDED.device_id,
		category = EXCLUDED.category,
		payload = EXCLUDED.payload,
		updated_at = NOW()`

type EntryRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewEntryRepository(storage *Storage, log *slog.Logger) *EntryRepository {
	return &EntryRepository{
		pool: storage.Pool(),
		log:  log.With("component", "entry_repository"),
	}
}

// Upsert перезаписывает записи по первичному ключу. Весь пакет
// применяется в одной транзакции: либо все, либо ничего.
func (r *EntryRepository) Upsert(ctx context.Context, entries []entry.Entry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", e.ID, err)
		}
		batch.Queue(upsertQuery, e.ID, e.OccurredAt, e.RecordedAt, string(e.Source), e.DeviceID, e.Category, payload)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			r.log.Error("failed to upsert entry", "error", err)
			return fmt.Errorf("upsert entry: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (r *EntryRepository) List(ctx context.Context, filter entry.Filter) ([]entry.Entry, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list entries", "error", err)
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]entry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// buildListQuery собирает SELECT с плейсхолдерами только для заданных
// условий. LIMIT и OFFSET всегда идут последними аргументами.
func buildListQuery(filter entry.Filter) (string, []any) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.Since != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argIndex)
		args = append(args, *filter.Since)
		argIndex++
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", argIndex)
		args = append(args, *filter.Until)
		argIndex++
	}

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, filter.Category)
		argIndex++
	}

	if filter.Source != "" {
		query += fmt.Sprintf(" AND source = $%d", argIndex)
		args = append(args, string(filter.Source))
		argIndex++
	}

	query += " ORDER BY occurred_at DESC, id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	return query, args
}

func (r *EntryRepository) Get(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entry.ErrNotFound
		}
		r.log.Error("failed to get entry", "id", id, "error", err)
		return nil, fmt.Errorf("get entry: %w", err)
	}

	return e, nil
}

func scanEntry(row pgx.Row) (*entry.Entry, error) {
	var (
		e          entry.Entry
		source     string
		payload    []byte
		occurredAt time.Time
		recordedAt time.Time
	)

	if err := row.Scan(&e.ID, &occurredAt, &recordedAt, &source, &e.DeviceID, &e.Category, &payload); err != nil {
		return nil, err
	}

	e.OccurredAt = occurredAt.UTC()
	e.RecordedAt = recordedAt.UTC()
	e.Source = entry.Source(source)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", e.ID, err)
		}
	}

	return &e, nil
}
