package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"lifelog/internal/domain/entry"
)

// SQLiteStorage хранит время как unix-наносекунды в UTC,
// чтобы сортировка по колонке совпадала с хронологической.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	// Создаем таблицы
	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			occurred_at INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			source TEXT NOT NULL,
			device_id TEXT NOT NULL,
			category TEXT,
			payload TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_synced ON entries(synced, occurred_at);
		CREATE INDEX IF NOT EXISTS idx_entries_occurred ON entries(occurred_at);

		CREATE TABLE IF NOT EXISTS deleted_entries (
			id TEXT PRIMARY KEY,
			deleted_at INTEGER NOT NULL
		);
	`)

	return err
}

const selectColumns = `SELECT id, occurred_at, recorded_at, source, device_id, category, payload, synced, updated_at FROM entries`

const upsertQuery = `
	INSERT INTO entries (id, occurred_at, recorded_at, source, device_id, category, payload, synced, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		occurred_at = excluded.occurred_at,
		recorded_at = excluded.recorded_at,
		source = excluded.source,
		device_id = excluded.device_id,
		category = excluded.category,
		payload = excluded.payload,
		synced = excluded.synced,
		updated_at = excluded.updated_at`

func (s *SQLiteStorage) QueryUnsynced(ctx context.Context) ([]entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE synced = 0 ORDER BY occurred_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки несинхронизированных записей: %w", err)
	}
	defer rows.Close()

	var result []entry.Entry
	for rows.Next() {
		le, err := scanLocalEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, le.Entry)
	}

	return result, rows.Err()
}

func (s *SQLiteStorage) MarkSynced(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE entries SET synced = 1 WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id.String()); err != nil {
				return fmt.Errorf("ошибка отметки записи %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) AllIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки id: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("некорректный id в базе %q: %w", raw, err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

func (s *SQLiteStorage) UpsertFromRemote(ctx context.Context, e entry.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var gone bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM deleted_entries WHERE id = ?)`, e.ID.String()).Scan(&gone)
		if err != nil {
			return fmt.Errorf("ошибка проверки удаления: %w", err)
		}
		if gone {
			return nil
		}
		return s.upsert(ctx, tx, e, true)
	})
}

func (s *SQLiteStorage) Save(ctx context.Context, e entry.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, e, false)
	})
}

func (s *SQLiteStorage) upsert(ctx context.Context, tx *sql.Tx, e entry.Entry, synced bool) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, upsertQuery,
		e.ID.String(),
		e.OccurredAt.UnixNano(),
		e.RecordedAt.UnixNano(),
		string(e.Source),
		e.DeviceID,
		e.Category,
		string(payload),
		synced,
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, id uuid.UUID) (*LocalEntry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())

	le, err := scanLocalEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	return le, nil
}

func (s *SQLiteStorage) List(ctx context.Context, filter LocalFilter) ([]*LocalEntry, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Synced != nil {
		conds = append(conds, "synced = ?")
		args = append(args, *filter.Synced)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Since != nil {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Until != nil {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, filter.Until.UnixNano())
	}

	query := selectColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id ASC"

	// В SQLite OFFSET допустим только вместе с LIMIT.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	result := make([]*LocalEntry, 0)
	for rows.Next() {
		le, err := scanLocalEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, le)
	}

	return result, rows.Err()
}

func (s *SQLiteStorage) Delete(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("ошибка удаления записи: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrEntryNotFound
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO deleted_entries (id, deleted_at) VALUES (?, ?)`,
			id.String(), time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("ошибка сохранения отметки удаления: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStorage) IsDeleted(ctx context.Context, id uuid.UUID) (bool, error) {
	var gone bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM deleted_entries WHERE id = ?)`, id.String()).Scan(&gone)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки удаления: %w", err)
	}
	return gone, nil
}

func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета записей: %w", err)
	}

	return count, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocalEntry(row rowScanner) (*LocalEntry, error) {
	var (
		le                             LocalEntry
		rawID, source, payload         string
		occurredAt, recordedAt, update int64
		category                       sql.NullString
	)

	err := row.Scan(&rawID, &occurredAt, &recordedAt, &source, &le.DeviceID,
		&category, &payload, &le.Synced, &update)
	if err != nil {
		return nil, err
	}

	if le.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("некорректный id в базе %q: %w", rawID, err)
	}
	if err := json.Unmarshal([]byte(payload), &le.Payload); err != nil {
		return nil, fmt.Errorf("ошибка парсинга payload: %w", err)
	}

	le.OccurredAt = time.Unix(0, occurredAt).UTC()
	le.RecordedAt = time.Unix(0, recordedAt).UTC()
	le.UpdatedAt = time.Unix(0, update).UTC()
	le.Source = entry.Source(source)
	if category.Valid {
		c := category.String
		le.Category = &c
	}

	return &le, nil
}
