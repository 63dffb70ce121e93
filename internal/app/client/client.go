package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"lifelog/internal/app/client/config"
	"lifelog/internal/domain/entry"
)

const relayBuffer = 16

// App связывает локальное хранилище, транспорт и движок синхронизации.
// Жизненным циклом владеет точка входа CLI.
type App struct {
	config    *config.Config
	log       *slog.Logger
	storage   Storage
	transport *HTTPClient
	sync      *SyncService
	inbox     *Inbox
}

// CreateEntryRequest - поля новой записи, задаваемые пользователем.
type CreateEntryRequest struct {
	OccurredAt  time.Time
	Category    string
	Text        string
	Tags        []string
	Measurement *entry.Measurement
	Location    *entry.Location
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	// Инициализируем локальное хранилище (используем SQLite)
	var storage Storage
	sqliteStorage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		storage = NewMemoryStorage()
	} else {
		storage = sqliteStorage
	}

	return NewWithStorage(cfg, storage, log), nil
}

// NewWithStorage собирает приложение поверх готового хранилища.
func NewWithStorage(cfg *config.Config, storage Storage, log *slog.Logger) *App {
	transport := NewHTTPClient(cfg.ServerURL, cfg.Token, cfg.RequestTimeout, log)

	syncService := NewSyncService(storage, transport, SyncConfig{
		Token:        cfg.Token,
		BatchSize:    cfg.BatchSize,
		MetadataPath: cfg.MetadataPath,
		Interval:     cfg.SyncInterval,
	}, log)

	return &App{
		config:    cfg,
		log:       log,
		storage:   storage,
		transport: transport,
		sync:      syncService,
		inbox:     NewInbox(storage, log),
	}
}

// CreateEntry сохраняет новую запись локально как несинхронизированную.
func (a *App) CreateEntry(ctx context.Context, req CreateEntryRequest) (*entry.Entry, error) {
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	e := entry.New(a.config.Source, a.config.DeviceID, occurredAt)
	if c := strings.TrimSpace(req.Category); c != "" {
		e.Category = &c
	}
	if t := strings.TrimSpace(req.Text); t != "" {
		e.Payload.Text = &t
	}
	e.Payload.Tags = req.Tags
	e.Payload.Measurement = req.Measurement
	e.Payload.Location = req.Location
	e = e.Normalize()

	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := a.storage.Save(ctx, e); err != nil {
		return nil, err
	}

	a.log.Debug("Запись создана", "id", e.ID, "category", e.CategoryOrEmpty())
	return &e, nil
}

func (a *App) GetEntry(ctx context.Context, id uuid.UUID) (*LocalEntry, error) {
	return a.storage.Get(ctx, id)
}

// FetchRemote читает запись напрямую с сервера, не трогая локальное хранилище.
func (a *App) FetchRemote(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	return a.transport.FetchOne(ctx, id)
}

func (a *App) ListEntries(ctx context.Context, filter LocalFilter) ([]*LocalEntry, error) {
	return a.storage.List(ctx, filter)
}

// DeleteEntry удаляет запись только локально. На сервере она остается.
func (a *App) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return a.storage.Delete(ctx, id)
}

// Counts возвращает общее число локальных записей и число ожидающих выгрузки.
func (a *App) Counts(ctx context.Context) (total, pending int, err error) {
	total, err = a.storage.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	unsynced, err := a.storage.QueryUnsynced(ctx)
	if err != nil {
		return 0, 0, err
	}
	return total, len(unsynced), nil
}

// CheckConnection проверяет доступность сервера
func (a *App) CheckConnection(ctx context.Context) error {
	if err := a.transport.HealthCheck(ctx); err != nil {
		return fmt.Errorf("сервер %s недоступен: %w", a.config.ServerURL, err)
	}
	return nil
}

func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	return a.sync.Sync(ctx)
}

func (a *App) GetSyncService() *SyncService {
	return a.sync
}

// ReceiveFromPeer принимает записи, переданные соседним устройством:
// JSON-массив, одиночный объект или поток объектов. Записи проходят через
// relay в inbox и попадают в очередь выгрузки. Возвращает число переданных
// в relay записей.
func (a *App) ReceiveFromPeer(ctx context.Context, r io.Reader) (int, error) {
	relay := NewChannelRelay(relayBuffer, a.log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := relay.Run(ctx, a.inbox)
		if !errors.Is(err, ErrRelayClosed) {
			// разблокирует Send, если доставка оборвалась
			cancel()
		}
		done <- err
	}()

	sent, sendErr := a.sendDecoded(ctx, relay, r)
	relay.Close()

	runErr := <-done
	if errors.Is(runErr, ErrRelayClosed) {
		runErr = nil
	}
	if runErr != nil {
		return sent, runErr
	}
	if sendErr != nil {
		return sent, sendErr
	}

	a.log.Info("Записи получены от соседнего устройства", "count", sent)
	return sent, nil
}

func (a *App) sendDecoded(ctx context.Context, relay Relay, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	sent := 0

	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("некорректный JSON: %w", err)
		}

		var batch []entry.Entry
		raw = bytes.TrimSpace(raw)
		switch {
		case len(raw) > 0 && raw[0] == '[':
			err = json.Unmarshal(raw, &batch)
		case len(raw) > 0 && raw[0] == '{':
			var e entry.Entry
			err = json.Unmarshal(raw, &e)
			batch = []entry.Entry{e}
		default:
			err = errors.New("ожидался объект или массив записей")
		}
		if err != nil {
			return sent, fmt.Errorf("некорректная запись после %d принятых: %w", sent, err)
		}

		for _, e := range batch {
			if err := relay.Send(ctx, e); err != nil {
				return sent, err
			}
			sent++
		}
	}
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Close() error {
	return a.storage.Close()
}
