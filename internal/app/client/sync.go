package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

const (
	defaultDownloadPageSize = 100
	maxDownloadPageSize     = 1000
	defaultSyncInterval     = 5 * time.Minute
	defaultRetryInitial     = 10 * time.Second
	defaultRetryMax         = 5 * time.Minute

	SkipInProgress    = "in progress"
	SkipNoCredentials = "no credentials"
)

// SyncState - фаза цикла синхронизации.
type SyncState int32

const (
	StateIdle SyncState = iota
	StateUploading
	StateDownloading
)

func (s SyncState) String() string {
	switch s {
	case StateUploading:
		return "uploading"
	case StateDownloading:
		return "downloading"
	default:
		return "idle"
	}
}

// SyncConfig конфигурация синхронизации
type SyncConfig struct {
	// Token - признак наличия учетных данных. Пустой токен выключает синхронизацию.
	Token            string
	BatchSize        int
	DownloadPageSize int
	// MetadataPath - JSON-файл с временем последней синхронизации; пусто - только в памяти.
	MetadataPath string
	Interval     time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.DownloadPageSize <= 0 {
		c.DownloadPageSize = defaultDownloadPageSize
	}
	if c.DownloadPageSize > maxDownloadPageSize {
		c.DownloadPageSize = maxDownloadPageSize
	}
	if c.Interval <= 0 {
		c.Interval = defaultSyncInterval
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = defaultRetryInitial
	}
	if c.RetryMax <= 0 {
		c.RetryMax = defaultRetryMax
	}
	return c
}

// SyncStats статистика синхронизации
type SyncStats struct {
	TotalSyncs      int           `json:"total_syncs"`
	FailedSyncs     int           `json:"failed_syncs"`
	SkippedSyncs    int           `json:"skipped_syncs"`
	TotalUploaded   int           `json:"total_uploaded"`
	TotalDownloaded int           `json:"total_downloaded"`
	LastSuccessful  time.Time     `json:"last_successful"`
	LastFailed      time.Time     `json:"last_failed"`
	AvgSyncDuration time.Duration `json:"avg_sync_duration"`
}

// SyncResult результат синхронизации
type SyncResult struct {
	Uploaded       int           `json:"uploaded"`
	Batches        int           `json:"batches"`
	Downloaded     int           `json:"downloaded"`
	Inserted       int           `json:"inserted"`
	Updated        int           `json:"updated"`
	SkippedDeleted int           `json:"skipped_deleted"`
	Skipped        bool          `json:"skipped"`
	SkipReason     string        `json:"skip_reason,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
}

// syncMetadata - то, что переживает перезапуск процесса.
type syncMetadata struct {
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}

// ProgressFunc вызывается после каждой подтвержденной сервером пачки.
type ProgressFunc func(done, total int)

type phase int

const (
	phaseUpload phase = 1 << iota
	phaseDownload
)

// SyncService управляет синхронизацией данных между клиентом и сервером:
// сначала выгрузка несинхронизированных записей пачками, затем загрузка
// серверных записей, при которой серверная копия всегда побеждает.
type SyncService struct {
	storage   Storage
	transport Transport
	config    SyncConfig
	log       *slog.Logger

	state atomic.Int32

	mu        sync.Mutex
	isSyncing bool
	lastSync  *time.Time
	lastErr   error
	stats     SyncStats
	progress  ProgressFunc
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(storage Storage, transport Transport, cfg SyncConfig, log *slog.Logger) *SyncService {
	s := &SyncService{
		storage:   storage,
		transport: transport,
		config:    cfg.withDefaults(),
		log:       log.With("component", "sync"),
	}

	if meta, err := loadMetadata(s.config.MetadataPath); err != nil {
		s.log.Warn("Не удалось прочитать метаданные синхронизации", "path", s.config.MetadataPath, "error", err)
	} else {
		s.lastSync = meta.LastSyncTime
	}

	return s
}

// OnProgress задает обработчик прогресса выгрузки.
func (s *SyncService) OnProgress(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

// Sync выполняет полный цикл: выгрузка, затем загрузка. Первая ошибка прерывает цикл.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, phaseUpload|phaseDownload)
}

// Upload выполняет только фазу выгрузки.
func (s *SyncService) Upload(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, phaseUpload)
}

// Download выполняет только фазу загрузки.
func (s *SyncService) Download(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, phaseDownload)
}

func (s *SyncService) run(ctx context.Context, phases phase) (*SyncResult, error) {
	result := &SyncResult{StartTime: time.Now().UTC()}

	if s.config.Token == "" {
		s.log.Debug("Нет токена, синхронизация пропущена")
		return s.skip(result, SkipNoCredentials), nil
	}

	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.log.Debug("Синхронизация уже выполняется, вызов пропущен")
		return s.skip(result, SkipInProgress), nil
	}
	s.isSyncing = true
	since := s.lastSync
	s.mu.Unlock()

	defer func() {
		s.state.Store(int32(StateIdle))
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	s.log.Info("Начало синхронизации", "start_time", result.StartTime)

	var err error
	if phases&phaseUpload != 0 {
		s.state.Store(int32(StateUploading))
		err = s.upload(ctx, result)
	}
	if err == nil && phases&phaseDownload != 0 {
		s.state.Store(int32(StateDownloading))
		err = s.download(ctx, since, result)
	}

	s.finish(result, phases, err)
	return result, err
}

func (s *SyncService) upload(ctx context.Context, result *SyncResult) error {
	unsynced, err := s.storage.QueryUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения несинхронизированных записей: %w", err)
	}
	if len(unsynced) == 0 {
		s.log.Debug("Нет записей для выгрузки")
		return nil
	}

	total := len(unsynced)
	batches := (total + s.config.BatchSize - 1) / s.config.BatchSize

	for start := 0; start < total; start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, total)
		batch := unsynced[start:end]
		n := start/s.config.BatchSize + 1

		if err := s.transport.Upload(ctx, batch); err != nil {
			s.log.Error("Ошибка выгрузки пачки", "batch", n, "batches", batches, "error", err)
			return fmt.Errorf("выгрузка пачки %d из %d: %w", n, batches, err)
		}

		ids := make([]uuid.UUID, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}
		if err := s.storage.MarkSynced(ctx, ids); err != nil {
			return fmt.Errorf("ошибка отметки пачки %d: %w", n, err)
		}

		result.Uploaded += len(batch)
		result.Batches++
		s.log.Debug("Пачка выгружена", "batch", n, "batches", batches, "size", len(batch))
		s.reportProgress(result.Uploaded, total)
	}

	return nil
}

func (s *SyncService) download(ctx context.Context, since *time.Time, result *SyncResult) error {
	known, err := s.storage.AllIDs(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения локальных id: %w", err)
	}

	filter := entry.Filter{Since: since, Limit: s.config.DownloadPageSize}
	for {
		page, err := s.transport.Download(ctx, filter)
		if err != nil {
			return fmt.Errorf("загрузка с сервера: %w", err)
		}

		for _, e := range page {
			if err := s.merge(ctx, e, known, result); err != nil {
				return err
			}
		}

		if len(page) < filter.Limit {
			return nil
		}
		filter.Offset += len(page)
	}
}

// merge применяет одну серверную запись. Серверная копия побеждает всегда.
func (s *SyncService) merge(ctx context.Context, e entry.Entry, known map[uuid.UUID]struct{}, result *SyncResult) error {
	gone, err := s.storage.IsDeleted(ctx, e.ID)
	if err != nil {
		return err
	}
	if gone {
		result.SkippedDeleted++
		return nil
	}

	if err := s.storage.UpsertFromRemote(ctx, e); err != nil {
		return fmt.Errorf("ошибка сохранения записи %s: %w", e.ID, err)
	}

	if _, ok := known[e.ID]; ok {
		result.Updated++
	} else {
		result.Inserted++
		known[e.ID] = struct{}{}
	}
	result.Downloaded++
	return nil
}

func (s *SyncService) skip(result *SyncResult, reason string) *SyncResult {
	result.Skipped = true
	result.SkipReason = reason
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)

	s.mu.Lock()
	s.stats.SkippedSyncs++
	s.mu.Unlock()

	return result
}

func (s *SyncService) finish(result *SyncResult, phases phase, err error) {
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalSyncs++
	s.stats.TotalUploaded += result.Uploaded
	s.stats.TotalDownloaded += result.Downloaded
	n := time.Duration(s.stats.TotalSyncs)
	s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*(n-1) + result.Duration) / n

	if err != nil {
		s.lastErr = err
		s.stats.FailedSyncs++
		s.stats.LastFailed = result.EndTime
		s.log.Error("Синхронизация завершилась ошибкой", "error", err, "uploaded", result.Uploaded)
		return
	}

	s.lastErr = nil
	s.stats.LastSuccessful = result.EndTime

	if phases&phaseDownload != 0 {
		start := result.StartTime
		s.lastSync = &start
		if err := saveMetadata(s.config.MetadataPath, syncMetadata{LastSyncTime: &start}); err != nil {
			s.log.Warn("Не удалось сохранить метаданные синхронизации", "error", err)
		}
	}

	s.log.Info("Синхронизация завершена",
		"uploaded", result.Uploaded,
		"batches", result.Batches,
		"downloaded", result.Downloaded,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"duration", result.Duration,
	)
}

func (s *SyncService) reportProgress(done, total int) {
	s.mu.Lock()
	fn := s.progress
	s.mu.Unlock()

	if fn != nil {
		fn(done, total)
	}
}

// StartAutoSync запускает синхронизацию сразу и затем каждые Interval.
// После ошибки следующая попытка откладывается по экспоненте.
// Отказ в авторизации останавливает цикл и возвращается вызывающему.
func (s *SyncService) StartAutoSync(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.RetryInitial
	b.MaxInterval = s.config.RetryMax
	b.MaxElapsedTime = 0
	b.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	s.log.Info("Автосинхронизация запущена", "interval", s.config.Interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Автосинхронизация остановлена")
			return nil
		case <-timer.C:
		}

		_, err := s.Sync(ctx)
		switch {
		case err == nil:
			b.Reset()
			timer.Reset(s.config.Interval)
		case errors.Is(err, context.Canceled):
			return nil
		case !Retryable(err):
			s.log.Error("Автосинхронизация остановлена: ошибка не исправится повтором", "error", err)
			return err
		default:
			next := b.NextBackOff()
			if next == backoff.Stop {
				next = s.config.Interval
			}
			s.log.Warn("Повтор синхронизации отложен", "delay", next, "error", err)
			timer.Reset(next)
		}
	}
}

// State возвращает текущую фазу цикла.
func (s *SyncService) State() SyncState {
	return SyncState(s.state.Load())
}

func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSyncing
}

// LastError - ошибка последнего завершенного цикла или nil.
func (s *SyncService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastSyncTime - начало последнего успешного цикла с загрузкой.
func (s *SyncService) LastSyncTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSync == nil {
		return time.Time{}, false
	}
	return *s.lastSync, true
}

func (s *SyncService) GetStats() SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func loadMetadata(path string) (syncMetadata, error) {
	var meta syncMetadata
	if path == "" {
		return meta, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}

	if err := json.Unmarshal(data, &meta); err != nil {
		return syncMetadata{}, fmt.Errorf("ошибка парсинга %s: %w", path, err)
	}
	return meta, nil
}

// saveMetadata пишет файл атомарно через переименование временного.
func saveMetadata(path string, meta syncMetadata) error {
	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sync-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
