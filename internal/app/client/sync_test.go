package client

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Upload(ctx context.Context, batch []entry.Entry) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockTransport) Download(ctx context.Context, filter entry.Filter) ([]entry.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entry.Entry), args.Error(1)
}

func (m *MockTransport) FetchOne(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.Entry), args.Error(1)
}

func (m *MockTransport) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func textEntry(text string, at time.Time) entry.Entry {
	e := entry.New(entry.SourcePhone, "phone-1", at)
	e.Payload.Text = &text
	return e
}

func seedUnsynced(t *testing.T, st Storage, n int) []entry.Entry {
	t.Helper()
	entries := make([]entry.Entry, n)
	for i := range entries {
		entries[i] = textEntry("note", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, st.Save(context.Background(), entries[i]))
	}
	return entries
}

func newTestSync(st Storage, tr Transport) *SyncService {
	return NewSyncService(st, tr, SyncConfig{Token: "tok"}, slog.Default())
}

func TestSync_UploadsInBatchesOf50(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	seeded := seedUnsynced(t, st, 120)

	tr := new(MockTransport)
	var sizes []int
	var sent []uuid.UUID
	tr.On("Upload", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		batch := args.Get(1).([]entry.Entry)
		sizes = append(sizes, len(batch))
		for _, e := range batch {
			sent = append(sent, e.ID)
		}
	}).Return(nil)
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{}, nil)

	res, err := newTestSync(st, tr).Sync(ctx)

	require.NoError(t, err)
	assert.Equal(t, []int{50, 50, 20}, sizes)
	assert.Equal(t, 120, res.Uploaded)
	assert.Equal(t, 3, res.Batches)
	tr.AssertNumberOfCalls(t, "Upload", 3)

	// порядок выгрузки - по времени события
	for i, e := range seeded {
		assert.Equal(t, e.ID, sent[i])
	}

	unsynced, err := st.QueryUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestSync_PartialProgressOnBatchFailure(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	seeded := seedUnsynced(t, st, 70)

	batchErr := &TransportError{Kind: ErrServer, Status: 503}
	tr := new(MockTransport)
	tr.On("Upload", mock.Anything, mock.MatchedBy(func(b []entry.Entry) bool { return len(b) == 50 })).Return(nil).Once()
	tr.On("Upload", mock.Anything, mock.MatchedBy(func(b []entry.Entry) bool { return len(b) == 20 })).Return(batchErr).Once()

	svc := newTestSync(st, tr)
	res, err := svc.Sync(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, 50, res.Uploaded)
	tr.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)

	for i, e := range seeded {
		le, err := st.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, i < 50, le.Synced, "entry %d", i)
	}

	assert.ErrorIs(t, svc.LastError(), ErrServer)
	stats := svc.GetStats()
	assert.Equal(t, 1, stats.FailedSyncs)
	_, synced := svc.LastSyncTime()
	assert.False(t, synced, "failed cycle does not move last sync time")
}

func TestSync_EmptyUnsyncedShortCircuits(t *testing.T) {
	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{}, nil)

	res, err := newTestSync(NewMemoryStorage(), tr).Sync(context.Background())

	require.NoError(t, err)
	assert.Zero(t, res.Uploaded)
	tr.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestSync_DownloadMergeServerWins(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()

	existing := textEntry("old", base)
	require.NoError(t, st.UpsertFromRemote(ctx, existing))
	before, err := st.Count(ctx)
	require.NoError(t, err)

	updated := existing
	newText := "new"
	updated.Payload.Text = &newText
	fresh := textEntry("fresh", base.Add(time.Hour))

	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{updated, fresh}, nil).Once()

	res, err := newTestSync(st, tr).Download(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Downloaded)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, res.Downloaded-res.Updated, res.Inserted)

	after, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	got, err := st.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text())
	assert.True(t, got.Synced)

	got, err = st.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

func TestSync_DownloadOverwritesUnsyncedLocalCopy(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	local := textEntry("local edit", base)
	require.NoError(t, st.Save(ctx, local))

	remote := local
	text := "server copy"
	remote.Payload.Text = &text

	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{remote}, nil)

	_, err := newTestSync(st, tr).Download(ctx)
	require.NoError(t, err)

	got, err := st.Get(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "server copy", got.Text())
	assert.True(t, got.Synced)
}

func TestSync_DownloadUsesLastSyncTimeAndPages(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	metaPath := filepath.Join(t.TempDir(), "sync.json")

	page := make([]entry.Entry, 3)
	for i := range page {
		page[i] = textEntry("p", base.Add(time.Duration(i)*time.Second))
	}

	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.MatchedBy(func(f entry.Filter) bool {
		return f.Since == nil && f.Offset == 0 && f.Limit == 3
	})).Return(page, nil).Once()
	tr.On("Download", mock.Anything, mock.MatchedBy(func(f entry.Filter) bool {
		return f.Since == nil && f.Offset == 3
	})).Return(page[:1], nil).Once()

	svc := NewSyncService(st, tr, SyncConfig{Token: "tok", DownloadPageSize: 3, MetadataPath: metaPath}, slog.Default())
	res, err := svc.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Downloaded)
	assert.Equal(t, 3, res.Inserted)
	tr.AssertExpectations(t)

	last, ok := svc.LastSyncTime()
	require.True(t, ok)
	assert.Equal(t, res.StartTime, last)

	// новый сервис читает время последней синхронизации из файла
	tr2 := new(MockTransport)
	tr2.On("Download", mock.Anything, mock.MatchedBy(func(f entry.Filter) bool {
		return f.Since != nil && f.Since.Equal(last)
	})).Return([]entry.Entry{}, nil).Once()

	svc2 := NewSyncService(st, tr2, SyncConfig{Token: "tok", MetadataPath: metaPath}, slog.Default())
	_, err = svc2.Download(ctx)
	require.NoError(t, err)
	tr2.AssertExpectations(t)
}

func TestSync_TombstonedEntryNotResurrected(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	e := textEntry("bye", base)
	require.NoError(t, st.UpsertFromRemote(ctx, e))
	require.NoError(t, st.Delete(ctx, e.ID))

	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{e}, nil)

	res, err := newTestSync(st, tr).Download(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedDeleted)
	assert.Zero(t, res.Downloaded)
	_, err = st.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSync_NoTokenIsSkippedWithoutError(t *testing.T) {
	st := NewMemoryStorage()
	seedUnsynced(t, st, 3)
	tr := new(MockTransport)

	svc := NewSyncService(st, tr, SyncConfig{}, slog.Default())
	res, err := svc.Sync(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, SkipNoCredentials, res.SkipReason)
	tr.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	tr.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestSync_ConcurrentCallIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	seedUnsynced(t, st, 1)

	entered := make(chan struct{})
	release := make(chan struct{})

	tr := new(MockTransport)
	tr.On("Upload", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil).Once()
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{}, nil).Once()

	svc := newTestSync(st, tr)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.Sync(ctx)
	}()

	<-entered
	assert.True(t, svc.IsSyncing())
	assert.Equal(t, StateUploading, svc.State())

	res, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, SkipInProgress, res.SkipReason)

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, StateIdle, svc.State())
	tr.AssertNumberOfCalls(t, "Upload", 1)
	tr.AssertNumberOfCalls(t, "Download", 1)
}

func TestSync_UnauthorizedPropagates(t *testing.T) {
	st := NewMemoryStorage()
	seedUnsynced(t, st, 2)

	tr := new(MockTransport)
	tr.On("Upload", mock.Anything, mock.Anything).Return(&TransportError{Kind: ErrUnauthorized, Status: 401})

	_, err := newTestSync(st, tr).Sync(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, Retryable(err))
}

func TestSync_ProgressReportedPerBatch(t *testing.T) {
	st := NewMemoryStorage()
	seedUnsynced(t, st, 60)

	tr := new(MockTransport)
	tr.On("Upload", mock.Anything, mock.Anything).Return(nil)

	svc := newTestSync(st, tr)
	var calls [][2]int
	svc.OnProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})

	_, err := svc.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{50, 60}, {60, 60}}, calls)
	tr.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestStartAutoSync_StopsOnUnauthorized(t *testing.T) {
	st := NewMemoryStorage()
	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.Anything).Return(nil, &TransportError{Kind: ErrUnauthorized, Status: 401})

	svc := NewSyncService(st, tr, SyncConfig{Token: "tok", Interval: time.Hour}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := svc.StartAutoSync(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	tr.AssertNumberOfCalls(t, "Download", 1)
}

func TestStartAutoSync_RetriesTransientErrors(t *testing.T) {
	st := NewMemoryStorage()
	tr := new(MockTransport)
	tr.On("Download", mock.Anything, mock.Anything).
		Return(nil, &TransportError{Kind: ErrConnectivity, Err: errors.New("refused")}).Once()
	tr.On("Download", mock.Anything, mock.Anything).Return([]entry.Entry{}, nil)

	svc := NewSyncService(st, tr, SyncConfig{
		Token:        "tok",
		Interval:     time.Hour,
		RetryInitial: 10 * time.Millisecond,
		RetryMax:     20 * time.Millisecond,
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.StartAutoSync(ctx) }()

	require.Eventually(t, func() bool {
		return svc.GetStats().TotalSyncs >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	assert.NoError(t, <-done)
	stats := svc.GetStats()
	assert.Equal(t, 1, stats.FailedSyncs)
	assert.NoError(t, svc.LastError())
}
