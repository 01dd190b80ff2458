package analytics

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
	"github.com/DukeRupert/cardapiofacil/internal/storage"
	"github.com/DukeRupert/cardapiofacil/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Fakes
// =============================================================================

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []domain.FunnelEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Record(ctx context.Context, e domain.FunnelEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Stages() []domain.FunnelStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FunnelStage, len(s.events))
	for i, e := range s.events {
		out[i] = e.Stage
	}
	return out
}

type mockExecer struct {
	ExecContextFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (m *mockExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.ExecContextFunc(ctx, query, args...)
}

type memStorage struct {
	storage.Storage // unused methods panic

	mu      sync.Mutex
	objects map[string][]byte
	failPut error
	puts    int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Put(ctx context.Context, key string, data io.Reader, opts storage.PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut != nil {
		return m.failPut
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func (m *memStorage) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = err
}

func (m *memStorage) putCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *memStorage) all() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}

func newTestTracker(t *testing.T, queue Queue, sinks ...Sink) *Tracker {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HashKey = []byte("test-key")
	tr, err := NewTracker(cfg, sinks, queue, testLogger())
	require.NoError(t, err)
	t.Cleanup(tr.Stop)
	return tr
}

// =============================================================================
// Tracker
// =============================================================================

func TestNewTracker_Config(t *testing.T) {
	sink := &recordingSink{name: "a"}

	cfg := DefaultConfig()
	cfg.StartedTTL = 0
	_, err := NewTracker(cfg, nil, nil, testLogger())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.HashKey = bytes.Repeat([]byte("k"), 65)
	_, err = NewTracker(cfg, nil, nil, testLogger())
	assert.Error(t, err)

	_, err = NewTracker(DefaultConfig(), []Sink{sink, sink}, nil, testLogger())
	assert.Error(t, err)
}

func TestTracker_TrackSynchronous(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("down")}
	tr := newTestTracker(t, nil, a, b)

	tr.Track(context.Background(), domain.FunnelEvent{FormID: "f1", Stage: domain.StageAttempted})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1, "a failing sink still receives the event")
	e := a.events[0]
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.OccurredAt.IsZero())
	assert.Equal(t, a.events[0].ID, b.events[0].ID, "every sink sees the same event id")
}

func TestTracker_TrackKeepsGivenIDAndTime(t *testing.T) {
	a := &recordingSink{name: "a"}
	tr := newTestTracker(t, nil, a)

	id := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.Track(context.Background(), domain.FunnelEvent{ID: id, OccurredAt: at, Stage: domain.StageViewed})

	require.Len(t, a.events, 1)
	assert.Equal(t, id, a.events[0].ID)
	assert.Equal(t, at, a.events[0].OccurredAt)
}

func TestTracker_DropsUnknownStage(t *testing.T) {
	a := &recordingSink{name: "a"}
	tr := newTestTracker(t, nil, a)

	tr.Track(context.Background(), domain.FunnelEvent{Stage: "clicked"})

	assert.Empty(t, a.events)
}

func TestTracker_StartedFiresOncePerForm(t *testing.T) {
	a := &recordingSink{name: "a"}
	tr := newTestTracker(t, nil, a)
	ctx := context.Background()

	assert.True(t, tr.Started(ctx, domain.FunnelEvent{FormID: "f1"}))
	assert.False(t, tr.Started(ctx, domain.FunnelEvent{FormID: "f1"}))
	assert.False(t, tr.Started(ctx, domain.FunnelEvent{FormID: "f1"}))
	assert.True(t, tr.Started(ctx, domain.FunnelEvent{FormID: "f2"}))
	assert.False(t, tr.Started(ctx, domain.FunnelEvent{}), "no form id, no latch")

	assert.Equal(t, []domain.FunnelStage{domain.StageStarted, domain.StageStarted}, a.Stages())
}

func TestTracker_StartedLatchExpires(t *testing.T) {
	a := &recordingSink{name: "a"}
	tr := newTestTracker(t, nil, a)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	assert.True(t, tr.Started(context.Background(), domain.FunnelEvent{FormID: "f1"}))

	now = now.Add(DefaultConfig().StartedTTL)
	tr.latch.sweep()
	assert.Equal(t, 0, tr.latch.Len())

	assert.True(t, tr.Started(context.Background(), domain.FunnelEvent{FormID: "f1"}))
}

func TestTracker_HashPhone(t *testing.T) {
	tr := newTestTracker(t, nil)

	h := tr.HashPhone("(11) 99999-8888")
	assert.Len(t, h, 64)
	assert.Equal(t, h, tr.HashPhone("5511999998888"), "formatting does not change the hash")
	assert.NotEqual(t, h, tr.HashPhone("11999998887"))
	assert.Empty(t, tr.HashPhone(""))

	cfg := DefaultConfig()
	cfg.HashKey = []byte("other-key")
	other, err := NewTracker(cfg, nil, nil, testLogger())
	require.NoError(t, err)
	defer other.Stop()
	assert.NotEqual(t, h, other.HashPhone("11999998888"), "the key changes the hash")
}

func TestTracker_QueuedDelivery(t *testing.T) {
	wcfg := worker.DefaultConfig()
	wcfg.RetryBaseDelay = time.Millisecond
	w, err := worker.New(wcfg, testLogger())
	require.NoError(t, err)

	flaky := &flakySink{name: "flaky", failures: 1}
	steady := &recordingSink{name: "steady"}
	tr := newTestTracker(t, w, flaky, steady)
	w.Register(tr.Handler())

	w.Start(context.Background())
	tr.Track(context.Background(), domain.FunnelEvent{FormID: "f1", Stage: domain.StageSubmitted})
	w.Stop()

	assert.Equal(t, 2, flaky.calls, "failed sink is retried")
	assert.Len(t, steady.events, 1, "healthy sink is not retried")
}

func TestTracker_HandlerRejectsBadPayload(t *testing.T) {
	tr := newTestTracker(t, nil, &recordingSink{name: "a"})
	h := tr.Handler()

	assert.Equal(t, worker.JobTypeFunnelEvent, h.Type())
	assert.True(t, worker.IsPermanent(h.Handle(context.Background(), "nope")))
	assert.True(t, worker.IsPermanent(h.Handle(context.Background(), Delivery{Sink: "missing"})))
	assert.NoError(t, h.Handle(context.Background(), Delivery{Sink: "a", Event: domain.FunnelEvent{Stage: domain.StageViewed}}))
}

type flakySink struct {
	name     string
	failures int

	mu    sync.Mutex
	calls int
}

func (s *flakySink) Name() string { return s.name }

func (s *flakySink) Record(ctx context.Context, e domain.FunnelEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("temporary")
	}
	return nil
}

// =============================================================================
// Sinks
// =============================================================================

func TestMetricsSink(t *testing.T) {
	s := NewMetricsSink()
	ctx := context.Background()

	failed := metrics.FunnelEventsTotal.WithLabelValues("failed", "validation")
	completed := metrics.FunnelEventsTotal.WithLabelValues("completed", "sent")
	conversions := metrics.ExperimentConversionsTotal.WithLabelValues("variant-a")

	beforeFailed := testutil.ToFloat64(failed)
	beforeCompleted := testutil.ToFloat64(completed)
	beforeConv := testutil.ToFloat64(conversions)

	require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageFailed, FailureType: domain.FailureValidation}))
	require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageCompleted, WhatsAppStatus: "sent", Variant: domain.VariantA}))

	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
	assert.Equal(t, beforeCompleted+1, testutil.ToFloat64(completed))
	assert.Equal(t, beforeConv+1, testutil.ToFloat64(conversions))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, s.Record(context.Background(), domain.FunnelEvent{
		Stage:        domain.StageFailed,
		FormID:       "f1",
		FailureType:  domain.FailureValidation,
		FailedFields: []string{"name"},
	}))

	out := buf.String()
	assert.Contains(t, out, "stage=failed")
	assert.Contains(t, out, "detail=validation")
	assert.Contains(t, out, "form_id=f1")
}

func TestPostgresSink(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	db := &mockExecer{
		ExecContextFunc: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
			gotQuery = query
			gotArgs = args
			return nil, nil
		},
	}
	s := NewPostgresSink(db)

	e := domain.FunnelEvent{
		ID:           uuid.New(),
		Stage:        domain.StageFailed,
		FormID:       "f1",
		Variant:      domain.VariantB,
		FailureType:  domain.FailureValidation,
		FailedFields: []string{"name", "whatsapp"},
		OccurredAt:   time.Now().UTC(),
	}
	require.NoError(t, s.Record(context.Background(), e))

	assert.Contains(t, gotQuery, "INSERT INTO funnel_events")
	assert.Contains(t, gotQuery, "ON CONFLICT (id) DO NOTHING")
	require.Len(t, gotArgs, 9)
	assert.Equal(t, e.ID, gotArgs[0])
	assert.Equal(t, "failed", gotArgs[1])
	assert.Equal(t, sql.NullString{}, gotArgs[3], "empty visitor id is NULL")
	assert.Equal(t, sql.NullString{String: "variant-b", Valid: true}, gotArgs[4])

	arr, ok := gotArgs[5].(*pq.StringArray)
	require.True(t, ok)
	assert.Equal(t, pq.StringArray{"name", "whatsapp"}, *arr)

	props, ok := gotArgs[7].(pqtype.NullRawMessage)
	require.True(t, ok)
	assert.True(t, props.Valid)
	assert.JSONEq(t, `{"variant":"variant-b","error_type":"validation","fields":["name","whatsapp"]}`, string(props.RawMessage))
}

func TestPostgresSink_Error(t *testing.T) {
	db := &mockExecer{
		ExecContextFunc: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
			return nil, errors.New("connection refused")
		},
	}
	err := NewPostgresSink(db).Record(context.Background(), domain.FunnelEvent{Stage: domain.StageViewed})
	assert.ErrorContains(t, err, "connection refused")
}

func newTestArchive(t *testing.T, store storage.Storage, batch int) *ArchiveSink {
	t.Helper()
	s, err := NewArchiveSink(store, ArchiveConfig{BatchSize: batch, FlushInterval: time.Hour}, testLogger())
	require.NoError(t, err)
	return s
}

func TestArchiveSink_FlushesOnBatchSize(t *testing.T) {
	store := newMemStorage()
	s := newTestArchive(t, store, 2)
	defer s.Stop(context.Background())
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.FunnelEvent{ID: uuid.New(), Stage: domain.StageViewed, FormID: "f1"}))
	assert.Empty(t, store.all())
	assert.Equal(t, 1, s.Buffered())

	require.NoError(t, s.Record(ctx, domain.FunnelEvent{ID: uuid.New(), Stage: domain.StageStarted, FormID: "f1"}))

	objects := store.all()
	require.Len(t, objects, 1)
	for key, body := range objects {
		assert.True(t, strings.HasPrefix(key, "analytics/"))
		assert.True(t, strings.HasSuffix(key, ".ndjson"))
		lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"stage":"viewed"`)
		assert.Contains(t, lines[1], `"stage":"started"`)
	}
	assert.Equal(t, 0, s.Buffered())
}

func TestArchiveSink_StopFlushesRemainder(t *testing.T) {
	store := newMemStorage()
	s := newTestArchive(t, store, 100)

	require.NoError(t, s.Record(context.Background(), domain.FunnelEvent{Stage: domain.StageViewed}))
	s.Stop(context.Background())
	s.Stop(context.Background())

	assert.Len(t, store.all(), 1)
}

func TestArchiveSink_KeepsBatchWhenStorageFails(t *testing.T) {
	store := newMemStorage()
	store.setFail(errors.New("bucket unavailable"))
	s := newTestArchive(t, store, 1)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageViewed}))
	assert.Equal(t, 1, s.Buffered())

	store.setFail(nil)
	s.Stop(ctx)

	assert.Len(t, store.all(), 1)
	assert.Equal(t, 0, s.Buffered())
}

func TestArchiveSink_DropsOldestBeyondCap(t *testing.T) {
	store := newMemStorage()
	store.setFail(errors.New("bucket unavailable"))
	s, err := NewArchiveSink(store, ArchiveConfig{BatchSize: 1, FlushInterval: time.Hour, MaxBuffered: 2}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	for _, form := range []string{"f1", "f2", "f3"} {
		require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageViewed, FormID: form}))
	}
	assert.Equal(t, 2, s.Buffered())

	store.setFail(nil)
	s.Stop(ctx)

	for _, body := range store.all() {
		assert.NotContains(t, string(body), `"form_id":"f1"`)
		assert.Contains(t, string(body), `"form_id":"f3"`)
	}
}

func TestArchiveSink_WaitsOutFlushIntervalAfterFailure(t *testing.T) {
	store := newMemStorage()
	store.setFail(errors.New("bucket unavailable"))
	s := newTestArchive(t, store, 1)
	defer s.Stop(context.Background())
	ctx := context.Background()

	clock := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for range 5 {
		require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageViewed}))
	}
	assert.Equal(t, 1, store.putCalls())
	assert.Equal(t, 5, s.Buffered())

	store.setFail(nil)
	clock = clock.Add(30 * time.Minute)
	require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageStarted}))
	assert.Equal(t, 1, store.putCalls())

	clock = clock.Add(time.Hour)
	require.NoError(t, s.Record(ctx, domain.FunnelEvent{Stage: domain.StageStarted}))
	assert.Equal(t, 2, store.putCalls())
	assert.Equal(t, 0, s.Buffered())

	for _, body := range store.all() {
		assert.Len(t, strings.Split(strings.TrimSuffix(string(body), "\n"), "\n"), 7)
	}
}
