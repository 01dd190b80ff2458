package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
	"github.com/DukeRupert/cardapiofacil/internal/storage"
)

// ArchiveConfig tunes ArchiveSink.
type ArchiveConfig struct {
	// BatchSize flushes once this many events are buffered.
	BatchSize int

	// FlushInterval flushes whatever is buffered on this period.
	FlushInterval time.Duration

	// MaxBuffered caps events kept while storage is failing. The oldest
	// are dropped first. Defaults to ten batches.
	MaxBuffered int
}

type archiveRecord struct {
	ID         uuid.UUID      `json:"id"`
	Stage      string         `json:"stage"`
	FormID     string         `json:"form_id"`
	VisitorID  string         `json:"visitor_id,omitempty"`
	PhoneHash  string         `json:"phone_hash,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ArchiveSink buffers events as NDJSON lines and writes them to object
// storage in batches.
type ArchiveSink struct {
	store  storage.Storage
	cfg    ArchiveConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lines    [][]byte
	failedAt time.Time

	flushMu sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewArchiveSink starts the periodic flusher. Call Stop to flush the
// remainder and release it.
func NewArchiveSink(store storage.Storage, cfg ArchiveConfig, logger *slog.Logger) (*ArchiveSink, error) {
	if cfg.BatchSize <= 0 {
		return nil, errors.New("archive: batch size must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, errors.New("archive: flush interval must be positive")
	}
	if cfg.MaxBuffered < cfg.BatchSize {
		cfg.MaxBuffered = cfg.BatchSize * 10
	}

	s := &ArchiveSink{
		store:  store,
		cfg:    cfg,
		logger: logger.With("sink", "archive"),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

func (s *ArchiveSink) Name() string { return "archive" }

// Record buffers e. A full batch is flushed before returning unless a flush
// failed within the last FlushInterval; the periodic flusher retries those.
// A failed flush keeps the lines for the next attempt and is only logged,
// since returning it would make the worker buffer the event twice.
func (s *ArchiveSink) Record(ctx context.Context, e domain.FunnelEvent) error {
	line, err := json.Marshal(archiveRecord{
		ID:         e.ID,
		Stage:      string(e.Stage),
		FormID:     e.FormID,
		VisitorID:  e.VisitorID,
		PhoneHash:  e.PhoneHash,
		Properties: e.Properties(),
		OccurredAt: e.OccurredAt,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lines = s.trimLocked(append(s.lines, line))
	full := len(s.lines) >= s.cfg.BatchSize && !s.backingOffLocked()
	s.mu.Unlock()

	if full {
		s.Flush(ctx)
	}
	return nil
}

// Buffered returns the number of events waiting to be written.
func (s *ArchiveSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Flush writes the buffered events as one object.
func (s *ArchiveSink) Flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.lines
	s.lines = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	key := storage.ArchiveKey(s.now(), uuid.New())
	body := bytes.Join(batch, []byte("\n"))
	body = append(body, '\n')

	err := s.store.Put(ctx, key, bytes.NewReader(body), storage.PutOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		metrics.ArchiveBatchesTotal.WithLabelValues("failed").Inc()
		s.logger.Error("archive flush failed", "events", len(batch), "error", err)
		s.requeue(batch)
		return
	}

	s.mu.Lock()
	s.failedAt = time.Time{}
	s.mu.Unlock()

	metrics.ArchiveBatchesTotal.WithLabelValues("written").Inc()
	s.logger.Debug("archive batch written", "key", key, "events", len(batch))
}

// requeue puts a failed batch back in front of newer lines and starts the
// backoff window.
func (s *ArchiveSink) requeue(batch [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = s.trimLocked(append(batch, s.lines...))
	s.failedAt = s.now()
}

// trimLocked drops the oldest lines beyond MaxBuffered.
func (s *ArchiveSink) trimLocked(lines [][]byte) [][]byte {
	if over := len(lines) - s.cfg.MaxBuffered; over > 0 {
		s.logger.Warn("archive buffer full, dropping oldest events", "dropped", over)
		return lines[over:]
	}
	return lines
}

func (s *ArchiveSink) backingOffLocked() bool {
	return !s.failedAt.IsZero() && s.now().Sub(s.failedAt) < s.cfg.FlushInterval
}

func (s *ArchiveSink) flushLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushInterval)
			s.Flush(ctx)
			cancel()
		case <-s.stop:
			return
		}
	}
}

// Stop ends the flusher and writes what is left, bounded by ctx.
func (s *ArchiveSink) Stop(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.Flush(ctx)
}
