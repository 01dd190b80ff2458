// Package analytics records signup funnel events.
//
// The Tracker stamps each event and hands it to every configured Sink.
// With a worker queue the delivery is asynchronous, one job per sink, so a
// slow or failing sink never delays a request and a retry only repeats
// the sink that failed. Without a queue, sinks run inline.
package analytics

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/form"
	"github.com/DukeRupert/cardapiofacil/internal/worker"
)

// Sink stores or forwards funnel events.
type Sink interface {
	Name() string
	Record(ctx context.Context, e domain.FunnelEvent) error
}

// Queue accepts background jobs. *worker.Worker satisfies it.
type Queue interface {
	Enqueue(jobType string, payload any, opts ...worker.EnqueueOption) error
}

// Delivery is the job payload: one event bound for one sink.
type Delivery struct {
	Sink  string
	Event domain.FunnelEvent
}

// Config tunes the Tracker.
type Config struct {
	// StartedTTL is how long a form id stays latched after its first
	// interaction. A form left open longer than this may report
	// "started" again.
	StartedTTL time.Duration

	// SweepInterval is how often expired latch entries are removed.
	SweepInterval time.Duration

	// HashKey keys the phone hash. Up to 64 bytes; longer keys are
	// rejected by NewTracker.
	HashKey []byte
}

// DefaultConfig returns a Config suitable for production.
func DefaultConfig() Config {
	return Config{
		StartedTTL:    2 * time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

// Tracker relays funnel events to sinks and owns the per-form "started"
// latch.
type Tracker struct {
	sinks  map[string]Sink
	order  []string
	queue  Queue
	latch  *latch
	key    []byte
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker starts the latch sweeper. Call Stop to release it. queue may
// be nil, in which case Track records synchronously.
func NewTracker(cfg Config, sinks []Sink, queue Queue, logger *slog.Logger) (*Tracker, error) {
	if cfg.StartedTTL <= 0 {
		return nil, errors.New("analytics: started TTL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return nil, errors.New("analytics: sweep interval must be positive")
	}
	if len(cfg.HashKey) > blake2b.Size {
		return nil, fmt.Errorf("analytics: hash key longer than %d bytes", blake2b.Size)
	}

	t := &Tracker{
		sinks:  make(map[string]Sink, len(sinks)),
		queue:  queue,
		key:    cfg.HashKey,
		logger: logger.With("component", "analytics"),
		now:    time.Now,
	}
	for _, s := range sinks {
		if _, dup := t.sinks[s.Name()]; dup {
			return nil, fmt.Errorf("analytics: duplicate sink %q", s.Name())
		}
		t.sinks[s.Name()] = s
		t.order = append(t.order, s.Name())
	}
	t.latch = newLatch(cfg.StartedTTL, cfg.SweepInterval, func() time.Time { return t.now() })

	return t, nil
}

// Track stamps e with an id and time when missing and delivers it to every
// sink. It never blocks on a sink and never fails the caller.
func (t *Tracker) Track(ctx context.Context, e domain.FunnelEvent) {
	if !e.Stage.IsValid() {
		t.logger.Warn("dropping funnel event with unknown stage", "stage", e.Stage)
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = t.now().UTC()
	}

	for _, name := range t.order {
		if t.queue == nil {
			t.record(ctx, t.sinks[name], e)
			continue
		}
		if err := t.queue.Enqueue(worker.JobTypeFunnelEvent, Delivery{Sink: name, Event: e}); err != nil {
			t.logger.Warn("funnel event not queued",
				"sink", name,
				"stage", e.Stage,
				"form_id", e.FormID,
				"error", err,
			)
		}
	}
}

// Started emits a "started" event the first time it sees formID and
// reports whether it did.
func (t *Tracker) Started(ctx context.Context, e domain.FunnelEvent) bool {
	if e.FormID == "" || !t.latch.Fire(e.FormID) {
		return false
	}
	e.Stage = domain.StageStarted
	t.Track(ctx, e)
	return true
}

// HashPhone returns a keyed BLAKE2b-256 digest of the phone in dial
// format, so one number hashes the same however it was typed.
func (t *Tracker) HashPhone(phone string) string {
	digits := form.PrepareWhatsAppNumber(phone)
	if digits == form.CountryCodeBR {
		return ""
	}
	h, err := blake2b.New256(t.key)
	if err != nil {
		// Key length is checked in NewTracker.
		panic(err)
	}
	h.Write([]byte(digits))
	return hex.EncodeToString(h.Sum(nil))
}

// Handler returns the job handler that performs queued deliveries.
func (t *Tracker) Handler() worker.JobHandler {
	return worker.HandlerFunc(worker.JobTypeFunnelEvent, func(ctx context.Context, payload any) error {
		d, ok := payload.(Delivery)
		if !ok {
			return worker.NewPermanentError(fmt.Errorf("unexpected payload %T", payload))
		}
		sink, ok := t.sinks[d.Sink]
		if !ok {
			return worker.NewPermanentError(fmt.Errorf("unknown sink %q", d.Sink))
		}
		return sink.Record(ctx, d.Event)
	})
}

// Stop halts the latch sweeper.
func (t *Tracker) Stop() {
	t.latch.Stop()
}

func (t *Tracker) record(ctx context.Context, s Sink, e domain.FunnelEvent) {
	if err := s.Record(ctx, e); err != nil {
		t.logger.Warn("funnel sink failed",
			"sink", s.Name(),
			"stage", e.Stage,
			"form_id", e.FormID,
			"error", err,
		)
	}
}
