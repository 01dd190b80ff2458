package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"concurrency too low", func(c *Config) { c.Concurrency = 0 }, true},
		{"concurrency too high", func(c *Config) { c.Concurrency = 101 }, true},
		{"queue size zero", func(c *Config) { c.QueueSize = 0 }, true},
		{"job timeout too short", func(c *Config) { c.JobTimeout = time.Millisecond }, true},
		{"no attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"negative retry delay", func(c *Config) { c.RetryBaseDelay = -time.Second }, true},
		{"zero retry delay", func(c *Config) { c.RetryBaseDelay = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent error", NewPermanentError(context.Canceled), true},
		{"regular error", context.Canceled, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorker_ProcessesJobs(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	var mu sync.Mutex
	var got []any
	w.Register(HandlerFunc("echo", func(ctx context.Context, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, payload)
		return nil
	}))

	w.Start(context.Background())
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Enqueue("echo", i))
	}
	w.Stop()

	assert.ElementsMatch(t, []any{0, 1, 2, 3, 4}, got)
}

func TestWorker_RetriesUntilSuccess(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	w.Register(HandlerFunc("flaky", func(ctx context.Context, payload any) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	}))

	w.Start(context.Background())
	require.NoError(t, w.Enqueue("flaky", nil))

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWorker_PermanentErrorNotRetried(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	w.Register(HandlerFunc("broken", func(ctx context.Context, payload any) error {
		calls.Add(1)
		return NewPermanentError(errors.New("bad payload"))
	}))

	w.Start(context.Background())
	require.NoError(t, w.Enqueue("broken", nil))
	w.Stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestWorker_MaxAttemptsOption(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	w.Register(HandlerFunc("failing", func(ctx context.Context, payload any) error {
		calls.Add(1)
		return errors.New("always")
	}))

	w.Start(context.Background())
	require.NoError(t, w.Enqueue("failing", nil, WithMaxAttempts(1)))
	w.Stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestWorker_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	w, err := New(cfg, testLogger())
	require.NoError(t, err)

	// Not started: nothing drains the queue.
	require.NoError(t, w.Enqueue("any", 1))
	assert.ErrorIs(t, w.Enqueue("any", 2), ErrQueueFull)
	assert.Equal(t, 1, w.QueueLen())

	w.Register(HandlerFunc("any", func(ctx context.Context, payload any) error { return nil }))
	w.Start(context.Background())
	w.Stop()
}

func TestWorker_EnqueueAfterStop(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	w.Start(context.Background())
	w.Stop()
	w.Stop() // idempotent

	assert.ErrorIs(t, w.Enqueue("any", nil), ErrStopped)
}

func TestWorker_JobsSurviveParentCancellation(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	w.Register(HandlerFunc("ctx", func(ctx context.Context, payload any) error {
		done <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	require.NoError(t, w.Enqueue("ctx", nil))
	w.Stop()

	assert.NoError(t, <-done)
}

func TestWorker_UnknownJobType(t *testing.T) {
	w, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	w.Start(context.Background())
	require.NoError(t, w.Enqueue("nobody-handles-this", nil))
	w.Stop()

	assert.Equal(t, 0, w.QueueLen())
}
