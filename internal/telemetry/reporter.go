// Package telemetry ships one event per instruction attempt. Delivery is
// fire-and-forget: a full queue or a failing sink never slows the caller.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"browser-pilot/internal/entity"
)

const (
	BuildLabel  = "pilot-build"
	LaunchLabel = "pilot-launch"
)

// Reporter accepts events from the pipeline and hands them to a Sink on one
// background goroutine.
type Reporter struct {
	sink   Sink
	queue  chan entity.TelemetryEvent
	logger *zap.Logger

	sendTimeout     time.Duration
	shutdownTimeout time.Duration
	onDrop          func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type Option func(*Reporter)

// WithSendTimeout bounds a single Sink.Send call.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Reporter) { r.sendTimeout = d }
}

// WithShutdownTimeout bounds how long Close waits for queued events.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Reporter) { r.shutdownTimeout = d }
}

// WithDropHook is called every time an event is discarded.
func WithDropHook(fn func()) Option {
	return func(r *Reporter) { r.onDrop = fn }
}

func NewReporter(sink Sink, queueSize int, logger *zap.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = Nop{}
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		sink:            sink,
		queue:           make(chan entity.TelemetryEvent, queueSize),
		logger:          logger,
		sendTimeout:     10 * time.Second,
		shutdownTimeout: 5 * time.Second,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.run()
	return r
}

// Report enqueues ev without blocking. ID and Timestamp are filled when empty.
func (r *Reporter) Report(ev entity.TelemetryEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ev, "reporter closed")
		return
	}

	select {
	case r.queue <- ev:
	default:
		r.drop(ev, "queue full")
	}
}

// Dropped is the number of events discarded so far.
func (r *Reporter) Dropped() int64 { return r.dropped.Load() }

// Close stops accepting events and waits for the queue to drain, up to the
// shutdown timeout. Safe to call more than once.
func (r *Reporter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	remaining := len(r.queue)
	close(r.queue)
	r.mu.Unlock()

	r.logger.Debug("telemetry reporter closing", zap.Int("queue_remaining", remaining))

	select {
	case <-r.done:
	case <-time.After(r.shutdownTimeout):
		r.logger.Warn("telemetry shutdown timeout, abandoning queued events")
		r.cancel()
		<-r.done
	}
	r.cancel()
	return nil
}

func (r *Reporter) run() {
	defer close(r.done)

	for ev := range r.queue {
		if r.ctx.Err() != nil {
			r.drop(ev, "reporter cancelled")
			continue
		}
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.ctx, r.sendTimeout)
		err := r.sink.Send(ctx, ev)
		cancel()
		if err != nil {
			r.logger.Debug("telemetry delivery failed",
				zap.String("event_id", ev.ID),
				zap.String("label", ev.SessionLabel),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("telemetry delivered",
			zap.String("event_id", ev.ID),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (r *Reporter) drop(ev entity.TelemetryEvent, reason string) {
	r.dropped.Add(1)
	if r.onDrop != nil {
		r.onDrop()
	}
	r.logger.Debug("telemetry event dropped",
		zap.String("event_id", ev.ID),
		zap.String("reason", reason),
	)
}
