package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
)

// AuditSink receives login events. Implementations must be safe for concurrent use.
type AuditSink interface {
	Emit(ctx context.Context, event model.LoginEvent)
}

type NoopAuditSink struct{}

func (NoopAuditSink) Emit(context.Context, model.LoginEvent) {}

// LogAuditSink writes login events to the service log.
type LogAuditSink struct {
	logger *zerolog.Logger
}

func NewLogAuditSink(logger *zerolog.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger}
}

func (s *LogAuditSink) Emit(_ context.Context, event model.LoginEvent) {
	s.logger.Info().
		Str("event", "login").
		Str("username", event.Username).
		Bool("success", event.Success).
		Time("attempted_at", event.Timestamp).
		Msg("login attempt")
}

// MirrorAuditSink appends login events to the mirror's login_events collection.
type MirrorAuditSink struct {
	repo    repository.LoginEventRepository
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewMirrorAuditSink(
	repo repository.LoginEventRepository,
	timeout time.Duration,
	logger *zerolog.Logger,
) *MirrorAuditSink {
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}

	return &MirrorAuditSink{repo: repo, timeout: timeout, logger: logger}
}

func (s *MirrorAuditSink) Emit(ctx context.Context, event model.LoginEvent) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.RecordLoginEvent(ctx, &event); err != nil {
		s.logger.Warn().Err(degraded("record login event", err)).Str("username", event.Username).Msg("login event not recorded")
	}
}

// MultiAuditSink fans an event out to every sink in order.
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Emit(ctx context.Context, event model.LoginEvent) {
	for _, sink := range m {
		sink.Emit(ctx, event)
	}
}

// AuditDispatcher decouples callers from a slow sink. Emit never blocks: events
// are queued on a bounded buffer and dropped (and counted) when it is full or the
// dispatcher is closed. A single worker delivers queued events in order.
type AuditDispatcher struct {
	sink      AuditSink
	ch        chan model.LoginEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once

	// mu orders every send on ch before close(done), so the drain sees them all.
	mu     sync.RWMutex
	closed bool
}

func NewAuditDispatcher(sink AuditSink, bufferSize int) *AuditDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if sink == nil {
		sink = NoopAuditSink{}
	}

	d := &AuditDispatcher{
		sink: sink,
		ch:   make(chan model.LoginEvent, bufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *AuditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *AuditDispatcher) Emit(_ context.Context, event model.LoginEvent) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *AuditDispatcher) Close() {
	if d == nil {
		return
	}

	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()

		d.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the buffer was full or
// the dispatcher was already closed.
func (d *AuditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
