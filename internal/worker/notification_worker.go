package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/events"
)

// DefaultNotificationBuffer is the queue size used when none is given.
const DefaultNotificationBuffer = 256

// drainTimeout bounds how long Stop spends delivering queued events.
const drainTimeout = 5 * time.Second

// Notifier delivers one event to operators.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification delivery off the request path.
// Events are queued by a dispatcher subscription and delivered by a single
// goroutine; a full queue drops the event rather than blocking the publisher.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	queue    chan events.Event
	dropped  atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotificationWorker creates a stopped worker.
func NewNotificationWorker(notifier Notifier, logger *zap.Logger, buffer int) *NotificationWorker {
	if buffer <= 0 {
		buffer = DefaultNotificationBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan events.Event, buffer),
	}
}

// Register subscribes the worker to every event on the dispatcher.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(w.enqueue)
}

// Dropped reports how many events were discarded because the queue was full.
func (w *NotificationWorker) Dropped() int64 {
	return w.dropped.Load()
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.dropped.Add(1)
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
		)
	}
	return nil
}

// Start launches the delivery loop. Calling Start on a running worker is a
// no-op.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop ends the loop after delivering whatever is already queued.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *NotificationWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event := <-w.queue:
			w.deliver(ctx, event)
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

func (w *NotificationWorker) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.queue:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.notifier.Notify(ctx, event); err != nil {
		w.logger.Warn("notification failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}
