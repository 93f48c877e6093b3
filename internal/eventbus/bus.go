package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/metrics"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 8
)

// Handler consumes one envelope. A returned error is logged and counted; it is
// never propagated to the publisher or to other subscribers.
type Handler func(ctx context.Context, evt Envelope) error

// Params configure the event bus.
type Params struct {
	Logger    *logger.Logger
	Metrics   *metrics.BusMetrics
	QueueSize int
	Workers   int
	// DropHook is invoked when the dispatch queue is full and a delivery is
	// rejected. Optional.
	DropHook func(evt Envelope)
}

// Bus is the in-process publish/subscribe hub. Publish enqueues one delivery
// per matching subscriber onto a bounded worker pool and returns once enqueued.
type Bus struct {
	logg     *logger.Logger
	metrics  *metrics.BusMetrics
	queue    chan delivery
	dropHook func(evt Envelope)

	mu       sync.RWMutex
	subs     map[string][]Handler
	wildcard []Handler

	workers int
	wg      sync.WaitGroup
}

type delivery struct {
	evt     Envelope
	handler Handler
}

// New builds an event bus. Call Start before publishing.
func New(params Params) (*Bus, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	queueSize := params.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Bus{
		logg:     params.Logger,
		metrics:  params.Metrics,
		queue:    make(chan delivery, queueSize),
		dropHook: params.DropHook,
		subs:     map[string][]Handler{},
		workers:  workers,
	}, nil
}

// Start launches the worker pool. Workers drain the queue until ctx is canceled.
func (b *Bus) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}
}

// Wait blocks until all workers have exited.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Subscribe registers a handler for an exact event name, or for every event
// when name is the wildcard. Subscriptions are process-lifetime.
func (b *Bus) Subscribe(name string, handler Handler) {
	if handler == nil {
		return
	}
	if name == Wildcard {
		b.SubscribeAll(handler)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], handler)
}

// SubscribeAll registers a handler invoked for every published envelope.
func (b *Bus) SubscribeAll(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish constructs an envelope and enqueues one delivery per matching
// subscriber in registration order: exact-name subscribers first, then
// wildcard subscribers. It never blocks on handler completion and never
// propagates handler failure; a full queue drops the delivery and reports it
// through metrics and the drop hook.
func (b *Bus) Publish(ctx context.Context, name string, payload map[string]any, evtCtx EventContext) (Envelope, error) {
	if err := ValidateName(name); err != nil {
		return Envelope{}, err
	}

	evt := Envelope{
		ID:         uuid.New(),
		Name:       name,
		Payload:    payload,
		Context:    evtCtx,
		OccurredAt: time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[name])+len(b.wildcard))
	handlers = append(handlers, b.subs[name]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	b.metrics.IncPublished()

	for _, handler := range handlers {
		select {
		case b.queue <- delivery{evt: evt, handler: handler}:
		default:
			b.metrics.IncDropped()
			logCtx := b.logg.WithEventName(ctx, evt.Name)
			b.logg.Warn(logCtx, "bus queue full; delivery dropped")
			if b.dropHook != nil {
				b.dropHook(evt)
			}
		}
	}
	b.metrics.SetQueueDepth(len(b.queue))

	return evt, nil
}

func (b *Bus) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-b.queue:
			b.deliver(ctx, d)
			b.metrics.SetQueueDepth(len(b.queue))
		}
	}
}

// deliver invokes one handler, isolating errors and panics so a failing
// subscriber cannot affect other deliveries.
func (b *Bus) deliver(ctx context.Context, d delivery) {
	logCtx := b.logg.WithEventName(ctx, d.evt.Name)
	logCtx = b.logg.WithField(logCtx, "event_id", d.evt.ID.String())

	defer func() {
		if rec := recover(); rec != nil {
			b.metrics.IncHandlerFailure()
			b.logg.Error(logCtx, "bus handler panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := d.handler(ctx, d.evt); err != nil {
		b.metrics.IncHandlerFailure()
		b.logg.Error(logCtx, "bus handler failed", err)
	}
}
