package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"griefing/internal/metrics"
	"griefing/internal/models"
	"griefing/internal/services"
)

// Orchestrator fans events out to multiple services. It is the emitter
// agreements and registries publish to: Emit only queues the event, and a
// single worker started by Start delivers queued events in emission order.
type Orchestrator struct {
	services []services.Service

	processMu sync.Mutex // one event reaches the services at a time

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*models.Event
	pending  int // queued or being delivered
	running  bool
	stopping bool
	done     chan struct{}
}

// New creates a new Orchestrator with the given services
func New(services []services.Service) *Orchestrator {
	o := &Orchestrator{
		services: services,
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Start launches the delivery worker. Events are processed with ctx, not
// with the context of the operation that emitted them.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return
	}
	o.running = true
	o.stopping = false
	o.done = make(chan struct{})
	go o.run(ctx, o.done)
}

// Stop delivers what is already queued and waits for the worker to exit
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.stopping = true
	done := o.done
	o.cond.Broadcast()
	o.mu.Unlock()

	<-done
}

// Emit implements the agreement and registry emitter interfaces.
// It never waits on the services.
func (o *Orchestrator) Emit(ctx context.Context, ev *models.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.queue = append(o.queue, ev)
	o.pending++
	metrics.EventQueueDepth.Set(float64(len(o.queue)))
	o.cond.Broadcast()
}

// Flush waits until every event emitted so far has been delivered or ctx
// is done
func (o *Orchestrator) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.cond.Broadcast()
	})
	defer stop()

	o.mu.Lock()
	defer o.mu.Unlock()
	for o.pending > 0 && ctx.Err() == nil {
		o.cond.Wait()
	}
	if o.pending == 0 {
		return nil
	}
	return ctx.Err()
}

// Pending returns the number of events not yet delivered
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

func (o *Orchestrator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		o.mu.Lock()
		for len(o.queue) == 0 && !o.stopping {
			o.cond.Wait()
		}
		if len(o.queue) == 0 {
			o.running = false
			o.mu.Unlock()
			return
		}
		ev := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		metrics.EventQueueDepth.Set(float64(len(o.queue)))
		o.mu.Unlock()

		o.ProcessEvent(ctx, ev)

		o.mu.Lock()
		o.pending--
		o.cond.Broadcast()
		o.mu.Unlock()
	}
}

// ProcessEvent runs an event through all registered services and returns
// the number of services that failed
func (o *Orchestrator) ProcessEvent(ctx context.Context, ev *models.Event) int {
	o.processMu.Lock()
	defer o.processMu.Unlock()

	slog.Debug("Orchestrator: Processing event",
		"event_type", ev.EventType,
		"source_id", ev.SourceID,
		"sequence", ev.Sequence,
		"services_count", len(o.services),
	)

	failed := 0
	for _, service := range o.services {
		if err := service.Process(ctx, ev); err != nil {
			failed++
			slog.Error("Service processing failed",
				"service", service.Name(),
				"event_type", ev.EventType,
				"source_id", ev.SourceID,
				"error", err,
			)
			// Continue with the other services
		}
	}

	return failed
}

// Services returns the list of registered services (for inspection/testing)
func (o *Orchestrator) Services() []services.Service {
	return o.services
}
