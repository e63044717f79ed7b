package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// Handler processes one job payload to completion.
type Handler func(ctx context.Context, payload *domain.JobPayload) error

// Worker drains job queues and dispatches payloads to registered handlers.
// One goroutine per registered job type; unregistered types are simply never
// consumed here, leaving their queues for other services.
type Worker struct {
	broker     ports.Broker
	popTimeout time.Duration
	handlers   map[domain.JobType]Handler
}

// NewWorker creates a worker. popTimeout bounds each blocking pop so the
// loops notice context cancellation promptly.
func NewWorker(broker ports.Broker, popTimeout time.Duration) *Worker {
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	return &Worker{
		broker:     broker,
		popTimeout: popTimeout,
		handlers:   make(map[domain.JobType]Handler),
	}
}

// Register binds a handler to a job type. Not safe to call after Run.
func (w *Worker) Register(jobType domain.JobType, h Handler) {
	w.handlers[jobType] = h
}

// Run consumes payloads until the context is cancelled. A handler error is
// logged and the loop keeps going: one bad payload must never stall a queue.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for jobType, handler := range w.handlers {
		wg.Add(1)
		go func(t domain.JobType, h Handler) {
			defer wg.Done()
			w.consume(ctx, t, h)
		}(jobType, handler)
	}
	wg.Wait()
}

func (w *Worker) consume(ctx context.Context, jobType domain.JobType, handler Handler) {
	log.Printf("[WORKER] Consuming queue for %s", jobType)
	for {
		if ctx.Err() != nil {
			log.Printf("[WORKER] Stopping consumer for %s", jobType)
			return
		}

		payload, err := w.broker.Pop(ctx, jobType, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[WORKER] Stopping consumer for %s", jobType)
				return
			}
			log.Printf("[WORKER] Pop failed for %s: %v", jobType, err)
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		log.Printf("[WORKER] Handling job %s (%s)", payload.JobID, jobType)
		if err := handler(ctx, payload); err != nil {
			log.Printf("[WORKER] Job %s failed: %v", payload.JobID, err)
		}
	}
}
