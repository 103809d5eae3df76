package delivery

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/store"
)

// Handler runs the pipeline for one event.
type Handler interface {
	OnMessageCreated(ctx context.Context, evt Event) Outcome
	OnMessageUpdated(ctx context.Context, evt UpdateEvent) Outcome
}

// WorkerConfig bounds the worker's concurrency and its subscription buffer.
type WorkerConfig struct {
	Workers int
	Buffer  int
}

// Stats counts handled events.
type Stats struct {
	Processed uint64
	Failed    uint64
	Panics    uint64
}

// Worker subscribes to the store change feed and runs the pipeline for
// every message document event, up to Workers at a time.
type Worker struct {
	bus     *bus.Bus
	handler Handler
	logger  *zap.Logger
	cfg     WorkerConfig

	cancel context.CancelFunc
	done   chan struct{}

	processed atomic.Uint64
	failed    atomic.Uint64
	panics    atomic.Uint64
}

// NewWorker creates a worker. Non-positive config values fall back to 1
// worker and a 256-event buffer.
func NewWorker(b *bus.Bus, h Handler, logger *zap.Logger, cfg WorkerConfig) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 256
	}
	return &Worker{bus: b, handler: h, logger: logger, cfg: cfg}
}

// Start subscribes to document events on the bus.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	ch, unsub := w.bus.Subscribe("doc.", w.cfg.Buffer)

	var g errgroup.Group
	g.SetLimit(w.cfg.Workers)

	go func() {
		defer close(w.done)
		defer func() { _ = g.Wait() }()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				// In-flight runs finish even when the worker is stopping.
				runCtx := context.WithoutCancel(ctx)
				g.Go(func() error {
					w.handle(runCtx, evt)
					return nil
				})
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and waits for in-flight events to finish.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		Panics:    w.panics.Load(),
	}
}

func (w *Worker) handle(ctx context.Context, evt bus.Event) {
	change, ok := evt.Payload.(store.Change)
	if !ok {
		return
	}
	params, ok := store.ParseMessagePath(change.Path)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.failed.Add(1)
			w.logger.Error("delivery panicked",
				zap.String("path", change.Path),
				zap.String("kind", evt.Kind),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	var out Outcome
	switch evt.Kind {
	case store.KindDocCreated:
		out = w.handler.OnMessageCreated(ctx, Event{Params: params, Record: change.After})
	case store.KindDocUpdated:
		out = w.handler.OnMessageUpdated(ctx, UpdateEvent{Params: params, Before: change.Before, After: change.After})
	default:
		return
	}

	w.processed.Add(1)
	w.log(evt.Kind, out)
}

func (w *Worker) log(kind string, out Outcome) {
	fields := append(out.fields(), zap.String("kind", kind))
	switch {
	case out.Failed():
		w.failed.Add(1)
		if IsDecodeError(out.Err) {
			w.logger.Warn("message dropped", fields...)
			return
		}
		w.logger.Error("delivery failed", fields...)
	case out.Skipped:
		w.logger.Debug("delivery skipped", fields...)
	default:
		w.logger.Info("message delivered", fields...)
	}
}
