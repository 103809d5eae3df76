package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/store"
)

// Pending lists text messages whose creation was never processed to
// completion.
type Pending interface {
	PendingTextMessages(ctx context.Context, before time.Time, limit int) ([]store.Document, error)
}

// SweeperConfig controls the redelivery sweep. A zero Interval disables it.
type SweeperConfig struct {
	Interval    time.Duration
	Grace       time.Duration // only messages untouched for this long are retried
	Batch       int
	MaxAttempts int
}

// Sweeper periodically reruns creation handling for text messages still at
// status none, covering change feed events that were dropped or failed
// before the sender copy moved to sent. With the dedupe ledger enabled a
// rerun never notifies the same receiver twice.
type Sweeper struct {
	pending Pending
	handler Handler
	logger  *zap.Logger
	cfg     SweeperConfig
	now     func() time.Time

	mu       sync.Mutex
	attempts map[string]int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper. MaxAttempts defaults to 3 and Batch to 100.
func NewSweeper(p Pending, h Handler, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Batch < 1 {
		cfg.Batch = 100
	}
	return &Sweeper{
		pending:  p,
		handler:  h,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		attempts: make(map[string]int),
	}
}

// Start runs a sweep every Interval until Stop.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.logger.Info("redelivery sweep disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Sweep reruns one batch of pending messages and returns how many were
// handed to the pipeline.
func (s *Sweeper) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.pending.PendingTextMessages(ctx, s.now().Add(-s.cfg.Grace), s.cfg.Batch)
	if err != nil {
		s.logger.Error("failed to read pending messages", zap.Error(err))
		return 0
	}

	ran := 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		params, ok := store.ParseMessagePath(doc.Path)
		if !ok || s.attempts[doc.Path] >= s.cfg.MaxAttempts {
			continue
		}

		out := s.run(ctx, Event{Params: params, Record: doc.Record})
		ran++

		switch {
		case out.Failed() && IsDecodeError(out.Err):
			s.attempts[doc.Path] = s.cfg.MaxAttempts
			s.logger.Warn("redelivery abandoned", out.fields()...)
		case out.Failed():
			s.attempts[doc.Path]++
			fields := append(out.fields(), zap.Int("attempt", s.attempts[doc.Path]))
			if s.attempts[doc.Path] >= s.cfg.MaxAttempts {
				s.logger.Warn("redelivery abandoned", fields...)
			} else {
				s.logger.Error("redelivery failed", fields...)
			}
		default:
			delete(s.attempts, doc.Path)
			s.logger.Info("message redelivered", out.fields()...)
		}
	}
	if ran > 0 {
		s.logger.Info("redelivery sweep", zap.Int("pending", len(docs)), zap.Int("ran", ran))
	}
	return ran
}

func (s *Sweeper) run(ctx context.Context, evt Event) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = fail(evt.Params.MessageID, StepGuard, fmt.Errorf("panic: %v", r))
		}
	}()
	return s.handler.OnMessageCreated(ctx, evt)
}
