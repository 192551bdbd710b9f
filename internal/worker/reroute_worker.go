// Package worker runs background jobs next to the HTTP server: notification
// delivery and the scheduled reroute sweep.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/service"
)

// Rerouter routes tickets still waiting for an agent.
type Rerouter interface {
	RerouteOpenTickets(ctx context.Context) (service.RerouteSummary, error)
}

// RerouteWorker sweeps OPEN unassigned tickets on a cron schedule. Sweeps
// never overlap: the next run is computed after the previous one returns.
type RerouteWorker struct {
	rerouter Rerouter
	schedule cron.Schedule
	spec     string
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRerouteWorker parses a standard five-field cron expression or a
// descriptor such as "@every 30s". An empty expression disables the sweep
// and returns a nil worker.
func NewRerouteWorker(rerouter Rerouter, spec string, logger *zap.Logger) (*RerouteWorker, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reroute schedule %q: %w", spec, err)
	}
	return newRerouteWorker(rerouter, schedule, spec, logger), nil
}

func newRerouteWorker(rerouter Rerouter, schedule cron.Schedule, spec string, logger *zap.Logger) *RerouteWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RerouteWorker{
		rerouter: rerouter,
		schedule: schedule,
		spec:     spec,
		logger:   logger,
		now:      time.Now,
	}
}

// Start launches the schedule loop. A nil worker or a second Start is a
// no-op.
func (w *RerouteWorker) Start(ctx context.Context) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.logger.Info("reroute sweep scheduled", zap.String("schedule", w.spec))
	go w.loop(ctx, w.done)
}

// Stop cancels the loop, waiting for an in-flight sweep to return.
func (w *RerouteWorker) Stop() {
	if w == nil {
		return
	}
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

// RunOnce performs a single sweep and logs its summary.
func (w *RerouteWorker) RunOnce(ctx context.Context) (service.RerouteSummary, error) {
	started := w.now()
	summary, err := w.rerouter.RerouteOpenTickets(ctx)
	fields := []zap.Field{
		zap.Int("scanned", summary.Scanned),
		zap.Int("assigned", summary.Assigned),
		zap.Int("unroutable", summary.Unroutable),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", w.now().Sub(started)),
	}
	if err != nil {
		w.logger.Warn("reroute sweep failed", append(fields, zap.Error(err))...)
		return summary, err
	}
	if summary.Scanned > 0 {
		w.logger.Info("reroute sweep complete", fields...)
	}
	return summary, nil
}

func (w *RerouteWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := w.now()
		next := w.schedule.Next(now)
		if next.IsZero() {
			w.logger.Warn("reroute schedule has no future runs", zap.String("schedule", w.spec))
			return
		}
		w.logger.Debug("next reroute sweep", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		_, _ = w.RunOnce(ctx)
	}
}
