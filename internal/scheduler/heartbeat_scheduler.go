// internal/scheduler/heartbeat_scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"job-worker/internal/domain"
	"job-worker/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// heartbeatScheduler probes the API host on a fixed interval and logs the result.
// A failed probe is simply tried again on the next tick.
type heartbeatScheduler struct {
	cron   *cron.Cron
	job    *heartbeatJob
	stopMu sync.Mutex
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewHeartbeatScheduler schedules prober every interval. Overlapping ticks are skipped.
func NewHeartbeatScheduler(prober domain.HealthProber, interval time.Duration, logger *slog.Logger) (domain.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be positive, got %s", interval)
	}

	logger = logger.With("component", "heartbeat")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	job := &heartbeatJob{
		prober: prober,
		ctx:    context.Background(),
		logger: logger,
		tracer: otel.Tracer("job-worker-heartbeat"),
	}
	if _, err := c.AddJob("@every "+interval.String(), job); err != nil {
		return nil, fmt.Errorf("failed to schedule heartbeat: %w", err)
	}

	return &heartbeatScheduler{
		cron:   c,
		job:    job,
		logger: logger,
	}, nil
}

// Start sends one probe immediately, then runs the schedule until ctx is done.
func (s *heartbeatScheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.stopMu.Lock()
	s.cancel = cancel
	s.stopMu.Unlock()
	s.job.ctx = ctx

	s.logger.Info("heartbeat started")
	s.job.Run()
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("heartbeat stopped")
	return nil
}

// Stop ends a running Start.
func (s *heartbeatScheduler) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

type heartbeatJob struct {
	prober domain.HealthProber
	ctx    context.Context
	logger *slog.Logger
	tracer trace.Tracer
}

// Run is called by cron on every tick.
func (j *heartbeatJob) Run() {
	ctx, span := j.tracer.Start(j.ctx, "scheduler.Heartbeat")
	defer span.End()

	st := j.prober.Probe(ctx)
	if st.Known() {
		span.SetAttributes(attribute.Int("api.status", *st.Code))
		metrics.HeartbeatTotal.WithLabelValues("reachable").Inc()
		metrics.HeartbeatLastStatus.Set(float64(*st.Code))
	} else {
		span.AddEvent("api_unreachable")
		metrics.HeartbeatTotal.WithLabelValues("unreachable").Inc()
		metrics.HeartbeatLastStatus.Set(0)
	}

	j.logger.Info("worker heartbeat", "api_status", statusValue(st))
}

// statusValue renders an unknown status as JSON null.
func statusValue(st domain.HealthStatus) any {
	if !st.Known() {
		return nil
	}
	return *st.Code
}
