package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/resilience"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// DefaultSchedule runs the sweep every 15 minutes
const DefaultSchedule = "@every 15m"

// Scheduler runs the sweeper on a cron schedule. Overlapping runs are
// skipped.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	timeouts *resilience.TimeoutConfig
	logger   ports.Logger
	now      func() time.Time
}

// NewScheduler registers the sweep under schedule, a standard cron
// expression or an "@every" descriptor
func NewScheduler(sweeper *Sweeper, schedule string, timeouts *resilience.TimeoutConfig, logger ports.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper:  sweeper,
		timeouts: timeouts,
		logger:   logger,
		now:      timeutil.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running scheduled sweeps in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Expiry sweep scheduled")
}

// Stop prevents new runs and waits for a running sweep or ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := s.timeouts.CronContext(context.Background())
	defer cancel()

	if _, err := s.sweeper.Sweep(ctx, s.now()); err != nil {
		s.logger.Error("Expiry sweep completed with errors", ports.Err(err))
	}
}

// cronLogger routes cron's own logging through ports.Logger
type cronLogger struct {
	logger ports.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(kvFields(keysAndValues), ports.Err(err))...)
}

func kvFields(kv []interface{}) []ports.Field {
	fields := make([]ports.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, ports.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
