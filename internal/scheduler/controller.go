package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/models"
)

// Controller owns the timers: a strictly periodic collection timer, the
// weekly cron instant, and the high_daily fire time. One coordinating loop
// drives all three; job execution happens on the runner's workers so a
// long job never blocks the loop. Reload recomputes the next-fire instants
// without restarting and without touching a job already running.
type Controller struct {
	runner   *Runner
	settings func() models.Settings
	logger   *logrus.Logger

	reload chan struct{}
	now    func() time.Time
}

func NewController(runner *Runner, settings func() models.Settings, logger *logrus.Logger) *Controller {
	return &Controller{
		runner:   runner,
		settings: settings,
		logger:   logger,
		reload:   make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Reload requests a recomputation of all next-fire instants. It is safe to
// call concurrently with an in-flight job; coalescing multiple pending
// requests into one is fine since each reload re-reads the full settings.
func (c *Controller) Reload() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

// nextDaily resolves the high_daily fire instant, or zero when disabled.
func (c *Controller) nextDaily(after time.Time) time.Time {
	cfg := c.settings()
	t := cfg.Type(models.NotifyHighDaily)
	if !t.Enabled {
		return time.Time{}
	}
	h, m := t.FireTime()
	return NextDaily(h, m, cfg.Schedule.Weekly.Timezone, after)
}

// farFuture stands in for a disabled timer.
const farFuture = 365 * 24 * time.Hour

func durationUntil(now, at time.Time) time.Duration {
	if at.IsZero() {
		return farFuture
	}
	d := at.Sub(now)
	if d < 0 {
		d = time.Second
	}
	return d
}

// stopAndDrain stops a timer that has not been consumed this iteration. If
// the timer fired while we were deciding, the pending fire is delivered to
// onFire first: a reload arriving after a scheduled instant must not
// suppress the fire that already happened.
func stopAndDrain(t *time.Timer, onFire func()) {
	if !t.Stop() {
		select {
		case <-t.C:
			if onFire != nil {
				onFire()
			}
		default:
		}
	}
}

// Run drives the scheduling loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	now := c.now()
	cfg := c.settings()

	lastCollection := now
	collectionTimer := time.NewTimer(cfg.Schedule.Period())
	weeklyAt := NextWeekly(cfg.Schedule.Weekly, now)
	weeklyTimer := time.NewTimer(durationUntil(now, weeklyAt))
	dailyAt := c.nextDaily(now)
	dailyTimer := time.NewTimer(durationUntil(now, dailyAt))

	c.logger.Infof("Scheduler started: collection every %s, weekly at %s, daily at %s",
		cfg.Schedule.Period(), fmtInstant(weeklyAt), fmtInstant(dailyAt))

	fireCollection := func() {
		lastCollection = c.now()
		c.dispatch(KindCollection)
	}
	fireWeekly := func() {
		c.dispatch(KindWeekly)
		weeklyAt = NextWeekly(c.settings().Schedule.Weekly, c.now())
	}
	fireDaily := func() {
		c.dispatch(KindDaily)
		dailyAt = c.nextDaily(c.now())
	}

	for {
		select {
		case <-ctx.Done():
			stopAndDrain(collectionTimer, nil)
			stopAndDrain(weeklyTimer, nil)
			stopAndDrain(dailyTimer, nil)
			c.logger.Infof("Scheduler stopped")
			return

		case <-collectionTimer.C:
			fireCollection()
			// Strictly periodic from the fire time, not wall-clock aligned.
			collectionTimer.Reset(c.settings().Schedule.Period())

		case <-weeklyTimer.C:
			fireWeekly()
			weeklyTimer.Reset(durationUntil(c.now(), weeklyAt))

		case <-dailyTimer.C:
			fireDaily()
			dailyTimer.Reset(durationUntil(c.now(), dailyAt))

		case <-c.reload:
			now := c.now()
			cfg := c.settings()

			stopAndDrain(collectionTimer, fireCollection)
			next := lastCollection.Add(cfg.Schedule.Period())
			collectionTimer.Reset(durationUntil(now, next))

			stopAndDrain(weeklyTimer, fireWeekly)
			weeklyAt = NextWeekly(cfg.Schedule.Weekly, now)
			weeklyTimer.Reset(durationUntil(now, weeklyAt))

			stopAndDrain(dailyTimer, fireDaily)
			dailyAt = c.nextDaily(now)
			dailyTimer.Reset(durationUntil(now, dailyAt))

			c.logger.Infof("Schedule reloaded: collection every %s, weekly at %s, daily at %s",
				cfg.Schedule.Period(), fmtInstant(weeklyAt), fmtInstant(dailyAt))
		}
	}
}

// dispatch hands a fire to the runner. Busy is expected when the previous
// run of the same kind is still active; the fire is dropped, not queued.
func (c *Controller) dispatch(kind Kind) {
	if err := c.runner.Run(kind); err != nil {
		if errors.Is(err, ErrBusy) {
			c.logger.Warnf("Fire for %s rejected: previous run still active", kind)
			return
		}
		c.logger.Errorf("Dispatch %s failed: %v", kind, err)
	}
}

func fmtInstant(t time.Time) string {
	if t.IsZero() {
		return "disabled"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
