package scheduler

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"intel-correlation-service/internal/models"
)

func testController(settings func() models.Settings) *Controller {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	runner := NewRunner(nil, nil, nil, nil, settings, logger)
	return NewController(runner, settings, logger)
}

func TestReloadCoalesces(t *testing.T) {
	c := testController(func() models.Settings { return models.Settings{} })

	// Without a running loop, repeated reload requests collapse into one
	// pending signal and never block the caller.
	for i := 0; i < 10; i++ {
		c.Reload()
	}
	assert.Len(t, c.reload, 1)
}

func TestDurationUntil(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Hour, durationUntil(now, now.Add(time.Hour)))
	assert.Equal(t, farFuture, durationUntil(now, time.Time{}))

	// A fire instant already in the past fires almost immediately instead of
	// producing a negative timer.
	assert.Equal(t, time.Second, durationUntil(now, now.Add(-time.Minute)))
}

func TestNextDailyDisabled(t *testing.T) {
	c := testController(func() models.Settings {
		var s models.Settings
		s.Notification.Types = map[string]models.NotificationType{
			models.NotifyHighDaily: {Enabled: false},
		}
		return s
	})
	assert.True(t, c.nextDaily(time.Now()).IsZero())
}

func TestNextDailyEnabled(t *testing.T) {
	c := testController(func() models.Settings {
		var s models.Settings
		s.Schedule.Weekly.Timezone = "UTC"
		s.Notification.Types = map[string]models.NotificationType{
			models.NotifyHighDaily: {Enabled: true, FireAt: "06:15"},
		}
		return s
	})

	after := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	got := c.nextDaily(after)
	assert.WithinDuration(t, time.Date(2026, 3, 3, 6, 15, 0, 0, time.UTC), got, 0)
}

func TestStopAndDrainDeliversPendingFire(t *testing.T) {
	timer := time.NewTimer(time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	fired := false
	stopAndDrain(timer, func() { fired = true })
	assert.True(t, fired)
}

func TestStopAndDrainQuietTimer(t *testing.T) {
	timer := time.NewTimer(time.Hour)

	fired := false
	stopAndDrain(timer, func() { fired = true })
	assert.False(t, fired)
}
