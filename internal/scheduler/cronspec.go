package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"intel-correlation-service/internal/models"
)

// NextWeekly computes the next future instant matching the weekly spec in
// its configured timezone. An unparseable spec falls back to the default
// Monday 08:00 UTC rather than failing the controller.
func NextWeekly(spec models.WeeklySpec, after time.Time) time.Time {
	expr := fmt.Sprintf("CRON_TZ=%s %d %d * * %s", spec.Timezone, spec.Minute, spec.Hour, spec.DayOfWeek)
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		sched, _ = cron.ParseStandard("CRON_TZ=UTC 0 8 * * mon")
	}
	return sched.Next(after)
}

// NextDaily computes the next future instant for a daily fire time in the
// weekly spec's timezone.
func NextDaily(hour, minute int, tz string, after time.Time) time.Time {
	if tz == "" {
		tz = "UTC"
	}
	expr := fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, minute, hour)
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		sched, _ = cron.ParseStandard("CRON_TZ=UTC 30 8 * * *")
	}
	return sched.Next(after)
}
