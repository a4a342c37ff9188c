package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"intel-correlation-service/internal/models"
)

func TestNextWeekly(t *testing.T) {
	spec := models.WeeklySpec{DayOfWeek: "mon", Hour: 8, Minute: 0, Timezone: "UTC"}

	// Tuesday after the fire instant rolls to the following Monday.
	after := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC), NextWeekly(spec, after), 0)

	// Same day but before the fire instant stays on that day.
	after = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), NextWeekly(spec, after), 0)
}

func TestNextWeeklyHonorsTimezone(t *testing.T) {
	spec := models.WeeklySpec{DayOfWeek: "mon", Hour: 8, Minute: 0, Timezone: "Asia/Ho_Chi_Minh"}

	// Monday 08:00 in UTC+7 is Monday 01:00 UTC.
	after := time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 1, 8, 1, 0, 0, 0, time.UTC), NextWeekly(spec, after), 0)
}

func TestNextWeeklyBadSpecFallsBack(t *testing.T) {
	spec := models.WeeklySpec{DayOfWeek: "someday", Hour: 8, Minute: 0, Timezone: "UTC"}
	after := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC), NextWeekly(spec, after), 0)
}

func TestNextDaily(t *testing.T) {
	after := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC), NextDaily(8, 30, "UTC", after), 0)

	after = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC), NextDaily(8, 30, "", after), 0)
}
