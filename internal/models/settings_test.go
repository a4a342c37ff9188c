package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulePeriod(t *testing.T) {
	var s ScheduleConfig

	assert.Equal(t, 4*time.Hour, s.Period())

	s.Interval.Hours = 6
	assert.Equal(t, 6*time.Hour, s.Period())

	// Minutes take precedence over hours when both are set.
	s.Interval.Minutes = 30
	assert.Equal(t, 30*time.Minute, s.Period())

	s.Interval.Minutes = 0
	s.Interval.Hours = 0
	assert.Equal(t, 4*time.Hour, s.Period())
}

func TestFireTime(t *testing.T) {
	tests := []struct {
		fireAt    string
		hour, min int
	}{
		{"", 8, 30},
		{"07:15", 7, 15},
		{"23:59", 23, 59},
		{"27:00", 8, 30},
		{"12:75", 8, 30},
		{"noon", 8, 30},
	}
	for _, tt := range tests {
		h, m := NotificationType{FireAt: tt.fireAt}.FireTime()
		assert.Equal(t, tt.hour, h, "fire_at=%q", tt.fireAt)
		assert.Equal(t, tt.min, m, "fire_at=%q", tt.fireAt)
	}
}

func TestWeeklyWeekday(t *testing.T) {
	assert.Equal(t, time.Friday, WeeklySpec{DayOfWeek: "fri"}.Weekday())
	assert.Equal(t, time.Monday, WeeklySpec{DayOfWeek: "someday"}.Weekday())
}

func TestNormalizeFallsBackWithWarnings(t *testing.T) {
	var s Settings
	s.Schedule.Weekly = WeeklySpec{DayOfWeek: "funday", Hour: 99, Minute: -1, Timezone: "Mars/Phobos"}
	s.Schedule.Interval.Minutes = -5
	s.Notification.Types = map[string]NotificationType{
		NotifyCritical: {Threshold: 42},
	}

	warns := s.Normalize()

	assert.Equal(t, "mon", s.Schedule.Weekly.DayOfWeek)
	assert.Equal(t, 8, s.Schedule.Weekly.Hour)
	assert.Equal(t, 0, s.Schedule.Weekly.Minute)
	assert.Equal(t, "UTC", s.Schedule.Weekly.Timezone)
	assert.Equal(t, 0, s.Schedule.Interval.Minutes)
	assert.Equal(t, 9.0, s.Notification.Types[NotifyCritical].Threshold)
	assert.GreaterOrEqual(t, len(warns), 5)
}

func TestNormalizeValidSettingsNoWarnings(t *testing.T) {
	var s Settings
	s.Schedule.Weekly = WeeklySpec{DayOfWeek: "wed", Hour: 9, Minute: 30, Timezone: "Europe/Berlin"}
	s.Schedule.Interval.Minutes = 120
	s.Correlation = CorrelationSettings{DefaultCVSS: 6.0, PIRBoost: 1.0}

	assert.Empty(t, s.Normalize())
	assert.Equal(t, "wed", s.Schedule.Weekly.DayOfWeek)
	assert.Equal(t, 1.0, s.Correlation.PIRBoost)
}

func TestResolveRecipients(t *testing.T) {
	var s Settings
	s.Notification.Recipients = map[string][]string{
		GroupCISO: {"ciso@corp.example", "shared@corp.example"},
		GroupIT:   {"it@corp.example", "shared@corp.example"},
	}
	nt := NotificationType{Recipients: []string{GroupCISO, GroupIT, "missing"}}

	addrs, groups := s.ResolveRecipients(nt)

	assert.Equal(t, []string{"ciso@corp.example", "shared@corp.example", "it@corp.example"}, addrs)
	assert.Equal(t, []string{GroupCISO}, groups["ciso@corp.example"])
	assert.Equal(t, []string{GroupIT}, groups["it@corp.example"])
	assert.Equal(t, []string{GroupCISO, GroupIT}, groups["shared@corp.example"])
}

func TestValidateTypes(t *testing.T) {
	var s Settings
	s.Notification.Types = map[string]NotificationType{
		NotifyCritical: {}, NotifyHighDaily: {}, NotifyWeeklyReport: {},
	}
	assert.NoError(t, s.ValidateTypes())

	s.Notification.Types["hourly_digest"] = NotificationType{}
	assert.Error(t, s.ValidateTypes())
}

func TestTypeUnknownIsDisabled(t *testing.T) {
	var s Settings
	nt := s.Type(NotifyWeeklyReport)
	assert.False(t, nt.Enabled)
	assert.Empty(t, nt.Recipients)
}
