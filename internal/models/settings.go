package models

import (
	"fmt"
	"time"
)

// Notification type names. The set is closed; unknown names are rejected at
// load time instead of silently ignored.
const (
	NotifyCritical     = "critical"
	NotifyHighDaily    = "high_daily"
	NotifyWeeklyReport = "weekly_report"
)

// Recipient group names with special artifact semantics for the weekly run.
const (
	GroupCISO = "ciso"
	GroupIT   = "it"
)

var validDays = map[string]time.Weekday{
	"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
	"sun": time.Sunday,
}

// WeeklySpec is the weekly report fire instant: one (day, hour, minute)
// tuple per week, evaluated in Timezone.
type WeeklySpec struct {
	DayOfWeek string `json:"day_of_week"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
	Timezone  string `json:"timezone"`
}

// Weekday resolves the configured day name, defaulting to Monday when the
// name is not one of mon..sun.
func (w WeeklySpec) Weekday() time.Weekday {
	if d, ok := validDays[w.DayOfWeek]; ok {
		return d
	}
	return time.Monday
}

// ScheduleConfig drives both timers of the schedule controller.
type ScheduleConfig struct {
	Interval struct {
		Minutes int `json:"minutes,omitempty"`
		Hours   int `json:"hours,omitempty"`
	} `json:"interval"`
	Weekly WeeklySpec `json:"weekly"`
}

// DefaultCollectionPeriod applies when neither minutes nor hours is set.
const DefaultCollectionPeriod = 4 * time.Hour

// Period resolves the collection interval: minutes wins when present and
// positive, then hours, then the 4-hour default.
func (s ScheduleConfig) Period() time.Duration {
	if s.Interval.Minutes > 0 {
		return time.Duration(s.Interval.Minutes) * time.Minute
	}
	if s.Interval.Hours > 0 {
		return time.Duration(s.Interval.Hours) * time.Hour
	}
	return DefaultCollectionPeriod
}

// NotificationType configures one notification workflow. Threshold applies
// to critical and high_daily only; FireAt ("HH:MM") applies to high_daily.
type NotificationType struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
	Threshold  float64  `json:"threshold,omitempty"`
	FireAt     string   `json:"fire_at,omitempty"`
}

// FireTime parses FireAt. The zero value (8, 30) is used when unset or
// malformed, matching the documented high_daily default.
func (n NotificationType) FireTime() (hour, minute int) {
	hour, minute = 8, 30
	if n.FireAt == "" {
		return
	}
	var h, m int
	if _, err := fmt.Sscanf(n.FireAt, "%d:%d", &h, &m); err != nil {
		return
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return
	}
	return h, m
}

// Settings is the reloadable runtime configuration: schedule plus the
// notification policy tables. It persists across restarts and is mutated
// only through the reload operation.
type Settings struct {
	Schedule     ScheduleConfig       `json:"schedule"`
	Notification NotificationSettings `json:"notification"`
	Correlation  CorrelationSettings  `json:"correlation"`
}

// NotificationSettings maps recipient groups to delivery addresses and holds
// the per-type policy table.
type NotificationSettings struct {
	Recipients map[string][]string         `json:"recipients"`
	Types      map[string]NotificationType `json:"types"`
}

// CorrelationSettings tunes the risk scorer.
type CorrelationSettings struct {
	DefaultCVSS float64 `json:"default_cvss"`
	PIRBoost    float64 `json:"pir_boost"`
}

// Type returns the named notification type, or a disabled zero value.
func (s Settings) Type(name string) NotificationType {
	if t, ok := s.Notification.Types[name]; ok {
		return t
	}
	return NotificationType{}
}

// ResolveRecipients expands the type's ordered group references into
// delivery addresses, dropping groups with no mapping. The returned map
// tracks which groups each address belongs to.
func (s Settings) ResolveRecipients(t NotificationType) (addrs []string, groups map[string][]string) {
	groups = make(map[string][]string)
	seen := make(map[string]bool)
	for _, g := range t.Recipients {
		for _, addr := range s.Notification.Recipients[g] {
			if !seen[addr] {
				seen[addr] = true
				addrs = append(addrs, addr)
			}
			groups[addr] = append(groups[addr], g)
		}
	}
	return addrs, groups
}

// Normalize falls back to documented defaults for out-of-range fields and
// returns one warning per correction. Out-of-range values never fail a
// reload; the previous or default value applies instead.
func (s *Settings) Normalize() []string {
	var warns []string
	w := &s.Schedule.Weekly
	if _, ok := validDays[w.DayOfWeek]; !ok {
		warns = append(warns, fmt.Sprintf("weekly day_of_week %q invalid, using mon", w.DayOfWeek))
		w.DayOfWeek = "mon"
	}
	if w.Hour < 0 || w.Hour > 23 {
		warns = append(warns, fmt.Sprintf("weekly hour %d out of range, using 8", w.Hour))
		w.Hour = 8
	}
	if w.Minute < 0 || w.Minute > 59 {
		warns = append(warns, fmt.Sprintf("weekly minute %d out of range, using 0", w.Minute))
		w.Minute = 0
	}
	if w.Timezone == "" {
		w.Timezone = "UTC"
	} else if _, err := time.LoadLocation(w.Timezone); err != nil {
		warns = append(warns, fmt.Sprintf("weekly timezone %q unknown, using UTC", w.Timezone))
		w.Timezone = "UTC"
	}
	if s.Schedule.Interval.Minutes < 0 {
		warns = append(warns, "interval minutes negative, ignoring")
		s.Schedule.Interval.Minutes = 0
	}
	if s.Schedule.Interval.Hours < 0 {
		warns = append(warns, "interval hours negative, ignoring")
		s.Schedule.Interval.Hours = 0
	}
	if s.Correlation.DefaultCVSS <= 0 || s.Correlation.DefaultCVSS > 10 {
		s.Correlation.DefaultCVSS = 5.0
	}
	if s.Correlation.PIRBoost < 0 {
		s.Correlation.PIRBoost = 0
	} else if s.Correlation.PIRBoost == 0 {
		s.Correlation.PIRBoost = 0.5
	}
	for name, t := range s.Notification.Types {
		if t.Threshold < 0 || t.Threshold > 10 {
			warns = append(warns, fmt.Sprintf("notification type %s threshold %.1f out of range, using 9.0", name, t.Threshold))
			t.Threshold = 9.0
			s.Notification.Types[name] = t
		}
	}
	return warns
}

// ValidateTypes rejects unknown notification type names.
func (s Settings) ValidateTypes() error {
	for name := range s.Notification.Types {
		switch name {
		case NotifyCritical, NotifyHighDaily, NotifyWeeklyReport:
		default:
			return fmt.Errorf("unknown notification type %q", name)
		}
	}
	return nil
}
