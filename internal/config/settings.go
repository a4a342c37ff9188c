package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/models"
)

// Store owns the reloadable runtime settings (schedule + notification
// policy). It persists to a JSON file so configuration survives restarts
// and can be swapped without restarting the process.
type Store struct {
	path   string
	logger *logrus.Logger

	mu  sync.RWMutex
	cur models.Settings
}

// NewStore loads the settings file at path, creating it with defaults when
// it does not exist yet.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.cur = DefaultSettings()
		if err := s.write(s.cur); err != nil {
			return nil, fmt.Errorf("write default settings: %w", err)
		}
		logger.Infof("Settings file %s not found, wrote defaults", path)
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultSettings is the configuration used when no settings file exists.
func DefaultSettings() models.Settings {
	var s models.Settings
	s.Schedule.Interval.Hours = 4
	s.Schedule.Weekly = models.WeeklySpec{DayOfWeek: "mon", Hour: 8, Minute: 0, Timezone: "UTC"}
	s.Notification.Recipients = map[string][]string{}
	s.Notification.Types = map[string]models.NotificationType{
		models.NotifyCritical:     {Enabled: false, Threshold: 9.0},
		models.NotifyHighDaily:    {Enabled: false, Threshold: 7.0, FireAt: "08:30"},
		models.NotifyWeeklyReport: {Enabled: false},
	}
	s.Correlation = models.CorrelationSettings{DefaultCVSS: 5.0, PIRBoost: 0.5}
	return s
}

// Get returns the current settings snapshot.
func (s *Store) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reload re-reads the settings file. Unknown keys are a hard error; fields
// that are merely out of range fall back to defaults with a warning.
func (s *Store) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read settings %s: %w", s.path, err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	for _, w := range parsed.Normalize() {
		s.logger.Warnf("Settings: %s", w)
	}
	s.mu.Lock()
	s.cur = parsed
	s.mu.Unlock()
	s.logger.Infof("Settings reloaded from %s", s.path)
	return nil
}

// Save validates, persists, and swaps in the given settings. Callers are
// expected to trigger a scheduler reload afterwards.
func (s *Store) Save(next models.Settings) error {
	if err := next.ValidateTypes(); err != nil {
		return err
	}
	for _, w := range next.Normalize() {
		s.logger.Warnf("Settings: %s", w)
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	return nil
}

// Parse decodes settings JSON, rejecting unknown keys.
func Parse(raw []byte) (models.Settings, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var parsed models.Settings
	if err := dec.Decode(&parsed); err != nil {
		return models.Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if parsed.Notification.Recipients == nil {
		parsed.Notification.Recipients = map[string][]string{}
	}
	if parsed.Notification.Types == nil {
		parsed.Notification.Types = map[string]models.NotificationType{}
	}
	if err := parsed.ValidateTypes(); err != nil {
		return models.Settings{}, err
	}
	return parsed, nil
}

func (s *Store) write(v models.Settings) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
