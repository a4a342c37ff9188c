package jobevents

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"intel-correlation-service/internal/models"
)

// lookback bounds how many daily files ListRecent and HasDone scan. Weekly
// period keys never span more than 8 days of appends.
const lookbackDays = 10

// Log is the append-only job event trail: one JSONL file per calendar day,
// grouped under a year-month directory. Records are immutable once written;
// a job progresses by appending a new record per phase under the same job
// id. Recipient addresses must be masked by the caller before Append.
type Log struct {
	base string

	mu     sync.Mutex
	notify func(models.JobEvent)
}

func New(base string) *Log {
	return &Log{base: base}
}

// OnAppend registers a single observer invoked after each successful append.
// Used to stream events to connected consoles.
func (l *Log) OnAppend(fn func(models.JobEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = fn
}

func (l *Log) fileFor(ts time.Time) string {
	return filepath.Join(l.base, ts.Format("200601"), ts.Format("20060102")+".jsonl")
}

// Append writes one event record. Every failure path of a job must reach
// this at least once, so an append error is surfaced, never swallowed.
func (l *Log) Append(ev models.JobEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	path := l.fileFor(ev.Timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create event log dir: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	l.mu.Lock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	_, werr := f.Write(append(data, '\n'))
	cerr := f.Close()
	notify := l.notify
	l.mu.Unlock()

	if werr != nil {
		return fmt.Errorf("failed to append job event: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("failed to close event log: %w", cerr)
	}
	if notify != nil {
		notify(ev)
	}
	return nil
}

// ListRecent aggregates the last record of each job across the recent daily
// files and returns up to limit jobs, most recently triggered first.
func (l *Log) ListRecent(limit int) ([]models.JobEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	latest := make(map[string]models.JobEvent)
	first := make(map[string]time.Time)

	err := l.scan(func(ev models.JobEvent) bool {
		if ev.JobID == "" {
			return true
		}
		if cur, ok := latest[ev.JobID]; !ok || ev.Timestamp.After(cur.Timestamp) {
			latest[ev.JobID] = ev
		}
		if t, ok := first[ev.JobID]; !ok || ev.Timestamp.Before(t) {
			first[ev.JobID] = ev.Timestamp
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.JobEvent, 0, len(latest))
	for _, ev := range latest {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return first[out[i].JobID].After(first[out[j].JobID])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasDone reports whether a done record already covers the given period for
// the given job kind. Scheduled notifications consult this before sending
// so a restart between fire and log write cannot cause a duplicate send.
func (l *Log) HasDone(kind, periodKey string) (bool, error) {
	if periodKey == "" {
		return false, nil
	}
	found := false
	err := l.scan(func(ev models.JobEvent) bool {
		if ev.Kind == kind && ev.PeriodKey == periodKey && ev.Phase == models.PhaseDone {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// scan walks the recent daily files oldest-first and feeds each parseable
// record to fn until fn returns false. Unparseable lines are skipped.
func (l *Log) scan(fn func(models.JobEvent) bool) error {
	now := time.Now()
	for delta := lookbackDays - 1; delta >= 0; delta-- {
		path := l.fileFor(now.AddDate(0, 0, -delta))
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to open event log %s: %w", path, err)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			var ev models.JobEvent
			if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
				continue
			}
			if !fn(ev) {
				f.Close()
				return nil
			}
		}
		f.Close()
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read event log %s: %w", path, err)
		}
	}
	return nil
}

// MaskAddress hides most of the local part of a delivery address: enough to
// confirm the target without exposing the full address in shared logs.
func MaskAddress(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 0 {
		return addr
	}
	name, domain := addr[:at], addr[at+1:]
	if len(name) <= 2 {
		return name[:1] + "*@" + domain
	}
	return name[:1] + strings.Repeat("*", len(name)-2) + name[len(name)-1:] + "@" + domain
}

// MaskAll masks a recipient list.
func MaskAll(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = MaskAddress(a)
	}
	return out
}
