package jobevents

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"intel-correlation-service/internal/models"
)

func TestAppendWritesDailyFile(t *testing.T) {
	l := New(t.TempDir())
	now := time.Now()

	require.NoError(t, l.Append(models.JobEvent{
		JobID: "job-1", Kind: models.NotifyWeeklyReport,
		Phase: models.PhaseTriggered, Status: "running",
	}))

	_, err := os.Stat(l.fileFor(now))
	assert.NoError(t, err)
}

func TestListRecentAggregatesPerJob(t *testing.T) {
	l := New(t.TempDir())
	base := time.Now().Add(-time.Minute)

	phases := []models.JobPhase{models.PhaseTriggered, models.PhaseRendering, models.PhaseSending, models.PhaseDone}
	for i, p := range phases {
		require.NoError(t, l.Append(models.JobEvent{
			JobID: "job-a", Kind: models.NotifyWeeklyReport, Timestamp: base.Add(time.Duration(i) * time.Second),
			Phase: p, Status: "running",
		}))
	}
	require.NoError(t, l.Append(models.JobEvent{
		JobID: "job-b", Kind: models.NotifyHighDaily, Timestamp: base.Add(10 * time.Second),
		Phase: models.PhaseSkipped, Status: "skipped",
	}))

	got, err := l.ListRecent(20)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Most recently triggered job first, each collapsed to its last record.
	assert.Equal(t, "job-b", got[0].JobID)
	assert.Equal(t, models.PhaseSkipped, got[0].Phase)
	assert.Equal(t, "job-a", got[1].JobID)
	assert.Equal(t, models.PhaseDone, got[1].Phase)
}

func TestListRecentLimit(t *testing.T) {
	l := New(t.TempDir())
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(models.JobEvent{
			JobID: string(rune('a' + i)), Kind: models.NotifyCritical,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Phase:     models.PhaseDone, Status: "success",
		}))
	}

	got, err := l.ListRecent(3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestListRecentSkipsMalformedLines(t *testing.T) {
	l := New(t.TempDir())
	require.NoError(t, l.Append(models.JobEvent{
		JobID: "job-a", Kind: models.NotifyCritical, Phase: models.PhaseDone, Status: "success",
	}))

	f, err := os.OpenFile(l.fileFor(time.Now()), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated record\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := l.ListRecent(20)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestHasDone(t *testing.T) {
	l := New(t.TempDir())

	done, err := l.HasDone(models.NotifyWeeklyReport, "2026-W10")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, l.Append(models.JobEvent{
		JobID: "job-a", Kind: models.NotifyWeeklyReport, PeriodKey: "2026-W10",
		Phase: models.PhaseDone, Status: "success",
	}))
	require.NoError(t, l.Append(models.JobEvent{
		JobID: "job-b", Kind: models.NotifyHighDaily, PeriodKey: "2026-03-05",
		Phase: models.PhaseFailed, Status: "error",
	}))

	done, err = l.HasDone(models.NotifyWeeklyReport, "2026-W10")
	require.NoError(t, err)
	assert.True(t, done)

	// A failed record does not mark the period as covered.
	done, err = l.HasDone(models.NotifyHighDaily, "2026-03-05")
	require.NoError(t, err)
	assert.False(t, done)

	// Other periods of the same kind stay uncovered.
	done, err = l.HasDone(models.NotifyWeeklyReport, "2026-W11")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestOnAppendObserver(t *testing.T) {
	l := New(t.TempDir())
	var seen []models.JobEvent
	l.OnAppend(func(ev models.JobEvent) { seen = append(seen, ev) })

	require.NoError(t, l.Append(models.JobEvent{JobID: "job-a", Kind: models.NotifyCritical, Phase: models.PhaseTriggered, Status: "running"}))
	require.Len(t, seen, 1)
	assert.Equal(t, "job-a", seen[0].JobID)
}

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"alice@example.com", "a***e@example.com"},
		{"ab@x.io", "a*@x.io"},
		{"a@x.io", "a*@x.io"},
		{"no-at-sign", "no-at-sign"},
		{"@example.com", "@example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, MaskAddress(tt.in), "addr=%q", tt.in)
	}
}

func TestMaskAll(t *testing.T) {
	got := MaskAll([]string{"alice@example.com", "bob@example.com"})
	assert.Equal(t, []string{"a***e@example.com", "b*b@example.com"}, got)
}
