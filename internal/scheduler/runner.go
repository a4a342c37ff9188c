package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/correlation"
	"intel-correlation-service/internal/db"
	"intel-correlation-service/internal/models"
	"intel-correlation-service/internal/notify"
)

// Kind names a triggerable job. Collection and correlation share one
// mutual-exclusion group: both write to the ledger through the same upsert
// path and must not run concurrently.
type Kind string

const (
	KindCollection  Kind = "collection"
	KindCorrelation Kind = "correlation"
	KindWeekly      Kind = "weekly_report"
	KindDaily       Kind = "high_daily"

	// KindAll is a trigger alias: a fetch request followed by a correlation
	// pass, which is exactly one collection run.
	KindAll Kind = "all"
)

// ErrBusy rejects a fire or manual trigger while a job of the same group is
// active. Requests are rejected, never queued.
var ErrBusy = errors.New("job already running")

// ErrUnknownKind rejects trigger requests for names outside the known set.
var ErrUnknownKind = errors.New("unknown job kind")

// jobTimeout bounds one job execution end to end, external calls included.
const jobTimeout = 10 * time.Minute

// JobStatus is the per-group state exposed by the status query. It replaces
// the shared mutable status map of earlier designs: the runner owns it, the
// API only reads snapshots.
type JobStatus struct {
	State       string     `json:"state"` // idle | running | completed | error
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastMessage string     `json:"last_message,omitempty"`
}

// FetchRequester asks the external feed fetchers to run a collection pass.
type FetchRequester interface {
	RequestFetch(ctx context.Context) error
}

// Runner executes jobs on worker goroutines so the timer loop never blocks
// on a long-running job.
type Runner struct {
	db        *db.DB
	engine    *correlation.Engine
	notifier  *notify.Engine
	requester FetchRequester
	settings  func() models.Settings
	logger    *logrus.Logger

	locks map[Kind]*sync.Mutex

	stMu   sync.Mutex
	status map[Kind]*JobStatus

	// execFn is swapped in tests to isolate the locking behavior.
	execFn func(Kind)
}

func NewRunner(database *db.DB, engine *correlation.Engine, notifier *notify.Engine,
	requester FetchRequester, settings func() models.Settings, logger *logrus.Logger) *Runner {
	r := &Runner{
		db:        database,
		engine:    engine,
		notifier:  notifier,
		requester: requester,
		settings:  settings,
		logger:    logger,
		locks: map[Kind]*sync.Mutex{
			KindCollection: {},
			KindWeekly:     {},
			KindDaily:      {},
		},
		status: map[Kind]*JobStatus{
			KindCollection: {State: "idle"},
			KindWeekly:     {State: "idle"},
			KindDaily:      {State: "idle"},
		},
	}
	r.execFn = r.execute
	return r
}

// group maps a job kind to its mutual-exclusion group.
func group(kind Kind) (Kind, error) {
	switch kind {
	case KindCollection, KindCorrelation, KindAll:
		return KindCollection, nil
	case KindWeekly:
		return KindWeekly, nil
	case KindDaily:
		return KindDaily, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// Run dispatches a job asynchronously. It returns ErrBusy when a job of the
// same group is already active; it never queues.
func (r *Runner) Run(kind Kind) error {
	g, err := group(kind)
	if err != nil {
		return err
	}
	lock := r.locks[g]
	if !lock.TryLock() {
		return ErrBusy
	}
	go func() {
		defer lock.Unlock()
		r.execFn(kind)
	}()
	return nil
}

// Status returns a snapshot of all job-group states.
func (r *Runner) Status() map[Kind]JobStatus {
	r.stMu.Lock()
	defer r.stMu.Unlock()
	out := make(map[Kind]JobStatus, len(r.status))
	for k, s := range r.status {
		out[k] = *s
	}
	return out
}

func (r *Runner) setState(g Kind, state, msg string) {
	r.stMu.Lock()
	defer r.stMu.Unlock()
	st := r.status[g]
	st.State = state
	st.LastMessage = msg
	if state == "completed" || state == "error" {
		now := time.Now()
		st.LastRun = &now
	}
}

func (r *Runner) execute(kind Kind) {
	g, _ := group(kind)
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	r.setState(g, "running", string(kind)+" started")
	r.logger.Infof("Job %s started", kind)

	var err error
	switch kind {
	case KindCollection, KindAll:
		err = r.runCollection(ctx, true)
	case KindCorrelation:
		err = r.runCollection(ctx, false)
	case KindWeekly:
		err = r.notifier.RunWeekly(ctx, time.Now(), false, "")
	case KindDaily:
		err = r.notifier.RunDaily(ctx, time.Now())
	}

	if err != nil {
		r.setState(g, "error", err.Error())
		r.logger.Errorf("Job %s failed: %v", kind, err)
		return
	}
	r.setState(g, "completed", string(kind)+" completed")
	r.logger.Infof("Job %s completed", kind)
}

// runCollection drives one pipeline pass: optional fetch request, then
// dedup-filtered correlation, scoring, ledger upsert, and the synchronous
// critical-notification check for newly created threats.
func (r *Runner) runCollection(ctx context.Context, withFetch bool) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("persisted store unreachable: %w", err)
	}

	if withFetch && r.requester != nil {
		// Fetchers run out of process; a failed request is transient and the
		// pass continues with whatever intel is already pending.
		if err := r.requester.RequestFetch(ctx); err != nil {
			r.logger.Warnf("Fetch request failed, correlating pending intel only: %v", err)
		}
	}

	assets, err := r.db.ListAssets(ctx)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		r.logger.Warnf("Asset inventory is empty, nothing to correlate")
		return nil
	}

	items, err := r.db.ListUnprocessed(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		r.logger.Infof("No pending intel items")
		return nil
	}

	scorer := correlation.NewScorer(r.settings().Correlation)
	candidates := r.engine.Match(items, assets)

	var created []models.ThreatDetail
	upserts := 0
	for _, c := range candidates {
		score := scorer.Score(c)
		threat, isNew, err := r.db.UpsertThreat(ctx, c.Item.ID, c.Asset.ID, score)
		if err != nil {
			return err
		}
		upserts++
		if isNew {
			created = append(created, models.ThreatDetail{Threat: threat, Intel: c.Item, Asset: c.Asset})
		}
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if err := r.db.MarkProcessed(ctx, ids); err != nil {
		return err
	}

	r.logger.Infof("Correlation pass: %d items, %d candidates, %d upserts, %d new threats",
		len(items), len(candidates), upserts, len(created))

	// Critical evaluation applies to newly-created threats only; re-scores
	// never re-alert.
	for _, dt := range created {
		if err := r.notifier.NotifyCritical(ctx, dt); err != nil {
			r.logger.Errorf("Critical notification failed for threat %d: %v", dt.Threat.ID, err)
		}
	}
	return nil
}
