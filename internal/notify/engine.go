package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/jobevents"
	"intel-correlation-service/internal/models"
	"intel-correlation-service/internal/providers"
	"intel-correlation-service/internal/reporting"
)

// itTicketThreshold selects which weekly threats become IT tickets.
const itTicketThreshold = 7.0

// ThreatSource is the slice of the ledger the notification workflows read.
type ThreatSource interface {
	ListThreatsSince(ctx context.Context, since time.Time, minScore float64) ([]models.ThreatDetail, error)
	CountThreatsByStatus(ctx context.Context, since time.Time) (map[models.ThreatStatus]int, error)
}

// MailSender delivers one message to a recipient list.
type MailSender interface {
	Send(to []string, subject, body string) error
}

// Engine evaluates the notification types independently: critical fires
// synchronously on newly-created threats, high_daily on its daily fire,
// weekly_report on the weekly fire. Scheduled types consult the job event
// log before sending so a replayed fire is recorded as skipped instead of
// delivered twice.
type Engine struct {
	db       ThreatSource
	events   *jobevents.Log
	renderer reporting.Renderer
	mailer   MailSender
	telegram *providers.Telegram
	settings func() models.Settings
	logger   *logrus.Logger
}

func NewEngine(threats ThreatSource, events *jobevents.Log, renderer reporting.Renderer,
	mailer MailSender, telegram *providers.Telegram,
	settings func() models.Settings, logger *logrus.Logger) *Engine {
	return &Engine{
		db:       threats,
		events:   events,
		renderer: renderer,
		mailer:   mailer,
		telegram: telegram,
		settings: settings,
		logger:   logger,
	}
}

func (e *Engine) append(jobID, kind, periodKey string, phase models.JobPhase, status string, recipients []string, msg string, artifacts []string) {
	ev := models.JobEvent{
		JobID:      jobID,
		Kind:       kind,
		PeriodKey:  periodKey,
		Timestamp:  time.Now(),
		Phase:      phase,
		Status:     status,
		Recipients: jobevents.MaskAll(recipients),
		Message:    msg,
		Artifacts:  artifacts,
	}
	if err := e.events.Append(ev); err != nil {
		e.logger.Errorf("Job event append failed (%s/%s): %v", kind, phase, err)
	}
}

// NotifyCritical dispatches the immediate workflow for one newly-created
// threat. Re-scored threats never reach here; the caller gates on the
// created flag from the ledger upsert.
func (e *Engine) NotifyCritical(ctx context.Context, dt models.ThreatDetail) error {
	cfg := e.settings()
	t := cfg.Type(models.NotifyCritical)
	if !t.Enabled || dt.Threat.RiskScore < t.Threshold {
		return nil
	}

	recipients, _ := cfg.ResolveRecipients(t)
	jobID := uuid.NewString()
	e.append(jobID, models.NotifyCritical, "", models.PhaseTriggered, "running", recipients,
		fmt.Sprintf("Critical threat %s on %s (score %.1f)", dt.Intel.ExternalID, dt.Asset.Hostname, dt.Threat.RiskScore), nil)

	if len(recipients) == 0 {
		e.append(jobID, models.NotifyCritical, "", models.PhaseFailed, "error", nil, "no recipients resolved", nil)
		return fmt.Errorf("critical notification: no recipients resolved")
	}

	ticket := reporting.BuildTicket(dt)
	path, err := e.renderer.RenderUrgentTicket(ticket)
	if err != nil {
		e.append(jobID, models.NotifyCritical, "", models.PhaseFailed, "error", recipients, err.Error(), nil)
		return err
	}
	e.append(jobID, models.NotifyCritical, "", models.PhaseRendering, "running", recipients, "urgent ticket rendered", []string{path})

	subject := fmt.Sprintf("[URGENT] Critical threat (risk %.1f) affecting %s", dt.Threat.RiskScore, dt.Asset.Hostname)
	body := criticalBody(dt, ticket)
	e.append(jobID, models.NotifyCritical, "", models.PhaseSending, "running", recipients, "dispatching", []string{path})
	if err := e.mailer.Send(recipients, subject, body); err != nil {
		e.append(jobID, models.NotifyCritical, "", models.PhaseFailed, "error", recipients, err.Error(), []string{path})
		return err
	}

	if e.telegram != nil {
		text := fmt.Sprintf("URGENT: %s on %s, risk %.1f (%s)",
			dt.Intel.ExternalID, dt.Asset.Hostname, dt.Threat.RiskScore, ticket.TicketID)
		if err := e.telegram.Send(ctx, text); err != nil {
			// Secondary channel: mail already went out, log and continue.
			e.logger.Warnf("Telegram urgent channel failed: %v", err)
		}
	}

	e.append(jobID, models.NotifyCritical, "", models.PhaseDone, "success", recipients, "critical alert delivered", []string{path})
	return nil
}

// RunDaily evaluates the high_daily workflow: one summary mail covering the
// trailing 24-hour window. An empty window is a skip, not an error.
func (e *Engine) RunDaily(ctx context.Context, now time.Time) error {
	cfg := e.settings()
	t := cfg.Type(models.NotifyHighDaily)
	if !t.Enabled {
		return nil
	}
	periodKey := now.Format("2006-01-02")
	jobID := uuid.NewString()

	done, err := e.events.HasDone(models.NotifyHighDaily, periodKey)
	if err != nil {
		return err
	}
	if done {
		e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseSkipped, "skipped", nil,
			"daily summary already sent for "+periodKey, nil)
		return nil
	}

	recipients, _ := cfg.ResolveRecipients(t)
	e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseTriggered, "running", recipients, "daily summary triggered", nil)

	threats, err := e.db.ListThreatsSince(ctx, now.Add(-24*time.Hour), t.Threshold)
	if err != nil {
		e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseFailed, "error", recipients, err.Error(), nil)
		return err
	}
	if len(threats) == 0 {
		e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseSkipped, "skipped", recipients,
			"no threats above threshold in the last 24h", nil)
		return nil
	}
	if len(recipients) == 0 {
		e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseFailed, "error", nil, "no recipients resolved", nil)
		return fmt.Errorf("high_daily notification: no recipients resolved")
	}

	subject := fmt.Sprintf("[Daily threat summary] %s - %d high-risk threats", periodKey, len(threats))
	body := dailyBody(threats, now)
	e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseSending, "running", recipients, "dispatching", nil)
	if err := e.mailer.Send(recipients, subject, body); err != nil {
		e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseFailed, "error", recipients, err.Error(), nil)
		return err
	}
	e.append(jobID, models.NotifyHighDaily, periodKey, models.PhaseDone, "success", recipients,
		fmt.Sprintf("daily summary sent (%d threats)", len(threats)), nil)
	return nil
}

// RunWeekly evaluates the weekly_report workflow. The resolved recipient
// groups determine which artifacts are produced: the CISO summary only when
// the ciso group is addressed, the IT ticket aggregate only when it is, and
// each group receives only its own artifact. force bypasses the period
// idempotency check (used by test sends); overrideTo reroutes delivery to
// one address treated as a CISO recipient.
func (e *Engine) RunWeekly(ctx context.Context, now time.Time, force bool, overrideTo string) error {
	cfg := e.settings()
	t := cfg.Type(models.NotifyWeeklyReport)
	if !t.Enabled && !force {
		return nil
	}
	year, week := now.ISOWeek()
	periodKey := fmt.Sprintf("%d-W%02d", year, week)
	jobID := uuid.NewString()

	if !force {
		done, err := e.events.HasDone(models.NotifyWeeklyReport, periodKey)
		if err != nil {
			return err
		}
		if done {
			e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseSkipped, "skipped", nil,
				"weekly report already sent for "+periodKey, nil)
			return nil
		}
	}

	recipients, groups := cfg.ResolveRecipients(t)
	if overrideTo != "" {
		recipients = []string{overrideTo}
		groups = map[string][]string{overrideTo: {models.GroupCISO}}
	}
	e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseTriggered, "running", recipients, "weekly report triggered", nil)

	if len(recipients) == 0 {
		e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseFailed, "error", nil, "no recipients resolved", nil)
		return fmt.Errorf("weekly_report notification: no recipients resolved")
	}

	needsCISO, needsIT := false, false
	for _, gs := range groups {
		for _, g := range gs {
			switch g {
			case models.GroupCISO:
				needsCISO = true
			case models.GroupIT:
				needsIT = true
			}
		}
	}

	windowStart := now.AddDate(0, 0, -7)
	threats, err := e.db.ListThreatsSince(ctx, windowStart, 0)
	if err != nil {
		e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseFailed, "error", recipients, err.Error(), nil)
		return err
	}

	var artifacts []string
	var cisoPath, itPath string

	if needsCISO {
		counts, err := e.db.CountThreatsByStatus(ctx, windowStart)
		if err != nil {
			e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseFailed, "error", recipients, err.Error(), nil)
			return err
		}
		summary := reporting.BuildWeeklySummary(windowStart, now, counts, threats, 10)
		cisoPath, err = e.renderer.RenderWeeklySummary(summary)
		if err != nil {
			e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseFailed, "error", recipients, err.Error(), nil)
			return err
		}
		artifacts = append(artifacts, cisoPath)
	}
	if needsIT {
		var tickets []reporting.Ticket
		for _, dt := range threats {
			if dt.Threat.RiskScore >= itTicketThreshold {
				tickets = append(tickets, reporting.BuildTicket(dt))
			}
		}
		itPath, err = e.renderer.RenderTicketAggregate(tickets)
		if err != nil {
			e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseFailed, "error", recipients, err.Error(), nil)
			return err
		}
		artifacts = append(artifacts, itPath)
	}
	e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseRendering, "running", recipients, "artifacts rendered", artifacts)

	e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseSending, "running", recipients, "dispatching", artifacts)
	var sendErrs []string
	sent := 0
	for _, addr := range recipients {
		for _, g := range groups[addr] {
			switch {
			case g == models.GroupCISO && cisoPath != "":
				subject := fmt.Sprintf("[Weekly security report] %s", periodKey)
				if err := e.mailer.Send([]string{addr}, subject, weeklyCISOBody(periodKey, len(threats), cisoPath)); err != nil {
					sendErrs = append(sendErrs, fmt.Sprintf("%s: %v", jobevents.MaskAddress(addr), err))
					continue
				}
				sent++
			case g == models.GroupIT && itPath != "":
				subject := fmt.Sprintf("[Weekly IT tickets] %s", periodKey)
				if err := e.mailer.Send([]string{addr}, subject, weeklyITBody(periodKey, itPath)); err != nil {
					sendErrs = append(sendErrs, fmt.Sprintf("%s: %v", jobevents.MaskAddress(addr), err))
					continue
				}
				sent++
			}
		}
	}

	if sent == 0 {
		msg := "all weekly deliveries failed"
		if len(sendErrs) > 0 {
			msg += ": " + strings.Join(sendErrs, "; ")
		}
		e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseFailed, "error", recipients, msg, artifacts)
		return fmt.Errorf("weekly_report: %s", msg)
	}

	status := "success"
	msg := fmt.Sprintf("weekly report delivered (%d messages)", sent)
	if len(sendErrs) > 0 {
		status = "partial"
		msg += "; failures: " + strings.Join(sendErrs, "; ")
	}
	e.append(jobID, models.NotifyWeeklyReport, periodKey, models.PhaseDone, status, recipients, msg, artifacts)
	return nil
}

func criticalBody(dt models.ThreatDetail, ticket reporting.Ticket) string {
	var b strings.Builder
	b.WriteString("Critical security threat detected.\n\n")
	fmt.Fprintf(&b, "Advisory: %s\n", dt.Intel.ExternalID)
	fmt.Fprintf(&b, "Title: %s\n", dt.Intel.Title)
	fmt.Fprintf(&b, "Source: %s\n", dt.Intel.Source)
	fmt.Fprintf(&b, "Affected host: %s (%s)\n", dt.Asset.Hostname, dt.Asset.IPAddress)
	fmt.Fprintf(&b, "Risk score: %.1f / 10.0\n\n", dt.Threat.RiskScore)
	fmt.Fprintf(&b, "Ticket: %s (priority %s)\n\n", ticket.TicketID, ticket.Priority)
	b.WriteString("Recommended actions:\n")
	for _, r := range ticket.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\n---\nAutomated notification, do not reply.\n")
	return b.String()
}

func dailyBody(threats []models.ThreatDetail, now time.Time) string {
	var b strings.Builder
	b.WriteString("High-risk threat daily summary\n\n")
	fmt.Fprintf(&b, "Window: %s to %s\n", now.Add(-24*time.Hour).Format("2006-01-02 15:04"), now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Threats: %d\n\n", len(threats))
	for _, dt := range threats {
		fmt.Fprintf(&b, "- %s on %s (%s), risk %.1f, source %s\n",
			dt.Intel.ExternalID, dt.Asset.Hostname, dt.Asset.IPAddress, dt.Threat.RiskScore, dt.Intel.Source)
	}
	b.WriteString("\n---\nAutomated notification, do not reply.\n")
	return b.String()
}

func weeklyCISOBody(periodKey string, total int, artifact string) string {
	return fmt.Sprintf("Weekly security summary for %s.\n\nThreats correlated this window: %d\nReport artifact: %s\n\n---\nAutomated notification, do not reply.\n",
		periodKey, total, artifact)
}

func weeklyITBody(periodKey, artifact string) string {
	return fmt.Sprintf("Weekly IT ticket aggregate for %s.\n\nTicket report artifact: %s\n\n---\nAutomated notification, do not reply.\n",
		periodKey, artifact)
}
