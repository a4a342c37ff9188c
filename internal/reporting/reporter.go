package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"intel-correlation-service/internal/models"
)

// Ticket is the IT-facing remediation unit derived from one validated
// threat.
type Ticket struct {
	TicketID string `json:"ticket_id"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Asset    struct {
		Hostname  string `json:"hostname"`
		IPAddress string `json:"ip_address"`
		Owner     string `json:"owner,omitempty"`
	} `json:"asset"`
	Threat struct {
		ExternalID string   `json:"external_id"`
		Title      string   `json:"title"`
		RiskScore  float64  `json:"risk_score"`
		Source     string   `json:"source"`
		CVSS       *float64 `json:"cvss,omitempty"`
	} `json:"threat"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

// WeeklySummary is the CISO-facing aggregate for one reporting window.
type WeeklySummary struct {
	GeneratedAt   time.Time                   `json:"generated_at"`
	WindowStart   time.Time                   `json:"window_start"`
	WindowEnd     time.Time                   `json:"window_end"`
	TotalThreats  int                         `json:"total_threats"`
	StatusCounts  map[models.ThreatStatus]int `json:"status_counts"`
	HighRiskCount int                         `json:"high_risk_count"`
	TopThreats    []models.ThreatDetail       `json:"top_threats"`
}

// Renderer produces notification artifacts. The real presentation layer
// (HTML/PDF templating) is a separate collaborator; the engine only needs
// artifact files it can attach and record.
type Renderer interface {
	RenderWeeklySummary(s WeeklySummary) (path string, err error)
	RenderTicketAggregate(tickets []Ticket) (path string, err error)
	RenderUrgentTicket(t Ticket) (path string, err error)
}

// FileRenderer writes JSON artifacts under <base>/<YYYYMM>/.
type FileRenderer struct {
	base string
}

func NewFileRenderer(base string) *FileRenderer {
	return &FileRenderer{base: base}
}

func (r *FileRenderer) write(name string, v any) (string, error) {
	now := time.Now()
	dir := filepath.Join(r.base, now.Format("200601"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, now.Format("20060102_150405")))
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s artifact: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s artifact: %w", name, err)
	}
	return path, nil
}

func (r *FileRenderer) RenderWeeklySummary(s WeeklySummary) (string, error) {
	return r.write("ciso_weekly", s)
}

func (r *FileRenderer) RenderTicketAggregate(tickets []Ticket) (string, error) {
	payload := struct {
		ReportType   string    `json:"report_type"`
		GeneratedAt  time.Time `json:"generated_at"`
		TotalTickets int       `json:"total_tickets"`
		Tickets      []Ticket  `json:"tickets"`
	}{"IT Weekly Tickets Summary", time.Now(), len(tickets), tickets}
	return r.write("it_tickets", payload)
}

func (r *FileRenderer) RenderUrgentTicket(t Ticket) (string, error) {
	return r.write("urgent_ticket", t)
}

// BuildTicket derives a ticket from a threat detail. Threats at or above
// 9.0 are P0, everything else handed to IT is P1.
func BuildTicket(dt models.ThreatDetail) Ticket {
	var t Ticket
	now := time.Now()
	t.TicketID = fmt.Sprintf("TICKET-%d-%s", dt.Threat.ID, now.Format("20060102150405"))
	t.Priority = "P1"
	if dt.Threat.RiskScore >= 9.0 {
		t.Priority = "P0"
	}
	t.Title = fmt.Sprintf("Security threat: %s - %s", dt.Intel.ExternalID, dt.Asset.Hostname)
	t.Asset.Hostname = dt.Asset.Hostname
	t.Asset.IPAddress = dt.Asset.IPAddress
	t.Asset.Owner = dt.Asset.Owner
	t.Threat.ExternalID = dt.Intel.ExternalID
	t.Threat.Title = dt.Intel.Title
	t.Threat.RiskScore = dt.Threat.RiskScore
	t.Threat.Source = dt.Intel.Source
	t.Threat.CVSS = dt.Intel.CVSS
	t.Recommendations = recommendations(dt)
	t.CreatedAt = now
	return t
}

func recommendations(dt models.ThreatDetail) []string {
	var recs []string
	if dt.Intel.ExternalID != "" {
		recs = append(recs, fmt.Sprintf("Review advisory details: https://nvd.nist.gov/vuln/detail/%s", dt.Intel.ExternalID))
	}
	if dt.Intel.Source == "CISA_KEV" {
		recs = append(recs, "Listed in the CISA Known Exploited Vulnerabilities catalog; patch immediately")
	}
	recs = append(recs,
		"Contact the asset owner for impact assessment",
		"Consider interim mitigations until a patch is applied")
	return recs
}

// BuildWeeklySummary assembles the CISO aggregate from the window's threats.
func BuildWeeklySummary(start, end time.Time, counts map[models.ThreatStatus]int, threats []models.ThreatDetail, topN int) WeeklySummary {
	total := 0
	for _, n := range counts {
		total += n
	}
	high := 0
	for _, dt := range threats {
		if dt.Threat.RiskScore >= 7.0 {
			high++
		}
	}
	top := threats
	if len(top) > topN {
		top = top[:topN]
	}
	return WeeklySummary{
		GeneratedAt:   time.Now(),
		WindowStart:   start,
		WindowEnd:     end,
		TotalThreats:  total,
		StatusCounts:  counts,
		HighRiskCount: high,
		TopThreats:    top,
	}
}
