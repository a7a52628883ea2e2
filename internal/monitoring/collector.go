// Package monitoring collects job health metrics and raises webhook alerts
// when failure or risk thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of analysis job health.
type MetricsSnapshot struct {
	// Job metrics (within lookback window).
	JobsTotal      int     `json:"jobs_total"`
	JobsCompleted  int     `json:"jobs_completed"`
	JobsFailed     int     `json:"jobs_failed"`
	JobsPending    int     `json:"jobs_pending"`
	JobsProcessing int     `json:"jobs_processing"`
	JobFailRate    float64 `json:"job_fail_rate"`

	// Risk metrics over completed jobs.
	AvgRiskScore     float64 `json:"avg_risk_score"`
	CriticalRiskJobs int     `json:"critical_risk_jobs"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the job store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of job metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.store.ListJobs(ctx, store.JobFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	var totalScore float64
	var scoredJobs int
	for _, j := range jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++
		switch j.Status {
		case model.JobStatusCompleted:
			snap.JobsCompleted++
			totalScore += float64(j.RiskScore)
			scoredJobs++
			if j.RiskLevel == "critical" {
				snap.CriticalRiskJobs++
			}
		case model.JobStatusFailed:
			snap.JobsFailed++
		case model.JobStatusPending:
			snap.JobsPending++
		case model.JobStatusProcessing:
			snap.JobsProcessing++
		}
	}

	finished := snap.JobsCompleted + snap.JobsFailed
	if finished > 0 {
		snap.JobFailRate = float64(snap.JobsFailed) / float64(finished)
	}
	if scoredJobs > 0 {
		snap.AvgRiskScore = totalScore / float64(scoredJobs)
	}

	return snap, nil
}
