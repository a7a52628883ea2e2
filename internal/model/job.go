package model

import "time"

// JobStatus represents the current state of an analysis job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AnalysisType names one analyzer step of a job.
type AnalysisType string

const (
	AnalysisTitle    AnalysisType = "title"
	AnalysisContract AnalysisType = "contract"
	AnalysisCrossDoc AnalysisType = "cross_document"
)

// DefaultAnalysisTypes is the full analyzer sequence, in dispatch order.
func DefaultAnalysisTypes() []AnalysisType {
	return []AnalysisType{AnalysisTitle, AnalysisContract, AnalysisCrossDoc}
}

// AnalysisJob is the orchestration unit. It owns its finding and negotiation
// point collections exclusively; they are destroyed with the job.
type AnalysisJob struct {
	ID                string             `json:"id"`
	PropertyID        string             `json:"property_id"`
	UserID            string             `json:"user_id"`
	Status            JobStatus          `json:"status"`
	Progress          int                `json:"progress"`
	AnalysisTypes     []AnalysisType     `json:"analysis_types"`
	RiskScore         int                `json:"risk_score"`
	RiskLevel         string             `json:"risk_level"`
	Summary           string             `json:"summary,omitempty"`
	Findings          []Finding          `json:"findings,omitempty"`
	NegotiationPoints []NegotiationPoint `json:"negotiation_points,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

// JobResult is the terminal payload persisted when a job completes.
type JobResult struct {
	RiskScore         int                `json:"risk_score"`
	RiskLevel         string             `json:"risk_level"`
	Summary           string             `json:"summary"`
	Findings          []Finding          `json:"findings"`
	NegotiationPoints []NegotiationPoint `json:"negotiation_points"`
}

// JobStatusView is the status projection returned to callers polling a job.
type JobStatusView struct {
	JobID         string     `json:"job_id"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	RiskScore     int        `json:"risk_score"`
	RiskLevel     string     `json:"risk_level"`
	FindingsCount int        `json:"findings_count"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}
