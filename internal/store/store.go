package store

import (
	"context"

	"github.com/cleardeed/diligence-cli/internal/model"
)

// DefaultQuota is the analysis allowance assumed for a user with no quota
// row. A row is only materialized on the first decrement.
const DefaultQuota = 10

// JobFilter specifies criteria for listing analysis jobs.
type JobFilter struct {
	PropertyID string          `json:"property_id,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Status     model.JobStatus `json:"status,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis engine.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, propertyID, userID string, types []model.AnalysisType) (*model.AnalysisJob, error)
	MarkJobStarted(ctx context.Context, jobID string) error
	UpdateJobProgress(ctx context.Context, jobID string, progress int) error
	CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*model.AnalysisJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error)

	// Documents
	InsertDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	ImportDocuments(ctx context.Context, docs []model.Document) (int64, error)
	GetDocument(ctx context.Context, docID string) (*model.Document, error)
	ListCompletedDocuments(ctx context.Context, propertyID string) ([]model.Document, error)

	// Quotas
	GetQuota(ctx context.Context, userID string) (int, error)
	SetQuota(ctx context.Context, userID string, remaining int) error
	DecrementQuota(ctx context.Context, userID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
