package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleardeed/diligence-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteJobLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := s.CreateJob(ctx, "prop-1", "user-1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, model.DefaultAnalysisTypes(), job.AnalysisTypes)

	require.NoError(t, s.MarkJobStarted(ctx, job.ID))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.UpdateJobProgress(ctx, job.ID, 50))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)

	result := &model.JobResult{
		RiskScore: 42,
		RiskLevel: "medium",
		Summary:   "Found 2 risks. 0 critical, 1 high severity.",
		Findings: []model.Finding{
			{
				Category:   model.CategoryTitle,
				Severity:   model.SeverityHigh,
				Title:      "Registration Number Missing",
				Confidence: 0.8,
			},
			{
				Category:   model.CategoryContract,
				Severity:   model.SeverityMedium,
				Title:      "Earnest Money Not Specified",
				Confidence: 0.7,
			},
		},
		NegotiationPoints: []model.NegotiationPoint{
			{PointType: model.PointCondition, Title: "Request registration documents", LeverageLevel: model.LeverageHigh},
		},
	}
	require.NoError(t, s.CompleteJob(ctx, job.ID, result))

	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 42, got.RiskScore)
	assert.Equal(t, "medium", got.RiskLevel)
	assert.Len(t, got.Findings, 2)
	assert.Equal(t, "Registration Number Missing", got.Findings[0].Title)
	assert.Len(t, got.NegotiationPoints, 1)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteFailJob(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := s.CreateJob(ctx, "prop-1", "user-1", []model.AnalysisType{model.AnalysisTitle})
	require.NoError(t, err)

	require.NoError(t, s.FailJob(ctx, job.ID, "no completed documents found"))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "no completed documents found", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteJobNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.GetJob(ctx, "nope")
	assert.Error(t, err)

	assert.Error(t, s.MarkJobStarted(ctx, "nope"))
	assert.Error(t, s.UpdateJobProgress(ctx, "nope", 10))
	assert.Error(t, s.FailJob(ctx, "nope", "boom"))
}

func TestSQLiteListJobs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	j1, err := s.CreateJob(ctx, "prop-1", "user-1", nil)
	require.NoError(t, err)
	_, err = s.CreateJob(ctx, "prop-2", "user-1", nil)
	require.NoError(t, err)
	_, err = s.CreateJob(ctx, "prop-1", "user-2", nil)
	require.NoError(t, err)
	require.NoError(t, s.MarkJobStarted(ctx, j1.ID))

	all, err := s.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byProp, err := s.ListJobs(ctx, JobFilter{PropertyID: "prop-1"})
	require.NoError(t, err)
	assert.Len(t, byProp, 2)

	byUser, err := s.ListJobs(ctx, JobFilter{UserID: "user-2"})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	processing, err := s.ListJobs(ctx, JobFilter{Status: model.JobStatusProcessing})
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, j1.ID, processing[0].ID)

	limited, err := s.ListJobs(ctx, JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteDocuments(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	deed, err := s.InsertDocument(ctx, model.Document{
		PropertyID:    "prop-1",
		Type:          model.DocTitleDeed,
		Filename:      "deed.pdf",
		ExtractedText: "Title Deed. Seller: John Baker.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, deed.ID)
	assert.Equal(t, model.DocStatusCompleted, deed.Status)

	_, err = s.InsertDocument(ctx, model.Document{
		PropertyID:    "prop-1",
		Type:          model.DocSaleAgreement,
		Filename:      "contract.pdf",
		ExtractedText: "Sale Agreement.",
		Status:        model.DocStatusProcessing,
	})
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, deed.ID)
	require.NoError(t, err)
	assert.Equal(t, "deed.pdf", got.Filename)
	assert.Equal(t, model.DocTitleDeed, got.Type)

	// Only completed documents are visible to the analysis engine.
	completed, err := s.ListCompletedDocuments(ctx, "prop-1")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, deed.ID, completed[0].ID)
}

func TestSQLiteImportDocumentsUpserts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	docs := []model.Document{
		{ID: "doc-1", PropertyID: "prop-1", Type: model.DocTitleDeed, Filename: "deed.pdf", ExtractedText: "v1"},
		{ID: "doc-2", PropertyID: "prop-1", Type: model.DocSaleAgreement, Filename: "contract.pdf", ExtractedText: "v1"},
	}
	n, err := s.ImportDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-importing the same ids replaces content instead of duplicating rows.
	docs[0].ExtractedText = "v2"
	n, err = s.ImportDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ExtractedText)

	completed, err := s.ListCompletedDocuments(ctx, "prop-1")
	require.NoError(t, err)
	assert.Len(t, completed, 2)
}

func TestSQLiteQuota(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// No row yet means the default allowance.
	q, err := s.GetQuota(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuota, q)

	// First decrement materializes the row one below the default.
	require.NoError(t, s.DecrementQuota(ctx, "user-1"))
	q, err = s.GetQuota(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuota-1, q)

	require.NoError(t, s.SetQuota(ctx, "user-1", 1))
	require.NoError(t, s.DecrementQuota(ctx, "user-1"))
	require.NoError(t, s.DecrementQuota(ctx, "user-1"))

	// Floors at zero.
	q, err = s.GetQuota(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, q)
}

func TestSQLiteTimestampsRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	job, err := s.CreateJob(ctx, "prop-1", "user-1", nil)
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.After(before))
}
