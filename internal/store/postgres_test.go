package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleardeed/diligence-cli/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresCreateJob(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO analysis_jobs`).
		WithArgs(pgxmock.AnyArg(), "prop-1", "user-1", "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := s.CreateJob(context.Background(), "prop-1", "user-1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, model.DefaultAnalysisTypes(), job.AnalysisTypes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkJobStarted(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE analysis_jobs SET status`).
		WithArgs("processing", pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkJobStarted(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkJobStartedNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE analysis_jobs SET status`).
		WithArgs("processing", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkJobStarted(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestPostgresCompleteJob(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE analysis_jobs`).
		WithArgs("completed", 42, "medium", "summary",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	result := &model.JobResult{
		RiskScore: 42,
		RiskLevel: "medium",
		Summary:   "summary",
		Findings: []model.Finding{
			{Category: model.CategoryTitle, Severity: model.SeverityHigh, Title: "Registration Number Missing", Confidence: 0.8},
		},
	}
	require.NoError(t, s.CompleteJob(context.Background(), "job-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetJob(t *testing.T) {
	s, mock := newMockPostgres(t)

	now := time.Now().UTC()
	typesJSON, err := json.Marshal(model.DefaultAnalysisTypes())
	require.NoError(t, err)
	findingsJSON, err := json.Marshal([]model.Finding{
		{Category: model.CategoryContract, Severity: model.SeverityMedium, Title: "Earnest Money Not Specified"},
	})
	require.NoError(t, err)

	summary := "Found 1 risks. 0 critical, 0 high severity."
	rows := pgxmock.NewRows([]string{
		"id", "property_id", "user_id", "status", "progress", "analysis_types",
		"risk_score", "risk_level", "summary", "findings", "negotiation_points", "error_message",
		"created_at", "started_at", "completed_at",
	}).AddRow(
		"job-1", "prop-1", "user-1", model.JobStatusCompleted, 100, typesJSON,
		17, "low", &summary, findingsJSON, []byte(`[]`), (*string)(nil),
		now, &now, &now,
	)
	mock.ExpectQuery(`(?s)SELECT .+ FROM analysis_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 17, job.RiskScore)
	assert.Equal(t, summary, job.Summary)
	require.Len(t, job.Findings, 1)
	assert.Equal(t, "Earnest Money Not Specified", job.Findings[0].Title)
	require.NotNil(t, job.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetQuotaNoRow(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT remaining FROM user_quotas`).
		WithArgs("user-1").
		WillReturnError(pgx.ErrNoRows)

	q, err := s.GetQuota(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuota, q)
}

func TestPostgresDecrementQuota(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO user_quotas`).
		WithArgs("user-1", DefaultQuota-1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.DecrementQuota(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListCompletedDocuments(t *testing.T) {
	s, mock := newMockPostgres(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "property_id", "doc_type", "filename", "extracted_text", "status", "created_at",
	}).
		AddRow("doc-1", "prop-1", model.DocTitleDeed, "deed.pdf", "Title Deed", model.DocStatusCompleted, now).
		AddRow("doc-2", "prop-1", model.DocSaleAgreement, "contract.pdf", "Sale Agreement", model.DocStatusCompleted, now)

	mock.ExpectQuery(`(?s)SELECT .+ FROM documents WHERE property_id`).
		WithArgs("prop-1", "completed").
		WillReturnRows(rows)

	docs, err := s.ListCompletedDocuments(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, model.DocTitleDeed, docs[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportDocuments(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_documents"},
		[]string{"id", "property_id", "doc_type", "filename", "extracted_text", "status", "created_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "documents"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	docs := []model.Document{
		{ID: "doc-1", PropertyID: "prop-1", Type: model.DocTitleDeed, Filename: "deed.pdf", ExtractedText: "v1"},
		{ID: "doc-2", PropertyID: "prop-1", Type: model.DocSaleAgreement, Filename: "contract.pdf", ExtractedText: "v1"},
	}
	n, err := s.ImportDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListJobsFilters(t *testing.T) {
	s, mock := newMockPostgres(t)

	typesJSON, err := json.Marshal([]model.AnalysisType{model.AnalysisTitle})
	require.NoError(t, err)
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "property_id", "user_id", "status", "progress", "analysis_types",
		"risk_score", "risk_level", "summary", "findings", "negotiation_points", "error_message",
		"created_at", "started_at", "completed_at",
	}).AddRow(
		"job-1", "prop-1", "user-1", model.JobStatusPending, 0, typesJSON,
		0, "", (*string)(nil), []byte(nil), []byte(nil), (*string)(nil),
		now, (*time.Time)(nil), (*time.Time)(nil),
	)
	mock.ExpectQuery(`(?s)SELECT .+ FROM analysis_jobs WHERE true AND property_id`).
		WithArgs("prop-1", 100).
		WillReturnRows(rows)

	jobs, err := s.ListJobs(context.Background(), JobFilter{PropertyID: "prop-1"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
