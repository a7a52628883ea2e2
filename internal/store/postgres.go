package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cleardeed/diligence-cli/internal/db"
	"github.com/cleardeed/diligence-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of job processing.
var preparedStatements = map[string]string{
	"insert_job":          `INSERT INTO analysis_jobs (id, property_id, user_id, status, progress, analysis_types, created_at) VALUES ($1, $2, $3, $4, 0, $5, $6)`,
	"mark_job_started":    `UPDATE analysis_jobs SET status = $1, started_at = $2 WHERE id = $3`,
	"update_job_progress": `UPDATE analysis_jobs SET progress = $1 WHERE id = $2`,
	"get_job":             `SELECT ` + pgJobColumns + ` FROM analysis_jobs WHERE id = $1`,
	"list_documents":      `SELECT id, property_id, doc_type, filename, extracted_text, status, created_at FROM documents WHERE property_id = $1 AND status = $2 ORDER BY created_at`,
}

const pgJobColumns = `id, property_id, user_id, status, progress, analysis_types,
	risk_score, risk_level, summary, findings, negotiation_points, error_message,
	created_at, started_at, completed_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk document import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	property_id        TEXT NOT NULL,
	user_id            TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	progress           INTEGER NOT NULL DEFAULT 0,
	analysis_types     JSONB NOT NULL,
	risk_score         INTEGER NOT NULL DEFAULT 0,
	risk_level         TEXT NOT NULL DEFAULT '',
	summary            TEXT,
	findings           JSONB,
	negotiation_points JSONB,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at         TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	property_id    TEXT NOT NULL,
	doc_type       TEXT NOT NULL,
	filename       TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'processing',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_quotas (
	user_id    TEXT PRIMARY KEY,
	remaining  INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_property ON analysis_jobs(property_id);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON analysis_jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON analysis_jobs(status);
CREATE INDEX IF NOT EXISTS idx_documents_property ON documents(property_id, status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, propertyID, userID string, types []model.AnalysisType) (*model.AnalysisJob, error) {
	if len(types) == 0 {
		types = model.DefaultAnalysisTypes()
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	typesJSON, err := json.Marshal(types)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal analysis types")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, property_id, user_id, status, progress, analysis_types, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		id, propertyID, userID, string(model.JobStatusPending), typesJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.AnalysisJob{
		ID:            id,
		PropertyID:    propertyID,
		UserID:        userID,
		Status:        model.JobStatusPending,
		AnalysisTypes: types,
		CreatedAt:     now,
	}, nil
}

func (s *PostgresStore) MarkJobStarted(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, started_at = $2 WHERE id = $3`,
		string(model.JobStatusProcessing), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark job started %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET progress = $1 WHERE id = $2`,
		progress, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job progress %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error {
	findingsJSON, err := json.Marshal(result.Findings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal findings")
	}
	pointsJSON, err := json.Marshal(result.NegotiationPoints)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal negotiation points")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $1, progress = 100, risk_score = $2, risk_level = $3, summary = $4,
		     findings = $5, negotiation_points = $6, completed_at = $7
		 WHERE id = $8`,
		string(model.JobStatusCompleted), result.RiskScore, result.RiskLevel, result.Summary,
		findingsJSON, pointsJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgJobColumns+` FROM analysis_jobs WHERE id = $1`, jobID)
	j, err := scanPgJob(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error) {
	query := `SELECT ` + pgJobColumns + ` FROM analysis_jobs WHERE true`
	var args []any
	argIdx := 1

	if filter.PropertyID != "" {
		query += fmt.Sprintf(` AND property_id = $%d`, argIdx)
		args = append(args, filter.PropertyID)
		argIdx++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.AnalysisJob
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list jobs scan")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = model.DocStatusCompleted
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, property_id, doc_type, filename, extracted_text, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.PropertyID, string(doc.Type), doc.Filename, doc.ExtractedText, string(doc.Status), doc.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
	}
	return &doc, nil
}

// ImportDocuments bulk-upserts a batch keyed by document id, via a temp
// table and COPY.
func (s *PostgresStore) ImportDocuments(ctx context.Context, docs []model.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}
		if doc.Status == "" {
			doc.Status = model.DocStatusCompleted
		}
		rows[i] = []any{doc.ID, doc.PropertyID, string(doc.Type), doc.Filename, doc.ExtractedText, string(doc.Status), doc.CreatedAt}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "documents",
		Columns:      []string{"id", "property_id", "doc_type", "filename", "extracted_text", "status", "created_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"property_id", "doc_type", "filename", "extracted_text", "status"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import documents")
	}
	return n, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, property_id, doc_type, filename, extracted_text, status, created_at
		 FROM documents WHERE id = $1`, docID,
	).Scan(&d.ID, &d.PropertyID, &d.Type, &d.Filename, &d.ExtractedText, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", docID)
	}
	return &d, nil
}

func (s *PostgresStore) ListCompletedDocuments(ctx context.Context, propertyID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, property_id, doc_type, filename, extracted_text, status, created_at
		 FROM documents WHERE property_id = $1 AND status = $2 ORDER BY created_at`,
		propertyID, string(model.DocStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.PropertyID, &d.Type, &d.Filename, &d.ExtractedText, &d.Status, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) GetQuota(ctx context.Context, userID string) (int, error) {
	var remaining int
	err := s.pool.QueryRow(ctx,
		`SELECT remaining FROM user_quotas WHERE user_id = $1`, userID,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultQuota, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get quota %s", userID)
	}
	return remaining, nil
}

func (s *PostgresStore) SetQuota(ctx context.Context, userID string, remaining int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_quotas (user_id, remaining, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET remaining = EXCLUDED.remaining, updated_at = EXCLUDED.updated_at`,
		userID, remaining, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set quota %s", userID)
}

// DecrementQuota burns one analysis, flooring at zero. A user with no row
// starts from the default allowance.
func (s *PostgresStore) DecrementQuota(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_quotas (user_id, remaining, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		   remaining = GREATEST(user_quotas.remaining - 1, 0),
		   updated_at = EXCLUDED.updated_at`,
		userID, DefaultQuota-1, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: decrement quota %s", userID)
}

func scanPgJob(row pgx.Row) (*model.AnalysisJob, error) {
	var j model.AnalysisJob
	var typesJSON []byte
	var summary, errMsg *string
	var findingsJSON, pointsJSON []byte
	var startedAt, completedAt *time.Time

	err := row.Scan(&j.ID, &j.PropertyID, &j.UserID, &j.Status, &j.Progress, &typesJSON,
		&j.RiskScore, &j.RiskLevel, &summary, &findingsJSON, &pointsJSON, &errMsg,
		&j.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(typesJSON, &j.AnalysisTypes); err != nil {
		return nil, eris.Wrap(err, "unmarshal analysis types")
	}
	if summary != nil {
		j.Summary = *summary
	}
	if len(findingsJSON) > 0 {
		if err := json.Unmarshal(findingsJSON, &j.Findings); err != nil {
			return nil, eris.Wrap(err, "unmarshal findings")
		}
	}
	if len(pointsJSON) > 0 {
		if err := json.Unmarshal(pointsJSON, &j.NegotiationPoints); err != nil {
			return nil, eris.Wrap(err, "unmarshal negotiation points")
		}
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	j.StartedAt = startedAt
	j.CompletedAt = completedAt
	return &j, nil
}
