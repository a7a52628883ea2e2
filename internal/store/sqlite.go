package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cleardeed/diligence-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id                 TEXT PRIMARY KEY,
	property_id        TEXT NOT NULL,
	user_id            TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	progress           INTEGER NOT NULL DEFAULT 0,
	analysis_types     TEXT NOT NULL,
	risk_score         INTEGER NOT NULL DEFAULT 0,
	risk_level         TEXT NOT NULL DEFAULT '',
	summary            TEXT,
	findings           TEXT,
	negotiation_points TEXT,
	error_message      TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at         DATETIME,
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	property_id    TEXT NOT NULL,
	doc_type       TEXT NOT NULL,
	filename       TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'processing',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_quotas (
	user_id    TEXT PRIMARY KEY,
	remaining  INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_property ON analysis_jobs(property_id);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON analysis_jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON analysis_jobs(status);
CREATE INDEX IF NOT EXISTS idx_documents_property ON documents(property_id, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, propertyID, userID string, types []model.AnalysisType) (*model.AnalysisJob, error) {
	if len(types) == 0 {
		types = model.DefaultAnalysisTypes()
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	typesJSON, err := json.Marshal(types)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal analysis types")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_jobs (id, property_id, user_id, status, progress, analysis_types, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, propertyID, userID, string(model.JobStatusPending), string(typesJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
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

func (s *SQLiteStore) MarkJobStarted(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(model.JobStatusProcessing), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job started %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET progress = ? WHERE id = ?`,
		progress, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job progress %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error {
	findingsJSON, err := json.Marshal(result.Findings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal findings")
	}
	pointsJSON, err := json.Marshal(result.NegotiationPoints)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal negotiation points")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs
		 SET status = ?, progress = 100, risk_score = ?, risk_level = ?, summary = ?,
		     findings = ?, negotiation_points = ?, completed_at = ?
		 WHERE id = ?`,
		string(model.JobStatusCompleted), result.RiskScore, result.RiskLevel, result.Summary,
		string(findingsJSON), string(pointsJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

const sqliteJobColumns = `id, property_id, user_id, status, progress, analysis_types,
	risk_score, risk_level, summary, findings, negotiation_points, error_message,
	created_at, started_at, completed_at`

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteJobColumns+` FROM analysis_jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error) {
	query := `SELECT ` + sqliteJobColumns + ` FROM analysis_jobs WHERE 1=1`
	var args []any

	if filter.PropertyID != "" {
		query += ` AND property_id = ?`
		args = append(args, filter.PropertyID)
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = model.DocStatusCompleted
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, property_id, doc_type, filename, extracted_text, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.PropertyID, string(doc.Type), doc.Filename, doc.ExtractedText, string(doc.Status), doc.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
	}
	return &doc, nil
}

// ImportDocuments upserts a batch in one transaction, keyed by document id.
func (s *SQLiteStore) ImportDocuments(ctx context.Context, docs []model.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	var n int64
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}
		if doc.Status == "" {
			doc.Status = model.DocStatusCompleted
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, property_id, doc_type, filename, extracted_text, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   property_id = excluded.property_id,
			   doc_type = excluded.doc_type,
			   filename = excluded.filename,
			   extracted_text = excluded.extracted_text,
			   status = excluded.status`,
			doc.ID, doc.PropertyID, string(doc.Type), doc.Filename, doc.ExtractedText, string(doc.Status), doc.CreatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import document %s", doc.Filename)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, property_id, doc_type, filename, extracted_text, status, created_at
		 FROM documents WHERE id = ?`, docID)
	return scanDocument(row)
}

func (s *SQLiteStore) ListCompletedDocuments(ctx context.Context, propertyID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, property_id, doc_type, filename, extracted_text, status, created_at
		 FROM documents WHERE property_id = ? AND status = ? ORDER BY created_at`,
		propertyID, string(model.DocStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) GetQuota(ctx context.Context, userID string) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx,
		`SELECT remaining FROM user_quotas WHERE user_id = ?`, userID,
	).Scan(&remaining)
	if err == sql.ErrNoRows {
		return DefaultQuota, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get quota %s", userID)
	}
	return remaining, nil
}

func (s *SQLiteStore) SetQuota(ctx context.Context, userID string, remaining int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_quotas (user_id, remaining, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET remaining = excluded.remaining, updated_at = excluded.updated_at`,
		userID, remaining, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set quota %s", userID)
}

// DecrementQuota burns one analysis, flooring at zero. A user with no row
// starts from the default allowance.
func (s *SQLiteStore) DecrementQuota(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_quotas (user_id, remaining, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   remaining = MAX(user_quotas.remaining - 1, 0),
		   updated_at = excluded.updated_at`,
		userID, DefaultQuota-1, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: decrement quota %s", userID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.AnalysisJob, error) {
	var j model.AnalysisJob
	var typesJSON string
	var summary, findingsJSON, pointsJSON, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&j.ID, &j.PropertyID, &j.UserID, &j.Status, &j.Progress, &typesJSON,
		&j.RiskScore, &j.RiskLevel, &summary, &findingsJSON, &pointsJSON, &errMsg,
		&j.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	if err := json.Unmarshal([]byte(typesJSON), &j.AnalysisTypes); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal analysis types")
	}
	if summary.Valid {
		j.Summary = summary.String
	}
	if findingsJSON.Valid && findingsJSON.String != "" {
		if err := json.Unmarshal([]byte(findingsJSON.String), &j.Findings); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal findings")
		}
	}
	if pointsJSON.Valid && pointsJSON.String != "" {
		if err := json.Unmarshal([]byte(pointsJSON.String), &j.NegotiationPoints); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal negotiation points")
		}
	}
	if errMsg.Valid {
		j.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.PropertyID, &d.Type, &d.Filename, &d.ExtractedText, &d.Status, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("document not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}
	return &d, nil
}
