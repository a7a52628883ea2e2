// Package engine orchestrates analysis jobs: it pulls completed documents,
// dispatches the requested analyzers, scores the merged findings, and
// persists the terminal job state.
package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cleardeed/diligence-cli/internal/analyzer"
	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/resilience"
	"github.com/cleardeed/diligence-cli/internal/scorer"
	"github.com/cleardeed/diligence-cli/internal/store"
)

// ErrQuotaExhausted is returned by Start when the user has no analyses left.
var ErrQuotaExhausted = eris.New("engine: analysis quota exhausted")

// minCrossDocDocuments is the smallest document set the cross-document
// checker can compare.
const minCrossDocDocuments = 2

// Engine runs analysis jobs against a Store.
type Engine struct {
	store    store.Store
	title    *analyzer.TitleAnalyzer
	contract *analyzer.ContractAnalyzer
	crossDoc *analyzer.CrossDocAnalyzer
}

// New builds an engine. The analyzers share one rule catalog and one
// augmenter; aug may be nil to run rules only.
func New(st store.Store, title *analyzer.TitleAnalyzer, contract *analyzer.ContractAnalyzer, crossDoc *analyzer.CrossDocAnalyzer) *Engine {
	return &Engine{store: st, title: title, contract: contract, crossDoc: crossDoc}
}

// Start checks the user's quota and creates a pending job. It does not run
// the analysis; call Process with the returned job.
func (e *Engine) Start(ctx context.Context, propertyID, userID string, types []model.AnalysisType) (*model.AnalysisJob, error) {
	remaining, err := e.store.GetQuota(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: check quota")
	}
	if remaining <= 0 {
		return nil, ErrQuotaExhausted
	}
	job, err := e.store.CreateJob(ctx, propertyID, userID, types)
	if err != nil {
		return nil, eris.Wrap(err, "engine: create job")
	}
	zap.L().Info("analysis job created",
		zap.String("job_id", job.ID),
		zap.String("property_id", propertyID),
		zap.Int("quota_remaining", remaining))
	return job, nil
}

// Process runs a pending job to completion. The job fails only when no
// completed documents exist for the property; individual analyzer errors
// are logged and skipped. The user's quota is decremented once, on
// successful completion only.
func (e *Engine) Process(ctx context.Context, job *model.AnalysisJob) error {
	if err := e.store.MarkJobStarted(ctx, job.ID); err != nil {
		return eris.Wrap(err, "engine: mark started")
	}

	docs, err := e.store.ListCompletedDocuments(ctx, job.PropertyID)
	if err != nil {
		zap.L().Error("load documents",
			zap.String("job_id", job.ID),
			zap.String("error_type", resilience.ClassifyError(err)),
			zap.Error(err))
		if failErr := e.store.FailJob(ctx, job.ID, "failed to load documents"); failErr != nil {
			zap.L().Error("fail job", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return eris.Wrap(err, "engine: list documents")
	}
	if len(docs) == 0 {
		msg := "no completed documents found for property"
		if err := e.store.FailJob(ctx, job.ID, msg); err != nil {
			return eris.Wrap(err, "engine: fail job")
		}
		return eris.Errorf("engine: %s %s", msg, job.PropertyID)
	}

	types := job.AnalysisTypes
	if len(types) == 0 {
		types = model.DefaultAnalysisTypes()
	}

	var findings []model.Finding
	var points []model.NegotiationPoint
	for i, t := range types {
		res := e.runStep(ctx, job.ID, t, docs)
		findings = append(findings, res.Findings...)
		points = append(points, res.NegotiationPoints...)

		if err := e.store.UpdateJobProgress(ctx, job.ID, analysisProgress(i+1, len(types))); err != nil {
			zap.L().Warn("update progress", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	// Scoring phase.
	if err := e.store.UpdateJobProgress(ctx, job.ID, 75); err != nil {
		zap.L().Warn("update progress", zap.String("job_id", job.ID), zap.Error(err))
	}

	score, level := scorer.Calculate(findings)
	result := &model.JobResult{
		RiskScore:         score,
		RiskLevel:         level,
		Summary:           scorer.Headline(findings),
		Findings:          scorer.Prioritize(findings, 0),
		NegotiationPoints: points,
	}
	if err := e.store.CompleteJob(ctx, job.ID, result); err != nil {
		return eris.Wrap(err, "engine: complete job")
	}
	if err := e.store.DecrementQuota(ctx, job.UserID); err != nil {
		zap.L().Warn("decrement quota", zap.String("user_id", job.UserID), zap.Error(err))
	}

	zap.L().Info("analysis job completed",
		zap.String("job_id", job.ID),
		zap.Int("risk_score", score),
		zap.String("risk_level", level),
		zap.Int("findings", len(findings)))
	return nil
}

// runStep dispatches one analyzer. A panicking analyzer is recovered and
// contributes nothing; the job continues with the remaining steps.
func (e *Engine) runStep(ctx context.Context, jobID string, t model.AnalysisType, docs []model.Document) (res analyzer.Result) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("analyzer panicked",
				zap.String("job_id", jobID),
				zap.String("analysis_type", string(t)),
				zap.Any("panic", r))
			res = analyzer.Result{}
		}
	}()

	switch t {
	case model.AnalysisTitle:
		doc, ok := firstOfType(docs, model.DocTitleDeed)
		if !ok {
			zap.L().Debug("no title deed for property, skipping", zap.String("job_id", jobID))
			return analyzer.Result{}
		}
		return e.title.Analyze(ctx, doc)
	case model.AnalysisContract:
		doc, ok := firstOfType(docs, model.DocSaleAgreement)
		if !ok {
			zap.L().Debug("no sale agreement for property, skipping", zap.String("job_id", jobID))
			return analyzer.Result{}
		}
		return e.contract.Analyze(ctx, doc)
	case model.AnalysisCrossDoc:
		if len(docs) < minCrossDocDocuments {
			zap.L().Debug("fewer than two documents, skipping cross-document check", zap.String("job_id", jobID))
			return analyzer.Result{}
		}
		return e.crossDoc.Analyze(ctx, docs)
	default:
		zap.L().Warn("unknown analysis type", zap.String("job_id", jobID), zap.String("analysis_type", string(t)))
		return analyzer.Result{}
	}
}

// GetStatus returns the polling projection for a job.
func (e *Engine) GetStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: get status")
	}
	return &model.JobStatusView{
		JobID:         job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		RiskScore:     job.RiskScore,
		RiskLevel:     job.RiskLevel,
		FindingsCount: len(job.Findings),
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		ErrorMessage:  job.ErrorMessage,
	}, nil
}

// GetResults returns the terminal payload of a completed job.
func (e *Engine) GetResults(ctx context.Context, jobID string) (*model.JobResult, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: get results")
	}
	if job.Status != model.JobStatusCompleted {
		return nil, eris.New(fmt.Sprintf("engine: job %s is %s, results available once completed", jobID, job.Status))
	}
	return &model.JobResult{
		RiskScore:         job.RiskScore,
		RiskLevel:         job.RiskLevel,
		Summary:           job.Summary,
		Findings:          job.Findings,
		NegotiationPoints: job.NegotiationPoints,
	}, nil
}

// analysisProgress maps completed analyzer steps onto the first half of the
// progress bar; scoring and persistence own the rest.
func analysisProgress(completed, total int) int {
	if total <= 0 {
		return 50
	}
	return int(math.Round(float64(completed) / float64(total) * 50))
}

func firstOfType(docs []model.Document, t model.DocumentType) (model.Document, bool) {
	for _, d := range docs {
		if d.Type == t {
			return d, true
		}
	}
	return model.Document{}, false
}
