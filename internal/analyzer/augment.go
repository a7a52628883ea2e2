package analyzer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cleardeed/diligence-cli/internal/cost"
	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/resilience"
	"github.com/cleardeed/diligence-cli/internal/rules"
	"github.com/cleardeed/diligence-cli/pkg/llmsvc"
	"github.com/cleardeed/diligence-cli/pkg/retrieval"
)

const (
	// defaultAugmentTopK is how many passages each retrieval query pulls
	// per document when retrieval.top_k is unset.
	defaultAugmentTopK = 2

	// augmentDescriptionLimit caps how much of the model response lands in a
	// finding description.
	augmentDescriptionLimit = 200

	// augmentTitleLimit caps how much of the query is echoed in the title.
	augmentTitleLimit = 50

	defaultAugmentTimeout = 45 * time.Second
)

// Augmenter runs the catalog's deep-analysis queries against retrieved
// document passages and converts flagged responses into findings. Every
// failure is isolated: a query that errors or times out yields no finding
// and never fails the analysis.
type Augmenter struct {
	retrieval retrieval.Client
	llm       llmsvc.Client
	queries   map[string][]string
	timeout   time.Duration
	topK      int
	retry     resilience.RetryConfig
	usage     *cost.Tracker

	// One breaker per upstream so a failing service is rejected fast
	// while the other keeps serving.
	retrievalCB *resilience.CircuitBreaker
	llmCB       *resilience.CircuitBreaker
}

// AugmenterOption customizes an Augmenter.
type AugmenterOption func(*Augmenter)

// WithRetry overrides the retry policy on augmentation calls.
func WithRetry(cfg resilience.RetryConfig) AugmenterOption {
	return func(a *Augmenter) { a.retry = cfg }
}

// WithTopK sets how many passages each retrieval query pulls per document.
func WithTopK(k int) AugmenterOption {
	return func(a *Augmenter) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithUsageTracker records token spend for every model call.
func WithUsageTracker(t *cost.Tracker) AugmenterOption {
	return func(a *Augmenter) { a.usage = t }
}

// WithCircuitBreaker overrides the breaker config for both upstreams.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) AugmenterOption {
	return func(a *Augmenter) {
		a.retrievalCB = resilience.NewCircuitBreaker(cfg)
		a.llmCB = resilience.NewCircuitBreaker(cfg)
	}
}

// NewAugmenter builds the augmentation pass over the given clients, with
// query lists taken from the catalog.
func NewAugmenter(r retrieval.Client, l llmsvc.Client, cat *rules.Catalog, timeout time.Duration, opts ...AugmenterOption) *Augmenter {
	if timeout <= 0 {
		timeout = defaultAugmentTimeout
	}
	a := &Augmenter{
		retrieval:   r,
		llm:         l,
		queries:     cat.AugmentQueries,
		timeout:     timeout,
		topK:        defaultAugmentTopK,
		retry:       resilience.DefaultRetryConfig(),
		retrievalCB: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		llmCB:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Augment fans the analysis-type's queries out concurrently, one goroutine
// per query with its own timeout, and reassembles results in query order so
// output is deterministic given the same responses. Findings are tagged with
// the given category and model provenance.
func (a *Augmenter) Augment(ctx context.Context, category model.Category, analysis model.AnalysisType, docIDs []string) []model.Finding {
	queries := a.queries[string(analysis)]
	if len(queries) == 0 || len(docIDs) == 0 {
		return nil
	}

	results := make([]*model.Finding, len(queries))
	g := new(errgroup.Group)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = a.runQuery(ctx, category, analysis, q, docIDs)
			return nil
		})
	}
	_ = g.Wait()

	var findings []model.Finding
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

func (a *Augmenter) runQuery(ctx context.Context, category model.Category, analysis model.AnalysisType, query string, docIDs []string) *model.Finding {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var passages []string
	for _, id := range docIDs {
		found, err := resilience.ExecuteVal(ctx, a.retrievalCB, func(ctx context.Context) ([]retrieval.Passage, error) {
			return resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]retrieval.Passage, error) {
				return a.retrieval.SimilaritySearch(ctx, retrieval.SearchRequest{
					Query:      query,
					K:          a.topK,
					DocumentID: id,
				})
			})
		})
		if err != nil {
			zap.L().Warn("augment: retrieval failed",
				zap.String("document_id", id),
				zap.String("query", query),
				zap.Error(err))
			continue
		}
		for _, p := range found {
			passages = append(passages, p.Text)
		}
	}
	if len(passages) == 0 {
		return nil
	}

	resp, err := resilience.ExecuteVal(ctx, a.llmCB, func(ctx context.Context) (*llmsvc.AnalyzeResponse, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*llmsvc.AnalyzeResponse, error) {
			return a.llm.Analyze(ctx, llmsvc.AnalyzeRequest{
				Query:        query,
				Passages:     passages,
				AnalysisType: string(analysis),
			})
		})
	})
	if err != nil {
		zap.L().Warn("augment: analysis failed",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}
	if a.usage != nil {
		a.usage.Record(resp.InputTokens, resp.OutputTokens)
	}

	return a.toFinding(category, analysis, query, resp.Text, docIDs)
}

// toFinding applies the flagging heuristic: a response only becomes a
// finding when it names a concern. Cross-document responses must mention an
// inconsistency or contradiction; single-document responses a risk or issue.
func (a *Augmenter) toFinding(category model.Category, analysis model.AnalysisType, query, response string, docIDs []string) *model.Finding {
	lower := strings.ToLower(response)

	var flagged bool
	var title, recommendation string
	if analysis == model.AnalysisCrossDoc {
		flagged = strings.Contains(lower, "inconsist") || strings.Contains(lower, "contradict")
		title = "AI-Detected Inconsistencies"
		recommendation = "Review these potential inconsistencies with a legal professional."
	} else {
		flagged = strings.Contains(lower, "risk") || strings.Contains(lower, "issue")
		title = "AI Analysis: " + truncate(query, augmentTitleLimit) + "..."
		recommendation = "Review this clause with a legal professional."
	}
	if !flagged {
		return nil
	}

	f := &model.Finding{
		Category:       category,
		Severity:       model.SeverityMedium,
		Title:          title,
		Description:    truncate(response, augmentDescriptionLimit),
		Recommendation: recommendation,
		Confidence:     0.6,
		Source:         model.SourceModel,
	}
	if len(docIDs) == 1 {
		f.DocumentID = docIDs[0]
	}
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
