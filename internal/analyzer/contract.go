package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/rules"
)

// ContractAnalyzer checks a sale agreement for missing clauses, missing
// buyer protections, risky clause archetypes, and unclear payment terms.
type ContractAnalyzer struct {
	cat *rules.Catalog
	aug *Augmenter
}

// NewContractAnalyzer builds a sale-agreement analyzer. aug may be nil to
// skip the model-assisted pass.
func NewContractAnalyzer(cat *rules.Catalog, aug *Augmenter) *ContractAnalyzer {
	return &ContractAnalyzer{cat: cat, aug: aug}
}

// Analyze runs every contract check over the document and derives
// negotiation points from the extracted terms and rule findings.
func (a *ContractAnalyzer) Analyze(ctx context.Context, doc model.Document) Result {
	text := doc.ExtractedText
	lower := strings.ToLower(text)
	terms := ExtractTerms(text, a.cat)

	var findings []model.Finding
	findings = append(findings, CheckRequiredClauses(terms, text, a.cat, doc.ID)...)
	findings = append(findings, CheckContingencies(terms, a.cat, doc.ID)...)
	findings = append(findings, CheckRiskyClauses(text, a.cat, doc.ID)...)
	findings = append(findings, a.checkPaymentTerms(terms, lower, doc.ID)...)

	points := a.negotiationPoints(terms, findings)

	if a.aug != nil {
		findings = append(findings, a.aug.Augment(ctx, model.CategoryContract, model.AnalysisContract, []string{doc.ID})...)
	}
	return Result{Findings: findings, NegotiationPoints: points}
}

func (a *ContractAnalyzer) checkPaymentTerms(terms model.ExtractedTerms, lower, docID string) []model.Finding {
	var findings []model.Finding

	if terms.EarnestMoney == "" {
		findings = append(findings, model.Finding{
			Category:       model.CategoryContract,
			Severity:       model.SeverityMedium,
			Title:          "Earnest Money Not Specified",
			Description:    "The agreement does not state an earnest money deposit amount.",
			Recommendation: "Specify the deposit amount and the conditions for its return.",
			Confidence:     0.7,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}

	mentionsPayments := strings.Contains(lower, "down payment") || strings.Contains(lower, "installment")
	hasSchedule := strings.Contains(lower, "schedule") || strings.Contains(lower, "timeline")
	if mentionsPayments && !hasSchedule {
		findings = append(findings, model.Finding{
			Category:       model.CategoryContract,
			Severity:       model.SeverityMedium,
			Title:          "Unclear Payment Schedule",
			Description:    "The agreement mentions staged payments but no schedule or timeline for them.",
			Recommendation: "Attach a payment schedule with exact amounts and due dates.",
			Confidence:     0.6,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}
	return findings
}

func (a *ContractAnalyzer) negotiationPoints(terms model.ExtractedTerms, findings []model.Finding) []model.NegotiationPoint {
	var points []model.NegotiationPoint

	var missingContingencies int
	asIs := false
	for _, f := range findings {
		if strings.Contains(f.Title, "Contingency") {
			missingContingencies++
		}
		if strings.Contains(f.Title, `"As Is"`) {
			asIs = true
		}
	}

	if missingContingencies > 0 {
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointCondition,
			Title:           "Missing Important Contingencies",
			Description:     fmt.Sprintf("The agreement lacks %d standard buyer protection(s).", missingContingencies),
			LeverageLevel:   model.LeverageHigh,
			EstimatedImpact: "Without these protections you risk losing your deposit.",
			SuggestedAction: "Require inspection, financing, and title contingencies to be added.",
		})
	}

	if asIs {
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointCondition,
			Title:           `Property Sold "As Is"`,
			Description:     "The seller will not repair defects found after signing.",
			LeverageLevel:   model.LeverageMedium,
			EstimatedImpact: "Repair costs shift entirely to the buyer.",
			SuggestedAction: "Negotiate a repair credit or a pre-closing inspection with exit rights.",
		})
	}

	if terms.PurchasePrice == "" {
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointPrice,
			Title:           "Price Not Clearly Defined",
			Description:     "No purchase price could be identified in the agreement.",
			LeverageLevel:   model.LeverageCritical,
			EstimatedImpact: "The agreement may be unenforceable without a definite price.",
			SuggestedAction: "Do not sign until the exact price is stated in the agreement.",
		})
	}

	if terms.PossessionDate != "" {
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointTimeline,
			Title:           "Review Closing Timeline",
			Description:     fmt.Sprintf("Possession is set for %s. Confirm this fits your financing and moving plans.", terms.PossessionDate),
			LeverageLevel:   model.LeverageLow,
			EstimatedImpact: "A mismatch can trigger penalty clauses or bridging costs.",
			SuggestedAction: "Align the possession date with your loan disbursal schedule.",
		})
	}
	return points
}
