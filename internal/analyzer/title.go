package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/rules"
)

// staleDocumentYears is the registration age beyond which a title deed is
// flagged as possibly outdated.
const staleDocumentYears = 10

var documentDateRe = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-](\d{2,4})`)

// TitleAnalyzer checks a title deed for ownership defects, encumbrances,
// validity problems, and stale registration.
type TitleAnalyzer struct {
	cat *rules.Catalog
	aug *Augmenter
	now func() time.Time
}

// NewTitleAnalyzer builds a title-deed analyzer. aug may be nil to skip the
// model-assisted pass.
func NewTitleAnalyzer(cat *rules.Catalog, aug *Augmenter) *TitleAnalyzer {
	return &TitleAnalyzer{cat: cat, aug: aug, now: time.Now}
}

// Analyze runs every title check over the document and derives negotiation
// points from the rule findings. Augmented findings are appended last and
// never feed the negotiation heuristics.
func (a *TitleAnalyzer) Analyze(ctx context.Context, doc model.Document) Result {
	text := doc.ExtractedText
	lower := strings.ToLower(text)
	terms := ExtractTerms(text, a.cat)

	var findings []model.Finding
	findings = append(findings, a.checkOwnership(terms, lower, doc.ID)...)
	findings = append(findings, a.checkEncumbrances(text, lower, doc.ID)...)
	findings = append(findings, a.checkAuthenticity(lower, doc.ID)...)
	findings = append(findings, a.checkStaleness(text, doc.ID)...)

	points := a.negotiationPoints(findings)

	if a.aug != nil {
		findings = append(findings, a.aug.Augment(ctx, model.CategoryTitle, model.AnalysisTitle, []string{doc.ID})...)
	}
	return Result{Findings: findings, NegotiationPoints: points}
}

func (a *TitleAnalyzer) checkOwnership(terms model.ExtractedTerms, lower, docID string) []model.Finding {
	var findings []model.Finding

	switch {
	case len(terms.Owners) == 0:
		findings = append(findings, model.Finding{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityCritical,
			Title:          "No Owner Identified",
			Description:    "Could not identify the registered owner in the title deed.",
			Recommendation: "Verify the registered owner with the land registry before proceeding.",
			Confidence:     0.9,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	case len(terms.Owners) > 1:
		findings = append(findings, model.Finding{
			Category: model.CategoryTitle,
			Severity: model.SeverityMedium,
			Title:    "Multiple Owners Listed",
			Description: fmt.Sprintf("The title deed names %d owners: %s. All must consent to the sale.",
				len(terms.Owners), strings.Join(terms.Owners, ", ")),
			Recommendation: "Confirm every listed owner has agreed to the sale in writing.",
			Confidence:     0.7,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}

	if kw, idx := firstKeyword(lower, a.cat.Title.DisputeKeywords); idx >= 0 {
		findings = append(findings, model.Finding{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityCritical,
			Title:          "Ownership Dispute Indicated",
			Description:    fmt.Sprintf("The title deed mentions %q, which may indicate an ownership dispute.", kw),
			Recommendation: "Obtain a litigation search and legal opinion before any payment.",
			Confidence:     0.6,
			LocationRef:    fmt.Sprintf("offset %d", idx),
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}
	return findings
}

func (a *TitleAnalyzer) checkEncumbrances(text, lower, docID string) []model.Finding {
	var findings []model.Finding
	for _, e := range a.cat.Title.Encumbrances {
		idx := strings.Index(lower, e.Keyword)
		if idx < 0 {
			continue
		}
		findings = append(findings, model.Finding{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityHigh,
			Title:          fmt.Sprintf("%s Detected", e.Title),
			Description:    e.Description,
			Recommendation: "Require the seller to clear this encumbrance before closing, or adjust the price.",
			Confidence:     0.8,
			LocationRef:    fmt.Sprintf("offset %d", idx),
			QuotedText:     contextWindow(text, idx, idx+len(e.Keyword), keywordWindow),
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}
	return findings
}

func (a *TitleAnalyzer) checkAuthenticity(lower, docID string) []model.Finding {
	var findings []model.Finding

	if kw, idx := firstKeyword(lower, a.cat.Title.ForgeryKeywords); idx >= 0 {
		findings = append(findings, model.Finding{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityCritical,
			Title:          "Possible Forgery Indicators",
			Description:    fmt.Sprintf("The document mentions %q, which may indicate authenticity problems.", kw),
			Recommendation: "Have the original deed verified by the issuing registry immediately.",
			Confidence:     0.7,
			LocationRef:    fmt.Sprintf("offset %d", idx),
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}

	if !anyKeyword(lower, a.cat.Title.SignatureIndicators) {
		findings = append(findings, model.Finding{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityHigh,
			Title:          "No Signatures Found",
			Description:    "No signature indicators were found in the title deed text.",
			Recommendation: "Inspect the original document for required signatures.",
			Confidence:     0.7,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}

	if !anyKeyword(lower, a.cat.Title.StampIndicators) {
		findings = append(findings, model.Finding{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityMedium,
			Title:          "No Official Stamps Detected",
			Description:    "No registration stamp or seal indicators were found in the title deed text.",
			Recommendation: "Confirm the deed carries the registry's official stamp or seal.",
			Confidence:     0.6,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}
	return findings
}

// checkStaleness flags the first date more than staleDocumentYears old.
// Two-digit years are read as 20xx; dates with unparseable years are skipped.
func (a *TitleAnalyzer) checkStaleness(text, docID string) []model.Finding {
	currentYear := a.now().Year()
	for _, m := range documentDateRe.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if year < 100 {
			year += 2000
		}
		if currentYear-year <= staleDocumentYears {
			continue
		}
		return []model.Finding{{
			Category:       model.CategoryTitle,
			Severity:       model.SeverityMedium,
			Title:          "Document May Be Outdated",
			Description:    fmt.Sprintf("The deed carries the date %s, over %d years old. Newer transactions may not be reflected.", m[0], staleDocumentYears),
			Recommendation: "Obtain a current certified copy of the title from the registry.",
			Confidence:     0.5,
			QuotedText:     m[0],
			DocumentID:     docID,
			Source:         model.SourceRule,
		}}
	}
	return nil
}

func (a *TitleAnalyzer) negotiationPoints(findings []model.Finding) []model.NegotiationPoint {
	var points []model.NegotiationPoint

	var criticals, highs int
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityCritical:
			criticals++
		case model.SeverityHigh:
			highs++
		}
	}

	switch {
	case criticals > 0:
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointPrice,
			Title:           "Significant Title Issues",
			Description:     fmt.Sprintf("The title analysis found %d critical issue(s) that materially affect the property's value.", criticals),
			LeverageLevel:   model.LeverageHigh,
			EstimatedImpact: "Consider a 10-20% price reduction or withdrawing the offer.",
			SuggestedAction: "Present the title findings to the seller and renegotiate before any payment.",
		})
	case highs > 0:
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointPrice,
			Title:           "Moderate Title Concerns",
			Description:     fmt.Sprintf("The title analysis found %d high-severity issue(s) worth raising with the seller.", highs),
			LeverageLevel:   model.LeverageMedium,
			EstimatedImpact: "Consider a modest price reduction or seller-funded remediation.",
			SuggestedAction: "Ask the seller to resolve these issues or compensate for them.",
		})
	}

	for _, f := range findings {
		lowerTitle := strings.ToLower(f.Title)
		if strings.Contains(lowerTitle, "lien") || strings.Contains(lowerTitle, "mortgage") {
			points = append(points, model.NegotiationPoint{
				PointType:       model.PointCondition,
				Title:           "Outstanding Encumbrances",
				Description:     "The title carries encumbrances that must be cleared before transfer.",
				LeverageLevel:   model.LeverageHigh,
				EstimatedImpact: "Closing can be blocked until the encumbrances are discharged.",
				SuggestedAction: "Make clearance of all encumbrances a written condition of closing.",
			})
			break
		}
	}
	return points
}
