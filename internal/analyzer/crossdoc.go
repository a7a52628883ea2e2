package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/rules"
)

// Fuzzy-match thresholds. Names get a stricter bar because a one-word
// difference in a name is more likely to matter than in an address.
const (
	fieldMatchThreshold = 0.8
	nameMatchThreshold  = 0.85
)

// crossDocFields fixes the comparison order so findings come out
// deterministically regardless of map iteration.
var crossDocFields = []string{
	"seller_name",
	"buyer_name",
	"property_description",
	"property_address",
	"purchase_price",
	"date",
}

// highMismatchFields are the fields whose disagreement is high severity;
// the rest are medium.
var highMismatchFields = map[string]bool{
	"seller_name":    true,
	"purchase_price": true,
}

// CrossDocAnalyzer compares field values extracted from every document of a
// property and flags disagreements. It needs at least two documents; with
// fewer it returns an empty result rather than an error.
type CrossDocAnalyzer struct {
	cat *rules.Catalog
	aug *Augmenter
}

// NewCrossDocAnalyzer builds a cross-document consistency checker. aug may
// be nil to skip the model-assisted pass.
func NewCrossDocAnalyzer(cat *rules.Catalog, aug *Augmenter) *CrossDocAnalyzer {
	return &CrossDocAnalyzer{cat: cat, aug: aug}
}

// Analyze extracts comparison terms from each document and runs the field,
// party, and chronology checks across them.
func (a *CrossDocAnalyzer) Analyze(ctx context.Context, docs []model.Document) Result {
	if len(docs) < 2 {
		return Result{}
	}

	terms := make([]model.CrossDocTerms, len(docs))
	for i, d := range docs {
		terms[i] = ExtractCrossDocTerms(d.ExtractedText, a.cat)
	}

	var findings []model.Finding
	findings = append(findings, a.compareFields(docs, terms)...)
	findings = append(findings, a.checkParties(docs, terms)...)
	findings = append(findings, a.checkChronology(docs, terms)...)

	points := a.negotiationPoints(findings)

	if a.aug != nil {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		findings = append(findings, a.aug.Augment(ctx, model.CategoryInconsistency, model.AnalysisCrossDoc, ids)...)
	}
	return Result{Findings: findings, NegotiationPoints: points}
}

// compareFields emits at most one finding per field. The first document
// carrying a value is the reference; any later document whose value is not
// a fuzzy match triggers the finding. Documents missing the field are
// skipped, never flagged.
func (a *CrossDocAnalyzer) compareFields(docs []model.Document, terms []model.CrossDocTerms) []model.Finding {
	var findings []model.Finding
	for _, field := range crossDocFields {
		type docValue struct {
			doc   model.Document
			value string
		}
		var values []docValue
		for i, t := range terms {
			if v := t.Fields()[field]; v != "" {
				values = append(values, docValue{docs[i], v})
			}
		}
		if len(values) < 2 {
			continue
		}

		ref := values[0]
		mismatch := false
		for _, dv := range values[1:] {
			if !valuesMatch(ref.value, dv.value, fieldMatchThreshold) {
				mismatch = true
				break
			}
		}
		if !mismatch {
			continue
		}

		sev := model.SeverityMedium
		if highMismatchFields[field] {
			sev = model.SeverityHigh
		}
		parts := make([]string, len(values))
		for i, dv := range values {
			parts[i] = fmt.Sprintf("%s: %q", dv.doc.Filename, dv.value)
		}
		label := titleWords(strings.ReplaceAll(field, "_", " "))
		findings = append(findings, model.Finding{
			Category:       model.CategoryInconsistency,
			Severity:       sev,
			Title:          fmt.Sprintf("%s Inconsistency", label),
			Description:    fmt.Sprintf("Documents disagree on %s: %s.", strings.ReplaceAll(field, "_", " "), strings.Join(parts, "; ")),
			Recommendation: fmt.Sprintf("Resolve the %s discrepancy with the seller before proceeding.", strings.ReplaceAll(field, "_", " ")),
			Confidence:     0.8,
			Source:         model.SourceRule,
		})
	}
	return findings
}

// checkParties verifies the seller named on the title deed is the seller in
// the sale agreement. Honorifics are stripped before comparing so
// "Mr. John Doe" matches "John Doe".
func (a *CrossDocAnalyzer) checkParties(docs []model.Document, terms []model.CrossDocTerms) []model.Finding {
	var deedSeller, contractSeller string
	for i, d := range docs {
		switch d.Type {
		case model.DocTitleDeed:
			if deedSeller == "" {
				deedSeller = terms[i].SellerName
			}
		case model.DocSaleAgreement:
			if contractSeller == "" {
				contractSeller = terms[i].SellerName
			}
		}
	}
	if deedSeller == "" || contractSeller == "" {
		return nil
	}
	if namesMatch(deedSeller, contractSeller) {
		return nil
	}
	return []model.Finding{{
		Category:       model.CategoryInconsistency,
		Severity:       model.SeverityCritical,
		Title:          "Seller Name Mismatch",
		Description:    fmt.Sprintf("The title deed owner %q does not match the seller %q in the sale agreement. The seller may not hold title.", deedSeller, contractSeller),
		Recommendation: "Verify the seller's identity and authority to sell before any payment.",
		Confidence:     0.9,
		Source:         model.SourceRule,
	}}
}

// checkChronology flags a title deed dated after the sale agreement. Dates
// are compared as raw strings, a deliberate approximation: the extraction
// rules do not normalize date formats, so a real parse would reject more
// input than it would fix.
func (a *CrossDocAnalyzer) checkChronology(docs []model.Document, terms []model.CrossDocTerms) []model.Finding {
	var deedDate, contractDate string
	for i, d := range docs {
		switch d.Type {
		case model.DocTitleDeed:
			if deedDate == "" {
				deedDate = terms[i].Date
			}
		case model.DocSaleAgreement:
			if contractDate == "" {
				contractDate = terms[i].Date
			}
		}
	}
	if deedDate == "" || contractDate == "" || deedDate <= contractDate {
		return nil
	}
	return []model.Finding{{
		Category:       model.CategoryInconsistency,
		Severity:       model.SeverityMedium,
		Title:          "Chronological Issue Detected",
		Description:    fmt.Sprintf("The title deed date (%s) appears to be later than the sale agreement date (%s).", deedDate, contractDate),
		Recommendation: "Confirm the sequence of registration and sale with the registry.",
		Confidence:     0.6,
		Source:         model.SourceRule,
	}}
}

func (a *CrossDocAnalyzer) negotiationPoints(findings []model.Finding) []model.NegotiationPoint {
	var points []model.NegotiationPoint

	var criticals int
	priceIssue := false
	for _, f := range findings {
		if f.Severity == model.SeverityCritical {
			criticals++
		}
		if strings.Contains(strings.ToLower(f.Title), "price") {
			priceIssue = true
		}
	}

	if criticals > 0 {
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointCondition,
			Title:           "Critical Document Inconsistencies",
			Description:     fmt.Sprintf("The documents contain %d critical inconsistency(ies) that must be explained.", criticals),
			LeverageLevel:   model.LeverageHigh,
			EstimatedImpact: "The transaction should pause until the documents agree.",
			SuggestedAction: "Demand corrected documents from the seller before proceeding.",
		})
	}

	if priceIssue {
		points = append(points, model.NegotiationPoint{
			PointType:       model.PointPrice,
			Title:           "Price Information Inconsistent",
			Description:     "The stated price differs between documents.",
			LeverageLevel:   model.LeverageHigh,
			EstimatedImpact: "An unclear price invites later disputes or hidden escalation.",
			SuggestedAction: "Get a single written price confirmed across every document.",
		})
	}
	return points
}

// valuesMatch compares two extracted values case-insensitively, accepting
// exact equality or a Levenshtein similarity at or above threshold.
func valuesMatch(a, b string, threshold float64) bool {
	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if a == b {
		return true
	}
	return levenshtein.Similarity(a, b, nil) >= threshold
}

var honorifics = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {},
}

func stripHonorific(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	parts := strings.Fields(name)
	if len(parts) > 1 {
		if _, ok := honorifics[strings.TrimSuffix(parts[0], ".")]; ok {
			return strings.Join(parts[1:], " ")
		}
	}
	return name
}

// namesMatch compares two person names after stripping a leading honorific,
// with a stricter similarity bar than general field matching.
func namesMatch(a, b string) bool {
	a, b = stripHonorific(a), stripHonorific(b)
	if a == b {
		return true
	}
	return levenshtein.Similarity(a, b, nil) >= nameMatchThreshold
}
