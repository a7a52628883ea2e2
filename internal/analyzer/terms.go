// Package analyzer implements the rule-driven document analyzers: term
// extraction, clause pattern matching, the title-deed and sale-agreement
// analyzers, the cross-document consistency checker, and the model-assisted
// augmentation pass. Analyzers are stateless; all rule data comes from the
// catalog passed in.
package analyzer

import (
	"strings"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/rules"
)

// ExtractTerms pulls the semantic fields out of document text using the
// catalog's extraction rules. Singular fields take the first matching rule;
// multi fields accumulate every capture across all rules, deduplicated by
// exact string equality. Extraction is pure and idempotent.
func ExtractTerms(text string, cat *rules.Catalog) model.ExtractedTerms {
	ex := cat.Extraction
	return model.ExtractedTerms{
		Owners:              extractAll(ex["owners"], text),
		Parties:             extractAll(ex["parties"], text),
		Contingencies:       extractAll(ex["contingencies"], text),
		PurchasePrice:       extractFirst(ex["purchase_price"], text),
		PossessionDate:      extractFirst(ex["possession_date"], text),
		ClosingDate:         extractFirst(ex["closing_date"], text),
		RegistrationNumber:  extractFirst(ex["registration_number"], text),
		RegistrationDate:    extractFirst(ex["registration_date"], text),
		EarnestMoney:        extractFirst(ex["earnest_money"], text),
		PropertyDescription: extractFirst(ex["property_description"], text),
	}
}

// ExtractCrossDocTerms pulls the document-type-agnostic comparison fields.
// The cross-document rules are written against lowercased text so values
// compare without case noise.
func ExtractCrossDocTerms(text string, cat *rules.Catalog) model.CrossDocTerms {
	lower := strings.ToLower(text)
	cd := cat.CrossDoc
	return model.CrossDocTerms{
		SellerName:          extractFirst(cd["seller_name"], lower),
		BuyerName:           extractFirst(cd["buyer_name"], lower),
		PropertyDescription: extractFirst(cd["property_description"], lower),
		PropertyAddress:     extractFirst(cd["property_address"], lower),
		PurchasePrice:       extractFirst(cd["purchase_price"], lower),
		Date:                extractFirst(cd["date"], lower),
	}
}

func extractFirst(rule rules.FieldRule, text string) string {
	for _, re := range rule.Patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, group := range m[1:] {
			if s := strings.TrimSpace(group); s != "" {
				return s
			}
		}
	}
	return ""
}

func extractAll(rule rules.FieldRule, text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, re := range rule.Patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			for _, group := range m[1:] {
				s := strings.TrimSpace(group)
				if s == "" || len(s) < rule.MinCaptureLen {
					continue
				}
				if _, ok := seen[s]; ok {
					continue
				}
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}
