package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/rules"
)

// Result is the output of one analyzer pass over a document set.
type Result struct {
	Findings          []model.Finding
	NegotiationPoints []model.NegotiationPoint
}

// Evidence windows around a matched clause and around a matched keyword.
const (
	clauseWindow  = 150
	keywordWindow = 100
)

// requiredClauseConfidence applies to every presence-check finding; absence
// of a keyword is weaker evidence than a matched clause.
const requiredClauseConfidence = 0.8

// CheckRequiredClauses emits one finding per required clause that is neither
// bound to a populated term nor evidenced by a proxy keyword. Critical
// clauses produce high severity, the rest medium.
func CheckRequiredClauses(terms model.ExtractedTerms, text string, cat *rules.Catalog, docID string) []model.Finding {
	lower := strings.ToLower(text)
	var findings []model.Finding
	for _, rc := range cat.RequiredClauses {
		if termPopulated(terms, rc.Term) || anyKeyword(lower, rc.Proxies) {
			continue
		}
		sev := model.SeverityMedium
		if rc.Critical {
			sev = model.SeverityHigh
		}
		findings = append(findings, model.Finding{
			Category:       model.CategoryContract,
			Severity:       sev,
			Title:          fmt.Sprintf("Missing %s Clause", titleWords(rc.Key)),
			Description:    fmt.Sprintf("The agreement does not contain a clear %s clause.", rc.Key),
			Recommendation: fmt.Sprintf("Ensure the agreement includes a clear %s clause before signing.", rc.Key),
			Confidence:     requiredClauseConfidence,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}
	return findings
}

// CheckContingencies emits one finding per catalog contingency absent from
// the extracted contingency list. Missing protections score under the
// "missing" category, not "contract".
func CheckContingencies(terms model.ExtractedTerms, cat *rules.Catalog, docID string) []model.Finding {
	var findings []model.Finding
	for _, c := range cat.Contingencies {
		if containsFold(terms.Contingencies, c.Key) {
			continue
		}
		findings = append(findings, model.Finding{
			Category:       model.CategoryMissing,
			Severity:       model.SeverityMedium,
			Title:          c.Title,
			Description:    c.Description,
			Recommendation: fmt.Sprintf("Ask the seller to add an explicit %s before signing.", c.Key),
			Confidence:     requiredClauseConfidence,
			DocumentID:     docID,
			Source:         model.SourceRule,
		})
	}
	return findings
}

// CheckRiskyClauses scans for risk archetypes. Each archetype fires at most
// once even when several of its patterns match; the finding quotes a text
// window around the first match. Numeric archetypes parse a duration and
// fire only below the risky thresholds.
func CheckRiskyClauses(text string, cat *rules.Catalog, docID string) []model.Finding {
	var findings []model.Finding
	for _, rc := range cat.RiskyClauses {
		if rc.Numeric {
			if f, ok := checkInspectionWindow(text, rc, docID); ok {
				findings = append(findings, f)
			}
			continue
		}
		for _, re := range rc.Patterns {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			findings = append(findings, model.Finding{
				Category:       model.CategoryContract,
				Severity:       rc.Severity,
				Title:          rc.Title,
				Description:    rc.Description,
				Recommendation: rc.Recommendation,
				Confidence:     rc.Confidence,
				LocationRef:    fmt.Sprintf("offset %d", loc[0]),
				QuotedText:     contextWindow(text, loc[0], loc[1], clauseWindow),
				DocumentID:     docID,
				Source:         model.SourceRule,
			})
			break
		}
	}
	return findings
}

// checkInspectionWindow parses "<n> days" or "<n> hours" from the first
// matching pattern. A window under 5 days or under 24 hours is risky; the
// thresholds are independent, so 30 hours passes even though it is barely a
// day. The first match decides for the whole archetype.
func checkInspectionWindow(text string, rc rules.RiskyClause, docID string) (model.Finding, bool) {
	for _, re := range rc.Patterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return model.Finding{}, false
		}
		unit := strings.ToLower(m[2])

		risky := (strings.HasPrefix(unit, "day") && n < 5) ||
			(strings.HasPrefix(unit, "hour") && n < 24)
		if !risky {
			return model.Finding{}, false
		}

		return model.Finding{
			Category: model.CategoryContract,
			Severity: rc.Severity,
			Title:    fmt.Sprintf("Short Inspection Period (%d %ss)", n, unit),
			Description: fmt.Sprintf(
				"An inspection period of %d %ss may be insufficient for a thorough property inspection.", n, unit),
			Recommendation: rc.Recommendation,
			Confidence:     rc.Confidence,
			LocationRef:    fmt.Sprintf("offset %d", loc[0]),
			QuotedText:     contextWindow(text, loc[0], loc[1], clauseWindow),
			DocumentID:     docID,
			Source:         model.SourceRule,
		}, true
	}
	return model.Finding{}, false
}

// contextWindow returns the text surrounding [start,end) padded by pad
// characters on each side, clamped to the text bounds.
func contextWindow(text string, start, end, pad int) string {
	lo := start - pad
	if lo < 0 {
		lo = 0
	}
	hi := end + pad
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// termPopulated reports whether the named extraction field carries a value.
// An empty or unknown binding counts as unpopulated so the proxy keywords
// decide alone.
func termPopulated(terms model.ExtractedTerms, field string) bool {
	switch field {
	case "parties":
		return len(terms.Parties) > 0
	case "purchase_price":
		return terms.PurchasePrice != ""
	case "possession_date":
		return terms.PossessionDate != ""
	case "property_description":
		return terms.PropertyDescription != ""
	case "earnest_money":
		return terms.EarnestMoney != ""
	default:
		return false
	}
}

// anyKeyword reports whether any keyword occurs in the lowercased text.
func anyKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// firstKeyword returns the first keyword present in the lowercased text and
// its offset, or -1 when none match.
func firstKeyword(lower string, keywords []string) (string, int) {
	for _, kw := range keywords {
		if idx := strings.Index(lower, kw); idx >= 0 {
			return kw, idx
		}
	}
	return "", -1
}

// containsFold reports whether any element of list contains key,
// case-insensitively.
func containsFold(list []string, key string) bool {
	key = strings.ToLower(key)
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), key) {
			return true
		}
	}
	return false
}

// titleWords uppercases the first letter of each space-separated word.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
