package model

// Severity is the ordinal severity of a finding: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the sort rank of a severity, most severe first. Unknown
// severities rank after low so they never displace graded findings.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Category classifies a finding by the check that produced it. The set is
// open-ended: the scorer applies a neutral multiplier to categories it does
// not recognize.
type Category string

const (
	CategoryTitle         Category = "title"
	CategoryContract      Category = "contract"
	CategoryInconsistency Category = "inconsistency"
	CategoryMissing       Category = "missing"
	CategoryCompliance    Category = "compliance"
)

// FindingSource records whether a finding came from the rule engine or from
// the model-assisted augmentation pass. Downstream consumers treat both
// uniformly; the tag exists so provenance stays inspectable.
type FindingSource string

const (
	SourceRule  FindingSource = "rule"
	SourceModel FindingSource = "model"
)

// Finding is a single detected risk.
type Finding struct {
	Category       Category      `json:"category"`
	Severity       Severity      `json:"severity"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation"`
	Confidence     float64       `json:"confidence"`
	LocationRef    string        `json:"location_ref,omitempty"`
	QuotedText     string        `json:"quoted_text,omitempty"`
	DocumentID     string        `json:"document_id,omitempty"`
	Source         FindingSource `json:"source,omitempty"`
}

// PointType classifies a negotiation point.
type PointType string

const (
	PointPrice     PointType = "price"
	PointCondition PointType = "condition"
	PointTimeline  PointType = "timeline"
	PointClause    PointType = "clause"
	PointLiability PointType = "liability"
)

// LeverageLevel is the qualitative strength of a negotiation point.
type LeverageLevel string

const (
	LeverageLow      LeverageLevel = "low"
	LeverageMedium   LeverageLevel = "medium"
	LeverageHigh     LeverageLevel = "high"
	LeverageCritical LeverageLevel = "critical"
)

// NegotiationPoint is an actionable leverage suggestion derived from one or
// more findings. It has no identity beyond the analysis run that created it.
type NegotiationPoint struct {
	PointType       PointType     `json:"point_type"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	LeverageLevel   LeverageLevel `json:"leverage_level"`
	EstimatedImpact string        `json:"estimated_impact"`
	SuggestedAction string        `json:"suggested_action"`
}
