// Package scorer turns a finding set into a bounded risk score, a discrete
// risk level, and reporting views. Everything here is a pure function of its
// inputs so scoring stays testable without any I/O.
package scorer

import (
	"fmt"
	"sort"

	"github.com/cleardeed/diligence-cli/internal/model"
)

// Risk levels, from least to most severe.
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// severityWeights maps each severity to its score weight. Severities outside
// the known set carry a small default so unexpected input nudges the score
// instead of vanishing.
var severityWeights = map[model.Severity]float64{
	model.SeverityCritical: 40,
	model.SeverityHigh:     25,
	model.SeverityMedium:   10,
	model.SeverityLow:      3,
}

const defaultSeverityWeight = 5

// categoryMultipliers scales contributions by finding category. Unknown
// categories are neutral, so new categories never break scoring.
var categoryMultipliers = map[model.Category]float64{
	model.CategoryTitle:         1.2,
	model.CategoryContract:      1.0,
	model.CategoryInconsistency: 1.1,
	model.CategoryMissing:       0.8,
	model.CategoryCompliance:    0.9,
}

// Calculate reduces a finding set to a score in [0,100] and its risk level.
// Each finding contributes severity weight times category multiplier times
// confidence; the sum truncates to int and saturates at 100 rather than
// rescaling. An empty set scores 0/low exactly.
func Calculate(findings []model.Finding) (int, string) {
	if len(findings) == 0 {
		return 0, LevelLow
	}

	var total float64
	for _, f := range findings {
		weight, ok := severityWeights[f.Severity]
		if !ok {
			weight = defaultSeverityWeight
		}
		mult, ok := categoryMultipliers[f.Category]
		if !ok {
			mult = 1.0
		}
		total += weight * mult * f.Confidence
	}

	score := int(total)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, Level(score)
}

// Level maps a score to its risk level. Thresholds are closed at the upper
// bound: 30 is still low, 60 still medium, 85 still high.
func Level(score int) string {
	switch {
	case score <= 30:
		return LevelLow
	case score <= 60:
		return LevelMedium
	case score <= 85:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// CategoryCount is the per-category slice of a summary.
type CategoryCount struct {
	Total  int `json:"total"`
	Severe int `json:"severe"` // critical + high
}

// Summary is the reporting view over a finding set.
type Summary struct {
	Total      int                            `json:"total"`
	BySeverity map[model.Severity]int         `json:"by_severity"`
	ByCategory map[model.Category]CategoryCount `json:"by_category"`
}

// Summarize counts findings by severity and category.
func Summarize(findings []model.Finding) Summary {
	s := Summary{
		Total:      len(findings),
		BySeverity: make(map[model.Severity]int),
		ByCategory: make(map[model.Category]CategoryCount),
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		cc := s.ByCategory[f.Category]
		cc.Total++
		if f.Severity == model.SeverityCritical || f.Severity == model.SeverityHigh {
			cc.Severe++
		}
		s.ByCategory[f.Category] = cc
	}
	return s
}

// Headline renders the one-line job summary.
func Headline(findings []model.Finding) string {
	s := Summarize(findings)
	return fmt.Sprintf("Found %d risks. %d critical, %d high severity.",
		s.Total, s.BySeverity[model.SeverityCritical], s.BySeverity[model.SeverityHigh])
}

// Prioritize returns up to limit findings ordered by severity (most severe
// first) and, within a severity, by confidence descending. The sort is
// stable, so equally ranked findings keep their input order. The input slice
// is not modified.
func Prioritize(findings []model.Finding, limit int) []model.Finding {
	out := make([]model.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Confidence > out[j].Confidence
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
