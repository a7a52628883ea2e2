package scorer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleardeed/diligence-cli/internal/model"
)

func finding(cat model.Category, sev model.Severity, conf float64) model.Finding {
	return model.Finding{Category: cat, Severity: sev, Confidence: conf}
}

func TestCalculateEmptySet(t *testing.T) {
	score, level := Calculate(nil)
	assert.Equal(t, 0, score)
	assert.Equal(t, LevelLow, level)

	score, level = Calculate([]model.Finding{})
	assert.Equal(t, 0, score)
	assert.Equal(t, LevelLow, level)
}

func TestCalculateWeightsAndMultipliers(t *testing.T) {
	tests := []struct {
		name     string
		findings []model.Finding
		score    int
		level    string
	}{
		{
			"single critical title at full confidence",
			[]model.Finding{finding(model.CategoryTitle, model.SeverityCritical, 1.0)},
			48, // 40 * 1.2
			LevelMedium,
		},
		{
			"confidence scales contribution",
			[]model.Finding{finding(model.CategoryContract, model.SeverityHigh, 0.8)},
			20, // 25 * 1.0 * 0.8
			LevelLow,
		},
		{
			"missing category is discounted",
			[]model.Finding{finding(model.CategoryMissing, model.SeverityMedium, 1.0)},
			8, // 10 * 0.8
			LevelLow,
		},
		{
			"unknown severity gets default weight",
			[]model.Finding{finding(model.CategoryContract, model.Severity("bizarre"), 1.0)},
			5,
			LevelLow,
		},
		{
			"unknown category is neutral",
			[]model.Finding{finding(model.Category("zoning"), model.SeverityHigh, 1.0)},
			25,
			LevelLow,
		},
		{
			"sum truncates fraction",
			[]model.Finding{
				finding(model.CategoryInconsistency, model.SeverityMedium, 0.95), // 10.45
			},
			10,
			LevelLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, level := Calculate(tt.findings)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.level, level)
		})
	}
}

func TestCalculateClampsAtHundred(t *testing.T) {
	var findings []model.Finding
	for i := 0; i < 10; i++ {
		findings = append(findings, finding(model.CategoryTitle, model.SeverityCritical, 1.0))
	}
	score, level := Calculate(findings)
	assert.Equal(t, 100, score)
	assert.Equal(t, LevelCritical, level)
}

func TestCalculateMonotonicInFindings(t *testing.T) {
	base := []model.Finding{
		finding(model.CategoryContract, model.SeverityMedium, 0.7),
		finding(model.CategoryTitle, model.SeverityHigh, 0.8),
	}
	prev, _ := Calculate(base)
	for i := 0; i < 8; i++ {
		base = append(base, finding(model.CategoryMissing, model.SeverityLow, 0.5))
		score, _ := Calculate(base)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		score int
		level string
	}{
		{0, LevelLow},
		{30, LevelLow},
		{31, LevelMedium},
		{60, LevelMedium},
		{61, LevelHigh},
		{85, LevelHigh},
		{86, LevelCritical},
		{100, LevelCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("score_%d", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.level, Level(tt.score))
		})
	}
}

func TestSummarize(t *testing.T) {
	findings := []model.Finding{
		finding(model.CategoryTitle, model.SeverityCritical, 1.0),
		finding(model.CategoryTitle, model.SeverityHigh, 0.8),
		finding(model.CategoryTitle, model.SeverityLow, 0.5),
		finding(model.CategoryContract, model.SeverityMedium, 0.7),
	}
	s := Summarize(findings)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.BySeverity[model.SeverityCritical])
	assert.Equal(t, 1, s.BySeverity[model.SeverityHigh])
	assert.Equal(t, 1, s.BySeverity[model.SeverityMedium])
	assert.Equal(t, 1, s.BySeverity[model.SeverityLow])

	title := s.ByCategory[model.CategoryTitle]
	assert.Equal(t, 3, title.Total)
	assert.Equal(t, 2, title.Severe)

	contract := s.ByCategory[model.CategoryContract]
	assert.Equal(t, 1, contract.Total)
	assert.Equal(t, 0, contract.Severe)
}

func TestHeadline(t *testing.T) {
	findings := []model.Finding{
		finding(model.CategoryTitle, model.SeverityCritical, 1.0),
		finding(model.CategoryContract, model.SeverityHigh, 0.8),
		finding(model.CategoryContract, model.SeverityHigh, 0.7),
		finding(model.CategoryMissing, model.SeverityMedium, 0.8),
	}
	assert.Equal(t, "Found 4 risks. 1 critical, 2 high severity.", Headline(findings))
	assert.Equal(t, "Found 0 risks. 0 critical, 0 high severity.", Headline(nil))
}

func TestPrioritizeOrdering(t *testing.T) {
	findings := []model.Finding{
		{Title: "a", Severity: model.SeverityMedium, Confidence: 0.9},
		{Title: "b", Severity: model.SeverityCritical, Confidence: 0.6},
		{Title: "c", Severity: model.SeverityHigh, Confidence: 0.7},
		{Title: "d", Severity: model.SeverityHigh, Confidence: 0.9},
		{Title: "e", Severity: model.SeverityHigh, Confidence: 0.7},
	}
	out := Prioritize(findings, 0)

	titles := make([]string, len(out))
	for i, f := range out {
		titles[i] = f.Title
	}
	// severity rank first, then confidence desc, ties stable (c before e)
	assert.Equal(t, []string{"b", "d", "c", "e", "a"}, titles)

	// input untouched
	assert.Equal(t, "a", findings[0].Title)
}

func TestPrioritizeLimit(t *testing.T) {
	findings := []model.Finding{
		{Title: "a", Severity: model.SeverityLow},
		{Title: "b", Severity: model.SeverityCritical},
		{Title: "c", Severity: model.SeverityHigh},
	}
	out := Prioritize(findings, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Title)
	assert.Equal(t, "c", out[1].Title)

	assert.Len(t, Prioritize(findings, 10), 3)
}
