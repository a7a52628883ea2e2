package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleardeed/diligence-cli/internal/model"
)

func TestDefaultCatalogLoads(t *testing.T) {
	cat := Default()
	require.NotNil(t, cat)
	assert.Equal(t, 1, cat.Version)

	// Same shared instance every call.
	assert.Same(t, cat, Default())
}

func TestDefaultCatalogCoversExpectedFields(t *testing.T) {
	cat := Default()

	for _, field := range []string{
		"owners", "parties", "contingencies", "purchase_price",
		"possession_date", "registration_number", "registration_date",
		"earnest_money", "property_description",
	} {
		fr, ok := cat.Extraction[field]
		assert.True(t, ok, "missing extraction field %s", field)
		assert.NotEmpty(t, fr.Patterns, "field %s has no patterns", field)
	}

	for _, field := range []string{
		"seller_name", "buyer_name", "property_description",
		"property_address", "purchase_price", "date",
	} {
		fr, ok := cat.CrossDoc[field]
		assert.True(t, ok, "missing cross-document field %s", field)
		assert.NotEmpty(t, fr.Patterns, "field %s has no patterns", field)
	}
}

func TestDefaultCatalogRequiredClauses(t *testing.T) {
	cat := Default()
	require.NotEmpty(t, cat.RequiredClauses)

	var criticalSeen bool
	for _, rc := range cat.RequiredClauses {
		assert.NotEmpty(t, rc.Key)
		assert.NotEmpty(t, rc.Term)
		if rc.Critical {
			criticalSeen = true
		}
	}
	assert.True(t, criticalSeen, "at least one clause should be critical")
}

func TestDefaultCatalogRiskyClauses(t *testing.T) {
	cat := Default()
	require.NotEmpty(t, cat.RiskyClauses)

	valid := map[model.Severity]bool{
		model.SeverityLow:      true,
		model.SeverityMedium:   true,
		model.SeverityHigh:     true,
		model.SeverityCritical: true,
	}
	for _, rc := range cat.RiskyClauses {
		assert.NotEmpty(t, rc.Patterns, "risky clause %s has no patterns", rc.Key)
		assert.True(t, valid[rc.Severity], "risky clause %s has severity %q", rc.Key, rc.Severity)
		assert.Greater(t, rc.Confidence, 0.0, "risky clause %s", rc.Key)
		assert.LessOrEqual(t, rc.Confidence, 1.0, "risky clause %s", rc.Key)
	}
}

func TestDefaultCatalogAugmentQueries(t *testing.T) {
	cat := Default()
	for _, analysis := range []string{"title", "contract", "cross_document"} {
		assert.NotEmpty(t, cat.AugmentQueries[analysis], "no queries for %s", analysis)
	}
}

func TestPatternsAreCaseInsensitive(t *testing.T) {
	cat := Default()
	fr := cat.Extraction["purchase_price"]
	require.NotEmpty(t, fr.Patterns)

	matched := false
	for _, re := range fr.Patterns {
		if re.MatchString("PURCHASE PRICE: $450,000") || re.MatchString("purchase price: $450,000") {
			matched = true
		}
	}
	assert.True(t, matched, "price pattern should match regardless of case")
}

func TestLoadRejectsBadRegex(t *testing.T) {
	_, err := Load([]byte(`
extraction:
  owners:
    patterns: ["(unclosed"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owners")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load([]byte("::not yaml::"))
	assert.Error(t, err)
}

func TestLoadEmptyCatalog(t *testing.T) {
	cat, err := Load([]byte("version: 2"))
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Version)
	assert.Empty(t, cat.Extraction)
	assert.Empty(t, cat.RiskyClauses)
}
