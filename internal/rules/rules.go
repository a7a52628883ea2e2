// Package rules loads the analyzer rule catalog: regex extraction rules,
// required-clause lists, risky-clause archetypes, keyword sets, and the
// deep-analysis query lists. The catalog is embedded, parsed once, and
// immutable after load; analyzers take it as a parameter so rule sets stay
// independently testable and swappable.
package rules

import (
	_ "embed"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cleardeed/diligence-cli/internal/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

// FieldRule is an ordered list of compiled extraction patterns for one field.
type FieldRule struct {
	Multi         bool
	MinCaptureLen int
	Patterns      []*regexp.Regexp
}

// RequiredClause is one entry of the required sale-agreement clause list.
type RequiredClause struct {
	Key      string
	Term     string
	Critical bool
	Proxies  []string
}

// Contingency describes a buyer-protection contingency and the finding text
// emitted when it is absent.
type Contingency struct {
	Key         string
	Title       string
	Description string
}

// RiskyClause is a named risk archetype backed by equivalent patterns.
// An archetype fires at most once per analysis.
type RiskyClause struct {
	Key            string
	Title          string
	Severity       model.Severity
	Confidence     float64
	Description    string
	Recommendation string
	Numeric        bool
	Patterns       []*regexp.Regexp
}

// Encumbrance pairs a keyword with its finding title and description.
type Encumbrance struct {
	Keyword     string
	Title       string
	Description string
}

// TitleChecks holds the keyword sets used by the title-deed analyzer.
type TitleChecks struct {
	Encumbrances        []Encumbrance
	DisputeKeywords     []string
	ForgeryKeywords     []string
	SignatureIndicators []string
	StampIndicators     []string
}

// Catalog is the full compiled rule table.
type Catalog struct {
	Version         int
	Extraction      map[string]FieldRule
	CrossDoc        map[string]FieldRule
	RequiredClauses []RequiredClause
	Contingencies   []Contingency
	RiskyClauses    []RiskyClause
	Title           TitleChecks
	AugmentQueries  map[string][]string
}

// raw YAML shapes

type rawFieldRule struct {
	Multi         bool     `yaml:"multi"`
	MinCaptureLen int      `yaml:"min_capture_len"`
	Patterns      []string `yaml:"patterns"`
}

type rawRequiredClause struct {
	Key      string   `yaml:"key"`
	Term     string   `yaml:"term"`
	Critical bool     `yaml:"critical"`
	Proxies  []string `yaml:"proxies"`
}

type rawContingency struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type rawRiskyClause struct {
	Key            string   `yaml:"key"`
	Title          string   `yaml:"title"`
	Severity       string   `yaml:"severity"`
	Confidence     float64  `yaml:"confidence"`
	Description    string   `yaml:"description"`
	Recommendation string   `yaml:"recommendation"`
	Numeric        bool     `yaml:"numeric"`
	Patterns       []string `yaml:"patterns"`
}

type rawEncumbrance struct {
	Keyword     string `yaml:"keyword"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type rawCatalog struct {
	Version         int                     `yaml:"version"`
	Extraction      map[string]rawFieldRule `yaml:"extraction"`
	CrossDocument   map[string]rawFieldRule `yaml:"cross_document"`
	RequiredClauses []rawRequiredClause     `yaml:"required_clauses"`
	Contingencies   []rawContingency        `yaml:"contingencies"`
	RiskyClauses    []rawRiskyClause        `yaml:"risky_clauses"`
	TitleChecks     struct {
		Encumbrances        []rawEncumbrance `yaml:"encumbrances"`
		DisputeKeywords     []string         `yaml:"dispute_keywords"`
		ForgeryKeywords     []string         `yaml:"forgery_keywords"`
		SignatureIndicators []string         `yaml:"signature_indicators"`
		StampIndicators     []string         `yaml:"stamp_indicators"`
	} `yaml:"title_checks"`
	AugmentQueries map[string][]string `yaml:"augment_queries"`
}

// Load parses and compiles a catalog from YAML bytes.
func Load(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "rules: unmarshal catalog")
	}

	cat := &Catalog{
		Version:        raw.Version,
		Extraction:     make(map[string]FieldRule, len(raw.Extraction)),
		CrossDoc:       make(map[string]FieldRule, len(raw.CrossDocument)),
		AugmentQueries: raw.AugmentQueries,
	}

	for field, r := range raw.Extraction {
		fr, err := compileFieldRule(r)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: extraction field %s", field)
		}
		cat.Extraction[field] = fr
	}
	for field, r := range raw.CrossDocument {
		fr, err := compileFieldRule(r)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: cross_document field %s", field)
		}
		cat.CrossDoc[field] = fr
	}

	for _, rc := range raw.RequiredClauses {
		cat.RequiredClauses = append(cat.RequiredClauses, RequiredClause(rc))
	}
	for _, c := range raw.Contingencies {
		cat.Contingencies = append(cat.Contingencies, Contingency(c))
	}

	for _, rc := range raw.RiskyClauses {
		clause := RiskyClause{
			Key:            rc.Key,
			Title:          rc.Title,
			Severity:       model.Severity(rc.Severity),
			Confidence:     rc.Confidence,
			Description:    rc.Description,
			Recommendation: rc.Recommendation,
			Numeric:        rc.Numeric,
		}
		for _, p := range rc.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, eris.Wrapf(err, "rules: risky clause %s", rc.Key)
			}
			clause.Patterns = append(clause.Patterns, re)
		}
		cat.RiskyClauses = append(cat.RiskyClauses, clause)
	}

	for _, e := range raw.TitleChecks.Encumbrances {
		cat.Title.Encumbrances = append(cat.Title.Encumbrances, Encumbrance(e))
	}
	cat.Title.DisputeKeywords = raw.TitleChecks.DisputeKeywords
	cat.Title.ForgeryKeywords = raw.TitleChecks.ForgeryKeywords
	cat.Title.SignatureIndicators = raw.TitleChecks.SignatureIndicators
	cat.Title.StampIndicators = raw.TitleChecks.StampIndicators

	return cat, nil
}

func compileFieldRule(r rawFieldRule) (FieldRule, error) {
	fr := FieldRule{Multi: r.Multi, MinCaptureLen: r.MinCaptureLen}
	for _, p := range r.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return FieldRule{}, eris.Wrapf(err, "compile %q", p)
		}
		fr.Patterns = append(fr.Patterns, re)
	}
	return fr, nil
}

var defaultCatalog = mustLoad()

func mustLoad() *Catalog {
	cat, err := Load(catalogYAML)
	if err != nil {
		panic(err)
	}
	return cat
}

// Default returns the embedded catalog. The returned value is shared and
// must not be mutated.
func Default() *Catalog {
	return defaultCatalog
}
