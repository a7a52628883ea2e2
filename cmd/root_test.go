package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleardeed/diligence-cli/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"analyze", "jobs", "import", "quota", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "diligence-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	require.NotNil(t, analyzeCmd.Flags().Lookup("property"))
	require.NotNil(t, analyzeCmd.Flags().Lookup("user"))
	require.NotNil(t, analyzeCmd.Flags().Lookup("types"))
}

func TestJobsCommand_HasSubcommands(t *testing.T) {
	cmds := jobsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "status", "results"}
	for _, name := range expected {
		assert.True(t, names[name], "expected jobs subcommand %q not found", name)
	}
}

func TestParseAnalysisTypes(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []model.AnalysisType
		wantErr bool
	}{
		{"empty means all", nil, nil, false},
		{"single", []string{"title"}, []model.AnalysisType{model.AnalysisTitle}, false},
		{
			"mixed case and spaces",
			[]string{" Title", "CONTRACT"},
			[]model.AnalysisType{model.AnalysisTitle, model.AnalysisContract},
			false,
		},
		{
			"cross document",
			[]string{"cross_document"},
			[]model.AnalysisType{model.AnalysisCrossDoc},
			false,
		},
		{"unknown type", []string{"zoning"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysisTypes(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuessDocumentType(t *testing.T) {
	tests := []struct {
		path string
		want model.DocumentType
	}{
		{"title_deed.txt", model.DocTitleDeed},
		{"/docs/property-deed.txt", model.DocTitleDeed},
		{"sale_agreement.txt", model.DocSaleAgreement},
		{"purchase-contract.txt", model.DocSaleAgreement},
		{"survey.txt", model.DocOther},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, guessDocumentType(tt.path))
		})
	}
}

func TestFormatJobsList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	jobs := []model.AnalysisJob{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			PropertyID: "prop-1",
			Status:     model.JobStatusCompleted,
			Progress:   100,
			RiskScore:  62,
			RiskLevel:  "high",
			CreatedAt:  now,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			PropertyID: "prop-2",
			Status:     model.JobStatusProcessing,
			Progress:   33,
			CreatedAt:  now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatJobsList(&buf, jobs)

	output := buf.String()
	assert.Contains(t, output, "JOB ID")
	assert.Contains(t, output, "PROPERTY")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "62")
	assert.Contains(t, output, "high")
	assert.Contains(t, output, "prop-2")
	assert.Contains(t, output, "33%")
	// Incomplete jobs show no score.
	assert.Contains(t, output, "-")
}
