package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleardeed/diligence-cli/internal/model"
)

var (
	analyzeProperty string
	analyzeUser     string
	analyzeTypes    []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a due-diligence analysis for a property",
	Long:  "Creates an analysis job for the property's completed documents, runs the requested analyzers, and prints the scored results.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "analyze")
		if err != nil {
			return err
		}
		defer st.Close()

		types, err := parseAnalysisTypes(analyzeTypes)
		if err != nil {
			return err
		}

		eng, tracker := initEngine(st)

		job, err := eng.Start(ctx, analyzeProperty, analyzeUser, types)
		if err != nil {
			return eris.Wrap(err, "start analysis")
		}
		zap.L().Info("analysis started",
			zap.String("job_id", job.ID),
			zap.String("property_id", analyzeProperty))

		if err := eng.Process(ctx, job); err != nil {
			return eris.Wrap(err, "run analysis")
		}

		result, err := eng.GetResults(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "fetch results")
		}

		zap.L().Info("analysis complete",
			zap.String("job_id", job.ID),
			zap.Int("risk_score", result.RiskScore),
			zap.String("risk_level", result.RiskLevel),
			zap.Int("findings", len(result.Findings)))

		if tracker != nil {
			u := tracker.Snapshot()
			if u.Calls > 0 {
				zap.L().Info("model usage",
					zap.Int("calls", u.Calls),
					zap.Int64("input_tokens", u.InputTokens),
					zap.Int64("output_tokens", u.OutputTokens),
					zap.Float64("cost_usd", u.CostUSD))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// parseAnalysisTypes maps --types values onto analyzer names; empty means
// the full sequence.
func parseAnalysisTypes(raw []string) ([]model.AnalysisType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	valid := map[string]model.AnalysisType{
		"title":          model.AnalysisTitle,
		"contract":       model.AnalysisContract,
		"cross_document": model.AnalysisCrossDoc,
	}
	var types []model.AnalysisType
	for _, r := range raw {
		t, ok := valid[strings.TrimSpace(strings.ToLower(r))]
		if !ok {
			return nil, eris.Errorf("unknown analysis type %q (valid: title, contract, cross_document)", r)
		}
		types = append(types, t)
	}
	return types, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProperty, "property", "", "property ID (required)")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user ID (required)")
	analyzeCmd.Flags().StringSliceVar(&analyzeTypes, "types", nil, "analysis types to run (default: all)")
	_ = analyzeCmd.MarkFlagRequired("property")
	_ = analyzeCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(analyzeCmd)
}
