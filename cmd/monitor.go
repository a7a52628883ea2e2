package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cleardeed/diligence-cli/internal/monitoring"
)

var monitorOnce bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch job health and alert on threshold breaches",
	Long:  "Periodically collects job metrics and posts alerts to the configured webhook. With --once, prints a single metrics snapshot and exits.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close()

		collector := monitoring.NewCollector(st)

		if monitorOnce {
			snap, err := collector.Collect(ctx, cfg.Monitoring.LookbackWindowHours)
			if err != nil {
				return eris.Wrap(err, "collect metrics")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		checker := monitoring.NewChecker(collector, alerter, cfg.Monitoring)
		checker.Run(ctx)
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "collect one snapshot and exit")
	rootCmd.AddCommand(monitorCmd)
}
