package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Run the daily hot-deal performance report",
	Long:  "Fetches marketing-sourced deals with their engagement feeds, runs the timeline rules, and emails each owner their alerted deals plus a consolidated summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		deps, err := initDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Store.Close()

		run, err := deps.RunDaily(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("daily report done", zap.String("run_id", run.ID))
		return nil
	},
}

func init() {
	dailyCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "analyze and log but send no email")
	dailyCmd.Flags().StringVar(&flagFormat, "format", "", "attachment format: csv or xlsx (default from config)")
	dailyCmd.Flags().StringVar(&flagPolicy, "policy", "", "path to a recipient policy YAML file")
	rootCmd.AddCommand(dailyCmd)
}
