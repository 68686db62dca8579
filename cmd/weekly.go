package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Run the weekly data-quality diligence report",
	Long:  "Lists every deal with its associated contacts, flags missing types, thin contact coverage, missing designations, and low MBR amounts on hot deals, and emails the findings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		deps, err := initDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Store.Close()

		run, err := deps.RunWeekly(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("weekly report done", zap.String("run_id", run.ID))
		return nil
	},
}

func init() {
	weeklyCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "analyze and log but send no email")
	weeklyCmd.Flags().StringVar(&flagFormat, "format", "", "attachment format: csv or xlsx (default from config)")
	weeklyCmd.Flags().StringVar(&flagPolicy, "policy", "", "path to a recipient policy YAML file")
	rootCmd.AddCommand(weeklyCmd)
}
