package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cloudmeter",
	Short: "Per-user, per-project cloud usage aggregation for billing",
	Long: `cloudmeter computes per-user, per-project cloud resource consumption
(compute core-hours, block-storage GB-hours, image-storage GiB-hours,
object-storage GB) over a billing window, so a billing pipeline can
attribute costs to the responsible account.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "cloudmeter.yaml", "config file path")
}
