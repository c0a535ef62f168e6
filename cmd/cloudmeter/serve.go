package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudmeter/cloudmeter/bootstrap"
	"github.com/cloudmeter/cloudmeter/config"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reporting API server",
	Long: `Start the cloudmeter reporting server.

The server will:
  - Load configuration from cloudmeter.yaml (or --config)
  - Or load configuration from CLOUDMETER_* environment variables
  - Open the snapshot database and run migrations
  - Serve the reporting API and Prometheus metrics

Examples:
  cloudmeter serve
  cloudmeter serve --config /etc/cloudmeter/config.yaml
  cloudmeter serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var a *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		a, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}
		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}
		a, err = bootstrap.New(cfg)
	}
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	return a.Run()
}
