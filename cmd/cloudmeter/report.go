package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudmeter/cloudmeter/app"
	"github.com/cloudmeter/cloudmeter/bootstrap"
	"github.com/cloudmeter/cloudmeter/config"
	"github.com/cloudmeter/cloudmeter/pkg/render"
)

var (
	reportFrom     string
	reportUntil    string
	reportUser     string
	reportProjects string
	reportFormat   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a one-shot usage report",
	Long: `Generate a usage report for one user over a billing window and print it.

Examples:
  cloudmeter report --user 19f5e963 --from 2016-08-01 --until 2016-09-01
  cloudmeter report --user 19f5e963 --from 2016-08-01 --until 2016-09-01 --format csv`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFrom, "from", "", "window start (RFC3339 or YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportUntil, "until", "", "window end (RFC3339 or YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportUser, "user", "", "requesting user id")
	reportCmd.Flags().StringVar(&reportProjects, "projects", "", "comma-separated project id filter")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table, json, csv")
	reportCmd.MarkFlagRequired("from")
	reportCmd.MarkFlagRequired("until")
	reportCmd.MarkFlagRequired("user")
}

func runReport(cmd *cobra.Command, args []string) error {
	from, err := parseCLITime(reportFrom)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	until, err := parseCLITime(reportUntil)
	if err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	a, err := bootstrap.New(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Close()

	req := app.ReportRequest{
		Start:  from,
		End:    until,
		UserID: reportUser,
	}
	if reportProjects != "" {
		req.Projects = strings.Split(reportProjects, ",")
	}

	rep, err := a.Reports.Report(context.Background(), req)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		return render.JSON(os.Stdout, rep, false)
	case "csv":
		return render.CSV(os.Stdout, rep)
	case "table":
		return render.Table(os.Stdout, rep)
	default:
		return fmt.Errorf("unknown format %q", reportFormat)
	}
}

func parseCLITime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
