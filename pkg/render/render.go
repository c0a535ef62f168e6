// Package render serializes reports for presentation. The core's output
// contract is plain rows; everything here is formatting for downstream
// consumers (stdout, files, HTTP responses).
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/cloudmeter/cloudmeter/app"
)

// JSON writes the report as JSON.
func JSON(w io.Writer, rep *app.Report, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rep)
}

// CSV writes the report rows as CSV with a header line.
func CSV(w io.Writer, rep *app.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"user_id", "user_name", "project_id", "project_name", "metric", "quantity"}); err != nil {
		return err
	}
	for _, row := range rep.Rows {
		record := []string{
			row.UserID,
			row.UserName,
			row.ProjectID,
			row.ProjectName,
			string(row.Metric),
			formatQuantity(row.Quantity),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Table writes the report as an aligned text table.
func Table(w io.Writer, rep *app.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tUSER\tMETRIC\tQUANTITY")
	for _, row := range rep.Rows {
		name := row.UserName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ProjectID, name, row.Metric, formatQuantity(row.Quantity))
	}
	return tw.Flush()
}

// formatQuantity keeps whole-unit totals free of a trailing fraction while
// preserving precision for fractional gigabyte totals.
func formatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return strconv.FormatInt(int64(q), 10)
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
