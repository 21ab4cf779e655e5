// cmd/display_helpers.go - report rendering for the scan command
package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

func colorStatus(status *int) string {
	if status == nil {
		return color.New(color.FgRed).Sprint("ERR")
	}
	code := strconv.Itoa(*status)
	switch {
	case *status >= 500:
		return color.New(color.FgRed).Sprint(code)
	case *status >= 400:
		return color.New(color.FgYellow).Sprint(code)
	case *status >= 300:
		return color.New(color.FgCyan).Sprint(code)
	default:
		return color.New(color.FgGreen).Sprint(code)
	}
}

func colorFlag(flag *bool) string {
	switch {
	case flag == nil:
		return "-"
	case *flag:
		return color.New(color.FgRed, color.Bold).Sprint("yes")
	default:
		return "no"
	}
}

func formatBaseline(b *idor.ResponseShape) string {
	if b == nil {
		return "none (no successful responses)"
	}
	status := "none"
	if b.Status != nil {
		status = strconv.Itoa(*b.Status)
	}
	return fmt.Sprintf("status %s, %d chars", status, b.Length)
}

// sortedFlagged returns the flagged results ordered by identifier
func sortedFlagged(report *idor.Report) []*idor.ScanResult {
	flagged := report.Flagged()
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].ID < flagged[j].ID })
	return flagged
}

func printReport(w io.Writer, report *idor.Report) {
	bold := color.New(color.Bold)
	stats := report.Stats

	bold.Fprintln(w, "\nIDOR Scan Summary")
	fmt.Fprintf(w, "  Scan ID:         %s\n", report.ScanID)
	fmt.Fprintf(w, "  Target:          %s\n", report.Target)
	fmt.Fprintf(w, "  Range:           %d-%d\n", report.IDStart, report.IDEnd)
	fmt.Fprintf(w, "  Baseline:        %s\n", formatBaseline(report.Baseline))
	fmt.Fprintf(w, "  Requests:        %d\n", stats.Total)
	fmt.Fprintf(w, "  Successful:      %s\n", color.GreenString("%d", stats.Success))
	fmt.Fprintf(w, "  Errors:          %s\n", colorCount(stats.Errors, color.FgRed))
	fmt.Fprintf(w, "  Status changes:  %s\n", colorCount(stats.StatusChanges, color.FgYellow))
	fmt.Fprintf(w, "  Length changes:  %s\n", colorCount(stats.LengthChanges, color.FgYellow))
	fmt.Fprintf(w, "  Duration:        %s\n", report.Duration.Round(time.Millisecond))

	flagged := sortedFlagged(report)
	if len(flagged) == 0 {
		color.New(color.FgGreen).Fprintln(w, "\nNo responses deviate from the baseline.")
		return
	}

	bold.Fprintf(w, "\nDeviating responses (%d)\n", len(flagged))
	fmt.Fprintf(w, "  %-10s %-8s %-10s %-8s %-8s %s\n", "ID", "STATUS", "LENGTH", "STATUS?", "LENGTH?", "TITLE")
	for _, r := range flagged {
		fmt.Fprintf(w, "  %-10d %-8s %-10d %-8s %-8s %s\n",
			r.ID,
			colorStatus(r.Status),
			r.BodyLen,
			colorFlag(r.DiffStatus),
			colorFlag(r.DiffLen),
			r.Title,
		)
	}

	if stats.Errors > 0 {
		color.New(color.FgRed).Fprintf(w, "\n%d requests failed; rerun with --log-level debug for details.\n", stats.Errors)
	}
}

func colorCount(n int, attr color.Attribute) string {
	if n == 0 {
		return "0"
	}
	return color.New(attr).Sprint(n)
}
