package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Statusf writes a progress line to stderr. Suppressed by --quiet and by
// --json so machine-readable stdout is never interleaved with chatter.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if cc.Flags.Quiet || cc.Flags.JSON {
		return
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

var sizeUnits = []string{"KB", "MB", "GB", "TB", "PB"}

// formatSize renders a byte count with one decimal in binary units,
// e.g. 1536 -> "1.5 KB". Counts under 1 KiB are printed exactly.
func formatSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	v := float64(n) / 1024
	unit := 0

	for v >= 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}

	return fmt.Sprintf("%.1f %s", v, sizeUnits[unit])
}

// recentWindow is how far back a timestamp shows a clock time instead of
// a year, matching ls -l.
const recentWindow = 180 * 24 * time.Hour

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	t = t.Local()

	if age := time.Since(t); age < recentWindow && age > -recentWindow {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes a header row and the given rows as space-aligned
// columns. Cells must not contain tabs.
func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}
