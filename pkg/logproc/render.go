// pkg/logproc/render.go - console rendering of run summaries

package logproc

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/windowsadmins/winmaint/pkg/history"
	"github.com/windowsadmins/winmaint/pkg/result"
)

const maxErrorWidth = 60

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// PrintSummary renders the summary as a module table followed by failed items.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\n=============================================================\n")
	fmt.Fprintf(w, "  WINMAINT RUN SUMMARY\n")
	fmt.Fprintf(w, "=============================================================\n")
	fmt.Fprintf(w, "  Host:      %s\n", s.Host)
	fmt.Fprintf(w, "  Session:   %s\n", s.SessionID)
	fmt.Fprintf(w, "  Started:   %s (%s)\n", s.StartedAt.Format(time.DateTime), humanize.Time(s.StartedAt))
	fmt.Fprintf(w, "  Duration:  %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(w, "  Status:    %s\n", s.Status)
	fmt.Fprintf(w, "  Dry run:   %s\n\n", yesNo(s.DryRun))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  #\tMODULE\tSTATUS\tDETECTED\tPROCESSED\tFAILED\tSKIPPED\tDURATION\n")
	fmt.Fprintf(tw, "  -\t------\t------\t--------\t---------\t------\t-------\t--------\n")
	for _, m := range s.Modules {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.TaskNumber, m.Module, m.Status,
			humanize.Comma(int64(m.Detected)), humanize.Comma(int64(m.Processed)),
			humanize.Comma(int64(m.Failed)), humanize.Comma(int64(m.Skipped)),
			m.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(tw, "  \tTOTAL\t\t%s\t%s\t%s\t%s\t\n",
		humanize.Comma(int64(s.Totals.Detected)), humanize.Comma(int64(s.Totals.Processed)),
		humanize.Comma(int64(s.Totals.Failed)), humanize.Comma(int64(s.Totals.Skipped)))
	tw.Flush()

	failures := s.Failures()
	if len(failures) > 0 {
		fmt.Fprintf(w, "\n  Failed items:\n")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, f := range failures {
			fmt.Fprintf(tw, "    %s\t%s\t%s\t%s\n", f.Module, f.Item, f.Action, truncate(f.Error, maxErrorWidth))
		}
		tw.Flush()
	}

	for _, m := range s.Modules {
		if m.Error != "" && m.Status != result.StatusCompleted {
			fmt.Fprintf(w, "\n  %s: %s", m.Module, truncate(m.Error, maxErrorWidth))
		}
	}
	fmt.Fprintf(w, "\n=============================================================\n")
}

// PrintHistory renders recorded runs, newest first.
func PrintHistory(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs recorded.\n")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tSTARTED\tTYPE\tSTATUS\tDRY RUN\tMODULES\tFAILED ITEMS\tDURATION\n")
	fmt.Fprintf(tw, "--\t-------\t----\t------\t-------\t-------\t------------\t--------\n")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, humanize.Time(r.Report.StartedAt), r.Report.RunType, r.Status,
			yesNo(r.Report.DryRun), len(r.Report.Results),
			humanize.Comma(int64(r.Report.Totals().Failed)),
			r.Report.Duration().Round(time.Second))
	}
	tw.Flush()
}

// PrintItems renders an items table, recurring items first.
func PrintItems(w io.Writer, items []ItemRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "MODULE\tITEM\tLAST STATUS\tAPPLIED\tFAILED\tSESSIONS\tRECURRING\n")
	for _, pass := range []bool{true, false} {
		for _, it := range items {
			if it.Recurring != pass {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				it.Module, it.Item, it.LastStatus, it.Applied, it.Failures, it.TotalSessions, yesNo(it.Recurring))
		}
	}
	tw.Flush()
}
