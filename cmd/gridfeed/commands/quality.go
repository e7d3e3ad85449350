package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// qualityCmd represents the quality command
var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Grade stored sessions against the full grid",
	Long: `Builds the dataset quality report: every symbol/session in the
range is graded usable only when all grid minutes are present.

Example:
  go run ./cmd/gridfeed quality
  go run ./cmd/gridfeed quality --from 2026-08-24 --to 2026-08-28
  go run ./cmd/gridfeed quality --symbols SBER.ME --sessions 10`,
	RunE: runQuality,
}

var (
	qualitySymbols  string
	qualityFrom     string
	qualityTo       string
	qualitySessions int
	qualityAll      bool
)

func init() {
	rootCmd.AddCommand(qualityCmd)

	qualityCmd.Flags().StringVar(&qualitySymbols, "symbols", "", "comma-separated symbols (default: configured set)")
	qualityCmd.Flags().StringVar(&qualityFrom, "from", "", "range start YYYY-MM-DD")
	qualityCmd.Flags().StringVar(&qualityTo, "to", "", "range end YYYY-MM-DD (inclusive)")
	qualityCmd.Flags().IntVar(&qualitySessions, "sessions", 5, "recent complete sessions to grade when no range is given")
	qualityCmd.Flags().BoolVar(&qualityAll, "all", false, "list every verdict, not only unusable sessions")
}

func runQuality(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	symbols := rt.cfg.Ingest.Symbols
	if qualitySymbols != "" {
		symbols = splitList(qualitySymbols)
	}

	from, to, err := resolveRange(rt.cal, qualityFrom, qualityTo, qualitySessions)
	if err != nil {
		return err
	}

	report, err := rt.reporter.Report(context.Background(), symbols, from, to.AddDate(0, 0, -1))
	if err != nil {
		return err
	}

	PrintHeader("Dataset Quality Report")
	fmt.Printf("  Period    : %s ~ %s\n", FormatDate(report.From), FormatDate(report.To))
	fmt.Printf("  Grid      : %d minutes\n", report.GridSize)
	PrintSeparator()

	for _, v := range report.Verdicts {
		if v.Usable && !qualityAll {
			continue
		}
		mark := "✅"
		if !v.Usable {
			mark = "❌"
		}
		fmt.Printf("  %s %-10s %s  %3d/%d bars (%d missing)\n",
			mark, v.Symbol, FormatDate(v.SessionDate), v.BarCount, report.GridSize, v.Missing)
	}

	PrintSeparator()
	fmt.Printf("  Usable sessions : %d / %d (%.1f%%)\n",
		report.UsableSessions, report.TotalSessions, report.UsableRatio()*100)

	if report.RejectedSessions > 0 {
		PrintWarning(fmt.Sprintf("%d session(s) are not usable", report.RejectedSessions))
	} else if report.TotalSessions > 0 {
		PrintSuccess("Every graded session is complete")
	}

	return nil
}
