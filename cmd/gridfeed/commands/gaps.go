package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// gapsCmd represents the gaps command
var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Analyze grid gaps for a symbol/session",
	Long: `Compares one symbol/session against the full minute grid and
reports every block of consecutive missing minutes with the price move
measured across it.

Example:
  go run ./cmd/gridfeed gaps --symbol SBER.ME --date 2026-08-24`,
	RunE: runGaps,
}

var (
	gapsSymbol string
	gapsDate   string
)

func init() {
	rootCmd.AddCommand(gapsCmd)

	gapsCmd.Flags().StringVar(&gapsSymbol, "symbol", "", "symbol to analyze (required)")
	gapsCmd.Flags().StringVar(&gapsDate, "date", "", "session date YYYY-MM-DD (default: last complete session)")
	gapsCmd.MarkFlagRequired("symbol")
}

func runGaps(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	var date time.Time
	if gapsDate == "" {
		recent := rt.cal.RecentCompleteSessions(time.Now(), 1)
		date = recent[0]
	} else {
		date, err = time.ParseInLocation("2006-01-02", gapsDate, rt.cal.Location())
		if err != nil {
			return fmt.Errorf("invalid --date (expected YYYY-MM-DD): %w", err)
		}
	}

	result, err := rt.detector.Detect(context.Background(), gapsSymbol, date)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Gap Analysis: %s @ %s", result.Symbol, FormatDate(result.SessionDate)))
	fmt.Printf("  Grid      : %d minutes\n", result.GridSize)
	fmt.Printf("  Present   : %d\n", result.Present)
	fmt.Printf("  Missing   : %d\n", result.Missing)
	PrintSeparator()

	if len(result.Blocks) == 0 {
		PrintSuccess("Session is complete: no gaps on the grid")
		return nil
	}

	for _, block := range result.Blocks {
		span := fmt.Sprintf("%s-%s", block.StartTime, block.EndTime)
		switch {
		case block.InsufficientData:
			fmt.Printf("  [%3d..%3d]  %s  %3d min  impact: insufficient data\n",
				block.StartIndex, block.EndIndex, span, block.Length)
		default:
			fmt.Printf("  [%3d..%3d]  %s  %3d min  impact: %+.4f%%\n",
				block.StartIndex, block.EndIndex, span, block.Length, *block.Impact)
		}
	}

	PrintWarning(fmt.Sprintf("%d gap block(s), %d missing minute(s)", len(result.Blocks), result.Missing))
	return nil
}
