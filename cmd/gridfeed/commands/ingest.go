package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
	"gridfeed/internal/ingest"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass",
	Long: `Fetches minute bars for the configured (or given) symbols,
reprojects them onto the session grid, screens for corporate actions
and persists the accepted sessions in one transaction.

Re-running over the same range is safe: existing minutes are never
overwritten.

Example:
  go run ./cmd/gridfeed ingest
  go run ./cmd/gridfeed ingest --sessions 10
  go run ./cmd/gridfeed ingest --symbols SBER.ME,GAZP.ME --from 2026-08-24 --to 2026-08-28`,
	RunE: runIngest,
}

var (
	ingestSymbols   string
	ingestFrom      string
	ingestTo        string
	ingestSessions  int
	ingestThreshold float64
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestSymbols, "symbols", "", "comma-separated symbols (default: configured set)")
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "range start YYYY-MM-DD")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "range end YYYY-MM-DD (inclusive)")
	ingestCmd.Flags().IntVar(&ingestSessions, "sessions", 5, "recent complete sessions to cover when no range is given")
	ingestCmd.Flags().Float64Var(&ingestThreshold, "threshold", 0, "corporate-action divergence threshold (default: CA_THRESHOLD)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	symbols := rt.cfg.Ingest.Symbols
	if ingestSymbols != "" {
		symbols = splitList(ingestSymbols)
	}

	from, to, err := resolveRange(rt.cal, ingestFrom, ingestTo, ingestSessions)
	if err != nil {
		return err
	}

	PrintHeader("Ingestion Run")
	fmt.Printf("  Period    : %s ~ %s\n", FormatDate(from), FormatDate(to.AddDate(0, 0, -1)))
	fmt.Printf("  Symbols   : %s\n", strings.Join(symbols, ", "))
	fmt.Printf("  Workers   : %d\n", rt.cfg.Ingest.Workers)
	PrintSeparator()

	threshold := rt.cfg.Ingest.CAThreshold
	if ingestThreshold > 0 {
		threshold = ingestThreshold
	}

	start := time.Now()
	report, runErr := rt.runner.Run(context.Background(), ingest.Options{
		Symbols:       symbols,
		From:          from,
		To:            to,
		Threshold:     threshold,
		Workers:       rt.cfg.Ingest.Workers,
		DatasetLocked: rt.cfg.Ingest.DatasetLocked,
		OpenPolicy:    rt.cfg.Ingest.OfficialOpenPolicy,
		ClosePolicy:   rt.cfg.Ingest.OfficialClosePolicy,
	})

	if report != nil {
		printRunReport(report)
	}
	if runErr != nil {
		return runErr
	}

	if report.Count(contracts.StatusBlocked) == len(report.Results) && len(report.Results) > 0 {
		PrintWarning("Run refused: dataset is locked (DATASET_LOCKED=true)")
		return nil
	}

	PrintSuccess(fmt.Sprintf("Ingestion completed in %s", FormatDuration(time.Since(start))))
	return nil
}

func printRunReport(report *contracts.RunReport) {
	for _, res := range report.Results {
		switch res.Status {
		case contracts.StatusOK:
			fmt.Printf("  %-10s ok          %d new bars\n", res.Symbol, res.BarCount)
		case contracts.StatusNoData:
			fmt.Printf("  %-10s no data\n", res.Symbol)
		case contracts.StatusExcludedCA:
			fmt.Printf("  %-10s excluded    max divergence %.4f  %s\n", res.Symbol, res.CARatio, res.Message)
		case contracts.StatusBlocked:
			fmt.Printf("  %-10s blocked\n", res.Symbol)
		case contracts.StatusError:
			fmt.Printf("  %-10s error       %s\n", res.Symbol, res.Message)
		}
	}

	PrintSeparator()
	fmt.Printf("  ok: %d  no_data: %d  excluded_ca: %d  blocked: %d  error: %d\n",
		report.Count(contracts.StatusOK),
		report.Count(contracts.StatusNoData),
		report.Count(contracts.StatusExcludedCA),
		report.Count(contracts.StatusBlocked),
		report.Count(contracts.StatusError),
	)
}

// resolveRange turns CLI date flags into a half-open fetch window. With
// no explicit range it covers the most recent complete sessions.
func resolveRange(cal *calendar.Calendar, fromStr, toStr string, sessions int) (time.Time, time.Time, error) {
	if fromStr == "" && toStr == "" {
		if sessions <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("--sessions must be positive")
		}
		recent := cal.RecentCompleteSessions(time.Now(), sessions)
		return recent[0], recent[len(recent)-1].AddDate(0, 0, 1), nil
	}

	if fromStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from is required when --to is given")
	}

	from, err := time.ParseInLocation("2006-01-02", fromStr, cal.Location())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date (expected YYYY-MM-DD): %w", err)
	}

	to := from
	if toStr != "" {
		to, err = time.ParseInLocation("2006-01-02", toStr, cal.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date (expected YYYY-MM-DD): %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}

	return from, to.AddDate(0, 0, 1), nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
