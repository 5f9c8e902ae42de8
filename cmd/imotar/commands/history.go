package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/NV7150/ImOTAR-sub000/history"
)

// HistoryCmd groups the job ledger subcommands.
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the job ledger",
	Long: `Inspect the job ledger written by imotar run.

Every admitted job leaves one row: the paired frame timestamps and
skew, the ticks it started, finalized and completed at, executor steps,
and its outcome.

Outcomes:
  running      - job admitted but not finished (interrupted runs)
  completed    - result applied and promoted
  invalidated  - result suppressed (invalidation or abort)
  faulted      - executor refused or failed mid-run

Examples:
  imotar history ls                        # Recent jobs, newest first
  imotar history ls --outcome faulted      # Only faulted jobs
  imotar history show 4fbe21c7-...         # One job in full`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// HistoryLsCmd lists ledger rows.
var HistoryLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		outcome, _ := cmd.Flags().GetString("outcome")
		dbPath, _ := cmd.Flags().GetString("db")
		return runHistoryLs(dbPath, outcome, limit)
	},
}

// HistoryShowCmd prints one ledger row in full.
var HistoryShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		return runHistoryShow(dbPath, args[0])
	},
}

func init() {
	HistoryLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")
	HistoryLsCmd.Flags().String("outcome", "", "Filter by outcome (running, completed, invalidated, faulted)")
	HistoryLsCmd.Flags().String("db", "", "Ledger database path (defaults to the configured history path)")
	HistoryShowCmd.Flags().String("db", "", "Ledger database path (defaults to the configured history path)")

	HistoryCmd.AddCommand(HistoryLsCmd)
	HistoryCmd.AddCommand(HistoryShowCmd)
}

func runHistoryLs(dbPath, outcome string, limit int) error {
	database, err := openHistoryDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	store, err := history.NewStore(database, 0, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var records []history.Record
	if outcome != "" {
		records, err = store.ByOutcome(ctx, outcome, limit)
	} else {
		records, err = store.Recent(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-12s %8s %6s %10s %10s %s\n",
		"JOB ID", "OUTCOME", "SKEW MS", "STEPS", "TICKS", "DURATION", "STARTED")
	fmt.Printf("%-10s %-12s %8s %6s %10s %10s %s\n",
		"------", "-------", "-------", "-----", "-----", "--------", "-------")

	for _, rec := range records {
		fmt.Printf("%-10s %-12s %8.1f %6d %10s %10s %s\n",
			truncate(rec.ID, 10),
			rec.Outcome,
			rec.SkewMS,
			rec.Steps,
			tickSpan(rec),
			durationOrDash(rec),
			rec.StartedAt.Format("2006-01-02 15:04:05"))
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count jobs: %w", err)
	}
	fmt.Printf("\nTotal: %s\n", formatCounts(counts))
	return nil
}

func runHistoryShow(dbPath, jobID string) error {
	database, err := openHistoryDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	store, err := history.NewStore(database, 0, nil)
	if err != nil {
		return err
	}

	rec, err := store.Get(context.Background(), jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	fmt.Printf("Job ID:  %s\n", rec.ID)
	fmt.Printf("Outcome: %s\n", rec.Outcome)
	if rec.Fault != "" {
		fmt.Printf("Fault:   %s\n", rec.Fault)
	}
	fmt.Printf("\n")

	fmt.Printf("Pair:\n")
	fmt.Printf("  color timestamp: %s\n", rec.ColorTimestamp.Format("15:04:05.000000"))
	fmt.Printf("  depth timestamp: %s\n", rec.DepthTimestamp.Format("15:04:05.000000"))
	fmt.Printf("  skew:            %.2f ms\n", rec.SkewMS)
	fmt.Printf("\n")

	fmt.Printf("Schedule:\n")
	fmt.Printf("  started tick:    %d\n", rec.StartedTick)
	if rec.FinalizedTick != nil {
		fmt.Printf("  finalized tick:  %d\n", *rec.FinalizedTick)
	}
	if rec.CompletedTick != nil {
		fmt.Printf("  completed tick:  %d\n", *rec.CompletedTick)
	}
	fmt.Printf("  executor steps:  %d\n", rec.Steps)
	fmt.Printf("\n")

	fmt.Printf("Started:  %s\n", rec.StartedAt.Format("2006-01-02 15:04:05.000"))
	if rec.FinishedAt != nil {
		fmt.Printf("Finished: %s\n", rec.FinishedAt.Format("2006-01-02 15:04:05.000"))
		fmt.Printf("Duration: %s\n", rec.Duration())
	}
	return nil
}

func tickSpan(rec history.Record) string {
	if rec.CompletedTick != nil {
		return fmt.Sprintf("%d..%d", rec.StartedTick, *rec.CompletedTick)
	}
	if rec.FinalizedTick != nil {
		return fmt.Sprintf("%d..%d*", rec.StartedTick, *rec.FinalizedTick)
	}
	return fmt.Sprintf("%d..", rec.StartedTick)
}

func durationOrDash(rec history.Record) string {
	if rec.FinishedAt == nil {
		return "-"
	}
	return rec.Duration().Round(time.Millisecond).String()
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "0 job(s)"
	}
	outcomes := make([]string, 0, len(counts))
	total := 0
	for outcome, n := range counts {
		outcomes = append(outcomes, outcome)
		total += n
	}
	sort.Strings(outcomes)

	s := fmt.Sprintf("%d job(s)", total)
	for _, outcome := range outcomes {
		s += fmt.Sprintf(", %d %s", counts[outcome], outcome)
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
