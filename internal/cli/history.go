package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotawatch/quotawatch/pkg/model"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs",
	Long: `Without arguments, list recent runs newest first. With a run ID, show
that run's per-account records.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		run, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRun(run)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Use 'quotawatch run' to start one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STARTED\tDURATION\tACCOUNTS\tFAILED\tRUN ID\n")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Total, r.Failed, r.ID,
		)
	}
	w.Flush()

	return nil
}

func printRun(run *model.Run) {
	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Finished: %s\n\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ACCOUNT\tNUMBER\tBALANCE\tREMAINING\tUSED\tQUOTA\tTOTAL COST\tRENEWAL\tSTATUS\n")
	for _, rec := range run.Records {
		status := "ok"
		if !rec.Success {
			status = "FAILED"
		}
		renewal := "-"
		if rec.RenewalDate != nil {
			renewal = rec.RenewalDate.Format("02-01-2006")
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.2f\t%.2f\t%.2f\t%.0f\t%s\t%s\n",
			rec.Account.DisplayName(), rec.Account.Number,
			rec.Balance, rec.Remaining, rec.Used, rec.MainQuota,
			rec.TotalCost, renewal, status,
		)
	}
	w.Flush()
}
