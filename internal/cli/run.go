package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check every configured account once",
	Long: `Log into each configured account, scrape its usage and balance figures,
write the xlsx report and send any due notifications, then exit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("report", "", "report file path (default from config)")
	runCmd.Flags().Bool("headful", false, "run the browser with a visible window")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		cfg.Report.Path = path
	}
	if headful, _ := cmd.Flags().GetBool("headful"); headful {
		cfg.Browser.Headless = false
	}

	logger := newLogger(cfg)

	r, store, err := initRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return r.Execute(cmd.Context())
}
