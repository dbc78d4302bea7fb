package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts",
	Long:  `List the accounts a run would check, with passwords masked.`,
	RunE:  runAccounts,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func runAccounts(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Accounts) == 0 {
		fmt.Println("No accounts configured. Add them under 'accounts:' in the config file or via ACCOUNT1_PHONE/ACCOUNT1_PASS environment variables.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "LABEL\tNUMBER\tTYPE\tPASSWORD\n")
	for _, acc := range cfg.Accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			acc.DisplayName(), acc.Number, acc.ServiceType, maskSecret(acc.Password),
		)
	}
	w.Flush()

	fmt.Printf("\n%d account(s) configured.\n", len(cfg.Accounts))
	return nil
}

// maskSecret keeps no hint of length: any non-empty secret renders the
// same four stars.
func maskSecret(s string) string {
	if s == "" {
		return "-"
	}
	return "****"
}
