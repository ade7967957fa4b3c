package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/govgate/govgate/internal/ledger"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Query the decision ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <digest|seq>",
	Short: "Print one recorded decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerShow,
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the ledger hash chain",
	Args:  cobra.NoArgs,
	RunE:  runLedgerVerify,
}

var (
	ledgerPathFlag   string
	ledgerRepoFlag   string
	ledgerLimitFlag  int
	ledgerFormatFlag string
)

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerPathFlag, "ledger", "govgate.db", "SQLite ledger path")
	ledgerListCmd.Flags().StringVar(&ledgerRepoFlag, "repository", "", "Only this repository")
	ledgerListCmd.Flags().IntVar(&ledgerLimitFlag, "limit", 20, "Maximum entries")
	ledgerListCmd.Flags().StringVar(&ledgerFormatFlag, "format", FormatText, "Output format: text or json")

	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
}

// GetLedgerCmd export
func GetLedgerCmd() *cobra.Command {
	return ledgerCmd
}

func openLedger() (*ledger.Store, error) {
	s, err := ledger.Open(ledgerPathFlag)
	if err != nil {
		return nil, usageError(err)
	}
	return s, nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	if err := validateFormat(ledgerFormatFlag); err != nil {
		return err
	}
	s, err := openLedger()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List(cmd.Context(), ledger.ListOptions{Repository: ledgerRepoFlag, Limit: ledgerLimitFlag})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ledgerFormatFlag == FormatJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSTATUS\tSCORE\tREPOSITORY\tPOLICY\tTIMESTAMP\tDIGEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			e.Seq, e.Status, e.Score, e.Repository, e.PolicyVersion, e.DecisionTimestamp, shortDigest(e.Digest))
	}
	return tw.Flush()
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	s, err := openLedger()
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		return usageError(err)
	}
	var body interface{}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return fmt.Errorf("ledger entry %d: %w", e.Seq, err)
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	s, err := openLedger()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Verify(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s❌ %v%s\n", colorRed, err, colorReset)
		return gateFailed(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ ledger chain intact%s (%d entries)\n", colorGreen, colorReset, n)
	return nil
}

func shortDigest(d string) string {
	if len(d) <= 19 {
		return d
	}
	return d[:19]
}
