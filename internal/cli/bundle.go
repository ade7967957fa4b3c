package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/govgate/govgate/internal/audit"
	"github.com/govgate/govgate/internal/observability/receipt"
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Package run directories for auditors",
}

var bundleExportCmd = &cobra.Command{
	Use:   "export <run-dir>",
	Short: "Export a run directory as a deterministic zip",
	Long: `Verify a run directory against its manifest and zip it. The same run
always produces a byte-identical bundle.

Example:
  govgate bundle export runs/42 --output runs-42.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runBundleExport,
}

var bundleOutputFlag string

func init() {
	bundleExportCmd.Flags().StringVarP(&bundleOutputFlag, "output", "o", "", "Output zip (default <run-dir>.zip)")
	bundleCmd.AddCommand(bundleExportCmd)
}

// GetBundleCmd export
func GetBundleCmd() *cobra.Command {
	return bundleCmd
}

func runBundleExport(cmd *cobra.Command, args []string) (err error) {
	sess := receipt.Start(cmd.Context(), "govgate bundle export", os.Args[1:])
	defer func() { _ = sess.Finish(err, receipt.WithRunDir(args[0])) }()

	runDir := args[0]
	out := bundleOutputFlag
	if out == "" {
		out = filepath.Clean(runDir) + ".zip"
	}
	if err := audit.Export(runDir, out); err != nil {
		return usageError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Bundle written: %s%s\n", colorGreen, out, colorReset)
	return nil
}
