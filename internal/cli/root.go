package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/govgate/govgate/internal/observability"
	"github.com/govgate/govgate/internal/observability/logging"
	otelobs "github.com/govgate/govgate/internal/observability/otel"
	"github.com/govgate/govgate/internal/observability/receipt"
	"github.com/govgate/govgate/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "govgate",
	Short: "Policy-as-code governance gate for CI",
	Long: `govgate: decide whether a change may ship.

Merges the organization baseline with the repository policy, evaluates every
rule against the evidence CI collected, applies time-bound waivers and emits
one auditable decision.`,
	Version:           version.BuildVersion(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupObservability,
}

var (
	logFormatFlag       string
	logLevelFlag        string
	logOutputFlag       string
	otelFlag            bool
	otelEndpointFlag    string
	otelProtocolFlag    string
	otelInsecureFlag    bool
	otelSampleRatioFlag float64
	receiptFlag         string
	receiptModeFlag     string
)

// closed by Execute once the command returns
var (
	activeLogger  logging.Logger
	activeOTel    *otelobs.Handle
	activeReceipt receipt.Writer
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", logging.FormatPretty, "Log format: pretty or jsonl")
	pf.StringVar(&logLevelFlag, "log-level", logging.LevelInfo, "Log level: debug, info, warn or error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr, stdout or a file path")
	pf.BoolVar(&otelFlag, "otel", false, "Export OpenTelemetry traces")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Disable TLS for the OTLP exporter")
	pf.Float64Var(&otelSampleRatioFlag, "otel-sample-ratio", 1.0, "Trace sample ratio (0..1)")
	pf.StringVar(&receiptFlag, "receipt", "", "Write a run receipt to this path")
	pf.StringVar(&receiptModeFlag, "receipt-mode", string(receipt.ModeOverwrite), "Receipt mode: overwrite or append")

	rootCmd.AddCommand(GetEvaluateCmd())
	rootCmd.AddCommand(GetPolicyCmd())
	rootCmd.AddCommand(GetWaiversCmd())
	rootCmd.AddCommand(GetKeygenCmd())
	rootCmd.AddCommand(GetVerifyCmd())
	rootCmd.AddCommand(GetBundleCmd())
	rootCmd.AddCommand(GetLedgerCmd())
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())
	teardown()
	if err == nil {
		return ExitOK
	}
	code := ExitCode(err)
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}
	return code
}

func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if id := os.Getenv("GOVGATE_OP_ID"); id != "" {
		ctx = observability.WithGivenOpID(ctx, id)
	} else {
		ctx = observability.WithOpID(ctx)
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
	})
	if err != nil {
		return usageError(err)
	}
	activeLogger = logger
	ctx = logging.WithLogger(ctx, logger)

	if otelFlag {
		h, err := otelobs.Init(ctx, otelobs.Config{
			Enabled:     true,
			Endpoint:    otelEndpointFlag,
			Protocol:    otelProtocolFlag,
			Insecure:    otelInsecureFlag,
			ServiceName: otelobs.ServiceName,
			SampleRatio: otelSampleRatioFlag,
		})
		if err != nil {
			return usageError(fmt.Errorf("otel: %w", err))
		}
		activeOTel = h
		ctx = otelobs.WithHandle(ctx, h)
	}

	if receiptFlag != "" {
		mode, err := receipt.ParseMode(receiptModeFlag)
		if err != nil {
			return usageError(err)
		}
		w, err := receipt.NewWriter(receiptFlag, mode)
		if err != nil {
			return usageError(err)
		}
		activeReceipt = w
		ctx = receipt.WithWriter(ctx, w)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardown() {
	_ = activeOTel.Close(5 * time.Second)
	activeOTel = nil
	if activeReceipt != nil {
		_ = activeReceipt.Close()
		activeReceipt = nil
	}
	if activeLogger != nil {
		_ = activeLogger.Close()
		activeLogger = nil
	}
}
