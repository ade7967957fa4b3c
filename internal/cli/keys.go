package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/govgate/govgate/internal/audit"
	"github.com/govgate/govgate/internal/crypto"
	"github.com/govgate/govgate/internal/observability/receipt"
	"github.com/spf13/cobra"
)

const (
	defaultPrivateKeyPath = "private.key"
	defaultPublicKeyPath  = "public.key"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 keypair for signing decisions",
	Long: `Generate a new ed25519 keypair for signing decisions.

This creates two files:
  - private.key: Keep this secret! CI uses it with evaluate --sign-key.
  - public.key:  Share this with auditors to verify decisions.

Existing files are never overwritten.

Example:
  govgate keygen --private ci.key --public ci.pub`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

var (
	keygenPrivateFlag string
	keygenPublicFlag  string
)

func init() {
	keygenCmd.Flags().StringVar(&keygenPrivateFlag, "private", defaultPrivateKeyPath, "Path for the private key file")
	keygenCmd.Flags().StringVar(&keygenPublicFlag, "public", defaultPublicKeyPath, "Path for the public key file")
}

// GetKeygenCmd returns the keygen command
func GetKeygenCmd() *cobra.Command {
	return keygenCmd
}

func runKeygen(cmd *cobra.Command, args []string) (err error) {
	sess := receipt.Start(cmd.Context(), "govgate keygen", os.Args[1:])
	defer func() { _ = sess.Finish(err) }()

	if err := crypto.GenerateKeys(keygenPrivateFlag, keygenPublicFlag); err != nil {
		if errors.Is(err, crypto.ErrKeyExists) {
			return usageError(err)
		}
		return fmt.Errorf("key generation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s✓ Private key saved: %s%s\n", colorGreen, keygenPrivateFlag, colorReset)
	fmt.Fprintf(out, "%s✓ Public key saved:  %s%s\n", colorGreen, keygenPublicFlag, colorReset)
	fmt.Fprintf(out, "\n%s⚠ Keep your private key secret!%s\n", colorRed, colorReset)
	return nil
}

// verifyCmd verifies decision signatures
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signed decision",
	Long: `Verify that a decision matches its signature. With --run-dir, the whole
run directory is checked against its manifest first.

Returns exit code 0 if valid, 1 if verification fails.

Example:
  govgate verify --run-dir runs/42 --key public.key
  govgate verify --decision decision.json --signature decision.json.sig --key public.key`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var (
	verifyRunDirFlag    string
	verifyDecisionFlag  string
	verifySignatureFlag string
	verifyPublicKeyFlag string
)

func init() {
	verifyCmd.Flags().StringVar(&verifyRunDirFlag, "run-dir", "", "Run directory written by evaluate --out-dir")
	verifyCmd.Flags().StringVarP(&verifyDecisionFlag, "decision", "d", "", "Decision JSON")
	verifyCmd.Flags().StringVarP(&verifySignatureFlag, "signature", "s", "", "Signature file (default <decision>.sig)")
	verifyCmd.Flags().StringVarP(&verifyPublicKeyFlag, "key", "k", defaultPublicKeyPath, "Path to the public key")
}

// GetVerifyCmd returns the verify command
func GetVerifyCmd() *cobra.Command {
	return verifyCmd
}

func runVerify(cmd *cobra.Command, args []string) (err error) {
	sess := receipt.Start(cmd.Context(), "govgate verify", os.Args[1:])
	defer func() { _ = sess.Finish(err) }()

	decisionPath, sigPath := verifyDecisionFlag, verifySignatureFlag
	if verifyRunDirFlag != "" {
		if _, err := audit.VerifyRun(verifyRunDirFlag); err != nil {
			var ie *audit.IntegrityError
			if errors.As(err, &ie) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s❌ TAMPER DETECTED%s %s\n", colorRed, colorReset, ie.Error())
				return gateFailed(err)
			}
			return usageError(err)
		}
		if decisionPath == "" {
			decisionPath = filepath.Join(verifyRunDirFlag, audit.DecisionFile)
		}
		if sigPath == "" {
			sigPath = filepath.Join(verifyRunDirFlag, audit.SignatureFile)
		}
	}
	if decisionPath == "" {
		return usageError(fmt.Errorf("--decision or --run-dir is required"))
	}
	if sigPath == "" {
		sigPath = decisionPath + ".sig"
	}

	decisionData, err := os.ReadFile(decisionPath)
	if err != nil {
		return usageError(fmt.Errorf("failed to read decision: %w", err))
	}
	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return usageError(fmt.Errorf("failed to read signature: %w", err))
	}

	valid, err := crypto.VerifyDecision(decisionData, sigData, verifyPublicKeyFlag)
	if err != nil {
		return usageError(fmt.Errorf("verification error: %w", err))
	}
	if !valid {
		fmt.Fprintf(cmd.OutOrStdout(), "%s❌ TAMPER DETECTED%s\n", colorRed, colorReset)
		return gateFailed(fmt.Errorf("signature does not match decision"))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✅ Signature Verified%s\n", colorGreen, colorReset)
	return nil
}
