package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

// TestRootCmd_Subcommands checks wiring
func TestRootCmd_Subcommands(t *testing.T) {
	for _, path := range [][]string{
		{"evaluate"},
		{"policy", "merge"},
		{"policy", "validate"},
		{"policy", "explain"},
		{"waivers", "check"},
		{"keygen"},
		{"verify"},
		{"bundle", "export"},
		{"ledger", "list"},
		{"ledger", "show"},
		{"ledger", "verify"},
	} {
		t.Run(path[len(path)-1], func(t *testing.T) {
			cmd, rest, err := rootCmd.Find(path)
			if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
				t.Errorf("Find(%v) = %v, %v, %v", path, cmd.Name(), rest, err)
			}
		})
	}
}

func assertFlags(t *testing.T, cmd *cobra.Command, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if cmd.Flags().Lookup(name) == nil && cmd.InheritedFlags().Lookup(name) == nil {
				t.Errorf("expected flag %q to be registered on %s", name, cmd.Name())
			}
		})
	}
}

// TestEvaluateCmd_FlagsExist checks presence
func TestEvaluateCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetEvaluateCmd(),
		"policy", "base", "preset", "floor", "evidence", "waivers", "now",
		"format", "out-dir", "ledger", "metrics-file", "sign-key", "no-color")
}

// TestRootCmd_PersistentFlags checks presence
func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{
		"log-format", "log-level", "log-output",
		"otel", "otel-endpoint", "otel-protocol", "otel-insecure", "otel-sample-ratio",
		"receipt", "receipt-mode",
	} {
		t.Run(name, func(t *testing.T) {
			if rootCmd.PersistentFlags().Lookup(name) == nil {
				t.Errorf("expected persistent flag %q", name)
			}
		})
	}
}

// TestVerifyCmd_FlagsExist checks presence
func TestVerifyCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetVerifyCmd(), "run-dir", "decision", "signature", "key")
}

// TestKeygenCmd_FlagsExist checks presence
func TestKeygenCmd_FlagsExist(t *testing.T) {
	assertFlags(t, GetKeygenCmd(), "private", "public")
}

func TestEvaluateCmd_Shorthands(t *testing.T) {
	cmd := GetEvaluateCmd()
	for short, long := range map[string]string{"p": "policy", "e": "evidence", "w": "waivers"} {
		f := cmd.Flags().ShorthandLookup(short)
		if f == nil || f.Name != long {
			t.Errorf("-%s should be --%s", short, long)
		}
	}
}
