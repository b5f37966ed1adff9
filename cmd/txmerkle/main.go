// txmerkle CLI - transaction Merkle commitments and selective disclosure
//
// Example usage:
//
//	# Build a transaction from a YAML proposal
//	txmerkle propose --file proposal.yaml --output tx.bin
//
//	# Disclose only outputs and the commands a key signs
//	txmerkle filter tx.bin --request "disclose:?group=outputs&signer=02AB..." --output tx.ftx
//
//	# Check a filtered transaction
//	txmerkle verify tx.ftx --signer 02AB...
//
//	# Import and sign attachments, then load a transaction's attachments
//	txmerkle attachment sign contract.zip --key private.wif --output signed.zip
//	txmerkle attachment import signed.zip --uploader app
//	txmerkle attachment load tx.bin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suffix-labs/txmerkle/internal/config"
	"github.com/suffix-labs/txmerkle/internal/logging"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

const version = "v0.1.0"

var (
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *zap.Logger
	registry = crypto.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:           "txmerkle",
	Short:         "Transaction Merkle commitments and selective disclosure",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logger, err = logging.New(cfg.Logging); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "txmerkle %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "digest algorithms: %v\n", registry.Names())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "txmerkle.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(proposeCmd, idCmd, filterCmd, verifyCmd)
	rootCmd.AddCommand(attachmentCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// writeOutput writes data to path, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info("wrote output", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
