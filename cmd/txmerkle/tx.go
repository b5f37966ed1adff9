package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/suffix-labs/txmerkle/pkg/api"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

var (
	proposalFile string
	outputFile   string
	requestURI   string
	signerHex    string
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Build a wire transaction from a YAML proposal",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(proposalFile)
		if err != nil {
			return fmt.Errorf("failed to read proposal: %w", err)
		}
		var proposal api.TransactionProposal
		if err := yaml.Unmarshal(data, &proposal); err != nil {
			return fmt.Errorf("failed to parse proposal: %w", err)
		}
		if proposal.Algorithm == "" {
			proposal.Algorithm = cfg.Algorithm
		}

		wtx, err := api.ProposeTransaction(registry, &proposal)
		if err != nil {
			return err
		}
		id, err := api.TransactionID(registry, wtx)
		if err != nil {
			return err
		}
		logger.Info("transaction built", zap.Stringer("id", id), zap.String("algorithm", proposal.Algorithm))
		return writeOutput(cmd, outputFile, wtx)
	},
}

var idCmd = &cobra.Command{
	Use:   "id <tx file>",
	Short: "Print the id of a wire transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		id, err := api.TransactionID(registry, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <tx file>",
	Short: "Build a filtered transaction from a disclosure request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ftx, err := api.FilterTransaction(registry, data, requestURI)
		if err != nil {
			return err
		}
		return writeOutput(cmd, outputFile, ftx)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <filtered tx file>",
	Short: "Verify a filtered transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		id, err := api.VerifyFilteredTransaction(registry, data)
		if err != nil {
			return err
		}
		if signerHex != "" {
			pub, err := crypto.ParsePublicKeyHex(signerHex)
			if err != nil {
				return err
			}
			if err := api.CheckCommandVisibility(registry, data, pub.Key()); err != nil {
				return err
			}
			logger.Info("all commands visible", zap.Stringer("signer", pub))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verified %s\n", id)
		return nil
	},
}

func init() {
	proposeCmd.Flags().StringVarP(&proposalFile, "file", "f", "", "proposal YAML file")
	_ = proposeCmd.MarkFlagRequired("file")

	for _, c := range []*cobra.Command{proposeCmd, filterCmd} {
		c.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")
	}

	filterCmd.Flags().StringVarP(&requestURI, "request", "r", "", "disclosure request URI")
	_ = filterCmd.MarkFlagRequired("request")

	verifyCmd.Flags().StringVar(&signerHex, "signer", "", "also check that every command this key signs is visible")
}
