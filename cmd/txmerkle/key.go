package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage signing keys",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a secp256k1 key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "private (WIF): %s\n", key.WIF())
		fmt.Fprintf(cmd.OutOrStdout(), "public:        %s\n", key.PublicKey())
		return nil
	},
}

var keyPublicCmd = &cobra.Command{
	Use:   "public <wif>",
	Short: "Print the public key of a WIF private key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.ParsePrivateKeyWIF(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd, keyPublicCmd)
}
