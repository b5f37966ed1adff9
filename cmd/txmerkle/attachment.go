package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suffix-labs/txmerkle/pkg/api"
	"github.com/suffix-labs/txmerkle/pkg/attachments"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

var (
	uploader string
	wifKey   string
)

var attachmentCmd = &cobra.Command{
	Use:   "attachment",
	Short: "Import, sign and load attachments",
}

var attachmentImportCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Import an archive into the attachment store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		id, err := store.ImportAttachment(cmd.Context(), f, uploader, filepath.Base(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var attachmentSignCmd = &cobra.Command{
	Use:   "sign <archive>",
	Short: "Sign an archive with a WIF private key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.ParsePrivateKeyWIF(wifKey)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		signed, err := api.SignAttachment(data, key)
		if err != nil {
			return err
		}
		logger.Info("attachment signed", zap.Stringer("signer", key.PublicKey()))
		return writeOutput(cmd, outputFile, signed)
	},
}

var attachmentLoadCmd = &cobra.Command{
	Use:   "load <tx file>",
	Short: "Load a transaction's attachments and list the merged paths",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		trust, err := newTrustCalculator(store)
		if err != nil {
			return err
		}
		cache, err := attachments.NewCache(cfg.Attachments.ClassLoaderCacheSize, attachments.WithLogger(logger))
		if err != nil {
			return err
		}
		defer cache.Close()

		lease, err := api.LoadAttachments(ctx, registry, data, store, trust.Predicate(ctx), cache)
		if err != nil {
			return err
		}
		defer lease.Release()

		cl := lease.ClassLoader()
		for _, p := range cl.Paths() {
			owner, _ := cl.Owner(p)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, owner)
		}
		for _, p := range cl.Paths() {
			if attachments.IsCode(p) {
				if _, err := cl.LoadModule(ctx, p); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func openStore() (*attachments.BadgerStorage, error) {
	ds, err := registry.Service(crypto.DefaultAlgorithm)
	if err != nil {
		return nil, err
	}
	return attachments.OpenBadgerStorage(attachments.BadgerConfig{
		Dir:             cfg.Attachments.Dir,
		CacheLifeWindow: cfg.Attachments.CacheLifeWindow,
		CacheMaxSizeMB:  cfg.Attachments.CacheMaxSizeMB,
		DigestService:   ds,
		Logger:          logger,
	})
}

func newTrustCalculator(source attachments.TrustSource) (*attachments.TrustCalculator, error) {
	blacklist, err := cfg.BlacklistKeys()
	if err != nil {
		return nil, err
	}
	return attachments.NewTrustCalculator(source, cfg.Attachments.TrustCacheSize,
		attachments.WithBlacklist(blacklist...),
		attachments.WithTrustLogger(logger),
	)
}

func init() {
	attachmentImportCmd.Flags().StringVar(&uploader, "uploader", attachments.UploaderUnknown, "uploader tag")
	attachmentSignCmd.Flags().StringVar(&wifKey, "key", "", "WIF private key")
	attachmentSignCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")
	_ = attachmentSignCmd.MarkFlagRequired("key")

	attachmentCmd.AddCommand(attachmentImportCmd, attachmentSignCmd, attachmentLoadCmd)
}

