package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"solana-share-vault/internal/onchain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/vault"
)

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the authority address of a vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			vaultID, err := vaultFlag(cmd)
			if err != nil {
				return err
			}

			var nonce *uint8
			if cmd.Flags().Changed("nonce") {
				n, _ := cmd.Flags().GetUint8("nonce")
				nonce = &n
			}
			return printDerive(cmd.OutOrStdout(), cfg.Program(), vaultID, nonce)
		},
	}
	cmd.Flags().String("vault", "", "vault account address")
	cmd.Flags().Uint8("nonce", 0, "bump seed; the canonical bump is searched when unset")
	return cmd
}

func printDerive(w io.Writer, programID, vaultID solana.PublicKey, nonce *uint8) error {
	var (
		authority solana.PublicKey
		bump      uint8
		err       error
	)
	if nonce == nil {
		authority, bump, err = vault.FindAuthority(programID, vaultID)
	} else {
		bump = *nonce
		authority, err = vault.DeriveAuthority(programID, vaultID, bump)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "program:    %s\n", programID)
	fmt.Fprintf(w, "vault:      %s\n", vaultID)
	fmt.Fprintf(w, "authority:  %s\n", authority)
	fmt.Fprintf(w, "nonce:      %d\n", bump)
	fmt.Fprintf(w, "initialize: %s\n", hex.EncodeToString(onchain.EncodeInitialize(bump)))
	return nil
}
