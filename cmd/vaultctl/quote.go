package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/onchain"
	"solana-share-vault/internal/shares"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/vault"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Show a deployed vault's pool and preview enter/leave",
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
			client, err := rpcClient(cfg)
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetUint64("amount")
			n, _ := cmd.Flags().GetUint64("shares")

			q, err := buildQuote(cmd.Context(), onchain.NewReader(client, logger), cfg.Program(), vaultID, amount, n)
			if err != nil {
				return err
			}
			printQuote(cmd.OutOrStdout(), q)
			return nil
		},
	}
	cmd.Flags().String("vault", "", "vault account address")
	cmd.Flags().Uint64("amount", 0, "asset amount to preview entering")
	cmd.Flags().Uint64("shares", 0, "share amount to preview leaving")
	addRPCFlags(cmd)
	return cmd
}

type quote struct {
	vault     *domain.Vault
	authority solana.PublicKey
	pool      domain.PoolState
	slot      int64
	head      int64

	enterAmount uint64
	enterShares uint64
	enterErr    error

	leaveShares uint64
	leaveAmount uint64
	leaveErr    error
}

// buildQuote reads the vault and its pool once and computes the requested
// previews against that reading.
func buildQuote(ctx context.Context, r *onchain.Reader, programID, vaultID solana.PublicKey, amount, n uint64) (*quote, error) {
	v, err := r.LoadVault(ctx, vaultID, programID)
	if err != nil {
		return nil, err
	}
	authority, err := vault.DeriveAuthority(v.ProgramID, v.ID, v.Nonce)
	if err != nil {
		return nil, err
	}
	pool, slot, err := r.Pool(ctx, v)
	if err != nil {
		return nil, err
	}

	head, err := r.Slot(ctx)
	if err != nil {
		return nil, err
	}

	q := &quote{vault: v, authority: authority, pool: pool, slot: slot, head: head}
	if amount > 0 {
		q.enterAmount = amount
		q.enterShares, q.enterErr = shares.AssetToShares(amount, pool.PooledBalance, pool.ShareSupply)
	}
	if n > 0 {
		q.leaveShares = n
		q.leaveAmount, q.leaveErr = shares.SharesToAsset(n, pool.PooledBalance, pool.ShareSupply)
	}
	return q, nil
}

func printQuote(w io.Writer, q *quote) {
	fmt.Fprintf(w, "vault:          %s\n", q.vault.ID)
	fmt.Fprintf(w, "authority:      %s (nonce %d)\n", q.authority, q.vault.Nonce)
	fmt.Fprintf(w, "asset mint:     %s\n", q.vault.AssetMint)
	fmt.Fprintf(w, "asset account:  %s\n", q.vault.AssetAccount)
	fmt.Fprintf(w, "share mint:     %s\n", q.vault.ShareMint)
	fmt.Fprintf(w, "slot:           %d (head %d)\n", q.slot, q.head)
	fmt.Fprintf(w, "pooled balance: %d\n", q.pool.PooledBalance)
	fmt.Fprintf(w, "share supply:   %d\n", q.pool.ShareSupply)
	fmt.Fprintf(w, "share price:    %s\n", q.pool.Price().StringFixed(6))

	if q.enterAmount > 0 {
		if q.enterErr != nil {
			fmt.Fprintf(w, "enter %d: %v\n", q.enterAmount, q.enterErr)
		} else {
			fmt.Fprintf(w, "enter %d: mints %d shares, data %s\n",
				q.enterAmount, q.enterShares, hex.EncodeToString(onchain.EncodeEnter(q.enterAmount)))
		}
	}
	if q.leaveShares > 0 {
		if q.leaveErr != nil {
			fmt.Fprintf(w, "leave %d: %v\n", q.leaveShares, q.leaveErr)
		} else {
			fmt.Fprintf(w, "leave %d: releases %d assets, data %s\n",
				q.leaveShares, q.leaveAmount, hex.EncodeToString(onchain.EncodeLeave(q.leaveShares)))
		}
	}
}
