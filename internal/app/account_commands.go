package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
	"github.com/ggonzalez94/aptos-agent-cli/internal/model"
	"github.com/ggonzalez94/aptos-agent-cli/internal/registry"
	"github.com/ggonzalez94/aptos-agent-cli/internal/wallet"
)

func (s *runtimeState) newAccountCommand() *cobra.Command {
	root := &cobra.Command{Use: "account", Short: "Account reads against the fullnode"}
	root.AddCommand(s.newAccountBalanceCommand())
	root.AddCommand(s.newAccountTxCommand())
	return root
}

func (s *runtimeState) newAccountBalanceCommand() *cobra.Command {
	var (
		address string
		asset   string
		user    string
	)
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Read an account's balance for an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			resolved, err := s.catalog.ResolveAsset(ctx, asset)
			if err != nil {
				return err
			}

			addr := address
			if addr == "" {
				if user == "" {
					user = s.settings.DefaultUser
				}
				signer, err := wallet.SignerForUser(ctx, s.wallets, user)
				if err != nil {
					return err
				}
				addr = signer.Address()
			} else {
				norm, err := id.NormalizeAddress(addr)
				if err != nil {
					return err
				}
				addr = norm
			}

			balance, err := s.ledger.Balance(ctx, addr, resolved)
			if err != nil {
				return err
			}
			view := model.BalanceView{
				Address: addr,
				Asset:   assetView(resolved),
				Balance: amountInfo(balance.String(), resolved.Decimals),
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), view, nil, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Account address (defaults to the configured signer)")
	cmd.Flags().StringVar(&asset, "asset", id.NativeSymbol, "Asset to read (symbol, coin type, or metadata address)")
	cmd.Flags().StringVar(&user, "user", "", "Wallet user identifier")
	return cmd
}

func (s *runtimeState) newAccountTxCommand() *cobra.Command {
	var hash string
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Look up a committed transaction by hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()

			if hash == "" {
				return clierr.New(clierr.CodeUsage, "transaction hash is required")
			}
			txn, err := s.ledger.TransactionByHash(ctx, hash)
			if err != nil {
				return err
			}
			view := model.TransactionView{
				Hash:        txn.Hash,
				Type:        txn.Type,
				Success:     txn.Success,
				VMStatus:    txn.VMStatus,
				GasUsed:     txn.GasUsed,
				Sender:      txn.Sender,
				Version:     txn.Version,
				ExplorerURL: registry.ExplorerTxURL(s.settings.ExplorerBaseURL, txn.Hash),
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), view, nil, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "Transaction hash")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}
