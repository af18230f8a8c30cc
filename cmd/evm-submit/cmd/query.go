package cmd

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"

	"github.com/ledgerops/evm-submit/config"
	"github.com/ledgerops/evm-submit/submission"
	"github.com/ledgerops/evm-submit/units"
	"github.com/ledgerops/evm-submit/wallet"
)

func (a *app) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the ether balance of an address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := config.DefaultBalanceAddress
			if len(args) > 0 {
				raw = args[0]
			}
			addr, err := wallet.ParseAddress(raw)
			if err != nil {
				return err
			}

			node, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()

			balance, err := node.BalanceAt(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ETH (%s wei)\n", addr.Hex(), units.Ether.Trimmed(balance), balance)
			return nil
		},
	}
}

func (a *app) blockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "block",
		Short: "Print the chain id and the latest block number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()

			chainID, err := node.ChainID(cmd.Context())
			if err != nil {
				return err
			}
			head, err := node.BlockNumber(cmd.Context())
			if err != nil {
				return err
			}
			if chainID.Cmp(a.cfg.ChainID) != 0 {
				a.log.Warn().Stringer("node", chainID).Stringer("configured", a.cfg.ChainID).Msg("chain id differs from configuration")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chain id: %s\nblock:    %d\n", chainID, head)
			return nil
		},
	}
}

func (a *app) gasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gas",
		Short: "Print the suggested fee rate and the cost of a plain transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()

			price, err := node.SuggestGasPrice(cmd.Context())
			if err != nil {
				return err
			}
			scaled := submission.ScaleFee(price)
			gas := new(big.Int).SetUint64(params.TxGas)
			fee := new(big.Int).Mul(price, gas)
			submitted := new(big.Int).Mul(scaled, gas)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "suggested:    %s gwei (%s wei)\n", units.Gwei.Trimmed(price), price)
			fmt.Fprintf(w, "transfer fee: %s ETH (%s wei) for %d gas\n", units.Ether.Trimmed(fee), fee, params.TxGas)
			fmt.Fprintf(w, "submitted at: %s gwei (%s wei)\n", units.Gwei.Trimmed(scaled), scaled)
			fmt.Fprintf(w, "fee at submitted rate: %s ETH (%s wei)\n", units.Ether.Trimmed(submitted), submitted)
			return nil
		},
	}
}
