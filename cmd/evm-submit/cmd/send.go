package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgerops/evm-submit/backend"
	"github.com/ledgerops/evm-submit/config"
	"github.com/ledgerops/evm-submit/submission"
	"github.com/ledgerops/evm-submit/units"
	"github.com/ledgerops/evm-submit/wallet"
)

func (a *app) sendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [to] [amount]",
		Short: "Transfer ether and wait for its confirmation",
		Long: `Transfer ether from the account of PRIVKEY to the destination address.

The destination and the decimal ether amount default to TO_ADDR and AMOUNT.
The command exits with 0 once the transfer is confirmed, with 2 if it was
broadcast but not confirmed in time, and with 1 on any other failure.`,
		Args: cobra.MaximumNArgs(2),
		RunE: a.send,
	}
	f := cmd.Flags()
	f.String("to", "", "destination address")
	f.String("amount", config.DefaultAmount, "amount of ether to transfer")
	f.String("gas-price", "", "fee rate override in wei, skips sampling the network")
	f.String("gas-price-gwei", "", "fee rate override in gwei, skips sampling the network")
	f.Uint64("confirmations", config.DefaultConfirmations, "blocks that must include or follow the transaction")
	f.Duration("confirmation-timeout", config.DefaultConfirmationTimeout, "how long to wait for confirmation")
	f.Duration("poll-interval", config.DefaultPollInterval, "initial interval between receipt queries")
	f.Duration("max-poll-interval", config.DefaultMaxPollInterval, "upper bound of the receipt query interval")
	f.Bool("skip-chain-check", false, "do not compare the node's chain id with --chain-id")
	a.bind(f, map[string]string{
		config.KeyToAddress:           "to",
		config.KeyAmount:              "amount",
		config.KeyGasPriceWei:         "gas-price",
		config.KeyGasPriceGwei:        "gas-price-gwei",
		config.KeyConfirmations:       "confirmations",
		config.KeyConfirmationTimeout: "confirmation-timeout",
		config.KeyPollInterval:        "poll-interval",
		config.KeyMaxPollInterval:     "max-poll-interval",
		config.KeySkipChainCheck:      "skip-chain-check",
	})
	return cmd
}

func (a *app) send(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	if len(args) > 0 {
		cfg.ToAddress = args[0]
	}
	if len(args) > 1 {
		cfg.TransferAmount = args[1]
	}
	if err := cfg.ValidateTransfer(); err != nil {
		return err
	}

	account, err := wallet.NewAccountFromHex(cfg.PrivateKey)
	cfg.PrivateKey = ""
	if err != nil {
		return fmt.Errorf("%s: %w", "PRIVKEY", err)
	}
	defer account.Zero()
	a.log.Info().Object("account", account).Msg("loaded sender account")

	ctx := cmd.Context()
	node, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer node.Close()

	opts := []submission.Option{
		submission.WithLogger(a.log),
		submission.WithStateObserver(func(from, to submission.State) {
			a.log.Info().Stringer("from", from).Stringer("to", to).Msg("submission progressed")
		}),
	}
	spinner := newSpinner(cmd.ErrOrStderr())
	if spinner != nil {
		opts = append(opts, submission.WithPollObserver(func(attempt int, elapsed time.Duration) {
			spinner.Describe(fmt.Sprintf("awaiting confirmation, poll %d after %s", attempt, elapsed.Round(time.Second)))
			_ = spinner.Add(1)
		}))
	}

	pipeline, err := submission.NewPipeline(node, backend.NewSigner(account, cfg.ChainID), cfg.Submission(), opts...)
	if err != nil {
		return err
	}
	res, err := pipeline.Submit(ctx, submission.Request{To: cfg.ToAddress, Amount: cfg.TransferAmount})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		if res != nil && res.TxHash != (common.Hash{}) {
			fmt.Fprintf(cmd.ErrOrStderr(), "transaction %s\n", res.TxHash.Hex())
		}
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

// newSpinner returns nil unless w is a terminal.
func newSpinner(w io.Writer) *progressbar.ProgressBar {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("awaiting confirmation"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func printResult(w io.Writer, res *submission.Result) {
	tx := res.Transaction
	fmt.Fprintf(w, "transaction:   %s\n", res.TxHash.Hex())
	fmt.Fprintf(w, "from:          %s\n", tx.From().Hex())
	fmt.Fprintf(w, "to:            %s\n", tx.To().Hex())
	fmt.Fprintf(w, "value:         %s ETH (%s wei)\n", units.Ether.Trimmed(tx.Value()), tx.Value())
	fmt.Fprintf(w, "gas price:     %s gwei (%s wei)\n", units.Gwei.Trimmed(tx.FeeRate()), tx.FeeRate())
	fmt.Fprintf(w, "gas limit:     %d\n", tx.Budget())
	fmt.Fprintf(w, "block:         %d\n", res.BlockNumber)
	fmt.Fprintf(w, "gas used:      %d\n", res.GasUsed)
	fmt.Fprintf(w, "confirmations: %d\n", res.Confirmations)
}
