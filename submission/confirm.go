package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/ledgerops/evm-submit/client"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollInterval = 8 * time.Second
)

var (
	errNotMined   = errors.New("transaction not mined yet")
	errNotSettled = errors.New("not enough confirmations yet")
)

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// PollObserver is called before every receipt query of a confirmation wait.
type PollObserver func(attempt int, elapsed time.Duration)

// Confirmation describes a mined transaction.
type Confirmation struct {
	BlockNumber   uint64
	GasUsed       uint64
	Confirmations uint64
	Receipt       *types.Receipt
}

// Confirmer waits until a broadcast transaction is buried under the required
// number of blocks. Receipts are polled with exponential backoff, starting at
// PollInterval and capped at MaxPollInterval, until Timeout expires.
type Confirmer struct {
	node            ReceiptReader
	Required        uint64
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	OnPoll          PollObserver
	log             zerolog.Logger
}

func NewConfirmer(node ReceiptReader, required uint64, timeout time.Duration) *Confirmer {
	if required == 0 {
		required = 1
	}
	return &Confirmer{
		node:            node,
		Required:        required,
		Timeout:         timeout,
		PollInterval:    DefaultPollInterval,
		MaxPollInterval: DefaultMaxPollInterval,
		log:             zerolog.Nop(),
	}
}

// Await blocks until txHash has Required confirmations. It fails with
// KindReverted for a mined transaction with failed status and with
// KindConfirmationTimeout if the wait ends before the outcome is known.
func (c *Confirmer) Await(ctx context.Context, txHash common.Hash) (*Confirmation, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	backoff := retry.NewExponential(interval)
	if c.MaxPollInterval > 0 {
		backoff = retry.WithCappedDuration(c.MaxPollInterval, backoff)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var (
		conf    *Confirmation
		attempt int
		start   = time.Now()
	)
	err := retry.Do(waitCtx, backoff, func(ctx context.Context) error {
		attempt++
		if c.OnPoll != nil {
			c.OnPoll(attempt, time.Since(start))
		}
		receipt, err := c.node.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) || (err == nil && (receipt == nil || receipt.BlockNumber == nil)) {
			c.log.Debug().Int("attempt", attempt).Msg("transaction pending")
			return retry.RetryableError(errNotMined)
		}
		if err != nil {
			return c.retryTransport(attempt, err)
		}
		block := receipt.BlockNumber.Uint64()
		if receipt.Status == types.ReceiptStatusFailed {
			return newError(Confirmed, KindReverted,
				fmt.Errorf("transaction %s failed in block %d", txHash.Hex(), block))
		}
		confirmations := uint64(1)
		if c.Required > 1 {
			head, err := c.node.BlockNumber(ctx)
			if err != nil {
				return c.retryTransport(attempt, err)
			}
			if head >= block {
				confirmations = head - block + 1
			}
			if confirmations < c.Required {
				c.log.Debug().Uint64("block", block).Uint64("confirmations", confirmations).Msg("awaiting confirmations")
				return retry.RetryableError(errNotSettled)
			}
		}
		conf = &Confirmation{
			BlockNumber:   block,
			GasUsed:       receipt.GasUsed,
			Confirmations: confirmations,
			Receipt:       receipt,
		}
		return nil
	})
	if err == nil {
		return conf, nil
	}

	var e *Error
	switch {
	case errors.As(err, &e):
		return nil, e
	case waitCtx.Err() != nil:
		// The deadline or the caller's cancellation may surface as a transport
		// error of the in-flight call.
		cause := waitCtx.Err()
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		return nil, newError(Confirmed, KindConfirmationTimeout,
			fmt.Errorf("transaction %s not confirmed after %d polls in %s: %w",
				txHash.Hex(), attempt, time.Since(start).Round(time.Millisecond), cause))
	default:
		return nil, classify(Confirmed, KindTransport, err)
	}
}

// retryTransport keeps polling through transport failures of single calls;
// only the deadline ends the wait for a broadcast transaction.
func (c *Confirmer) retryTransport(attempt int, err error) error {
	if !errors.Is(err, client.ErrTransport) {
		return err
	}
	c.log.Warn().Err(err).Int("attempt", attempt).Msg("receipt poll failed")
	return retry.RetryableError(err)
}
