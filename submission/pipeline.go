package submission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerops/evm-submit/backend"
	"github.com/ledgerops/evm-submit/client"
	"github.com/ledgerops/evm-submit/transaction"
	"github.com/ledgerops/evm-submit/units"
	"github.com/ledgerops/evm-submit/wallet"
)

const tracerName = "github.com/ledgerops/evm-submit/submission"

// Config holds the per-process settings of a Pipeline.
type Config struct {
	ChainID *big.Int
	// OverrideFeeRate, in wei per gas, replaces the sampled fee rate if set.
	OverrideFeeRate       *big.Int
	RequiredConfirmations uint64
	ConfirmationTimeout   time.Duration
	PollInterval          time.Duration
	MaxPollInterval       time.Duration
	// VerifyChainID makes every submission compare ChainID with the node's
	// before reading any account state.
	VerifyChainID bool
}

// Request is a transfer as entered by an operator.
type Request struct {
	To string
	// Amount is a decimal ether amount, e.g. "0.001".
	Amount string
}

// Result describes how far a submission got. It is returned together with
// the error of a failed submission.
type Result struct {
	State State
	// Transaction is the assembled record, nil before Assembled.
	Transaction *transaction.Unsigned
	// TxHash is set once the transaction is signed.
	TxHash        common.Hash
	BlockNumber   uint64
	GasUsed       uint64
	Confirmations uint64
}

// Pipeline submits value transfers from a single account: it checks the
// balance, prices and budgets the transaction, assembles, signs and
// broadcasts it, and waits for confirmation. Each stage runs once; the first
// failure ends the submission.
type Pipeline struct {
	node       client.ChainClient
	signer     backend.Signer
	transactor backend.Transactor

	guard     *BalanceGuard
	fees      *FeeEstimator
	budget    *BudgetEstimator
	confirmer *Confirmer

	chainID       *big.Int
	verifyChainID bool
	observer      StateObserver
	log           zerolog.Logger
	tracer        trace.Tracer
}

type Option func(*Pipeline)

func WithStateObserver(o StateObserver) Option {
	return func(p *Pipeline) { p.observer = o }
}

func WithPollObserver(o PollObserver) Option {
	return func(p *Pipeline) { p.confirmer.OnPoll = o }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log.With().Str("module", "submission").Logger()
		p.confirmer.log = p.log
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) { p.tracer = tp.Tracer(tracerName) }
}

// WithTransactor replaces broadcasting through the node's
// eth_sendRawTransaction.
func WithTransactor(t backend.Transactor) Option {
	return func(p *Pipeline) { p.transactor = t }
}

func NewPipeline(node client.ChainClient, signer backend.Signer, cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, newError(Idle, KindMalformedInput, errors.New("chain id must be positive"))
	}
	if cfg.ConfirmationTimeout <= 0 {
		return nil, newError(Idle, KindMalformedInput, errors.New("confirmation timeout must be positive"))
	}
	fees, err := NewFeeEstimator(node, cfg.OverrideFeeRate)
	if err != nil {
		return nil, err
	}
	confirmer := NewConfirmer(node, cfg.RequiredConfirmations, cfg.ConfirmationTimeout)
	if cfg.PollInterval > 0 {
		confirmer.PollInterval = cfg.PollInterval
	}
	if cfg.MaxPollInterval > 0 {
		confirmer.MaxPollInterval = cfg.MaxPollInterval
	}
	p := &Pipeline{
		node:          node,
		signer:        signer,
		transactor:    backend.NewRPCTransactor(node),
		guard:         NewBalanceGuard(node),
		fees:          fees,
		budget:        NewBudgetEstimator(node),
		confirmer:     confirmer,
		chainID:       new(big.Int).Set(cfg.ChainID),
		verifyChainID: cfg.VerifyChainID,
		log:           zerolog.Nop(),
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Submit runs one submission. On failure the returned Result is non-nil and
// tells how far the submission got. A confirmation timeout leaves the Result
// in state Broadcast: the transaction may still be included.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "submit")
	defer span.End()

	s := &submission{p: p, res: &Result{State: Idle}}
	if err := s.run(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsUnresolved(err) {
			p.log.Warn().Err(err).Str("tx_hash", s.res.TxHash.Hex()).Msg("submission unresolved")
		} else {
			s.transition(Failed)
			p.log.Error().Err(err).Msg("submission failed")
		}
		return s.res, err
	}
	return s.res, nil
}

type submission struct {
	p   *Pipeline
	res *Result
}

func (s *submission) transition(to State) {
	from := s.res.State
	s.res.State = to
	s.p.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state transition")
	if s.p.observer != nil {
		s.p.observer(from, to)
	}
}

// step runs fn in its own span and enters next if fn succeeds.
func (s *submission) step(ctx context.Context, next State, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := s.p.tracer.Start(ctx, next.step())
	defer span.End()
	if err := fn(ctx, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.transition(next)
	return nil
}

func (s *submission) run(ctx context.Context, req Request) error {
	p := s.p
	to, value, err := parseRequest(req)
	if err != nil {
		return err
	}
	from := p.signer.Address()
	log := p.log.With().Str("from", from.Hex()).Str("to", to.Hex()).Logger()

	if p.verifyChainID {
		if err := client.VerifyChainID(ctx, p.node, p.chainID); err != nil {
			if errors.Is(err, client.ErrChainIDMismatch) {
				return newError(Idle, KindMalformedInput, err)
			}
			return classify(Idle, KindTransport, err)
		}
	}

	var balance *big.Int
	err = s.step(ctx, BalanceChecked, func(ctx context.Context, _ trace.Span) (err error) {
		balance, err = p.guard.Check(ctx, from, value)
		return err
	})
	if err != nil {
		return err
	}
	log.Info().Str("balance_wei", balance.String()).Str("value_wei", value.String()).Msg("balance sufficient")

	var feeRate *big.Int
	err = s.step(ctx, FeePriced, func(ctx context.Context, span trace.Span) (err error) {
		feeRate, err = p.fees.Estimate(ctx)
		if err == nil {
			span.SetAttributes(attribute.String("fee_rate_wei", feeRate.String()))
		}
		return err
	})
	if err != nil {
		return err
	}
	log.Info().Str("fee_rate_wei", feeRate.String()).Msg("fee priced")

	var budget uint64
	err = s.step(ctx, BudgetEstimated, func(ctx context.Context, span trace.Span) (err error) {
		budget, err = p.budget.Estimate(ctx, from, to, value, feeRate)
		if err == nil {
			span.SetAttributes(attribute.Int64("gas_limit", int64(budget)))
		}
		return err
	})
	if err != nil {
		return err
	}
	log.Info().Uint64("gas_limit", budget).Msg("budget estimated")

	var unsigned *transaction.Unsigned
	err = s.step(ctx, Assembled, func(ctx context.Context, _ trace.Span) error {
		nonce, err := p.node.PendingNonceAt(ctx, from)
		if err != nil {
			return classify(Assembled, KindTransport, fmt.Errorf("reading nonce: %w", err))
		}
		unsigned, err = transaction.Assemble(transaction.Params{
			From:    from,
			To:      to,
			Value:   value,
			FeeRate: feeRate,
			Budget:  budget,
			ChainID: p.chainID,
			Nonce:   nonce,
		})
		if err != nil {
			return newError(Assembled, KindMalformedInput, err)
		}
		// The balance was checked against the value alone; the fee is only
		// known now.
		if err := Covers(balance, unsigned.MaxCost()); err != nil {
			return newError(Assembled, KindInsufficientFunds, err)
		}
		s.res.Transaction = unsigned
		return nil
	})
	if err != nil {
		return err
	}

	var signed *transaction.Signed
	err = s.step(ctx, Signed, func(context.Context, trace.Span) (err error) {
		signed, err = p.signer.SignTransaction(unsigned)
		if err != nil {
			return newError(Signed, KindSigning, err)
		}
		s.res.TxHash = signed.Hash()
		return nil
	})
	if err != nil {
		return err
	}
	log = log.With().Str("tx_hash", signed.Hash().Hex()).Logger()

	err = s.step(ctx, Broadcast, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("tx_hash", signed.Hash().Hex()))
		hash, err := p.transactor.SubmitTransaction(ctx, signed)
		if err != nil {
			return classify(Broadcast, KindBroadcast, err)
		}
		s.res.TxHash = hash
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Msg("transaction broadcast")

	return s.step(ctx, Confirmed, func(ctx context.Context, span trace.Span) error {
		conf, err := p.confirmer.Await(ctx, s.res.TxHash)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int64("block", int64(conf.BlockNumber)))
		s.res.BlockNumber = conf.BlockNumber
		s.res.GasUsed = conf.GasUsed
		s.res.Confirmations = conf.Confirmations
		log.Info().Uint64("block", conf.BlockNumber).Uint64("gas_used", conf.GasUsed).Msg("transaction confirmed")
		return nil
	})
}

// parseRequest validates the operator input before any network call.
func parseRequest(req Request) (common.Address, *big.Int, error) {
	to, err := wallet.ParseAddress(req.To)
	if err != nil {
		return common.Address{}, nil, newError(Idle, KindMalformedInput, err)
	}
	if to == (common.Address{}) {
		return common.Address{}, nil, newError(Idle, KindMalformedInput, errors.New("destination is the zero address"))
	}
	value, err := units.Ether.ToSubUnits(req.Amount)
	if err != nil {
		return common.Address{}, nil, newError(Idle, KindMalformedInput, err)
	}
	return to, value, nil
}
