package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/meteomarkets/weather-oracle/internal/market"
)

// Resolver submits market resolutions to the factory contract.
type Resolver struct {
	backend  TxBackend
	contract *bind.BoundContract
	factory  common.Address
	opts     *bind.TransactOpts
	log      zerolog.Logger
}

func NewResolver(backend TxBackend, factory common.Address, opts *bind.TransactOpts, log zerolog.Logger) *Resolver {
	contract := bind.NewBoundContract(factory, factoryABI, backend, backend, backend)
	return &Resolver{
		backend:  backend,
		contract: contract,
		factory:  factory,
		opts:     opts,
		log:      log.With().Str("component", "resolver").Logger(),
	}
}

// PayoutVector maps an outcome to the contract's payout array:
// [1,0] when YES wins, [0,1] when NO wins.
func PayoutVector(o market.Outcome) []*big.Int {
	if o == market.OutcomeYes {
		return []*big.Int{big.NewInt(1), big.NewInt(0)}
	}
	return []*big.Int{big.NewInt(0), big.NewInt(1)}
}

// gasWithMargin applies the fixed 25% safety margin, rounding up.
func gasWithMargin(estimate uint64) uint64 {
	return (estimate*125 + 99) / 100
}

// ResolveMarket decides the outcome from the aggregated temperature,
// estimates gas with a 25% margin, submits resolveMarket, and waits for the
// transaction to be mined. Any failure is terminal for this attempt; the
// caller does not retry.
func (r *Resolver) ResolveMarket(ctx context.Context, req market.ResolutionRequest) (market.ResolutionResult, error) {
	outcome := market.DecideOutcome(req.TemperatureF, req.LowerBoundF, req.UpperBoundF)
	payouts := PayoutVector(outcome)

	r.log.Info().Str("conditionId", req.ConditionID.Hex()).
		Float64("temperatureF", req.TemperatureF).
		Int32("lowerBoundF", req.LowerBoundF).Int32("upperBoundF", req.UpperBoundF).
		Str("outcome", string(outcome)).
		Msg("resolving market")

	conditionID := [32]byte(req.ConditionID)
	data, err := factoryABI.Pack("resolveMarket", conditionID, payouts)
	if err != nil {
		return market.ResolutionResult{}, fmt.Errorf("resolver: pack call: %w", err)
	}

	estimate, err := r.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: r.opts.From,
		To:   &r.factory,
		Data: data,
	})
	if err != nil {
		return market.ResolutionResult{}, fmt.Errorf("resolver: estimate gas: %w", err)
	}
	gasLimit := gasWithMargin(estimate)

	r.log.Debug().Uint64("estimate", estimate).Uint64("gasLimit", gasLimit).
		Msg("gas estimated")

	opts := *r.opts
	opts.Context = ctx
	opts.GasLimit = gasLimit

	tx, err := r.contract.Transact(&opts, "resolveMarket", conditionID, payouts)
	if err != nil {
		return market.ResolutionResult{}, fmt.Errorf("resolver: submit transaction: %w", err)
	}

	r.log.Info().Str("tx", tx.Hash().Hex()).Msg("transaction submitted")

	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	if err != nil {
		return market.ResolutionResult{}, fmt.Errorf("resolver: wait for confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return market.ResolutionResult{}, fmt.Errorf("resolver: transaction %s reverted in block %d",
			tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}

	r.log.Info().Str("tx", tx.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("market resolved")

	return market.ResolutionResult{
		ConditionID:  req.ConditionID,
		TemperatureF: req.TemperatureF,
		Outcome:      outcome,
		TxHash:       tx.Hash(),
	}, nil
}
