package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// LogFilterer is the read-only slice of the RPC surface discovery needs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// TxBackend is the RPC surface the resolver needs to submit a transaction
// and wait for its receipt. *ethclient.Client satisfies it.
type TxBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Config holds the blockchain connection settings.
type Config struct {
	RPCURL         string
	PrivateKey     string // hex, 0x-prefixed
	FactoryAddress string // 0x-prefixed
}

// Client bundles the RPC connection, the oracle wallet's transactor, and
// the factory address. Constructed once at startup and injected everywhere
// a chain dependency is needed.
type Client struct {
	eth     *ethclient.Client
	opts    *bind.TransactOpts
	factory common.Address
	log     zerolog.Logger
}

// NewClient dials the RPC endpoint and derives the signing transactor from
// the configured private key.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: fetch chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}

	c := &Client{
		eth:     eth,
		opts:    opts,
		factory: common.HexToAddress(cfg.FactoryAddress),
		log:     log.With().Str("component", "chain").Logger(),
	}
	c.log.Info().Str("chainId", chainID.String()).Str("wallet", opts.From.Hex()).
		Str("factory", c.factory.Hex()).Msg("connected")
	return c, nil
}

// Backend exposes the underlying RPC client.
func (c *Client) Backend() *ethclient.Client { return c.eth }

// FactoryAddress returns the MarketFactory contract address.
func (c *Client) FactoryAddress() common.Address { return c.factory }

// TransactOpts returns the process-wide signing transactor. Nonce
// management is left to the signing layer.
func (c *Client) TransactOpts() *bind.TransactOpts { return c.opts }

// WalletAddress returns the oracle wallet address.
func (c *Client) WalletAddress() common.Address { return c.opts.From }

// WalletBalanceEther returns the wallet balance converted to ether, for
// the startup health check.
func (c *Client) WalletBalanceEther(ctx context.Context) (float64, error) {
	wei, err := c.eth.BalanceAt(ctx, c.opts.From, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: fetch balance: %w", err)
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return ether, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
