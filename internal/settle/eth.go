package settle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

// futuresABI is the external surface of the on-chain futures contract.
const futuresABI = `[
	{"name":"ext_place_order","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"side","type":"uint8"},{"name":"price","type":"int256"},
	           {"name":"qty","type":"int256"},{"name":"leverage","type":"uint32"}],
	 "outputs":[{"name":"","type":"uint64"}]},
	{"name":"ext_match","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"buy_id","type":"uint64"},{"name":"sell_id","type":"uint64"},
	           {"name":"price","type":"int256"}],
	 "outputs":[]},
	{"name":"ext_liquidate","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"trader","type":"address"},{"name":"mark_price","type":"int256"}],
	 "outputs":[]},
	{"name":"ext_update_oracle","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"product_id","type":"uint64"},{"name":"price","type":"int256"}],
	 "outputs":[]}
]`

// defaultProductID: the venue trades a single product.
const defaultProductID uint64 = 1

// EthConfig carries the connection parameters for the authoritative chain
// ledger.
type EthConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string // hex, with or without 0x prefix
	ChainID         int64
}

// Configured reports whether enough parameters are present to even attempt
// a chain connection.
func (c EthConfig) Configured() bool {
	return c.RPCURL != "" && c.ContractAddress != "" && c.PrivateKey != ""
}

// EthPropagator talks to the on-chain futures contract. Every call is a
// network round-trip; the venue never holds a lock across them.
type EthPropagator struct {
	contract *bind.BoundContract
	opts     *bind.TransactOpts
	address  common.Address
}

// DialEth connects to the chain endpoint and binds the contract.
func DialEth(ctx context.Context, cfg EthConfig) (*EthPropagator, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("settle: dial %s: %w", cfg.RPCURL, err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("settle: parse private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("settle: transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(futuresABI))
	if err != nil {
		return nil, fmt.Errorf("settle: parse abi: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	return &EthPropagator{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		opts:     opts,
		address:  address,
	}, nil
}

func (e *EthPropagator) Authoritative() bool { return true }

// PlaceOrder dry-runs the call to learn the order id the contract will
// assign, then sends the transaction.
func (e *EthPropagator) PlaceOrder(ctx context.Context, order model.Order) (uint64, string, error) {
	side := uint8(0)
	if order.Side == model.Sell {
		side = 1
	}
	price := order.Price.BigInt()
	qty := order.Qty.BigInt()
	leverage := uint32(order.Leverage)

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx, From: e.opts.From}
	if err := e.contract.Call(callOpts, &out, "ext_place_order", side, price, qty, leverage); err != nil {
		return 0, "", fmt.Errorf("settle: preview place_order: %w", err)
	}
	if len(out) != 1 {
		return 0, "", fmt.Errorf("settle: unexpected place_order outputs: %d", len(out))
	}
	id, ok := out[0].(uint64)
	if !ok {
		return 0, "", fmt.Errorf("settle: place_order id has type %T", out[0])
	}

	tx, err := e.contract.Transact(e.txOpts(ctx), "ext_place_order", side, price, qty, leverage)
	if err != nil {
		return 0, "", fmt.Errorf("settle: place_order: %w", err)
	}
	return id, tx.Hash().Hex(), nil
}

func (e *EthPropagator) Match(ctx context.Context, buyID, sellID uint64, price decimal.Decimal) (string, error) {
	tx, err := e.contract.Transact(e.txOpts(ctx), "ext_match", buyID, sellID, price.BigInt())
	if err != nil {
		return "", fmt.Errorf("settle: match %d/%d: %w", buyID, sellID, err)
	}
	return tx.Hash().Hex(), nil
}

func (e *EthPropagator) Liquidate(ctx context.Context, trader string, mark decimal.Decimal) (string, error) {
	tx, err := e.contract.Transact(e.txOpts(ctx), "ext_liquidate",
		common.HexToAddress(trader), mark.BigInt())
	if err != nil {
		return "", fmt.Errorf("settle: liquidate %s: %w", trader, err)
	}
	return tx.Hash().Hex(), nil
}

func (e *EthPropagator) UpdateOracle(ctx context.Context, price decimal.Decimal) (string, error) {
	tx, err := e.contract.Transact(e.txOpts(ctx), "ext_update_oracle",
		defaultProductID, price.BigInt())
	if err != nil {
		return "", fmt.Errorf("settle: update oracle: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// txOpts copies the keyed transactor with the per-call context attached.
func (e *EthPropagator) txOpts(ctx context.Context) *bind.TransactOpts {
	opts := *e.opts
	opts.Context = ctx
	return &opts
}
