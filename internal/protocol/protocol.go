// Package protocol defines the contract every order protocol handler meets.
package protocol

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/orderfill/internal/assettype"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

// Handler implements one protocol's fill semantics.
type Handler interface {
	// Invert builds the counter-order the filler signs up to.
	Invert(ctx context.Context, req order.FillRequest, filler common.Address) (order.Order, error)
	// Approve grants the protocol's proxies access to the inverted make
	// asset. A nil transaction means no approval was needed.
	Approve(ctx context.Context, inverted order.Order, infinite bool) (*wallet.Transaction, error)
	// TransactionData encodes the fill call without submitting it.
	TransactionData(ctx context.Context, initial, inverted order.Order) (CallData, error)
	OrderFee(ctx context.Context, o order.Order) (int64, error)
	BaseOrderFee(ctx context.Context) (int64, error)
	SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error)
}

// CallData is an unsigned contract call.
type CallData struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// BaseFeeFunc returns the protocol-wide base fee in basis points.
type BaseFeeFunc func(ctx context.Context, t order.Type) (int64, error)

// ZeroBaseFee is a BaseFeeFunc for deployments without platform fees.
func ZeroBaseFee(context.Context, order.Type) (int64, error) { return 0, nil }

// Env is the immutable environment handlers close over.
type Env struct {
	Wallet    wallet.Wallet
	Addresses registry.Addresses
	BaseFee   BaseFeeFunc
	ChainID   int64
	Resolver  *assettype.Resolver
}

func (e Env) BaseFeeFor(ctx context.Context, t order.Type) (int64, error) {
	if e.BaseFee == nil {
		return 0, nil
	}
	fee, err := e.BaseFee(ctx, t)
	if err != nil {
		return 0, err
	}
	if fee < 0 {
		return 0, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("negative base fee %d for %s", fee, t))
	}
	return fee, nil
}

// RequireWallet fails with WalletUnavailable when no wallet is connected.
func (e Env) RequireWallet() (wallet.Wallet, error) {
	if e.Wallet == nil {
		return nil, clierr.New(clierr.CodeWalletUnavailable, "wallet is not connected")
	}
	return e.Wallet, nil
}

// Send submits call from the connected wallet.
func Send(ctx context.Context, env Env, call CallData) (*wallet.Transaction, error) {
	w, err := env.RequireWallet()
	if err != nil {
		return nil, err
	}
	return w.Send(ctx, wallet.TxRequest{To: call.To, Data: call.Data, Value: call.Value})
}

// UnsupportedData reports an order payload a handler cannot encode.
func UnsupportedData(o order.Order, message string) *clierr.Error {
	dataType := ""
	if o.Data != nil {
		dataType = o.Data.DataTypeName()
	}
	return clierr.New(clierr.CodeUnsupportedOrderData, message).
		WithDetail("order_type", string(o.Type)).
		WithDetail("data_type", dataType)
}

// ScaleMake returns value * amount / total, floored, or a usage error when
// the fill cannot be expressed.
func ScaleMake(value, amount, total *big.Int) (*big.Int, error) {
	if total == nil || total.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "order has no fillable amount")
	}
	if amount.Cmp(total) > 0 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("fill amount %s exceeds order amount %s", amount, total))
	}
	scaled := new(big.Int).Mul(value, amount)
	scaled.Quo(scaled, total)
	if scaled.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "fill amount is too small to be paid for")
	}
	return scaled, nil
}

// WithFee adds bps basis points to value.
func WithFee(value *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(value, big.NewInt(10000+bps))
	return out.Quo(out, big.NewInt(10000))
}

func MustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
