// Package punks fills listings and bids on the CryptoPunks market contract.
package punks

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

var marketABI = protocol.MustABI(registry.CryptoPunksMarketABI)

type Handler struct {
	env protocol.Env
}

func New(env protocol.Env) *Handler {
	return &Handler{env: env}
}

// Invert swaps sides of a punk listing or bid. Punks are indivisible, so the
// amount is always one.
func (h *Handler) Invert(_ context.Context, req order.FillRequest, filler common.Address) (order.Order, error) {
	if err := req.ValidateAmount(); err != nil {
		return order.Order{}, err
	}
	if req.Amount.Cmp(big.NewInt(1)) != 0 {
		return order.Order{}, clierr.New(clierr.CodeUsage, "punk orders can only be filled with amount 1")
	}
	initial := req.Order
	if _, ok := initial.Data.(*order.CryptoPunksData); !ok {
		return order.Order{}, protocol.UnsupportedData(initial, "order data is not a punk market payload")
	}
	punk, _, err := split(initial)
	if err != nil {
		return order.Order{}, err
	}
	if req.PunkID != nil && punk.AssetType.TokenID != nil && req.PunkID.Cmp(punk.AssetType.TokenID) != 0 {
		return order.Order{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("punk id %s does not match order punk %s", req.PunkID, punk.AssetType.TokenID))
	}

	maker := initial.Maker
	inverted := initial.Clone()
	inverted.Maker = filler
	inverted.Taker = &maker
	inverted.Make, inverted.Take = initial.Take.Clone(), initial.Make.Clone()
	inverted.Salt = new(big.Int)
	inverted.Signature = nil
	inverted.Data = &order.CryptoPunksData{DataType: order.DataTypeCryptoPunks}
	if req.PunkID != nil {
		for _, side := range []*order.Asset{&inverted.Make, &inverted.Take} {
			if side.AssetType.AssetClass == order.ClassCryptoPunks && side.AssetType.TokenID == nil {
				side.AssetType.TokenID = new(big.Int).Set(req.PunkID)
			}
		}
	}
	return inverted, nil
}

// Approve is a no-op: the market moves punks and ETH itself.
func (h *Handler) Approve(context.Context, order.Order, bool) (*wallet.Transaction, error) {
	return nil, nil
}

// TransactionData buys a listed punk or accepts a bid on one.
func (h *Handler) TransactionData(_ context.Context, initial, inverted order.Order) (protocol.CallData, error) {
	punk, payment, err := split(inverted)
	if err != nil {
		return protocol.CallData{}, err
	}
	if punk.AssetType.TokenID == nil {
		return protocol.CallData{}, clierr.New(clierr.CodeUsage, "punk order is missing the punk index")
	}
	market, err := h.market(punk.AssetType)
	if err != nil {
		return protocol.CallData{}, err
	}
	price := valueOrZero(payment.Value)

	// The filler pays ETH when buying a listing and receives it when
	// accepting a bid.
	if inverted.Make.AssetType.AssetClass == order.ClassETH {
		data, err := marketABI.Pack("buyPunk", punk.AssetType.TokenID)
		if err != nil {
			return protocol.CallData{}, clierr.Wrap(clierr.CodeInternal, "pack buyPunk calldata", err)
		}
		return protocol.CallData{To: market, Data: data, Value: new(big.Int).Set(price)}, nil
	}
	data, err := marketABI.Pack("acceptBidForPunk", punk.AssetType.TokenID, price)
	if err != nil {
		return protocol.CallData{}, clierr.Wrap(clierr.CodeInternal, "pack acceptBidForPunk calldata", err)
	}
	return protocol.CallData{To: market, Data: data, Value: new(big.Int)}, nil
}

func (h *Handler) market(t order.AssetType) (common.Address, error) {
	if t.Contract != (common.Address{}) {
		return t.Contract, nil
	}
	return h.env.Addresses.Get(registry.RoleCryptoPunks)
}

// OrderFee is always zero; the market charges no fees.
func (h *Handler) OrderFee(_ context.Context, o order.Order) (int64, error) {
	if _, ok := o.Data.(*order.CryptoPunksData); !ok {
		return 0, protocol.UnsupportedData(o, "order data is not a punk market payload")
	}
	return 0, nil
}

func (h *Handler) BaseOrderFee(ctx context.Context) (int64, error) {
	return h.env.BaseFeeFor(ctx, order.TypeCryptoPunk)
}

func (h *Handler) SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error) {
	call, err := h.TransactionData(ctx, initial, inverted)
	if err != nil {
		return nil, err
	}
	return protocol.Send(ctx, h.env, call)
}

var _ protocol.Handler = (*Handler)(nil)

func split(o order.Order) (punk, payment order.Asset, err error) {
	switch {
	case o.Make.AssetType.AssetClass == order.ClassCryptoPunks && o.Take.AssetType.AssetClass == order.ClassETH:
		return o.Make, o.Take, nil
	case o.Take.AssetType.AssetClass == order.ClassCryptoPunks && o.Make.AssetType.AssetClass == order.ClassETH:
		return o.Take, o.Make, nil
	default:
		return order.Asset{}, order.Asset{}, protocol.UnsupportedData(o, "punk orders trade a punk for ETH")
	}
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
