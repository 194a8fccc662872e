// Package legacy fills orders on the first-generation Rarible exchange.
package legacy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/orderfill/internal/approve"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

var exchangeABI = protocol.MustABI(registry.ExchangeV1ABI)

type Handler struct {
	env    protocol.Env
	feeSig BuyerFeeSigner
}

func New(env protocol.Env, feeSigner BuyerFeeSigner) *Handler {
	return &Handler{env: env, feeSig: feeSigner}
}

// Invert builds the buyer side. The buyer fee in basis points travels in the
// inverted order's data.
func (h *Handler) Invert(_ context.Context, req order.FillRequest, filler common.Address) (order.Order, error) {
	if err := req.ValidateAmount(); err != nil {
		return order.Order{}, err
	}
	initial := req.Order
	if _, ok := initial.Data.(*order.LegacyData); !ok {
		return order.Order{}, protocol.UnsupportedData(initial, "order data is not a legacy payload")
	}
	if err := verifyMaker(initial); err != nil {
		return order.Order{}, err
	}
	if req.OriginFee < 0 || req.OriginFee >= 10000 {
		return order.Order{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("buyer fee %d bps is out of range", req.OriginFee))
	}
	makeValue, err := protocol.ScaleMake(valueOrZero(initial.Take.Value), req.Amount, initial.Make.Value)
	if err != nil {
		return order.Order{}, err
	}
	maker := initial.Maker
	return order.Order{
		Type:  initial.Type,
		Maker: filler,
		Taker: &maker,
		Make:  order.Asset{AssetType: initial.Take.AssetType.Clone(), Value: makeValue},
		Take:  order.Asset{AssetType: initial.Make.AssetType.Clone(), Value: new(big.Int).Set(req.Amount)},
		Salt:  new(big.Int),
		Start: initial.Start,
		End:   initial.End,
		Data:  &order.LegacyData{DataType: order.DataTypeLegacy, Fee: req.OriginFee},
	}, nil
}

func (h *Handler) Approve(ctx context.Context, inverted order.Order, infinite bool) (*wallet.Transaction, error) {
	w, err := h.env.RequireWallet()
	if err != nil {
		return nil, err
	}
	var role registry.Role
	asset := inverted.Make
	switch asset.AssetType.AssetClass {
	case order.ClassETH:
		return nil, nil
	case order.ClassERC20:
		role = registry.RoleV1ERC20TransferProxy
		fee, err := h.OrderFee(ctx, inverted)
		if err != nil {
			return nil, err
		}
		asset = order.Asset{AssetType: asset.AssetType, Value: protocol.WithFee(valueOrZero(asset.Value), fee)}
	case order.ClassERC721, order.ClassERC1155:
		role = registry.RoleV1TransferProxy
	default:
		return nil, protocol.UnsupportedData(inverted, fmt.Sprintf("asset class %s is not tradable on the legacy exchange", asset.AssetType.AssetClass))
	}
	operator, err := h.env.Addresses.Get(role)
	if err != nil {
		return nil, err
	}
	return approve.New(w).Asset(ctx, inverted.Maker, asset, operator, infinite)
}

// TransactionData encodes exchange(order, sig, buyerFee, buyerFeeSig, amount, buyer).
func (h *Handler) TransactionData(ctx context.Context, initial, inverted order.Order) (protocol.CallData, error) {
	exchange, err := h.env.Addresses.Get(registry.RoleExchangeV1)
	if err != nil {
		return protocol.CallData{}, err
	}
	if err := verifyMaker(initial); err != nil {
		return protocol.CallData{}, err
	}
	arg, err := encodeOrder(initial)
	if err != nil {
		return protocol.CallData{}, err
	}
	sig, err := splitSignature(initial.Signature)
	if err != nil {
		return protocol.CallData{}, invalidSignature(initial, err.Error())
	}
	buyerFee, err := h.OrderFee(ctx, inverted)
	if err != nil {
		return protocol.CallData{}, err
	}
	if h.feeSig == nil {
		return protocol.CallData{}, clierr.New(clierr.CodeUsage, "no buyer fee signer configured for legacy orders")
	}
	rawFeeSig, err := h.feeSig.BuyerFeeSignature(ctx, initial, buyerFee)
	if err != nil {
		return protocol.CallData{}, err
	}
	feeSig, err := splitSignature(rawFeeSig)
	if err != nil {
		return protocol.CallData{}, clierr.Wrap(clierr.CodeUnavailable, "invalid buyer fee signature", err)
	}
	data, err := exchangeABI.Pack("exchange", arg, sig, big.NewInt(buyerFee), feeSig, valueOrZero(inverted.Take.Value), inverted.Maker)
	if err != nil {
		return protocol.CallData{}, clierr.Wrap(clierr.CodeInternal, "pack exchange calldata", err)
	}
	value := new(big.Int)
	if inverted.Make.AssetType.AssetClass == order.ClassETH {
		value = protocol.WithFee(valueOrZero(inverted.Make.Value), buyerFee)
	}
	return protocol.CallData{To: exchange, Data: data, Value: value}, nil
}

// OrderFee is the fee recorded in the order data: the seller fee on stored
// orders, the buyer fee on inverted ones.
func (h *Handler) OrderFee(_ context.Context, o order.Order) (int64, error) {
	data, ok := o.Data.(*order.LegacyData)
	if !ok || data == nil {
		return 0, protocol.UnsupportedData(o, "order data is not a legacy payload")
	}
	return data.Fee, nil
}

func (h *Handler) BaseOrderFee(ctx context.Context) (int64, error) {
	return h.env.BaseFeeFor(ctx, order.TypeRaribleV1)
}

func (h *Handler) SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error) {
	call, err := h.TransactionData(ctx, initial, inverted)
	if err != nil {
		return nil, err
	}
	return protocol.Send(ctx, h.env, call)
}

var _ protocol.Handler = (*Handler)(nil)
