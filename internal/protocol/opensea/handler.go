// Package opensea fills Wyvern orders through atomicMatch_.
package opensea

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

var exchangeABI = protocol.MustABI(registry.WyvernExchangeABI)

type Handler struct {
	env protocol.Env
}

func New(env protocol.Env) *Handler {
	return &Handler{env: env}
}

// Invert builds the unsigned counter-order on the opposite side. Exactly one
// side of a match carries a fee recipient.
func (h *Handler) Invert(_ context.Context, req order.FillRequest, filler common.Address) (order.Order, error) {
	if err := req.ValidateAmount(); err != nil {
		return order.Order{}, err
	}
	initial := req.Order
	data, ok := initial.Data.(*order.OpenSeaData)
	if !ok || data == nil {
		return order.Order{}, protocol.UnsupportedData(initial, "order data is not an open sea payload")
	}
	if len(initial.Signature) == 0 {
		return order.Order{}, invalidSignature(initial, "open sea order is not signed")
	}
	if data.SaleKind != order.SaleKindFixedPrice {
		return order.Order{}, protocol.UnsupportedData(initial, fmt.Sprintf("sale kind %q is not supported", data.SaleKind))
	}
	nft, _, err := sides(initial)
	if err != nil {
		return order.Order{}, err
	}
	if nft.AssetType.AssetClass == order.ClassERC721 && req.Amount.Cmp(big.NewInt(1)) != 0 {
		return order.Order{}, clierr.New(clierr.CodeUsage, "erc721 orders can only be filled with amount 1")
	}
	if nft.Value != nil && req.Amount.Cmp(nft.Value) != 0 {
		return order.Order{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("open sea orders fill completely: amount must be %s", nft.Value))
	}

	exchange := data.Exchange
	if exchange == (common.Address{}) {
		if exchange, err = h.env.Addresses.Get(registry.RoleOpenSeaV1); err != nil {
			return order.Order{}, err
		}
	}
	feeRecipient := common.Address{}
	if data.FeeRecipient == (common.Address{}) {
		if feeRecipient, err = h.env.Addresses.Get(registry.RoleOpenSeaFeeRecipient); err != nil {
			return order.Order{}, err
		}
	}
	side := flipSide(data.Side)
	callData, pattern, err := transferCall(nft, filler, side)
	if err != nil {
		return order.Order{}, err
	}

	maker := initial.Maker
	inverted := initial.Clone()
	inverted.Maker = filler
	inverted.Taker = &maker
	inverted.Make, inverted.Take = initial.Take.Clone(), initial.Make.Clone()
	inverted.Salt = new(big.Int)
	inverted.End = 0
	inverted.Signature = nil
	inverted.Data = &order.OpenSeaData{
		DataType:           data.DataType,
		Exchange:           exchange,
		MakerRelayerFee:    data.MakerRelayerFee,
		TakerRelayerFee:    data.TakerRelayerFee,
		MakerProtocolFee:   data.MakerProtocolFee,
		TakerProtocolFee:   data.TakerProtocolFee,
		FeeRecipient:       feeRecipient,
		FeeMethod:          data.FeeMethod,
		Side:               side,
		SaleKind:           data.SaleKind,
		HowToCall:          data.HowToCall,
		CallData:           callData,
		ReplacementPattern: pattern,
		StaticExtraData:    []byte{},
		Extra:              new(big.Int).Set(valueOrZero(data.Extra)),
	}
	return inverted, nil
}

// Approve registers the filler's user proxy before approving NFTs to it.
// ERC20 payments are pulled by the shared token transfer proxy.
func (h *Handler) Approve(ctx context.Context, inverted order.Order, infinite bool) (*wallet.Transaction, error) {
	w, err := h.env.RequireWallet()
	if err != nil {
		return nil, err
	}
	approver := approve.New(w)
	asset := inverted.Make
	switch asset.AssetType.AssetClass {
	case order.ClassETH:
		return nil, nil
	case order.ClassERC20:
		proxy, err := h.env.Addresses.Get(registry.RoleOpenSeaTokenProxy)
		if err != nil {
			return nil, err
		}
		fee, err := h.OrderFee(ctx, inverted)
		if err != nil {
			return nil, err
		}
		return approver.ERC20(ctx, inverted.Maker, asset.AssetType.Contract, proxy, protocol.WithFee(valueOrZero(asset.Value), fee), infinite)
	case order.ClassERC721, order.ClassERC1155:
		proxyRegistry, err := h.env.Addresses.Get(registry.RoleOpenSeaProxyRegistry)
		if err != nil {
			return nil, err
		}
		proxy, err := approver.OpenSeaProxy(ctx, inverted.Maker, proxyRegistry)
		if err != nil {
			return nil, err
		}
		return approver.NFT(ctx, inverted.Maker, asset.AssetType.Contract, proxy)
	default:
		return nil, protocol.UnsupportedData(inverted, fmt.Sprintf("asset class %s cannot be approved for the proxy exchange", asset.AssetType.AssetClass))
	}
}

// TransactionData encodes atomicMatch_ with the buy side first.
func (h *Handler) TransactionData(ctx context.Context, initial, inverted order.Order) (protocol.CallData, error) {
	if len(initial.Signature) == 0 {
		return protocol.CallData{}, invalidSignature(initial, "open sea order is not signed")
	}
	first, err := newMatchSide(initial)
	if err != nil {
		return protocol.CallData{}, err
	}
	second, err := newMatchSide(inverted)
	if err != nil {
		return protocol.CallData{}, err
	}
	buy, sell := second, first
	if first.data.Side == order.SideBuy {
		buy, sell = first, second
	}
	if buy.data.Side != order.SideBuy || sell.data.Side != order.SideSell {
		return protocol.CallData{}, protocol.UnsupportedData(initial, "orders must be on opposite sides")
	}

	var (
		addrs [14]common.Address
		uints [18]*big.Int
		enums [8]uint8
	)
	for i, part := range []matchSide{buy, sell} {
		a, err := part.addrs()
		if err != nil {
			return protocol.CallData{}, err
		}
		u, err := part.uints()
		if err != nil {
			return protocol.CallData{}, err
		}
		e, err := part.enums()
		if err != nil {
			return protocol.CallData{}, err
		}
		copy(addrs[i*7:], a[:])
		copy(uints[i*9:], u[:])
		copy(enums[i*4:], e[:])
	}
	vs := [2]uint8{buy.v, sell.v}
	rss := [5][32]byte{buy.r, buy.s, sell.r, sell.s, {}}
	data, err := exchangeABI.Pack("atomicMatch_", addrs, uints, enums,
		buy.data.CallData, sell.data.CallData,
		buy.data.ReplacementPattern, sell.data.ReplacementPattern,
		staticExtra(buy.data), staticExtra(sell.data),
		vs, rss)
	if err != nil {
		return protocol.CallData{}, clierr.Wrap(clierr.CodeInternal, "pack atomicMatch_ calldata", err)
	}

	value := new(big.Int)
	if inverted.Make.AssetType.AssetClass == order.ClassETH {
		fee, err := h.OrderFee(ctx, inverted)
		if err != nil {
			return protocol.CallData{}, err
		}
		value = protocol.WithFee(valueOrZero(inverted.Make.Value), fee)
	}
	return protocol.CallData{To: addrs[0], Data: data, Value: value}, nil
}

// OrderFee is what the taker pays on top of the price.
func (h *Handler) OrderFee(_ context.Context, o order.Order) (int64, error) {
	data, ok := o.Data.(*order.OpenSeaData)
	if !ok || data == nil {
		return 0, protocol.UnsupportedData(o, "order data is not an open sea payload")
	}
	return data.TakerRelayerFee + data.TakerProtocolFee, nil
}

func (h *Handler) BaseOrderFee(ctx context.Context) (int64, error) {
	return h.env.BaseFeeFor(ctx, order.TypeOpenSeaV1)
}

func (h *Handler) SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error) {
	call, err := h.TransactionData(ctx, initial, inverted)
	if err != nil {
		return nil, err
	}
	return protocol.Send(ctx, h.env, call)
}

var _ protocol.Handler = (*Handler)(nil)

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
