// Package v2 fills orders on the current Rarible exchange through matchOrders.
package v2

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/orderfill/internal/approve"
	"github.com/ggonzalez94/orderfill/internal/assettype"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

var exchangeABI = protocol.MustABI(registry.ExchangeV2ABI)

type Handler struct {
	env      protocol.Env
	resolver *assettype.Resolver
}

func New(env protocol.Env) *Handler {
	resolver := env.Resolver
	if resolver == nil {
		resolver = assettype.NewResolver(nil, env.ChainID)
	}
	return &Handler{env: env, resolver: resolver}
}

// Invert takes amount units of the order's make side and pays the matching
// share of its take side. Payouts and origin fees come from the request.
func (h *Handler) Invert(_ context.Context, req order.FillRequest, filler common.Address) (order.Order, error) {
	if err := req.ValidateAmount(); err != nil {
		return order.Order{}, err
	}
	if err := req.ValidateParts(); err != nil {
		return order.Order{}, err
	}
	initial := req.Order
	data, ok := initial.Data.(*order.RaribleV2Data)
	if !ok || data == nil {
		return order.Order{}, protocol.UnsupportedData(initial, "order data is not a v2 payload")
	}
	switch data.DataType {
	case order.DataTypeRaribleV2V1, order.DataTypeRaribleV2V2:
	default:
		return order.Order{}, protocol.UnsupportedData(initial, fmt.Sprintf("unsupported v2 data type %q", data.DataType))
	}
	if initial.Take.Value == nil {
		return order.Order{}, clierr.New(clierr.CodeUsage, "order take value is missing")
	}
	makeValue, err := protocol.ScaleMake(initial.Take.Value, req.Amount, initial.Make.Value)
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
		Data: &order.RaribleV2Data{
			DataType:   data.DataType,
			Payouts:    append([]order.Part(nil), req.Payouts...),
			OriginFees: append([]order.Part(nil), req.OriginFees...),
		},
	}, nil
}

// Approve authorizes the transfer proxy for the inverted make asset. ERC20
// allowances cover the amount plus fees.
func (h *Handler) Approve(ctx context.Context, inverted order.Order, infinite bool) (*wallet.Transaction, error) {
	w, err := h.env.RequireWallet()
	if err != nil {
		return nil, err
	}
	class := inverted.Make.AssetType.AssetClass
	if class == order.ClassETH {
		return nil, nil
	}
	role, err := proxyRole(class)
	if err != nil {
		return nil, err
	}
	operator, err := h.env.Addresses.Get(role)
	if err != nil {
		return nil, err
	}
	asset := inverted.Make
	if class == order.ClassERC20 {
		fee, err := h.OrderFee(ctx, inverted)
		if err != nil {
			return nil, err
		}
		asset = order.Asset{AssetType: asset.AssetType, Value: protocol.WithFee(asset.Value, fee)}
	}
	return approve.New(w).Asset(ctx, inverted.Maker, asset, operator, infinite)
}

func proxyRole(class order.AssetClass) (registry.Role, error) {
	switch class {
	case order.ClassERC20:
		return registry.RoleTransferProxyERC20, nil
	case order.ClassERC721, order.ClassERC1155:
		return registry.RoleTransferProxyNFT, nil
	case order.ClassERC721Lazy:
		return registry.RoleTransferProxyERC721Lazy, nil
	case order.ClassERC1155Lazy:
		return registry.RoleTransferProxyERC1155Lazy, nil
	case order.ClassCryptoPunks:
		return registry.RoleTransferProxyCryptoPunks, nil
	default:
		return "", clierr.New(clierr.CodeUnsupportedOrderData, fmt.Sprintf("no transfer proxy for asset class %s", class)).
			WithDetail("asset_class", string(class))
	}
}

// TransactionData encodes matchOrders with the signed order on the left and
// the unsigned inverse on the right. ETH payments carry the fee in value.
func (h *Handler) TransactionData(ctx context.Context, initial, inverted order.Order) (protocol.CallData, error) {
	exchange, err := h.env.Addresses.Get(registry.RoleExchangeV2)
	if err != nil {
		return protocol.CallData{}, err
	}
	left, err := h.encodeOrder(ctx, initial)
	if err != nil {
		return protocol.CallData{}, err
	}
	right, err := h.encodeOrder(ctx, inverted)
	if err != nil {
		return protocol.CallData{}, err
	}
	signature := initial.Signature
	if signature == nil {
		signature = []byte{}
	}
	data, err := exchangeABI.Pack("matchOrders", left, signature, right, []byte{})
	if err != nil {
		return protocol.CallData{}, clierr.Wrap(clierr.CodeInternal, "pack matchOrders calldata", err)
	}
	value := new(big.Int)
	if inverted.Make.AssetType.AssetClass == order.ClassETH {
		fee, err := h.OrderFee(ctx, inverted)
		if err != nil {
			return protocol.CallData{}, err
		}
		value = protocol.WithFee(valueOrZero(inverted.Make.Value), fee)
	}
	return protocol.CallData{To: exchange, Data: data, Value: value}, nil
}

// OrderFee is the base fee plus the order's origin fees.
func (h *Handler) OrderFee(ctx context.Context, o order.Order) (int64, error) {
	data, ok := o.Data.(*order.RaribleV2Data)
	if !ok || data == nil {
		return 0, protocol.UnsupportedData(o, "order data is not a v2 payload")
	}
	base, err := h.BaseOrderFee(ctx)
	if err != nil {
		return 0, err
	}
	total := base
	for _, p := range data.OriginFees {
		if p.Value < 0 {
			return 0, protocol.UnsupportedData(o, fmt.Sprintf("negative origin fee %d bps for %s", p.Value, p.Account.Hex()))
		}
		total += p.Value
	}
	return total, nil
}

func (h *Handler) BaseOrderFee(ctx context.Context) (int64, error) {
	return h.env.BaseFeeFor(ctx, order.TypeRaribleV2)
}

func (h *Handler) SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error) {
	call, err := h.TransactionData(ctx, initial, inverted)
	if err != nil {
		return nil, err
	}
	return protocol.Send(ctx, h.env, call)
}

var _ protocol.Handler = (*Handler)(nil)
