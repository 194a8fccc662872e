package opensea

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/registry"
)

var nftABI = protocol.MustABI(registry.NFTApprovalABI)

func feeMethodCode(v string) (uint8, error) {
	switch v {
	case order.FeeMethodProtocolFee:
		return 0, nil
	case order.FeeMethodSplitFee:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown fee method %q", v)
}

func sideCode(v string) (uint8, error) {
	switch v {
	case order.SideBuy:
		return 0, nil
	case order.SideSell:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown side %q", v)
}

func saleKindCode(v string) (uint8, error) {
	switch v {
	case order.SaleKindFixedPrice:
		return 0, nil
	case order.SaleKindDutchAuction:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown sale kind %q", v)
}

func howToCallCode(v string) (uint8, error) {
	switch v {
	case order.HowToCallCall:
		return 0, nil
	case order.HowToCallDelegateCall:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown call kind %q", v)
}

func flipSide(side string) string {
	if side == order.SideSell {
		return order.SideBuy
	}
	return order.SideSell
}

// sides splits an order into its NFT and payment assets.
func sides(o order.Order) (nft, payment order.Asset, err error) {
	makeNFT := o.Make.AssetType.AssetClass.IsNFT()
	takeNFT := o.Take.AssetType.AssetClass.IsNFT()
	switch {
	case makeNFT && !takeNFT:
		nft, payment = o.Make, o.Take
	case takeNFT && !makeNFT:
		nft, payment = o.Take, o.Make
	default:
		return order.Asset{}, order.Asset{}, protocol.UnsupportedData(o, "order must trade one nft against a payment asset")
	}
	switch nft.AssetType.AssetClass {
	case order.ClassERC721, order.ClassERC1155:
	default:
		return order.Asset{}, order.Asset{}, protocol.UnsupportedData(o, fmt.Sprintf("asset class %s cannot be traded through the proxy exchange", nft.AssetType.AssetClass))
	}
	switch payment.AssetType.AssetClass {
	case order.ClassETH, order.ClassERC20:
	default:
		return order.Asset{}, order.Asset{}, protocol.UnsupportedData(o, fmt.Sprintf("asset class %s cannot pay on the proxy exchange", payment.AssetType.AssetClass))
	}
	return nft, payment, nil
}

// transferCall builds the proxy's token transfer and the replacement
// pattern that leaves the counterparty slot open. A seller fixes from and
// masks to; a buyer fixes to and masks from.
func transferCall(nft order.Asset, party common.Address, side string) ([]byte, []byte, error) {
	tokenID := nft.AssetType.TokenID
	if tokenID == nil {
		return nil, nil, clierr.New(clierr.CodeUsage, "nft asset is missing its token id")
	}
	from, to := common.Address{}, party
	if side == order.SideSell {
		from, to = party, common.Address{}
	}
	var (
		data []byte
		err  error
	)
	switch nft.AssetType.AssetClass {
	case order.ClassERC721:
		data, err = nftABI.Pack("transferFrom", from, to, tokenID)
	default:
		amount := nft.Value
		if amount == nil {
			amount = big.NewInt(1)
		}
		data, err = nftABI.Pack("safeTransferFrom", from, to, tokenID, amount, []byte{})
	}
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeInternal, "pack transfer calldata", err)
	}
	pattern := make([]byte, len(data))
	masked := 4
	if side == order.SideSell {
		masked = 36
	}
	for i := masked; i < masked+32; i++ {
		pattern[i] = 0xff
	}
	return data, pattern, nil
}

// matchSide is one half of an atomicMatch_ call.
type matchSide struct {
	order order.Order
	data  *order.OpenSeaData
	v     uint8
	r, s  [32]byte
}

func newMatchSide(o order.Order) (matchSide, error) {
	data, ok := o.Data.(*order.OpenSeaData)
	if !ok || data == nil {
		return matchSide{}, protocol.UnsupportedData(o, "order data is not an open sea payload")
	}
	side := matchSide{order: o, data: data}
	if len(o.Signature) > 0 {
		if len(o.Signature) != 65 {
			return matchSide{}, invalidSignature(o, fmt.Sprintf("signature must be 65 bytes, got %d", len(o.Signature)))
		}
		copy(side.r[:], o.Signature[:32])
		copy(side.s[:], o.Signature[32:64])
		side.v = o.Signature[64]
		if side.v < 27 {
			side.v += 27
		}
	}
	return side, nil
}

func (m matchSide) addrs() ([7]common.Address, error) {
	nft, payment, err := sides(m.order)
	if err != nil {
		return [7]common.Address{}, err
	}
	paymentToken := common.Address{}
	if payment.AssetType.AssetClass == order.ClassERC20 {
		paymentToken = payment.AssetType.Contract
	}
	return [7]common.Address{
		m.data.Exchange,
		m.order.Maker,
		m.order.TakerOrZero(),
		m.data.FeeRecipient,
		nft.AssetType.Contract,
		m.data.StaticTarget,
		paymentToken,
	}, nil
}

func (m matchSide) uints() ([9]*big.Int, error) {
	_, payment, err := sides(m.order)
	if err != nil {
		return [9]*big.Int{}, err
	}
	price := payment.Value
	if price == nil {
		price = new(big.Int)
	}
	extra := m.data.Extra
	if extra == nil {
		extra = new(big.Int)
	}
	salt := m.order.Salt
	if salt == nil {
		salt = new(big.Int)
	}
	return [9]*big.Int{
		big.NewInt(m.data.MakerRelayerFee),
		big.NewInt(m.data.TakerRelayerFee),
		big.NewInt(m.data.MakerProtocolFee),
		big.NewInt(m.data.TakerProtocolFee),
		price,
		extra,
		big.NewInt(m.order.Start),
		big.NewInt(m.order.End),
		salt,
	}, nil
}

func (m matchSide) enums() ([4]uint8, error) {
	var out [4]uint8
	var err error
	if out[0], err = feeMethodCode(m.data.FeeMethod); err != nil {
		return out, protocol.UnsupportedData(m.order, err.Error())
	}
	if out[1], err = sideCode(m.data.Side); err != nil {
		return out, protocol.UnsupportedData(m.order, err.Error())
	}
	if out[2], err = saleKindCode(m.data.SaleKind); err != nil {
		return out, protocol.UnsupportedData(m.order, err.Error())
	}
	if out[3], err = howToCallCode(m.data.HowToCall); err != nil {
		return out, protocol.UnsupportedData(m.order, err.Error())
	}
	return out, nil
}

func staticExtra(d *order.OpenSeaData) []byte {
	if d.StaticExtraData == nil {
		return []byte{}
	}
	return d.StaticExtraData
}

func invalidSignature(o order.Order, message string) *clierr.Error {
	return clierr.New(clierr.CodeInvalidOrderSignature, message).
		WithDetail("order_type", string(o.Type)).
		WithDetail("maker", o.Maker.Hex())
}
