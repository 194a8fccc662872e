package v2

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
)

// Field names mirror the ABI component names; the packer matches on them.
type assetTypeArg struct {
	AssetClass [4]byte
	Data       []byte
}

type assetArg struct {
	AssetType assetTypeArg
	Value     *big.Int
}

type orderArg struct {
	Maker     common.Address
	MakeAsset assetArg
	Taker     common.Address
	TakeAsset assetArg
	Salt      *big.Int
	Start     *big.Int
	End       *big.Int
	DataType  [4]byte
	Data      []byte
}

type partArg struct {
	Account common.Address
	Value   *big.Int
}

type dataV1Arg struct {
	Payouts    []partArg
	OriginFees []partArg
}

type dataV2Arg struct {
	Payouts    []partArg
	OriginFees []partArg
	IsMakeFill bool
}

type mint721Arg struct {
	TokenId    *big.Int
	TokenURI   string
	Creators   []partArg
	Royalties  []partArg
	Signatures [][]byte
}

type mint1155Arg struct {
	TokenId    *big.Int
	TokenURI   string
	Supply     *big.Int
	Creators   []partArg
	Royalties  []partArg
	Signatures [][]byte
}

var partComponents = []abi.ArgumentMarshaling{
	{Name: "account", Type: "address"},
	{Name: "value", Type: "uint96"},
}

var (
	addressType  = mustType("address", nil)
	uint256Type  = mustType("uint256", nil)
	dataV1Type   = mustType("tuple", []abi.ArgumentMarshaling{{Name: "payouts", Type: "tuple[]", Components: partComponents}, {Name: "originFees", Type: "tuple[]", Components: partComponents}})
	dataV2Type   = mustType("tuple", []abi.ArgumentMarshaling{{Name: "payouts", Type: "tuple[]", Components: partComponents}, {Name: "originFees", Type: "tuple[]", Components: partComponents}, {Name: "isMakeFill", Type: "bool"}})
	mint721Type  = mustType("tuple", []abi.ArgumentMarshaling{{Name: "tokenId", Type: "uint256"}, {Name: "tokenURI", Type: "string"}, {Name: "creators", Type: "tuple[]", Components: partComponents}, {Name: "royalties", Type: "tuple[]", Components: partComponents}, {Name: "signatures", Type: "bytes[]"}})
	mint1155Type = mustType("tuple", []abi.ArgumentMarshaling{{Name: "tokenId", Type: "uint256"}, {Name: "tokenURI", Type: "string"}, {Name: "supply", Type: "uint256"}, {Name: "creators", Type: "tuple[]", Components: partComponents}, {Name: "royalties", Type: "tuple[]", Components: partComponents}, {Name: "signatures", Type: "bytes[]"}})
)

// ID returns the 4-byte identifier the exchange uses for asset classes and
// order data types.
func ID(name string) [4]byte {
	var out [4]byte
	copy(out[:], crypto.Keccak256([]byte(name))[:4])
	return out
}

const (
	dataTypeV1 = "V1"
	dataTypeV2 = "V2"
)

func encodeAssetType(t order.AssetType) (assetTypeArg, error) {
	arg := assetTypeArg{AssetClass: ID(string(t.AssetClass))}
	var (
		data []byte
		err  error
	)
	switch t.AssetClass {
	case order.ClassETH:
		data = []byte{}
	case order.ClassERC20:
		data, err = abi.Arguments{{Type: addressType}}.Pack(t.Contract)
	case order.ClassERC721, order.ClassERC1155, order.ClassCryptoPunks:
		if t.TokenID == nil {
			return assetTypeArg{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s asset is missing its token id", t.AssetClass))
		}
		data, err = abi.Arguments{{Type: addressType}, {Type: uint256Type}}.Pack(t.Contract, t.TokenID)
	case order.ClassERC721Lazy:
		data, err = abi.Arguments{{Type: addressType}, {Type: mint721Type}}.Pack(t.Contract, mint721Arg{
			TokenId:    t.TokenID,
			TokenURI:   t.URI,
			Creators:   parts(t.Creators),
			Royalties:  parts(t.Royalties),
			Signatures: signatures(t.Signatures),
		})
	case order.ClassERC1155Lazy:
		data, err = abi.Arguments{{Type: addressType}, {Type: mint1155Type}}.Pack(t.Contract, mint1155Arg{
			TokenId:    t.TokenID,
			TokenURI:   t.URI,
			Supply:     t.Supply,
			Creators:   parts(t.Creators),
			Royalties:  parts(t.Royalties),
			Signatures: signatures(t.Signatures),
		})
	default:
		return assetTypeArg{}, clierr.New(clierr.CodeUnsupportedOrderData, fmt.Sprintf("asset class %s cannot be encoded for the v2 exchange", t.AssetClass)).
			WithDetail("asset_class", string(t.AssetClass))
	}
	if err != nil {
		return assetTypeArg{}, clierr.Wrap(clierr.CodeInternal, "encode asset type", err)
	}
	arg.Data = data
	return arg, nil
}

func encodeData(o order.Order) ([4]byte, []byte, error) {
	data, ok := o.Data.(*order.RaribleV2Data)
	if !ok || data == nil {
		return [4]byte{}, nil, protocol.UnsupportedData(o, "order data is not a v2 payload")
	}
	var (
		encoded []byte
		err     error
		tag     string
	)
	switch data.DataType {
	case order.DataTypeRaribleV2V1:
		tag = dataTypeV1
		encoded, err = abi.Arguments{{Type: dataV1Type}}.Pack(dataV1Arg{Payouts: parts(data.Payouts), OriginFees: parts(data.OriginFees)})
	case order.DataTypeRaribleV2V2:
		tag = dataTypeV2
		encoded, err = abi.Arguments{{Type: dataV2Type}}.Pack(dataV2Arg{Payouts: parts(data.Payouts), OriginFees: parts(data.OriginFees), IsMakeFill: data.IsMakeFill})
	default:
		return [4]byte{}, nil, protocol.UnsupportedData(o, fmt.Sprintf("unsupported v2 data type %q", data.DataType))
	}
	if err != nil {
		return [4]byte{}, nil, clierr.Wrap(clierr.CodeInternal, "encode order data", err)
	}
	return ID(tag), encoded, nil
}

func (h *Handler) encodeOrder(ctx context.Context, o order.Order) (orderArg, error) {
	makeType, err := h.resolver.Resolve(ctx, o.Make.AssetType)
	if err != nil {
		return orderArg{}, err
	}
	takeType, err := h.resolver.Resolve(ctx, o.Take.AssetType)
	if err != nil {
		return orderArg{}, err
	}
	makeArg, err := encodeAssetType(makeType)
	if err != nil {
		return orderArg{}, err
	}
	takeArg, err := encodeAssetType(takeType)
	if err != nil {
		return orderArg{}, err
	}
	dataType, data, err := encodeData(o)
	if err != nil {
		return orderArg{}, err
	}
	salt := o.Salt
	if salt == nil {
		salt = new(big.Int)
	}
	return orderArg{
		Maker:     o.Maker,
		MakeAsset: assetArg{AssetType: makeArg, Value: valueOrZero(o.Make.Value)},
		Taker:     o.TakerOrZero(),
		TakeAsset: assetArg{AssetType: takeArg, Value: valueOrZero(o.Take.Value)},
		Salt:      salt,
		Start:     big.NewInt(o.Start),
		End:       big.NewInt(o.End),
		DataType:  dataType,
		Data:      data,
	}, nil
}

func parts(in []order.Part) []partArg {
	out := make([]partArg, 0, len(in))
	for _, p := range in {
		out = append(out, partArg{Account: p.Account, Value: big.NewInt(p.Value)})
	}
	return out
}

func signatures(in [][]byte) [][]byte {
	if in == nil {
		return [][]byte{}
	}
	return in
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}
