package legacy

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
)

// Asset kinds of the legacy exchange.
const (
	assetETH uint8 = iota
	assetERC20
	assetERC1155
	assetERC721
	assetERC721Deprecated
)

type assetArg struct {
	Token     common.Address
	TokenId   *big.Int
	AssetType uint8
}

type keyArg struct {
	Owner     common.Address
	Salt      *big.Int
	SellAsset assetArg
	BuyAsset  assetArg
}

type orderArg struct {
	Key       keyArg
	Selling   *big.Int
	Buying    *big.Int
	SellerFee *big.Int
}

type sigArg struct {
	V uint8
	R [32]byte
	S [32]byte
}

var orderType = func() abi.Type {
	asset := []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "assetType", Type: "uint8"},
	}
	typ, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "key", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "owner", Type: "address"},
			{Name: "salt", Type: "uint256"},
			{Name: "sellAsset", Type: "tuple", Components: asset},
			{Name: "buyAsset", Type: "tuple", Components: asset},
		}},
		{Name: "selling", Type: "uint256"},
		{Name: "buying", Type: "uint256"},
		{Name: "sellerFee", Type: "uint256"},
	})
	if err != nil {
		panic(err)
	}
	return typ
}()

func encodeAsset(o order.Order, t order.AssetType) (assetArg, error) {
	tokenID := t.TokenID
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	switch t.AssetClass {
	case order.ClassETH:
		return assetArg{TokenId: new(big.Int), AssetType: assetETH}, nil
	case order.ClassERC20:
		return assetArg{Token: t.Contract, TokenId: new(big.Int), AssetType: assetERC20}, nil
	case order.ClassERC1155:
		return assetArg{Token: t.Contract, TokenId: tokenID, AssetType: assetERC1155}, nil
	case order.ClassERC721:
		return assetArg{Token: t.Contract, TokenId: tokenID, AssetType: assetERC721}, nil
	default:
		return assetArg{}, protocol.UnsupportedData(o, fmt.Sprintf("asset class %s is not tradable on the legacy exchange", t.AssetClass))
	}
}

// encodeOrder builds the exchange's order struct. Only orders placed on the
// legacy exchange (the initial order) are encoded this way.
func encodeOrder(o order.Order) (orderArg, error) {
	data, ok := o.Data.(*order.LegacyData)
	if !ok || data == nil {
		return orderArg{}, protocol.UnsupportedData(o, "order data is not a legacy payload")
	}
	sell, err := encodeAsset(o, o.Make.AssetType)
	if err != nil {
		return orderArg{}, err
	}
	buy, err := encodeAsset(o, o.Take.AssetType)
	if err != nil {
		return orderArg{}, err
	}
	salt := o.Salt
	if salt == nil {
		salt = new(big.Int)
	}
	return orderArg{
		Key:       keyArg{Owner: o.Maker, Salt: salt, SellAsset: sell, BuyAsset: buy},
		Selling:   valueOrZero(o.Make.Value),
		Buying:    valueOrZero(o.Take.Value),
		SellerFee: big.NewInt(data.Fee),
	}, nil
}

// OrderHash is the personal-sign digest the maker signs.
func OrderHash(o order.Order) ([]byte, error) {
	arg, err := encodeOrder(o)
	if err != nil {
		return nil, err
	}
	packed, err := abi.Arguments{{Type: orderType}}.Pack(arg)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode legacy order", err)
	}
	return accounts.TextHash(crypto.Keccak256(packed)), nil
}

func verifyMaker(o order.Order) error {
	if len(o.Signature) == 0 {
		return invalidSignature(o, "legacy order is not signed")
	}
	hash, err := OrderHash(o)
	if err != nil {
		return err
	}
	sig, err := splitSignature(o.Signature)
	if err != nil {
		return invalidSignature(o, err.Error())
	}
	raw := append(append(sig.R[:], sig.S[:]...), sig.V-27)
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return invalidSignature(o, "maker signature cannot be recovered")
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != o.Maker {
		return invalidSignature(o, fmt.Sprintf("maker signature recovers to %s", signer.Hex())).
			WithDetail("recovered", signer.Hex())
	}
	return nil
}

// splitSignature turns a 65-byte r||s||v signature into the exchange's
// struct form with v in {27, 28}.
func splitSignature(sig []byte) (sigArg, error) {
	if len(sig) != crypto.SignatureLength {
		return sigArg{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	var out sigArg
	copy(out.R[:], sig[:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	if out.V < 27 {
		out.V += 27
	}
	if out.V != 27 && out.V != 28 {
		return sigArg{}, fmt.Errorf("invalid signature recovery id %d", sig[64])
	}
	return out, nil
}

func invalidSignature(o order.Order, message string) *clierr.Error {
	return clierr.New(clierr.CodeInvalidOrderSignature, message).
		WithDetail("order_type", string(o.Type)).
		WithDetail("maker", o.Maker.Hex())
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
