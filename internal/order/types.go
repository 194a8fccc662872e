package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Type is the protocol tag carried by every stored order.
type Type string

const (
	TypeRaribleV2  Type = "RARIBLE_V2"
	TypeRaribleV1  Type = "RARIBLE_V1"
	TypeOpenSeaV1  Type = "OPEN_SEA_V1"
	TypeCryptoPunk Type = "CRYPTO_PUNK"
)

// Types lists the protocol tags with a bundled handler.
func Types() []Type {
	return []Type{TypeRaribleV2, TypeRaribleV1, TypeOpenSeaV1, TypeCryptoPunk}
}

type AssetClass string

const (
	ClassETH         AssetClass = "ETH"
	ClassERC20       AssetClass = "ERC20"
	ClassERC721      AssetClass = "ERC721"
	ClassERC1155     AssetClass = "ERC1155"
	ClassERC721Lazy  AssetClass = "ERC721_LAZY"
	ClassERC1155Lazy AssetClass = "ERC1155_LAZY"
	ClassCryptoPunks AssetClass = "CRYPTO_PUNKS"
)

func (c AssetClass) IsLazy() bool {
	return c == ClassERC721Lazy || c == ClassERC1155Lazy
}

func (c AssetClass) IsNFT() bool {
	switch c {
	case ClassERC721, ClassERC1155, ClassERC721Lazy, ClassERC1155Lazy, ClassCryptoPunks:
		return true
	default:
		return false
	}
}

// Part is a (recipient, basis points) pair used for payouts, origin fees,
// creators and royalties.
type Part struct {
	Account common.Address `json:"account"`
	Value   int64          `json:"value"`
}

// SumValues adds up the basis points of parts.
func SumValues(parts []Part) int64 {
	var total int64
	for _, p := range parts {
		total += p.Value
	}
	return total
}

// AssetType identifies what is traded. Contract and TokenID are unused for
// ETH; TokenID holds the punk index for CRYPTO_PUNKS. Lazy fields are only
// meaningful for the *_LAZY classes.
type AssetType struct {
	AssetClass AssetClass
	Contract   common.Address
	TokenID    *big.Int

	URI        string
	Supply     *big.Int
	Creators   []Part
	Royalties  []Part
	Signatures [][]byte
}

func (t AssetType) Clone() AssetType {
	out := t
	out.TokenID = cloneInt(t.TokenID)
	out.Supply = cloneInt(t.Supply)
	out.Creators = append([]Part(nil), t.Creators...)
	out.Royalties = append([]Part(nil), t.Royalties...)
	if t.Signatures != nil {
		out.Signatures = make([][]byte, len(t.Signatures))
		for i, sig := range t.Signatures {
			out.Signatures[i] = common.CopyBytes(sig)
		}
	}
	return out
}

type Asset struct {
	AssetType AssetType
	Value     *big.Int
}

func (a Asset) Clone() Asset {
	return Asset{AssetType: a.AssetType.Clone(), Value: cloneInt(a.Value)}
}

// Order is a stored marketplace order. Data is decoded according to Type.
type Order struct {
	Type      Type
	Maker     common.Address
	Taker     *common.Address
	Make      Asset
	Take      Asset
	Salt      *big.Int
	Start     int64
	End       int64
	Data      Data
	Signature []byte
}

func (o Order) Clone() Order {
	out := o
	if o.Taker != nil {
		taker := *o.Taker
		out.Taker = &taker
	}
	out.Make = o.Make.Clone()
	out.Take = o.Take.Clone()
	out.Salt = cloneInt(o.Salt)
	out.Signature = common.CopyBytes(o.Signature)
	if o.Data != nil {
		out.Data = o.Data.clone()
	}
	return out
}

// TakerOrZero returns the taker address, or the zero address for open orders.
func (o Order) TakerOrZero() common.Address {
	if o.Taker == nil {
		return common.Address{}
	}
	return *o.Taker
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
