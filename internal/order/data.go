package order

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Data is the protocol-specific payload of an order. The concrete type is
// chosen by the order's Type, never by the payload shape.
type Data interface {
	DataTypeName() string
	clone() Data
}

const (
	DataTypeRaribleV2V1 = "RARIBLE_V2_DATA_V1"
	DataTypeRaribleV2V2 = "RARIBLE_V2_DATA_V2"
	DataTypeLegacy      = "LEGACY"
	DataTypeOpenSeaV1   = "OPEN_SEA_V1_DATA_V1"
	DataTypeCryptoPunks = "CRYPTO_PUNKS_DATA"
)

type RaribleV2Data struct {
	DataType   string `json:"dataType"`
	Payouts    []Part `json:"payouts"`
	OriginFees []Part `json:"originFees"`
	IsMakeFill bool   `json:"isMakeFill,omitempty"`
}

func (d *RaribleV2Data) DataTypeName() string { return d.DataType }

func (d *RaribleV2Data) clone() Data {
	out := *d
	out.Payouts = append([]Part(nil), d.Payouts...)
	out.OriginFees = append([]Part(nil), d.OriginFees...)
	return &out
}

// LegacyData carries the seller fee of a legacy exchange order.
type LegacyData struct {
	DataType string `json:"dataType"`
	Fee      int64  `json:"fee"`
}

func (d *LegacyData) DataTypeName() string { return d.DataType }

func (d *LegacyData) clone() Data {
	out := *d
	return &out
}

// Wyvern enums, as the marketplace API spells them.
const (
	FeeMethodProtocolFee = "PROTOCOL_FEE"
	FeeMethodSplitFee    = "SPLIT_FEE"

	SideBuy  = "BUY"
	SideSell = "SELL"

	SaleKindFixedPrice   = "FIXED_PRICE"
	SaleKindDutchAuction = "DUTCH_AUCTION"

	HowToCallCall         = "CALL"
	HowToCallDelegateCall = "DELEGATE_CALL"
)

type OpenSeaData struct {
	DataType           string
	Exchange           common.Address
	MakerRelayerFee    int64
	TakerRelayerFee    int64
	MakerProtocolFee   int64
	TakerProtocolFee   int64
	FeeRecipient       common.Address
	FeeMethod          string
	Side               string
	SaleKind           string
	HowToCall          string
	CallData           []byte
	ReplacementPattern []byte
	StaticTarget       common.Address
	StaticExtraData    []byte
	Extra              *big.Int
}

func (d *OpenSeaData) DataTypeName() string { return d.DataType }

func (d *OpenSeaData) clone() Data {
	out := *d
	out.CallData = common.CopyBytes(d.CallData)
	out.ReplacementPattern = common.CopyBytes(d.ReplacementPattern)
	out.StaticExtraData = common.CopyBytes(d.StaticExtraData)
	out.Extra = cloneInt(d.Extra)
	return &out
}

type CryptoPunksData struct {
	DataType string `json:"dataType"`
}

func (d *CryptoPunksData) DataTypeName() string { return d.DataType }

func (d *CryptoPunksData) clone() Data {
	out := *d
	return &out
}

// RawData keeps the payload of an order whose tag has no decoder so it can be
// reported back verbatim.
type RawData struct {
	Raw json.RawMessage
}

func (d *RawData) DataTypeName() string {
	var tagged struct {
		DataType string `json:"dataType"`
	}
	_ = json.Unmarshal(d.Raw, &tagged)
	return tagged.DataType
}

func (d *RawData) clone() Data {
	return &RawData{Raw: append(json.RawMessage(nil), d.Raw...)}
}
