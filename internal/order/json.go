package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

// decimalInt encodes as a decimal string and accepts strings (decimal or 0x)
// and plain JSON numbers.
type decimalInt big.Int

func (d *decimalInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		return fmt.Errorf("empty integer")
	}
	v, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*d = decimalInt(*v)
	return nil
}

func (d *decimalInt) MarshalJSON() ([]byte, error) {
	return json.Marshal((*big.Int)(d).String())
}

func toDecimal(v *big.Int) *decimalInt {
	if v == nil {
		return nil
	}
	return (*decimalInt)(new(big.Int).Set(v))
}

func fromDecimal(v *decimalInt) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(v))
}

type assetTypeJSON struct {
	AssetClass AssetClass      `json:"assetClass"`
	Contract   *common.Address `json:"contract,omitempty"`
	TokenID    *decimalInt     `json:"tokenId,omitempty"`
	PunkID     *decimalInt     `json:"punkId,omitempty"`
	URI        string          `json:"uri,omitempty"`
	Supply     *decimalInt     `json:"supply,omitempty"`
	Creators   []Part          `json:"creators,omitempty"`
	Royalties  []Part          `json:"royalties,omitempty"`
	Signatures []hexutil.Bytes `json:"signatures,omitempty"`
}

func (t AssetType) MarshalJSON() ([]byte, error) {
	wire := assetTypeJSON{
		AssetClass: t.AssetClass,
		URI:        t.URI,
		Supply:     toDecimal(t.Supply),
		Creators:   t.Creators,
		Royalties:  t.Royalties,
	}
	if t.AssetClass != ClassETH {
		contract := t.Contract
		wire.Contract = &contract
	}
	if t.AssetClass == ClassCryptoPunks {
		wire.PunkID = toDecimal(t.TokenID)
	} else {
		wire.TokenID = toDecimal(t.TokenID)
	}
	for _, sig := range t.Signatures {
		wire.Signatures = append(wire.Signatures, hexutil.Bytes(sig))
	}
	return json.Marshal(wire)
}

func (t *AssetType) UnmarshalJSON(data []byte) error {
	var wire assetTypeJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.AssetClass == "" {
		return fmt.Errorf("asset type missing assetClass")
	}
	out := AssetType{
		AssetClass: AssetClass(strings.ToUpper(string(wire.AssetClass))),
		TokenID:    fromDecimal(wire.TokenID),
		URI:        wire.URI,
		Supply:     fromDecimal(wire.Supply),
		Creators:   wire.Creators,
		Royalties:  wire.Royalties,
	}
	if wire.Contract != nil {
		out.Contract = *wire.Contract
	}
	if out.TokenID == nil && wire.PunkID != nil {
		out.TokenID = fromDecimal(wire.PunkID)
	}
	for _, sig := range wire.Signatures {
		out.Signatures = append(out.Signatures, []byte(sig))
	}
	*t = out
	return nil
}

type assetJSON struct {
	AssetType AssetType   `json:"assetType"`
	Value     *decimalInt `json:"value"`
}

func (a Asset) MarshalJSON() ([]byte, error) {
	value := a.Value
	if value == nil {
		value = new(big.Int)
	}
	return json.Marshal(assetJSON{AssetType: a.AssetType, Value: toDecimal(value)})
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	var wire assetJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.AssetType = wire.AssetType
	a.Value = fromDecimal(wire.Value)
	if a.Value == nil {
		a.Value = new(big.Int)
	}
	return nil
}

type openSeaDataJSON struct {
	DataType           string         `json:"dataType"`
	Exchange           common.Address `json:"exchange"`
	MakerRelayerFee    *decimalInt    `json:"makerRelayerFee"`
	TakerRelayerFee    *decimalInt    `json:"takerRelayerFee"`
	MakerProtocolFee   *decimalInt    `json:"makerProtocolFee"`
	TakerProtocolFee   *decimalInt    `json:"takerProtocolFee"`
	FeeRecipient       common.Address `json:"feeRecipient"`
	FeeMethod          string         `json:"feeMethod"`
	Side               string         `json:"side"`
	SaleKind           string         `json:"saleKind"`
	HowToCall          string         `json:"howToCall"`
	CallData           hexutil.Bytes  `json:"callData"`
	ReplacementPattern hexutil.Bytes  `json:"replacementPattern"`
	StaticTarget       common.Address `json:"staticTarget"`
	StaticExtraData    hexutil.Bytes  `json:"staticExtraData"`
	Extra              *decimalInt    `json:"extra"`
}

func (d *OpenSeaData) MarshalJSON() ([]byte, error) {
	return json.Marshal(openSeaDataJSON{
		DataType:           d.DataType,
		Exchange:           d.Exchange,
		MakerRelayerFee:    toDecimal(big.NewInt(d.MakerRelayerFee)),
		TakerRelayerFee:    toDecimal(big.NewInt(d.TakerRelayerFee)),
		MakerProtocolFee:   toDecimal(big.NewInt(d.MakerProtocolFee)),
		TakerProtocolFee:   toDecimal(big.NewInt(d.TakerProtocolFee)),
		FeeRecipient:       d.FeeRecipient,
		FeeMethod:          d.FeeMethod,
		Side:               d.Side,
		SaleKind:           d.SaleKind,
		HowToCall:          d.HowToCall,
		CallData:           d.CallData,
		ReplacementPattern: d.ReplacementPattern,
		StaticTarget:       d.StaticTarget,
		StaticExtraData:    d.StaticExtraData,
		Extra:              toDecimal(d.Extra),
	})
}

func (d *OpenSeaData) UnmarshalJSON(data []byte) error {
	var wire openSeaDataJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*d = OpenSeaData{
		DataType:           wire.DataType,
		Exchange:           wire.Exchange,
		MakerRelayerFee:    bps(wire.MakerRelayerFee),
		TakerRelayerFee:    bps(wire.TakerRelayerFee),
		MakerProtocolFee:   bps(wire.MakerProtocolFee),
		TakerProtocolFee:   bps(wire.TakerProtocolFee),
		FeeRecipient:       wire.FeeRecipient,
		FeeMethod:          strings.ToUpper(wire.FeeMethod),
		Side:               strings.ToUpper(wire.Side),
		SaleKind:           strings.ToUpper(wire.SaleKind),
		HowToCall:          strings.ToUpper(wire.HowToCall),
		CallData:           wire.CallData,
		ReplacementPattern: wire.ReplacementPattern,
		StaticTarget:       wire.StaticTarget,
		StaticExtraData:    wire.StaticExtraData,
		Extra:              fromDecimal(wire.Extra),
	}
	if d.Extra == nil {
		d.Extra = new(big.Int)
	}
	return nil
}

func bps(v *decimalInt) int64 {
	if v == nil {
		return 0
	}
	return (*big.Int)(v).Int64()
}

func (d *RawData) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

type orderJSON struct {
	Type      Type            `json:"type"`
	Maker     common.Address  `json:"maker"`
	Taker     *common.Address `json:"taker,omitempty"`
	Make      Asset           `json:"make"`
	Take      Asset           `json:"take"`
	Salt      *decimalInt     `json:"salt,omitempty"`
	Start     int64           `json:"start,omitempty"`
	End       int64           `json:"end,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Signature hexutil.Bytes   `json:"signature,omitempty"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	wire := orderJSON{
		Type:      o.Type,
		Maker:     o.Maker,
		Taker:     o.Taker,
		Make:      o.Make,
		Take:      o.Take,
		Salt:      toDecimal(o.Salt),
		Start:     o.Start,
		End:       o.End,
		Signature: o.Signature,
	}
	if o.Data != nil {
		raw, err := json.Marshal(o.Data)
		if err != nil {
			return nil, err
		}
		wire.Data = raw
	}
	return json.Marshal(wire)
}

func (o *Order) UnmarshalJSON(data []byte) error {
	var wire orderJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded, err := decodeData(wire.Type, wire.Data)
	if err != nil {
		return err
	}
	*o = Order{
		Type:      wire.Type,
		Maker:     wire.Maker,
		Taker:     wire.Taker,
		Make:      wire.Make,
		Take:      wire.Take,
		Salt:      fromDecimal(wire.Salt),
		Start:     wire.Start,
		End:       wire.End,
		Data:      decoded,
		Signature: wire.Signature,
	}
	if o.Salt == nil {
		o.Salt = new(big.Int)
	}
	return nil
}

func decodeData(t Type, raw json.RawMessage) (Data, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var target Data
	switch t {
	case TypeRaribleV2:
		target = &RaribleV2Data{}
	case TypeRaribleV1:
		target = &LegacyData{}
	case TypeOpenSeaV1:
		target = &OpenSeaData{}
	case TypeCryptoPunk:
		target = &CryptoPunksData{}
	default:
		return &RawData{Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s order data: %w", t, err)
	}
	return target, nil
}

// Parse decodes a single stored order document.
func Parse(data []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, clierr.Wrap(clierr.CodeUsage, "parse order", err)
	}
	if o.Type == "" {
		return Order{}, clierr.New(clierr.CodeUsage, "order is missing its type tag")
	}
	return o, nil
}
