package order

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

const v2BidJSON = `{
	"type": "RARIBLE_V2",
	"maker": "0x1111111111111111111111111111111111111111",
	"make": {"assetType": {"assetClass": "ERC20", "contract": "0x2222222222222222222222222222222222222222"}, "value": "1000"},
	"take": {"assetType": {"assetClass": "ERC721", "contract": "0x3333333333333333333333333333333333333333", "tokenId": "42"}, "value": 1},
	"salt": "0x10",
	"data": {"dataType": "RARIBLE_V2_DATA_V1", "payouts": [], "originFees": [{"account": "0x4444444444444444444444444444444444444444", "value": 250}]},
	"signature": "0xdeadbeef"
}`

func TestParseV2Order(t *testing.T) {
	o, err := Parse([]byte(v2BidJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if o.Type != TypeRaribleV2 {
		t.Fatalf("unexpected type %s", o.Type)
	}
	if o.Make.AssetType.AssetClass != ClassERC20 || o.Make.Value.Int64() != 1000 {
		t.Fatalf("unexpected make asset: %+v", o.Make)
	}
	if o.Take.AssetType.TokenID.Int64() != 42 || o.Take.Value.Int64() != 1 {
		t.Fatalf("unexpected take asset: %+v", o.Take)
	}
	if o.Salt.Int64() != 16 {
		t.Fatalf("expected hex salt to decode, got %s", o.Salt)
	}
	data, ok := o.Data.(*RaribleV2Data)
	if !ok {
		t.Fatalf("expected v2 data, got %T", o.Data)
	}
	if data.DataTypeName() != DataTypeRaribleV2V1 || SumValues(data.OriginFees) != 250 {
		t.Fatalf("unexpected data: %+v", data)
	}
	if len(o.Signature) != 4 {
		t.Fatalf("unexpected signature %x", o.Signature)
	}
}

func TestDataDecodedByTagNotShape(t *testing.T) {
	// A legacy-tagged order with a v2-looking payload still decodes as legacy data.
	raw := strings.Replace(v2BidJSON, `"RARIBLE_V2"`, `"RARIBLE_V1"`, 1)
	o, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := o.Data.(*LegacyData); !ok {
		t.Fatalf("expected legacy data, got %T", o.Data)
	}
}

func TestUnknownTagKeepsRawData(t *testing.T) {
	raw := strings.Replace(v2BidJSON, `"RARIBLE_V2"`, `"LOOKSRARE"`, 1)
	o, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rawData, ok := o.Data.(*RawData)
	if !ok {
		t.Fatalf("expected raw data, got %T", o.Data)
	}
	if rawData.DataTypeName() != DataTypeRaribleV2V1 {
		t.Fatalf("unexpected raw data type %q", rawData.DataTypeName())
	}
	buf, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(buf), `"LOOKSRARE"`) || !strings.Contains(string(buf), `"originFees"`) {
		t.Fatalf("expected raw payload preserved, got %s", buf)
	}
}

func TestParseRequiresType(t *testing.T) {
	_, err := Parse([]byte(`{"maker":"0x1111111111111111111111111111111111111111"}`))
	if !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestPunkIDAlias(t *testing.T) {
	var at AssetType
	if err := json.Unmarshal([]byte(`{"assetClass":"CRYPTO_PUNKS","contract":"0xb47e3cd837dDF8e4c57F05d70Ab865de6e193BBB","punkId":7}`), &at); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if at.TokenID == nil || at.TokenID.Int64() != 7 {
		t.Fatalf("expected punk id 7, got %v", at.TokenID)
	}
	buf, _ := json.Marshal(at)
	if !strings.Contains(string(buf), `"punkId":"7"`) {
		t.Fatalf("expected punkId on output, got %s", buf)
	}
}

func TestCloneIsDeep(t *testing.T) {
	o, err := Parse([]byte(v2BidJSON))
	if err != nil {
		t.Fatal(err)
	}
	c := o.Clone()
	c.Make.Value.SetInt64(1)
	c.Signature[0] = 0
	c.Data.(*RaribleV2Data).OriginFees[0].Value = 1
	if o.Make.Value.Int64() != 1000 || o.Signature[0] != 0xde {
		t.Fatal("clone shares storage with original")
	}
	if o.Data.(*RaribleV2Data).OriginFees[0].Value != 250 {
		t.Fatal("clone shares data slices with original")
	}
}

func TestOpenSeaDataRoundTrip(t *testing.T) {
	in := &OpenSeaData{
		DataType:        DataTypeOpenSeaV1,
		Exchange:        common.HexToAddress("0x7be8076f4ea4a4ad08075c2508e481d6c946d12b"),
		TakerRelayerFee: 250,
		FeeMethod:       FeeMethodSplitFee,
		Side:            SideSell,
		SaleKind:        SaleKindFixedPrice,
		HowToCall:       HowToCallCall,
		CallData:        []byte{0x23, 0xb8},
		Extra:           big.NewInt(0),
	}
	buf, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out OpenSeaData
	if err := json.Unmarshal(buf, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.TakerRelayerFee != 250 || out.Side != SideSell || len(out.CallData) != 2 {
		t.Fatalf("unexpected decoded data: %+v", out)
	}
}

func TestValidateAmount(t *testing.T) {
	if err := (FillRequest{}).ValidateAmount(); err == nil {
		t.Fatal("expected error for missing amount")
	}
	if err := (FillRequest{Amount: big.NewInt(0)}).ValidateAmount(); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if err := (FillRequest{Amount: big.NewInt(2)}).ValidateAmount(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateParts(t *testing.T) {
	acct := common.HexToAddress("0x4444444444444444444444444444444444444444")
	ok := FillRequest{
		Payouts:    []Part{{Account: acct, Value: 6000}, {Account: acct, Value: 4000}},
		OriginFees: []Part{{Account: acct, Value: 0}, {Account: acct, Value: 250}},
	}
	if err := ok.ValidateParts(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []FillRequest{
		{OriginFees: []Part{{Account: acct, Value: -1}}},
		{OriginFees: []Part{{Account: acct, Value: 6000}, {Account: acct, Value: 6000}}},
		{Payouts: []Part{{Account: acct, Value: 10001}}},
		{Payouts: []Part{{Account: acct, Value: 9999}}},
	}
	for i, req := range bad {
		if err := req.ValidateParts(); !clierr.HasCode(err, clierr.CodeUsage) {
			t.Fatalf("case %d: expected usage error, got %v", i, err)
		}
	}
}
