package legacy

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/httpx"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet/wallettest"
)

var (
	filler     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	exchangeV1 = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	nftProxy   = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	erc20Proxy = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

type staticFeeSigner struct {
	sig  []byte
	fees []int64
}

func (s *staticFeeSigner) BuyerFeeSignature(_ context.Context, _ order.Order, fee int64) ([]byte, error) {
	s.fees = append(s.fees, fee)
	return s.sig, nil
}

func testEnv() protocol.Env {
	return protocol.Env{
		Addresses: registry.Addresses{
			registry.RoleExchangeV1:           exchangeV1,
			registry.RoleV1TransferProxy:      nftProxy,
			registry.RoleV1ERC20TransferProxy: erc20Proxy,
		},
		ChainID: 1,
	}
}

func signedSell(t *testing.T, key *ecdsa.PrivateKey) order.Order {
	t.Helper()
	o := order.Order{
		Type:  order.TypeRaribleV1,
		Maker: crypto.PubkeyToAddress(key.PublicKey),
		Make:  order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC721, Contract: collection, TokenID: big.NewInt(5)}, Value: big.NewInt(1)},
		Take:  order.Asset{AssetType: order.AssetType{AssetClass: order.ClassETH}, Value: big.NewInt(2_000_000)},
		Salt:  big.NewInt(42),
		Data:  &order.LegacyData{DataType: order.DataTypeLegacy, Fee: 250},
	}
	hash, err := OrderHash(o)
	if err != nil {
		t.Fatalf("OrderHash failed: %v", err)
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[64] += 27
	o.Signature = sig
	return o
}

func TestTransactionDataEncodesExchange(t *testing.T) {
	key, _ := crypto.GenerateKey()
	initial := signedSell(t, key)
	feeSig := &staticFeeSigner{sig: append(bytes.Repeat([]byte{0x11}, 64), 28)}
	h := New(testEnv(), feeSig)

	inverted, err := h.Invert(context.Background(), order.FillRequest{Order: initial, Amount: big.NewInt(1), OriginFee: 100}, filler)
	if err != nil {
		t.Fatalf("Invert failed: %v", err)
	}
	if inverted.Make.AssetType.AssetClass != order.ClassETH || inverted.Make.Value.Int64() != 2_000_000 {
		t.Fatalf("unexpected inverted make %+v", inverted.Make)
	}
	call, err := h.TransactionData(context.Background(), initial, inverted)
	if err != nil {
		t.Fatalf("TransactionData failed: %v", err)
	}
	if call.To != exchangeV1 {
		t.Fatalf("unexpected target %s", call.To.Hex())
	}
	if call.Value.Int64() != 2_020_000 {
		t.Fatalf("expected value with 1%% buyer fee, got %s", call.Value)
	}
	if len(feeSig.fees) != 1 || feeSig.fees[0] != 100 {
		t.Fatalf("unexpected buyer fee requests %v", feeSig.fees)
	}
	args, err := exchangeABI.Methods["exchange"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack exchange: %v", err)
	}
	if args[2].(*big.Int).Int64() != 100 {
		t.Fatalf("unexpected buyer fee arg %v", args[2])
	}
	if args[4].(*big.Int).Int64() != 1 {
		t.Fatalf("unexpected amount arg %v", args[4])
	}
	if args[5].(common.Address) != filler {
		t.Fatalf("unexpected buyer arg %v", args[5])
	}
}

func TestInvertRejectsForeignSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	initial := signedSell(t, key)
	initial.Maker = crypto.PubkeyToAddress(other.PublicKey)
	_, err := New(testEnv(), nil).Invert(context.Background(), order.FillRequest{Order: initial, Amount: big.NewInt(1)}, filler)
	if !clierr.HasCode(err, clierr.CodeInvalidOrderSignature) {
		t.Fatalf("expected invalid order signature, got %v", err)
	}
}

func TestInvertRejectsUnsignedOrder(t *testing.T) {
	key, _ := crypto.GenerateKey()
	initial := signedSell(t, key)
	initial.Signature = nil
	_, err := New(testEnv(), nil).Invert(context.Background(), order.FillRequest{Order: initial, Amount: big.NewInt(1)}, filler)
	if !clierr.HasCode(err, clierr.CodeInvalidOrderSignature) {
		t.Fatalf("expected invalid order signature, got %v", err)
	}
}

func TestApproveRoutesToLegacyProxies(t *testing.T) {
	erc20 := protocol.MustABI(registry.ERC20MinimalABI)
	token := common.HexToAddress("0x00000000000000000000000000000000000000e2")
	w := wallettest.New(filler, 1)
	allowance, _ := erc20.Methods["allowance"].Outputs.Pack(big.NewInt(0))
	w.Returns(token, erc20.Methods["allowance"].ID, allowance)
	env := testEnv()
	env.Wallet = w
	inverted := order.Order{
		Type:  order.TypeRaribleV1,
		Maker: filler,
		Make:  order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC20, Contract: token}, Value: big.NewInt(1000)},
		Take:  order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC721, Contract: collection, TokenID: big.NewInt(1)}, Value: big.NewInt(1)},
		Data:  &order.LegacyData{DataType: order.DataTypeLegacy, Fee: 300},
	}
	if _, err := New(env, nil).Approve(context.Background(), inverted, false); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	args, err := erc20.Methods["approve"].Inputs.Unpack(w.Sent()[0].Data[4:])
	if err != nil {
		t.Fatalf("unpack approve: %v", err)
	}
	if args[0].(common.Address) != erc20Proxy || args[1].(*big.Int).Int64() != 1030 {
		t.Fatalf("unexpected approve args %v", args)
	}
}

func TestHTTPBuyerFeeSigner(t *testing.T) {
	want := append(bytes.Repeat([]byte{0x22}, 64), 27)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v0.1/order/orders/buyerFeeSignature" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("fee") != "150" {
			t.Fatalf("unexpected fee query %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode("0x" + common.Bytes2Hex(want))
	}))
	defer srv.Close()

	key, _ := crypto.GenerateKey()
	signer := NewHTTPBuyerFeeSigner(httpx.New(2*time.Second, 0), srv.URL)
	got, err := signer.BuyerFeeSignature(context.Background(), signedSell(t, key), 150)
	if err != nil {
		t.Fatalf("BuyerFeeSignature failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected signature %x", got)
	}
}
