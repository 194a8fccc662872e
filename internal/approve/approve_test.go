package approve

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/wallet/wallettest"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	nft      = common.HexToAddress("0x00000000000000000000000000000000000000f7")
	market   = common.HexToAddress("0x00000000000000000000000000000000000000b4")
	proxyReg = common.HexToAddress("0x00000000000000000000000000000000000000a5")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func packOut(t *testing.T, method string, contract string, values ...any) []byte {
	t.Helper()
	var out []byte
	var err error
	switch contract {
	case "erc20":
		out, err = erc20ABI.Methods[method].Outputs.Pack(values...)
	case "nft":
		out, err = nftABI.Methods[method].Outputs.Pack(values...)
	case "punks":
		out, err = punksABI.Methods[method].Outputs.Pack(values...)
	case "registry":
		out, err = proxyRegistryABI.Methods[method].Outputs.Pack(values...)
	}
	if err != nil {
		t.Fatalf("pack %s output: %v", method, err)
	}
	return out
}

func TestERC20SkipsWhenAllowanceSuffices(t *testing.T) {
	w := wallettest.New(owner, 1)
	w.Returns(token, erc20ABI.Methods["allowance"].ID, packOut(t, "allowance", "erc20", big.NewInt(1000)))
	tx, err := New(w).ERC20(context.Background(), owner, token, operator, big.NewInt(1000), false)
	if err != nil {
		t.Fatalf("ERC20 failed: %v", err)
	}
	if tx != nil || w.SentCount() != 0 {
		t.Fatal("expected no approval when allowance already covers amount")
	}
}

func TestERC20ApprovesExactOrInfinite(t *testing.T) {
	for _, infinite := range []bool{false, true} {
		w := wallettest.New(owner, 1)
		w.Returns(token, erc20ABI.Methods["allowance"].ID, packOut(t, "allowance", "erc20", big.NewInt(10)))
		tx, err := New(w).ERC20(context.Background(), owner, token, operator, big.NewInt(1025), infinite)
		if err != nil {
			t.Fatalf("ERC20 failed: %v", err)
		}
		if tx == nil || w.SentCount() != 1 {
			t.Fatal("expected one approval transaction")
		}
		sent := w.Sent()[0]
		if sent.To != token {
			t.Fatalf("approval sent to %s, want token", sent.To.Hex())
		}
		args, err := erc20ABI.Methods["approve"].Inputs.Unpack(sent.Data[4:])
		if err != nil {
			t.Fatalf("unpack approve: %v", err)
		}
		if args[0].(common.Address) != operator {
			t.Fatalf("unexpected spender %v", args[0])
		}
		want := big.NewInt(1025)
		if infinite {
			want = math.MaxBig256
		}
		if args[1].(*big.Int).Cmp(want) != 0 {
			t.Fatalf("unexpected approval amount %v (infinite=%v)", args[1], infinite)
		}
	}
}

func TestNFTApproval(t *testing.T) {
	w := wallettest.New(owner, 1)
	w.Returns(nft, nftABI.Methods["isApprovedForAll"].ID, packOut(t, "isApprovedForAll", "nft", false))
	asset := order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC1155Lazy, Contract: nft, TokenID: big.NewInt(1)}, Value: big.NewInt(1)}
	tx, err := New(w).Asset(context.Background(), owner, asset, operator, true)
	if err != nil {
		t.Fatalf("Asset failed: %v", err)
	}
	if tx == nil {
		t.Fatal("expected setApprovalForAll transaction")
	}
	sent := w.Sent()[0]
	if !bytes.Equal(sent.Data[:4], nftABI.Methods["setApprovalForAll"].ID) || sent.To != nft {
		t.Fatalf("unexpected approval call to %s", sent.To.Hex())
	}

	approved := wallettest.New(owner, 1)
	approved.Returns(nft, nftABI.Methods["isApprovedForAll"].ID, packOut(t, "isApprovedForAll", "nft", true))
	if tx, err := New(approved).NFT(context.Background(), owner, nft, operator); err != nil || tx != nil {
		t.Fatalf("expected no-op for approved operator, tx=%v err=%v", tx, err)
	}
}

func TestETHNeedsNoApproval(t *testing.T) {
	w := wallettest.New(owner, 1)
	asset := order.Asset{AssetType: order.AssetType{AssetClass: order.ClassETH}, Value: big.NewInt(1)}
	tx, err := New(w).Asset(context.Background(), owner, asset, operator, false)
	if err != nil || tx != nil || w.Touched() {
		t.Fatalf("expected untouched wallet for ETH, tx=%v err=%v", tx, err)
	}
}

func TestCryptoPunkOffersToOperator(t *testing.T) {
	w := wallettest.New(owner, 1)
	w.Returns(market, punksABI.Methods["punkIndexToAddress"].ID, packOut(t, "punkIndexToAddress", "punks", owner))
	w.Returns(market, punksABI.Methods["punksOfferedForSale"].ID, packOut(t, "punksOfferedForSale", "punks", false, big.NewInt(9), owner, big.NewInt(0), common.Address{}))
	tx, err := New(w).CryptoPunk(context.Background(), owner, market, big.NewInt(9), operator)
	if err != nil || tx == nil {
		t.Fatalf("expected punk offer, tx=%v err=%v", tx, err)
	}
	args, err := punksABI.Methods["offerPunkForSaleToAddress"].Inputs.Unpack(w.Sent()[0].Data[4:])
	if err != nil {
		t.Fatalf("unpack offer: %v", err)
	}
	if args[0].(*big.Int).Int64() != 9 || args[1].(*big.Int).Sign() != 0 || args[2].(common.Address) != operator {
		t.Fatalf("unexpected offer args %v", args)
	}
}

func TestCryptoPunkRejectsForeignPunk(t *testing.T) {
	w := wallettest.New(owner, 1)
	w.Returns(market, punksABI.Methods["punkIndexToAddress"].ID, packOut(t, "punkIndexToAddress", "punks", operator))
	if _, err := New(w).CryptoPunk(context.Background(), owner, market, big.NewInt(1), operator); err == nil {
		t.Fatal("expected ownership error")
	}
	if w.SentCount() != 0 {
		t.Fatal("expected no transaction for foreign punk")
	}
}

func TestOpenSeaProxyRegistersWhenMissing(t *testing.T) {
	w := wallettest.New(owner, 1)
	proxy := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	w.On(proxyReg, proxyRegistryABI.Methods["proxies"].ID, func([]byte) ([]byte, error) {
		if w.SentCount() == 0 {
			return packOut(t, "proxies", "registry", common.Address{}), nil
		}
		return packOut(t, "proxies", "registry", proxy), nil
	})
	got, err := New(w).OpenSeaProxy(context.Background(), owner, proxyReg)
	if err != nil {
		t.Fatalf("OpenSeaProxy failed: %v", err)
	}
	if got != proxy {
		t.Fatalf("unexpected proxy %s", got.Hex())
	}
	if w.SentCount() != 1 || !bytes.Equal(w.Sent()[0].Data[:4], proxyRegistryABI.Methods["registerProxy"].ID) {
		t.Fatal("expected single registerProxy transaction")
	}

	again, err := New(w).OpenSeaProxy(context.Background(), owner, proxyReg)
	if err != nil || again != proxy || w.SentCount() != 1 {
		t.Fatalf("expected existing proxy reuse, got %s err=%v sent=%d", again.Hex(), err, w.SentCount())
	}
}
