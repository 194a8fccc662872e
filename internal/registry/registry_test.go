package registry

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

func TestABIsParse(t *testing.T) {
	fragments := map[string]string{
		"erc20":          ERC20MinimalABI,
		"nft":            NFTApprovalABI,
		"punks":          CryptoPunksMarketABI,
		"exchange_v2":    ExchangeV2ABI,
		"exchange_v1":    ExchangeV1ABI,
		"wyvern":         WyvernExchangeABI,
		"proxy_registry": WyvernProxyRegistryABI,
	}
	for name, raw := range fragments {
		if _, err := abi.JSON(strings.NewReader(raw)); err != nil {
			t.Fatalf("parse %s abi: %v", name, err)
		}
	}
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("ethereum")
	if err != nil {
		t.Fatalf("parse alias: %v", err)
	}
	if n.ChainID != 1 || n.Name != "mainnet" {
		t.Fatalf("unexpected network: %+v", n)
	}
	if _, err := n.Addresses.Get(RoleExchangeV2); err != nil {
		t.Fatalf("expected mainnet exchange_v2: %v", err)
	}

	byID, err := ParseNetwork("137")
	if err != nil || byID.Name != "polygon" {
		t.Fatalf("expected polygon by chain id, got %+v err=%v", byID, err)
	}

	custom, err := ParseNetwork("31337")
	if err != nil {
		t.Fatalf("parse custom chain id: %v", err)
	}
	if custom.ChainID != 31337 {
		t.Fatalf("unexpected custom chain id %d", custom.ChainID)
	}
	if _, err := custom.ResolveRPCURL(""); err == nil {
		t.Fatal("expected missing rpc error for custom chain")
	}

	if _, err := ParseNetwork("atlantis"); !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestNetworkAddressesAreCopied(t *testing.T) {
	n, err := ParseNetwork("mainnet")
	if err != nil {
		t.Fatal(err)
	}
	n.Addresses[RoleExchangeV2] = common.HexToAddress("0x0000000000000000000000000000000000000001")
	again, _ := ParseNetwork("mainnet")
	if again.Addresses[RoleExchangeV2] == n.Addresses[RoleExchangeV2] {
		t.Fatal("expected network defaults to be isolated from caller mutation")
	}
}

func TestAddressesGetMissingRole(t *testing.T) {
	addrs := Addresses{}
	_, err := addrs.Get(RoleTransferProxyCryptoPunks)
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
	if cErr.Details["role"] != string(RoleTransferProxyCryptoPunks) {
		t.Fatalf("expected role detail, got %#v", cErr.Details)
	}
}

func TestAddressesWithOverrides(t *testing.T) {
	base := Addresses{RoleExchangeV2: common.HexToAddress("0x01")}
	override := common.HexToAddress("0x02")
	merged := base.With(map[Role]common.Address{RoleExchangeV2: override, RoleCryptoPunks: override})
	if merged[RoleExchangeV2] != override || merged[RoleCryptoPunks] != override {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if base[RoleExchangeV2] == override {
		t.Fatal("base mapping mutated")
	}
	if roles := merged.Sorted(); len(roles) != 2 || roles[0] != RoleCryptoPunks {
		t.Fatalf("unexpected sorted roles: %v", roles)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Exchange_V2 ")
	if err != nil || role != RoleExchangeV2 {
		t.Fatalf("unexpected role parse: %v %v", role, err)
	}
	if _, err := ParseRole("nope"); err == nil {
		t.Fatal("expected unknown role error")
	}
}
