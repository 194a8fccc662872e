package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

type Network struct {
	Name       string
	ChainID    int64
	RPCURL     string
	APIBaseURL string
	Addresses  Addresses
}

var mainnetAddresses = Addresses{
	RoleExchangeV1:               common.HexToAddress("0xcd4EC7b66fbc029C116BA9Ffb3e59351c20B5B06"),
	RoleExchangeV2:               common.HexToAddress("0x9757F2d2b135150BBeb65308D4a91804107cd8D6"),
	RoleV1TransferProxy:          common.HexToAddress("0x4fee7b061c97c9c496b01dbce9cdb10c02f0a0be"),
	RoleV1ERC20TransferProxy:     common.HexToAddress("0xb8e4526e0da700e9ef1f879af713d691f81507d8"),
	RoleTransferProxyNFT:         common.HexToAddress("0x4fee7b061c97c9c496b01dbce9cdb10c02f0a0be"),
	RoleTransferProxyERC20:       common.HexToAddress("0xb8e4526e0da700e9ef1f879af713d691f81507d8"),
	RoleTransferProxyERC721Lazy:  common.HexToAddress("0xbb7829BFdD4b557EB944349b2E2c965446052497"),
	RoleTransferProxyERC1155Lazy: common.HexToAddress("0x75a8B7c0B22D973E0B46CfBD3e2f6566905AA79f"),
	RoleOpenSeaV1:                common.HexToAddress("0x7be8076f4ea4a4ad08075c2508e481d6c946d12b"),
	RoleOpenSeaProxyRegistry:     common.HexToAddress("0xa5409ec958C83C3f309868babACA7c86DCB077c1"),
	RoleOpenSeaTokenProxy:        common.HexToAddress("0xE5c783EE536cf5E63E792988335c4255169be4E1"),
	RoleOpenSeaFeeRecipient:      common.HexToAddress("0x5b3256965e7C3cF26E11FCAf296DfC8807C01073"),
	RoleCryptoPunks:              common.HexToAddress("0xb47e3cd837dDF8e4c57F05d70Ab865de6e193BBB"),
}

// Networks without bundled addresses must be configured with contract overrides.
var networks = map[string]Network{
	"mainnet": {
		Name:       "mainnet",
		ChainID:    1,
		RPCURL:     "https://eth.llamarpc.com",
		APIBaseURL: "https://ethereum-api.rarible.org",
		Addresses:  mainnetAddresses,
	},
	"sepolia": {
		Name:       "sepolia",
		ChainID:    11155111,
		RPCURL:     "https://ethereum-sepolia-rpc.publicnode.com",
		APIBaseURL: "https://testnet-ethereum-api.rarible.org",
		Addresses:  Addresses{},
	},
	"polygon": {
		Name:       "polygon",
		ChainID:    137,
		RPCURL:     "https://polygon-rpc.com",
		APIBaseURL: "https://polygon-api.rarible.org",
		Addresses:  Addresses{},
	},
}

var networkAliases = map[string]string{
	"ethereum": "mainnet",
	"eth":      "mainnet",
	"matic":    "polygon",
}

// ParseNetwork accepts a network name, alias, or numeric chain id.
func ParseNetwork(input string) (Network, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return Network{}, clierr.New(clierr.CodeUsage, "network is required")
	}
	if alias, ok := networkAliases[norm]; ok {
		norm = alias
	}
	if n, ok := networks[norm]; ok {
		return n.clone(), nil
	}
	if chainID, err := strconv.ParseInt(norm, 10, 64); err == nil && chainID > 0 {
		for _, n := range networks {
			if n.ChainID == chainID {
				return n.clone(), nil
			}
		}
		return Network{Name: norm, ChainID: chainID, Addresses: Addresses{}}, nil
	}
	return Network{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported network %q", input))
}

func (n Network) clone() Network {
	n.Addresses = n.Addresses.With(nil)
	return n
}

// ResolveRPCURL prefers an explicit override over the network default.
func (n Network) ResolveRPCURL(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if n.RPCURL != "" {
		return n.RPCURL, nil
	}
	return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("no default rpc configured for chain id %d; provide --rpc-url", n.ChainID))
}
