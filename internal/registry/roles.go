package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

// Role names a contract the fill engine interacts with.
type Role string

const (
	RoleExchangeV1               Role = "exchange_v1"
	RoleExchangeV2               Role = "exchange_v2"
	RoleV1TransferProxy          Role = "v1_transfer_proxy"
	RoleV1ERC20TransferProxy     Role = "v1_erc20_transfer_proxy"
	RoleTransferProxyNFT         Role = "transfer_proxy_nft"
	RoleTransferProxyERC20       Role = "transfer_proxy_erc20"
	RoleTransferProxyERC721Lazy  Role = "transfer_proxy_erc721_lazy"
	RoleTransferProxyERC1155Lazy Role = "transfer_proxy_erc1155_lazy"
	RoleTransferProxyCryptoPunks Role = "transfer_proxy_crypto_punks"
	RoleOpenSeaV1                Role = "opensea_v1"
	RoleOpenSeaProxyRegistry     Role = "opensea_proxy_registry"
	RoleOpenSeaTokenProxy        Role = "opensea_token_transfer_proxy"
	RoleOpenSeaFeeRecipient      Role = "opensea_fee_recipient"
	RoleCryptoPunks              Role = "crypto_punks"
)

// Roles returns every known role in stable order.
func Roles() []Role {
	return []Role{
		RoleExchangeV1,
		RoleExchangeV2,
		RoleV1TransferProxy,
		RoleV1ERC20TransferProxy,
		RoleTransferProxyNFT,
		RoleTransferProxyERC20,
		RoleTransferProxyERC721Lazy,
		RoleTransferProxyERC1155Lazy,
		RoleTransferProxyCryptoPunks,
		RoleOpenSeaV1,
		RoleOpenSeaProxyRegistry,
		RoleOpenSeaTokenProxy,
		RoleOpenSeaFeeRecipient,
		RoleCryptoPunks,
	}
}

func ParseRole(input string) (Role, error) {
	norm := Role(strings.ToLower(strings.TrimSpace(input)))
	for _, role := range Roles() {
		if role == norm {
			return role, nil
		}
	}
	return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown contract role %q", input))
}

// Addresses is the flat role to contract mapping a handler is constructed with.
type Addresses map[Role]common.Address

// Get returns the address bound to role or a usage error naming the missing role.
func (a Addresses) Get(role Role) (common.Address, error) {
	addr, ok := a[role]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("no contract address configured for role %s", role)).
			WithDetail("role", string(role))
	}
	return addr, nil
}

// With returns a copy of a with overrides applied.
func (a Addresses) With(overrides map[Role]common.Address) Addresses {
	out := make(Addresses, len(a)+len(overrides))
	for role, addr := range a {
		out[role] = addr
	}
	for role, addr := range overrides {
		out[role] = addr
	}
	return out
}

// Sorted lists the bound roles alphabetically.
func (a Addresses) Sorted() []Role {
	roles := make([]Role, 0, len(a))
	for role := range a {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
