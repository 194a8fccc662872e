package assettype

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
)

// LazyRegistry looks up the mint payload of a lazily minted item.
type LazyRegistry interface {
	LazyItem(ctx context.Context, contract common.Address, tokenID *big.Int) (order.AssetType, bool, error)
}

// Resolver turns asset types into their on-chain-encodable form. Lazy assets
// are completed from the registry and their creator signatures checked.
type Resolver struct {
	registry LazyRegistry
	chainID  int64
}

func NewResolver(registry LazyRegistry, chainID int64) *Resolver {
	return &Resolver{registry: registry, chainID: chainID}
}

func (r *Resolver) Resolve(ctx context.Context, t order.AssetType) (order.AssetType, error) {
	if !t.AssetClass.IsLazy() {
		return t, nil
	}
	if t.TokenID == nil {
		return order.AssetType{}, unresolved(t, "lazy asset is missing its token id")
	}
	if r.registry == nil {
		return order.AssetType{}, unresolved(t, "no lazy asset registry configured")
	}
	item, found, err := r.registry.LazyItem(ctx, t.Contract, t.TokenID)
	if err != nil {
		return order.AssetType{}, err
	}
	if !found {
		return order.AssetType{}, unresolved(t, "lazy asset not found in registry")
	}

	resolved := item.Clone()
	resolved.AssetClass = t.AssetClass
	resolved.Contract = t.Contract
	resolved.TokenID = new(big.Int).Set(t.TokenID)
	if t.AssetClass == order.ClassERC1155Lazy && resolved.Supply == nil {
		return order.AssetType{}, unresolved(t, "lazy erc1155 item is missing its supply")
	}
	if err := VerifyCreators(r.chainID, resolved); err != nil {
		return order.AssetType{}, err
	}
	return resolved, nil
}

func unresolved(t order.AssetType, message string) error {
	tokenID := ""
	if t.TokenID != nil {
		tokenID = t.TokenID.String()
	}
	return clierr.New(clierr.CodeUnresolvedLazyAsset, fmt.Sprintf("%s: %s:%s", message, t.Contract.Hex(), tokenID)).
		WithDetail("asset_class", string(t.AssetClass)).
		WithDetail("contract", t.Contract.Hex()).
		WithDetail("token_id", tokenID)
}
