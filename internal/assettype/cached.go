package assettype

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/orderfill/internal/cache"
	"github.com/ggonzalez94/orderfill/internal/order"
)

var errLazyItemMissing = errors.New("lazy item missing")

// CachedRegistry memoizes found lazy items in the shared cache store.
// Misses are never cached so a freshly minted item is picked up.
type CachedRegistry struct {
	next     LazyRegistry
	store    *cache.Store
	ttl      time.Duration
	maxStale time.Duration
}

func NewCachedRegistry(next LazyRegistry, store *cache.Store, ttl, maxStale time.Duration) *CachedRegistry {
	return &CachedRegistry{next: next, store: store, ttl: ttl, maxStale: maxStale}
}

func (c *CachedRegistry) LazyItem(ctx context.Context, contract common.Address, tokenID *big.Int) (order.AssetType, bool, error) {
	if c.store == nil {
		return c.next.LazyItem(ctx, contract, tokenID)
	}
	key := cache.Key("lazy_item", contract.Hex(), tokenID.String())
	value, _, err := c.store.Remember(ctx, key, c.ttl, c.maxStale, func(ctx context.Context) ([]byte, error) {
		item, found, err := c.next.LazyItem(ctx, contract, tokenID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errLazyItemMissing
		}
		return json.Marshal(item)
	})
	if errors.Is(err, errLazyItemMissing) {
		return order.AssetType{}, false, nil
	}
	if err != nil {
		return order.AssetType{}, false, err
	}
	var item order.AssetType
	if err := json.Unmarshal(value, &item); err != nil {
		_ = c.store.Delete(key)
		return c.next.LazyItem(ctx, contract, tokenID)
	}
	return item, true, nil
}
