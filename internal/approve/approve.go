package approve

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

var (
	erc20ABI         = mustABI(registry.ERC20MinimalABI)
	nftABI           = mustABI(registry.NFTApprovalABI)
	punksABI         = mustABI(registry.CryptoPunksMarketABI)
	proxyRegistryABI = mustABI(registry.WyvernProxyRegistryABI)
)

// Approver grants exchange contracts the right to move the owner's assets.
// Every method reads current state first and returns a nil transaction when
// nothing needs to be sent.
type Approver struct {
	wallet wallet.Wallet
}

func New(w wallet.Wallet) *Approver {
	return &Approver{wallet: w}
}

// Asset approves operator for the given asset according to its class.
func (a *Approver) Asset(ctx context.Context, owner common.Address, asset order.Asset, operator common.Address, infinite bool) (*wallet.Transaction, error) {
	t := asset.AssetType
	switch t.AssetClass {
	case order.ClassETH:
		return nil, nil
	case order.ClassERC20:
		return a.ERC20(ctx, owner, t.Contract, operator, asset.Value, infinite)
	case order.ClassERC721, order.ClassERC1155, order.ClassERC721Lazy, order.ClassERC1155Lazy:
		return a.NFT(ctx, owner, t.Contract, operator)
	case order.ClassCryptoPunks:
		return a.CryptoPunk(ctx, owner, t.Contract, t.TokenID, operator)
	default:
		return nil, clierr.New(clierr.CodeUnsupportedOrderData, fmt.Sprintf("no approval rule for asset class %s", t.AssetClass)).
			WithDetail("asset_class", string(t.AssetClass))
	}
}

func (a *Approver) ERC20(ctx context.Context, owner, token, spender common.Address, amount *big.Int, infinite bool) (*wallet.Transaction, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil
	}
	out, err := a.call(ctx, owner, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	current, ok := out[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, "invalid allowance response")
	}
	if current.Cmp(amount) >= 0 {
		return nil, nil
	}
	value := new(big.Int).Set(amount)
	if infinite {
		value = new(big.Int).Set(math.MaxBig256)
	}
	return a.send(ctx, token, erc20ABI, "approve", spender, value)
}

func (a *Approver) NFT(ctx context.Context, owner, collection, operator common.Address) (*wallet.Transaction, error) {
	out, err := a.call(ctx, owner, collection, nftABI, "isApprovedForAll", owner, operator)
	if err != nil {
		return nil, err
	}
	if approved, _ := out[0].(bool); approved {
		return nil, nil
	}
	return a.send(ctx, collection, nftABI, "setApprovalForAll", operator, true)
}

// CryptoPunk offers the punk to operator for zero, which is how the punk
// market expresses an approval.
func (a *Approver) CryptoPunk(ctx context.Context, owner, market common.Address, punkIndex *big.Int, operator common.Address) (*wallet.Transaction, error) {
	if punkIndex == nil {
		return nil, clierr.New(clierr.CodeUsage, "punk approval requires a punk index")
	}
	out, err := a.call(ctx, owner, market, punksABI, "punkIndexToAddress", punkIndex)
	if err != nil {
		return nil, err
	}
	if holder, _ := out[0].(common.Address); holder != owner {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("punk %s is not owned by %s", punkIndex, owner.Hex()))
	}
	offer, err := a.call(ctx, owner, market, punksABI, "punksOfferedForSale", punkIndex)
	if err != nil {
		return nil, err
	}
	if len(offer) == 5 {
		forSale, _ := offer[0].(bool)
		minValue, _ := offer[3].(*big.Int)
		onlySellTo, _ := offer[4].(common.Address)
		if forSale && onlySellTo == operator && minValue != nil && minValue.Sign() == 0 {
			return nil, nil
		}
	}
	return a.send(ctx, market, punksABI, "offerPunkForSaleToAddress", punkIndex, new(big.Int), operator)
}

// OpenSeaProxy returns the owner's user proxy, registering one first if the
// owner has none. The registration is waited on before re-reading.
func (a *Approver) OpenSeaProxy(ctx context.Context, owner, proxyRegistry common.Address) (common.Address, error) {
	proxy, err := a.readProxy(ctx, owner, proxyRegistry)
	if err != nil {
		return common.Address{}, err
	}
	if proxy != (common.Address{}) {
		return proxy, nil
	}
	tx, err := a.send(ctx, proxyRegistry, proxyRegistryABI, "registerProxy")
	if err != nil {
		return common.Address{}, err
	}
	if _, err := tx.Wait(ctx); err != nil {
		return common.Address{}, err
	}
	proxy, err = a.readProxy(ctx, owner, proxyRegistry)
	if err != nil {
		return common.Address{}, err
	}
	if proxy == (common.Address{}) {
		return common.Address{}, clierr.New(clierr.CodeUnavailable, "proxy registry returned no proxy after registration").
			WithDetail("owner", owner.Hex())
	}
	return proxy, nil
}

func (a *Approver) readProxy(ctx context.Context, owner, proxyRegistry common.Address) (common.Address, error) {
	out, err := a.call(ctx, owner, proxyRegistry, proxyRegistryABI, "proxies", owner)
	if err != nil {
		return common.Address{}, err
	}
	proxy, _ := out[0].(common.Address)
	return proxy, nil
}

func (a *Approver) call(ctx context.Context, from, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, fmt.Sprintf("pack %s calldata", method), err)
	}
	raw, err := a.wallet.Call(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("read %s", method), err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("decode %s", method), err)
	}
	return out, nil
}

func (a *Approver) send(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) (*wallet.Transaction, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, fmt.Sprintf("pack %s calldata", method), err)
	}
	return a.wallet.Send(ctx, wallet.TxRequest{To: to, Data: data, Value: new(big.Int)})
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
