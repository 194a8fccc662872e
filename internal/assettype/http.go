package assettype

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/httpx"
	"github.com/ggonzalez94/orderfill/internal/order"
)

// HTTPRegistry reads lazy items from the marketplace NFT API.
type HTTPRegistry struct {
	http    *httpx.Client
	baseURL string
}

func NewHTTPRegistry(client *httpx.Client, baseURL string) *HTTPRegistry {
	return &HTTPRegistry{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type lazyItemResponse struct {
	Type       string          `json:"@type"`
	Contract   common.Address  `json:"contract"`
	URI        string          `json:"uri"`
	Supply     json.Number     `json:"supply"`
	Creators   []order.Part    `json:"creators"`
	Royalties  []order.Part    `json:"royalties"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

func (r *HTTPRegistry) LazyItem(ctx context.Context, contract common.Address, tokenID *big.Int) (order.AssetType, bool, error) {
	if r.baseURL == "" {
		return order.AssetType{}, false, clierr.New(clierr.CodeUsage, "lazy item api base url is not configured")
	}
	itemID := url.PathEscape(contract.Hex() + ":" + tokenID.String())
	endpoint := fmt.Sprintf("%s/v0.1/nft/items/%s/lazy", r.baseURL, itemID)

	var resp lazyItemResponse
	if err := r.http.GetJSON(ctx, endpoint, &resp); err != nil {
		if httpx.IsNotFound(err) {
			return order.AssetType{}, false, nil
		}
		return order.AssetType{}, false, err
	}
	return resp.assetType(contract, tokenID)
}

func (resp lazyItemResponse) assetType(contract common.Address, tokenID *big.Int) (order.AssetType, bool, error) {
	out := order.AssetType{
		Contract:  contract,
		TokenID:   new(big.Int).Set(tokenID),
		URI:       resp.URI,
		Creators:  resp.Creators,
		Royalties: resp.Royalties,
	}
	switch strings.ToUpper(resp.Type) {
	case "ERC721", string(order.ClassERC721Lazy):
		out.AssetClass = order.ClassERC721Lazy
	case "ERC1155", string(order.ClassERC1155Lazy):
		out.AssetClass = order.ClassERC1155Lazy
		supply, ok := new(big.Int).SetString(resp.Supply.String(), 10)
		if !ok {
			return order.AssetType{}, false, clierr.New(clierr.CodeUnavailable, "lazy item response has invalid supply")
		}
		out.Supply = supply
	default:
		return order.AssetType{}, false, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("lazy item response has unknown type %q", resp.Type))
	}
	for _, sig := range resp.Signatures {
		out.Signatures = append(out.Signatures, []byte(sig))
	}
	return out, true, nil
}
