package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/httpx"
	"github.com/ggonzalez94/orderfill/internal/order"
)

// BuyerFeeSigner obtains the platform's signature over a buyer fee for an
// order. The legacy exchange rejects fills without it.
type BuyerFeeSigner interface {
	BuyerFeeSignature(ctx context.Context, o order.Order, fee int64) ([]byte, error)
}

// HTTPBuyerFeeSigner asks the marketplace order API to sign buyer fees.
type HTTPBuyerFeeSigner struct {
	http    *httpx.Client
	baseURL string
}

func NewHTTPBuyerFeeSigner(client *httpx.Client, baseURL string) *HTTPBuyerFeeSigner {
	return &HTTPBuyerFeeSigner{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *HTTPBuyerFeeSigner) BuyerFeeSignature(ctx context.Context, o order.Order, fee int64) ([]byte, error) {
	if s.baseURL == "" {
		return nil, clierr.New(clierr.CodeUsage, "order api base url is not configured")
	}
	body, err := json.Marshal(o)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode order form", err)
	}
	endpoint := fmt.Sprintf("%s/v0.1/order/orders/buyerFeeSignature?fee=%s", s.baseURL, url.QueryEscape(fmt.Sprint(fee)))
	var sig hexutil.Bytes
	if _, err := httpx.DoBodyJSON(ctx, s.http, http.MethodPost, endpoint, body, nil, &sig); err != nil {
		return nil, err
	}
	if len(sig) == 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "order api returned an empty buyer fee signature")
	}
	return sig, nil
}
