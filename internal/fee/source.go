// Package fee supplies protocol base fees from a remote fee config.
package fee

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ggonzalez94/orderfill/internal/cache"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/httpx"
	"github.com/ggonzalez94/orderfill/internal/order"
)

const DefaultURL = "https://raw.githubusercontent.com/rarible/protocol-config/main/fee.json"

// Config maps protocol tags to base fees in basis points. The remote file is
// either flat or keyed by network name.
type Config map[string]int64

type Source struct {
	http      *httpx.Client
	store     *cache.Store
	url       string
	network   string
	overrides map[order.Type]int64
	ttl       time.Duration
	maxStale  time.Duration
}

type Options struct {
	URL       string
	Network   string
	Overrides map[order.Type]int64
	TTL       time.Duration
	MaxStale  time.Duration
}

// NewSource builds a fee source. An empty URL makes every fee that has no
// override zero.
func NewSource(client *httpx.Client, store *cache.Store, opts Options) *Source {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxStale < 0 {
		opts.MaxStale = 0
	}
	return &Source{
		http:      client,
		store:     store,
		url:       strings.TrimSpace(opts.URL),
		network:   strings.ToLower(strings.TrimSpace(opts.Network)),
		overrides: opts.Overrides,
		ttl:       opts.TTL,
		maxStale:  opts.MaxStale,
	}
}

// BaseFee has the shape of protocol.BaseFeeFunc.
func (s *Source) BaseFee(ctx context.Context, t order.Type) (int64, error) {
	if v, ok := s.overrides[t]; ok {
		return checked(t, v)
	}
	if s.url == "" {
		return 0, nil
	}
	cfg, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return checked(t, cfg[string(t)])
}

// Load returns the fee config for the configured network.
func (s *Source) Load(ctx context.Context) (Config, error) {
	raw, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return parseConfig(raw, s.network)
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	load := func(ctx context.Context) ([]byte, error) {
		var body json.RawMessage
		if err := s.http.GetJSON(ctx, s.url, &body); err != nil {
			return nil, err
		}
		return body, nil
	}
	if s.store == nil {
		return load(ctx)
	}
	value, _, err := s.store.Remember(ctx, cache.Key("fee_config", s.url), s.ttl, s.maxStale, load)
	return value, err
}

func parseConfig(raw []byte, network string) (Config, error) {
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode fee config", err)
	}
	if scoped, ok := nested[network]; ok && network != "" {
		raw = scoped
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode fee config", err)
	}
	cfg := Config{}
	for key, value := range flat {
		var bps int64
		if err := json.Unmarshal(value, &bps); err != nil {
			// Entries for other networks are objects; skip them.
			continue
		}
		cfg[strings.ToUpper(key)] = bps
	}
	return cfg, nil
}

func checked(t order.Type, bps int64) (int64, error) {
	if bps < 0 || bps >= 10000 {
		return 0, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("base fee %d bps for %s is out of range", bps, t))
	}
	return bps, nil
}

// Percent renders basis points as a percentage.
func Percent(bps int64) decimal.Decimal {
	return decimal.New(bps, -2)
}
