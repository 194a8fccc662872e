package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/orderfill/internal/assettype"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/fee"
	"github.com/ggonzalez94/orderfill/internal/fill"
	"github.com/ggonzalez94/orderfill/internal/httpx"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/protocol/legacy"
	"github.com/ggonzalez94/orderfill/internal/protocol/opensea"
	"github.com/ggonzalez94/orderfill/internal/protocol/punks"
	rariblev2 "github.com/ggonzalez94/orderfill/internal/protocol/v2"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
	"github.com/ggonzalez94/orderfill/internal/wallet/signer"
)

type signerArgs struct {
	keySource          string
	confirmAddress     string
	simulate           bool
	gasMultiplier      float64
	maxFeeGwei         string
	maxPriorityFeeGwei string
}

// commandContext bounds read-only commands by --timeout. Submitting commands
// wait on receipts and are only cancelled by an interrupt.
func (s *runtimeState) commandContext(submits bool) (context.Context, context.CancelFunc) {
	if submits {
		return signal.NotifyContext(context.Background(), os.Interrupt)
	}
	return context.WithTimeout(context.Background(), s.settings.Timeout)
}

// addresses applies configured contract overrides to the network defaults.
func (s *runtimeState) addresses() (registry.Addresses, error) {
	overrides := map[registry.Role]common.Address{}
	for name, raw := range s.settings.Contracts {
		role, err := registry.ParseRole(name)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(raw) {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("contract override %s is not an address: %q", name, raw))
		}
		overrides[role] = common.HexToAddress(raw)
	}
	return s.network.Addresses.With(overrides), nil
}

func (s *runtimeState) feeSource(client *httpx.Client) (*fee.Source, error) {
	url := s.settings.FeeURL
	if url == "" && s.network.Name == "mainnet" {
		url = fee.DefaultURL
	}
	overrides := map[order.Type]int64{}
	for tag, bps := range s.settings.FeeOverrides {
		t, err := parseOrderType(tag)
		if err != nil {
			return nil, err
		}
		overrides[t] = bps
	}
	return fee.NewSource(client, s.cache, fee.Options{
		URL:       url,
		Network:   s.network.Name,
		Overrides: overrides,
		TTL:       s.settings.FeeTTL,
		MaxStale:  s.settings.MaxStale,
	}), nil
}

func parseOrderType(tag string) (order.Type, error) {
	norm := order.Type(strings.ToUpper(strings.TrimSpace(tag)))
	for _, t := range order.Types() {
		if t == norm {
			return t, nil
		}
	}
	return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown order type %q in fee overrides", tag))
}

func (s *runtimeState) apiBaseURL() string {
	if s.settings.APIURL != "" {
		return s.settings.APIURL
	}
	return s.network.APIBaseURL
}

// newFiller wires every protocol handler to w. A nil w gives a payload-only
// filler.
func (s *runtimeState) newFiller(w wallet.Wallet, withRecorder bool) (*fill.Filler, error) {
	addrs, err := s.addresses()
	if err != nil {
		return nil, err
	}
	client := httpx.New(s.settings.Timeout, s.settings.Retries)
	fees, err := s.feeSource(client)
	if err != nil {
		return nil, err
	}
	// Only the marketplace API sees the api key.
	apiClient := client.WithHeader("X-API-KEY", s.settings.APIKey)
	lazyItems := assettype.NewCachedRegistry(
		assettype.NewHTTPRegistry(apiClient, s.apiBaseURL()),
		s.cache, s.settings.LazyItemTTL, s.settings.MaxStale,
	)
	env := protocol.Env{
		Wallet:    w,
		Addresses: addrs,
		BaseFee:   fees.BaseFee,
		ChainID:   s.network.ChainID,
		Resolver:  assettype.NewResolver(lazyItems, s.network.ChainID),
	}
	dispatcher := fill.NewDispatcher(map[order.Type]protocol.Handler{
		order.TypeRaribleV2:  rariblev2.New(env),
		order.TypeRaribleV1:  legacy.New(env, legacy.NewHTTPBuyerFeeSigner(apiClient, s.apiBaseURL())),
		order.TypeOpenSeaV1:  opensea.New(env),
		order.TypeCryptoPunk: punks.New(env),
	})

	opts := []fill.Option{fill.WithLogger(s.logger)}
	if withRecorder {
		store, err := s.ensureAttemptStore()
		if err != nil {
			return nil, err
		}
		opts = append(opts, fill.WithRecorder(store))
	}
	return fill.NewFiller(w, s.network.ChainID, dispatcher, opts...), nil
}

func (s *runtimeState) ensureAttemptStore() (*fill.Store, error) {
	if s.attempts != nil {
		return s.attempts, nil
	}
	store, err := fill.OpenStore(s.settings.AttemptsPath, s.settings.AttemptsLock)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open attempt store", err)
	}
	s.attempts = store
	return store, nil
}

// dialWallet connects to the configured RPC. A nil txSigner gives a
// read-only wallet.
func (s *runtimeState) dialWallet(ctx context.Context, txSigner signer.Signer, args signerArgs) (*wallet.RPC, error) {
	rpcURL, err := s.network.ResolveRPCURL(s.settings.RPCURL)
	if err != nil {
		return nil, err
	}
	opts := wallet.DefaultOptions()
	opts.Simulate = args.simulate
	opts.ReceiptTimeout = s.settings.ReceiptTimeout
	if args.gasMultiplier > 0 {
		opts.GasMultiplier = args.gasMultiplier
	}
	opts.MaxFeeGwei = args.maxFeeGwei
	opts.MaxPriorityFeeGwei = args.maxPriorityFeeGwei
	w, err := wallet.Dial(ctx, rpcURL, txSigner, opts)
	if err != nil {
		return nil, err
	}
	s.wallet = w
	s.logger.Debug("connected rpc", "network", s.network.Name, "chain_id", s.network.ChainID)
	return w, nil
}

func newSigner(args signerArgs) (signer.Signer, error) {
	txSigner, err := signer.NewLocalSignerFromInputs(args.keySource, "")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "load signer", err)
	}
	confirm := strings.TrimSpace(args.confirmAddress)
	if confirm != "" && !strings.EqualFold(confirm, txSigner.Address().Hex()) {
		return nil, clierr.New(clierr.CodeSigner, "signer address does not match --confirm-address").
			WithDetail("signer", txSigner.Address().Hex())
	}
	return txSigner, nil
}
