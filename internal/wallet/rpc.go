package wallet

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/wallet/signer"
)

type Options struct {
	Simulate           bool
	PollInterval       time.Duration
	ReceiptTimeout     time.Duration
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
}

func DefaultOptions() Options {
	return Options{
		Simulate:       true,
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
		GasMultiplier:  1.2,
	}
}

// RPC is a JSON-RPC wallet that signs locally and submits EIP-1559
// transactions. A nil signer gives a read-only wallet.
type RPC struct {
	client *ethclient.Client
	signer signer.Signer
	opts   Options
}

func Dial(ctx context.Context, rpcURL string, txSigner signer.Signer, opts Options) (*RPC, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, clierr.New(clierr.CodeUsage, "missing rpc url")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	return NewRPC(client, txSigner, opts), nil
}

func NewRPC(client *ethclient.Client, txSigner signer.Signer, opts Options) *RPC {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = defaults.ReceiptTimeout
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = defaults.GasMultiplier
	}
	return &RPC{client: client, signer: txSigner, opts: opts}
}

func (w *RPC) Close() {
	if w != nil && w.client != nil {
		w.client.Close()
	}
}

func (w *RPC) From(context.Context) (common.Address, error) {
	if w.signer == nil {
		return common.Address{}, clierr.New(clierr.CodeWalletUnavailable, "no signing key configured for wallet")
	}
	return w.signer.Address(), nil
}

func (w *RPC) ChainID(ctx context.Context) (int64, error) {
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	return chainID.Int64(), nil
}

func (w *RPC) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := w.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, wrapEVMError(clierr.CodeUnavailable, "eth_call", err)
	}
	return out, nil
}

func (w *RPC) Send(ctx context.Context, req TxRequest) (*Transaction, error) {
	from, err := w.From(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: req.Data}

	if w.opts.Simulate {
		if _, err := w.client.CallContract(ctx, msg, nil); err != nil {
			return nil, wrapEVMError(clierr.CodeActionSim, "simulate transaction (eth_call)", err)
		}
	}
	gasLimit, err := w.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, wrapEVMError(clierr.CodeActionSim, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * w.opts.GasMultiplier)

	tipCap, err := resolveTipCap(ctx, w.client, w.opts.MaxPriorityFeeGwei)
	if err != nil {
		return nil, err
	}
	baseFee, err := latestBaseFee(ctx, w.client)
	if err != nil {
		return nil, err
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, w.opts.MaxFeeGwei)
	if err != nil {
		return nil, err
	}

	unlock := acquireSignerNonceLock(chainID, from)
	defer unlock()
	nonce, err := w.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := w.signer.SignTx(chainID, tx)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
	}
	return NewTransaction(signed.Hash(), from, req, w.receipt, w.opts.PollInterval, w.opts.ReceiptTimeout), nil
}

// receipt reads only the fields it needs so partial node payloads decode.
func (w *RPC) receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var raw *struct {
		TransactionHash common.Hash     `json:"transactionHash"`
		Status          *hexutil.Uint64 `json:"status"`
		BlockNumber     *hexutil.Uint64 `json:"blockNumber"`
		GasUsed         *hexutil.Uint64 `json:"gasUsed"`
	}
	if err := w.client.Client().CallContext(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if raw == nil || raw.BlockNumber == nil {
		return nil, nil
	}
	// Pre-Byzantium receipts carry a state root instead of a status and
	// cannot report a revert.
	out := &Receipt{TxHash: hash, BlockNumber: uint64(*raw.BlockNumber), Status: ReceiptStatusSuccessful}
	if raw.Status != nil {
		out.Status = uint64(*raw.Status)
	}
	if raw.GasUsed != nil {
		out.GasUsed = uint64(*raw.GasUsed)
	}
	return out, nil
}
