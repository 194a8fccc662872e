package wallet

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

// Wallet is the connected account a fill is executed from.
type Wallet interface {
	From(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (int64, error)
	// Call runs a read-only eth_call.
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	Send(ctx context.Context, req TxRequest) (*Transaction, error)
}

// TxRequest is a transaction to be submitted from the wallet's account.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

const ReceiptStatusSuccessful = 1

// ReceiptFunc returns nil, nil while the transaction is still pending.
type ReceiptFunc func(ctx context.Context, hash common.Hash) (*Receipt, error)

// Transaction is a submitted transaction handle.
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int

	receipt      ReceiptFunc
	pollInterval time.Duration
	timeout      time.Duration
}

func NewTransaction(hash common.Hash, from common.Address, req TxRequest, receipt ReceiptFunc, pollInterval, timeout time.Duration) *Transaction {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	return &Transaction{
		Hash:         hash,
		From:         from,
		To:           req.To,
		Data:         common.CopyBytes(req.Data),
		Value:        new(big.Int).Set(value),
		receipt:      receipt,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Wait polls until the transaction is mined. A reverted receipt is an error.
func (t *Transaction) Wait(ctx context.Context) (*Receipt, error) {
	if t == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing transaction")
	}
	if t.receipt == nil {
		return nil, clierr.New(clierr.CodeInternal, "transaction cannot be tracked")
	}
	waitCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := t.receipt(waitCtx, t.Hash)
		if err == nil && receipt != nil {
			if receipt.Status == ReceiptStatusSuccessful {
				return receipt, nil
			}
			return receipt, clierr.New(clierr.CodeTxReverted, "transaction reverted on-chain").
				WithDetail("tx_hash", t.Hash.Hex())
		}
		// Polling errors are retried until the deadline.
		select {
		case <-waitCtx.Done():
			return nil, clierr.Wrap(clierr.CodeActionTimeout, "timed out waiting for receipt", waitCtx.Err()).
				WithDetail("tx_hash", t.Hash.Hex())
		case <-ticker.C:
		}
	}
}
