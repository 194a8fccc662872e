// Package wallettest provides an in-memory wallet for exercising fill flows
// without a node.
package wallettest

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

// CallHandler answers an eth_call with the raw return data.
type CallHandler func(data []byte) ([]byte, error)

// Wallet records every call and submission. Submitted transactions are mined
// immediately with the status chosen by Revert.
type Wallet struct {
	Address common.Address
	Chain   int64
	Revert  bool
	FromErr error

	mu           sync.Mutex
	handlers     map[string]CallHandler
	calls        []ethereum.CallMsg
	sent         []wallet.TxRequest
	chainIDCalls int
}

func New(address common.Address, chainID int64) *Wallet {
	return &Wallet{Address: address, Chain: chainID, handlers: map[string]CallHandler{}}
}

// On registers a handler for calls to the given contract and 4-byte selector.
func (w *Wallet) On(to common.Address, selector []byte, handler CallHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handlerKey(to, selector)] = handler
}

// Returns registers a fixed response.
func (w *Wallet) Returns(to common.Address, selector []byte, out []byte) {
	w.On(to, selector, func([]byte) ([]byte, error) { return out, nil })
}

func (w *Wallet) From(context.Context) (common.Address, error) {
	if w.FromErr != nil {
		return common.Address{}, w.FromErr
	}
	return w.Address, nil
}

func (w *Wallet) ChainID(context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainIDCalls++
	return w.Chain, nil
}

func (w *Wallet) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	w.mu.Lock()
	w.calls = append(w.calls, msg)
	var handler CallHandler
	if msg.To != nil && len(msg.Data) >= 4 {
		handler = w.handlers[handlerKey(*msg.To, msg.Data[:4])]
	}
	w.mu.Unlock()
	if handler == nil {
		to := "<nil>"
		if msg.To != nil {
			to = msg.To.Hex()
		}
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("unexpected call to %s", to))
	}
	return handler(msg.Data)
}

func (w *Wallet) Send(_ context.Context, req wallet.TxRequest) (*wallet.Transaction, error) {
	w.mu.Lock()
	w.sent = append(w.sent, req)
	n := len(w.sent)
	revert := w.Revert
	w.mu.Unlock()

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], uint64(n))
	hash := common.BytesToHash(crypto.Keccak256(w.Address.Bytes(), nonce[:]))
	status := uint64(wallet.ReceiptStatusSuccessful)
	if revert {
		status = 0
	}
	mined := func(context.Context, common.Hash) (*wallet.Receipt, error) {
		return &wallet.Receipt{TxHash: hash, Status: status, BlockNumber: uint64(n)}, nil
	}
	return wallet.NewTransaction(hash, w.Address, req, mined, time.Millisecond, time.Second), nil
}

// Sent returns a copy of the submitted requests.
func (w *Wallet) Sent() []wallet.TxRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]wallet.TxRequest(nil), w.sent...)
}

func (w *Wallet) SentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

func (w *Wallet) Calls() []ethereum.CallMsg {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ethereum.CallMsg(nil), w.calls...)
}

func (w *Wallet) ChainIDCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainIDCalls
}

// Touched reports whether anything beyond a chain id read reached the wallet.
func (w *Wallet) Touched() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls) > 0 || len(w.sent) > 0
}

func handlerKey(to common.Address, selector []byte) string {
	return strings.ToLower(to.Hex()) + "/" + common.Bytes2Hex(selector[:4])
}

var _ wallet.Wallet = (*Wallet)(nil)
