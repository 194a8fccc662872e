package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/wallet/signer"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type fakeNode struct {
	mu            sync.Mutex
	calls         map[string]int
	receiptStatus string
	receiptAfter  int
	callErr       []byte
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func newFakeNode(t *testing.T, node *fakeNode) *httptest.Server {
	t.Helper()
	node.calls = map[string]int{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		node.mu.Lock()
		node.calls[req.Method]++
		seen := node.calls[req.Method]
		node.mu.Unlock()

		switch req.Method {
		case "eth_chainId":
			writeRPCResult(t, w, req.ID, "0x1")
		case "eth_call":
			if node.callErr != nil {
				writeRPCErrorData(w, req.ID, 3, "execution reverted", "0x"+common.Bytes2Hex(node.callErr))
				return
			}
			writeRPCResult(t, w, req.ID, "0x"+strings.Repeat("0", 63)+"1")
		case "eth_estimateGas":
			writeRPCResult(t, w, req.ID, "0x5208")
		case "eth_maxPriorityFeePerGas":
			writeRPCResult(t, w, req.ID, "0x77359400")
		case "eth_getBlockByNumber":
			writeRPCResult(t, w, req.ID, map[string]any{"baseFeePerGas": "0x3b9aca00"})
		case "eth_getTransactionCount":
			writeRPCResult(t, w, req.ID, "0x7")
		case "eth_sendRawTransaction":
			writeRPCResult(t, w, req.ID, "0x"+strings.Repeat("ab", 32))
		case "eth_getTransactionReceipt":
			if seen <= node.receiptAfter {
				writeRPCResult(t, w, req.ID, nil)
				return
			}
			receipt := map[string]any{
				"transactionHash": "0x" + strings.Repeat("ab", 32),
				"blockNumber":     "0x10",
				"gasUsed":         "0x5208",
			}
			if node.receiptStatus != "" {
				receipt["status"] = node.receiptStatus
			} else {
				receipt["root"] = "0x" + strings.Repeat("cd", 32)
			}
			writeRPCResult(t, w, req.ID, receipt)
		default:
			writeRPCError(w, req.ID, -32601, fmt.Sprintf("method not supported in test: %s", req.Method))
		}
	}))
}

func writeRPCResult(t *testing.T, w http.ResponseWriter, id json.RawMessage, result any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"jsonrpc": "2.0", "id": decodeRPCID(id), "result": result}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode rpc result: %v", err)
	}
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      decodeRPCID(id),
		"error":   map[string]any{"code": code, "message": message},
	})
}

func writeRPCErrorData(w http.ResponseWriter, id json.RawMessage, code int, message, data string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      decodeRPCID(id),
		"error":   map[string]any{"code": code, "message": message, "data": data},
	})
}

func decodeRPCID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return 1
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return 1
	}
	return out
}

func testWallet(t *testing.T, node *fakeNode, withSigner bool) *RPC {
	t.Helper()
	srv := newFakeNode(t, node)
	t.Cleanup(srv.Close)
	client, err := ethclient.Dial(srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(client.Close)
	var s signer.Signer
	if withSigner {
		pk, _ := crypto.HexToECDSA(testPrivateKey)
		s = signer.FromPrivateKey(pk)
	}
	opts := DefaultOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.ReceiptTimeout = 2 * time.Second
	return NewRPC(client, s, opts)
}

func TestRPCSendAndWait(t *testing.T) {
	node := &fakeNode{receiptStatus: "0x1", receiptAfter: 1}
	w := testWallet(t, node, true)

	chainID, err := w.ChainID(context.Background())
	if err != nil || chainID != 1 {
		t.Fatalf("unexpected chain id %d err=%v", chainID, err)
	}
	tx, err := w.Send(context.Background(), TxRequest{
		To:    common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Data:  []byte{0x01, 0x02},
		Value: big.NewInt(5),
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if tx.Hash == (common.Hash{}) || tx.Value.Int64() != 5 {
		t.Fatalf("unexpected transaction handle %+v", tx)
	}
	receipt, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if receipt.BlockNumber != 16 || receipt.GasUsed != 21000 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if node.count("eth_getTransactionReceipt") < 2 {
		t.Fatalf("expected receipt polling, got %d calls", node.count("eth_getTransactionReceipt"))
	}
	if node.count("eth_call") != 1 {
		t.Fatalf("expected one simulation call, got %d", node.count("eth_call"))
	}
}

func TestRPCWaitReportsRevert(t *testing.T) {
	node := &fakeNode{receiptStatus: "0x0"}
	w := testWallet(t, node, true)
	tx, err := w.Send(context.Background(), TxRequest{To: common.HexToAddress("0x00000000000000000000000000000000000000bb")})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	_, err = tx.Wait(context.Background())
	if !clierr.HasCode(err, clierr.CodeTxReverted) {
		t.Fatalf("expected reverted error, got %v", err)
	}
}

func TestRPCWaitTreatsMissingStatusAsSuccess(t *testing.T) {
	node := &fakeNode{}
	w := testWallet(t, node, true)
	tx, err := w.Send(context.Background(), TxRequest{To: common.HexToAddress("0x00000000000000000000000000000000000000bb")})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	receipt, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if receipt.Status != ReceiptStatusSuccessful || receipt.BlockNumber != 16 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestRPCSendWithoutSigner(t *testing.T) {
	node := &fakeNode{receiptStatus: "0x1"}
	w := testWallet(t, node, false)
	if _, err := w.From(context.Background()); !clierr.HasCode(err, clierr.CodeWalletUnavailable) {
		t.Fatalf("expected wallet unavailable, got %v", err)
	}
	_, err := w.Send(context.Background(), TxRequest{To: common.HexToAddress("0x01")})
	if !clierr.HasCode(err, clierr.CodeWalletUnavailable) {
		t.Fatalf("expected wallet unavailable, got %v", err)
	}
	if node.count("eth_sendRawTransaction") != 0 {
		t.Fatal("expected no broadcast without signer")
	}
}

func TestRPCSimulationRevertIsDecoded(t *testing.T) {
	node := &fakeNode{receiptStatus: "0x1", callErr: encodeErrorString(t, "allowance too low")}
	w := testWallet(t, node, true)
	_, err := w.Send(context.Background(), TxRequest{To: common.HexToAddress("0x00000000000000000000000000000000000000bb")})
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeActionSim {
		t.Fatalf("expected simulation error, got %v", err)
	}
	if cErr.Details["revert_reason"] != "allowance too low" {
		t.Fatalf("expected decoded revert reason, got %#v", cErr.Details)
	}
	if node.count("eth_sendRawTransaction") != 0 {
		t.Fatal("expected no broadcast after failed simulation")
	}
}

func TestRPCCall(t *testing.T) {
	node := &fakeNode{}
	w := testWallet(t, node, false)
	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	out, err := w.Call(context.Background(), ethereum.CallMsg{To: &to})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if new(big.Int).SetBytes(out).Int64() != 1 {
		t.Fatalf("unexpected call result %x", out)
	}
}

func TestWaitTimesOut(t *testing.T) {
	tx := NewTransaction(common.HexToHash("0x01"), common.Address{}, TxRequest{}, func(context.Context, common.Hash) (*Receipt, error) {
		return nil, nil
	}, 5*time.Millisecond, 30*time.Millisecond)
	_, err := tx.Wait(context.Background())
	if !clierr.HasCode(err, clierr.CodeActionTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestParseGwei(t *testing.T) {
	v, err := parseGwei("1.5")
	if err != nil || v.String() != "1500000000" {
		t.Fatalf("unexpected parse %v err=%v", v, err)
	}
	if _, err := parseGwei("-1"); err == nil {
		t.Fatal("expected negative rejection")
	}
	if _, err := parseGwei("0.0000000001"); err == nil {
		t.Fatal("expected sub-wei rejection")
	}
}

func TestResolveFeeCap(t *testing.T) {
	feeCap, err := resolveFeeCap(big.NewInt(10), big.NewInt(3), "")
	if err != nil || feeCap.Int64() != 23 {
		t.Fatalf("unexpected fee cap %v err=%v", feeCap, err)
	}
	if _, err := resolveFeeCap(big.NewInt(10), big.NewInt(3_000_000_000), "1"); !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestDecodeRevertData(t *testing.T) {
	if reason := decodeRevertData(encodeErrorString(t, "sold out")); reason != "sold out" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if reason := decodeRevertData(common.FromHex("0x12345678")); !strings.Contains(reason, "12345678") {
		t.Fatalf("expected custom selector, got %q", reason)
	}
}

func TestNonceLockSerializesSameAccount(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	unlock := acquireSignerNonceLock(big.NewInt(1), addr)
	acquired := make(chan struct{})
	go func() {
		release := acquireSignerNonceLock(big.NewInt(1), addr)
		close(acquired)
		release()
	}()
	select {
	case <-acquired:
		t.Fatal("expected second acquisition to block")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("expected second acquisition after unlock")
	}
}

func encodeErrorString(t *testing.T, reason string) []byte {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("create abi string type: %v", err)
	}
	encoded, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	if err != nil {
		t.Fatalf("pack revert reason: %v", err)
	}
	return append(common.FromHex("0x08c379a0"), encoded...)
}
