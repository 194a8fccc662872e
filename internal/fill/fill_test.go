package fill

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	v2 "github.com/ggonzalez94/orderfill/internal/protocol/v2"
	"github.com/ggonzalez94/orderfill/internal/registry"
	"github.com/ggonzalez94/orderfill/internal/wallet"
	"github.com/ggonzalez94/orderfill/internal/wallet/wallettest"
)

var (
	maker      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	filler     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	weth       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	exchangeV2 = common.HexToAddress("0x0000000000000000000000000000000000000e02")
	nftProxy   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
)

// recordingHandler counts calls and returns canned results.
type recordingHandler struct {
	invertCalls int
	approveTx   bool
	env         protocol.Env
}

func (h *recordingHandler) Invert(_ context.Context, req order.FillRequest, f common.Address) (order.Order, error) {
	h.invertCalls++
	inv := req.Order.Clone()
	inv.Maker = f
	inv.Make, inv.Take = req.Order.Take.Clone(), req.Order.Make.Clone()
	return inv, nil
}

func (h *recordingHandler) Approve(ctx context.Context, inverted order.Order, _ bool) (*wallet.Transaction, error) {
	if !h.approveTx {
		return nil, nil
	}
	return protocol.Send(ctx, h.env, protocol.CallData{To: collection, Data: []byte{0x01}, Value: new(big.Int)})
}

func (h *recordingHandler) TransactionData(_ context.Context, initial, inverted order.Order) (protocol.CallData, error) {
	return protocol.CallData{To: exchangeV2, Data: append([]byte{0xaa}, inverted.Maker.Bytes()...), Value: new(big.Int)}, nil
}

func (h *recordingHandler) OrderFee(context.Context, order.Order) (int64, error) { return 0, nil }

func (h *recordingHandler) BaseOrderFee(context.Context) (int64, error) { return 0, nil }

func (h *recordingHandler) SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error) {
	call, _ := h.TransactionData(ctx, initial, inverted)
	return protocol.Send(ctx, h.env, call)
}

type memoryRecorder struct {
	saved []Attempt
}

func (m *memoryRecorder) Save(a Attempt) error {
	m.saved = append(m.saved, a)
	return nil
}

func sampleOrder(t order.Type) order.Order {
	return order.Order{
		Type:  t,
		Maker: maker,
		Make:  order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC721, Contract: collection, TokenID: big.NewInt(1)}, Value: big.NewInt(1)},
		Take:  order.Asset{AssetType: order.AssetType{AssetClass: order.ClassETH}, Value: big.NewInt(100)},
	}
}

func TestDispatcherRoutesByTag(t *testing.T) {
	v1 := &recordingHandler{}
	v2h := &recordingHandler{}
	d := NewDispatcher(map[order.Type]protocol.Handler{order.TypeRaribleV1: v1, order.TypeRaribleV2: v2h})
	if _, err := d.Invert(context.Background(), order.FillRequest{Order: sampleOrder(order.TypeRaribleV2), Amount: big.NewInt(1)}, filler); err != nil {
		t.Fatalf("Invert failed: %v", err)
	}
	if v2h.invertCalls != 1 || v1.invertCalls != 0 {
		t.Fatalf("unexpected routing v1=%d v2=%d", v1.invertCalls, v2h.invertCalls)
	}
}

func TestUnknownTagNeverReachesWallet(t *testing.T) {
	w := wallettest.New(filler, 1)
	f := NewFiller(w, 1, NewDispatcher(map[order.Type]protocol.Handler{}))
	req := order.FillRequest{Order: sampleOrder("FOO"), Amount: big.NewInt(1)}
	_, err := f.Fill(context.Background(), req)
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeUnsupportedOrderType {
		t.Fatalf("expected unsupported order type, got %v", err)
	}
	if cErr.Details["order_type"] != "FOO" || cErr.Details["request"] == "" {
		t.Fatalf("missing details: %#v", cErr.Details)
	}
	if _, err := f.TransactionData(context.Background(), req); !clierr.HasCode(err, clierr.CodeUnsupportedOrderType) {
		t.Fatalf("expected unsupported order type from TransactionData, got %v", err)
	}
	if w.Touched() || w.ChainIDCalls() != 0 {
		t.Fatal("wallet must not be touched for unknown order types")
	}
}

func TestChainMismatchFailsBeforeMutation(t *testing.T) {
	w := wallettest.New(filler, 5)
	h := &recordingHandler{approveTx: true, env: protocol.Env{Wallet: w}}
	f := NewFiller(w, 1, NewDispatcher(map[order.Type]protocol.Handler{order.TypeRaribleV2: h}))
	exec, err := f.Fill(context.Background(), order.FillRequest{Order: sampleOrder(order.TypeRaribleV2), Amount: big.NewInt(1)})
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	err = exec.Next(context.Background())
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeChainMismatch {
		t.Fatalf("expected chain mismatch, got %v", err)
	}
	if cErr.Details["configured_chain_id"] != int64(1) || cErr.Details["wallet_chain_id"] != int64(5) {
		t.Fatalf("unexpected details %#v", cErr.Details)
	}
	if w.SentCount() != 0 || h.invertCalls != 0 {
		t.Fatal("no stage work may run after a chain mismatch")
	}
	if again := exec.Next(context.Background()); again != err {
		t.Fatal("failed executions must not retry")
	}
}

func TestCheckChainIDWithoutWallet(t *testing.T) {
	if err := CheckChainID(context.Background(), nil, 1); !clierr.HasCode(err, clierr.CodeWalletUnavailable) {
		t.Fatalf("expected wallet unavailable, got %v", err)
	}
}

func TestExecutionStagesAndRecording(t *testing.T) {
	w := wallettest.New(filler, 1)
	h := &recordingHandler{approveTx: true, env: protocol.Env{Wallet: w}}
	rec := &memoryRecorder{}
	f := NewFiller(w, 1, NewDispatcher(map[order.Type]protocol.Handler{order.TypeRaribleV2: h}), WithRecorder(rec))
	exec, err := f.Buy(context.Background(), order.FillRequest{Order: sampleOrder(order.TypeRaribleV2), Amount: big.NewInt(1)})
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if exec.Stage() != StageStart {
		t.Fatalf("unexpected initial stage %s", exec.Stage())
	}
	if err := exec.Next(context.Background()); err != nil {
		t.Fatalf("approve stage failed: %v", err)
	}
	approved, ok := exec.Approved()
	if !ok || approved.Inverted.Maker != filler {
		t.Fatal("approve stage must carry the inverted order")
	}
	if exec.ApprovalTx() == nil || w.SentCount() != 1 {
		t.Fatal("expected the approval transaction to be sent")
	}
	tx, err := exec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tx == nil || exec.Stage() != StageDone || w.SentCount() != 2 {
		t.Fatalf("expected fill tx at done, stage=%s sent=%d", exec.Stage(), w.SentCount())
	}
	if w.ChainIDCalls() != 2 {
		t.Fatalf("expected a chain check before each mutating stage, got %d", w.ChainIDCalls())
	}
	last := rec.saved[len(rec.saved)-1]
	if last.Status != AttemptCompleted || last.Intent != IntentBuy || last.TxHash != tx.Hash.Hex() || last.ApprovalTxHash == "" {
		t.Fatalf("unexpected final attempt %+v", last)
	}
}

func TestTransactionDataIsIdempotent(t *testing.T) {
	w := wallettest.New(filler, 1)
	f := NewFiller(w, 1, NewDispatcher(map[order.Type]protocol.Handler{order.TypeRaribleV2: &recordingHandler{}}))
	req := order.FillRequest{Order: sampleOrder(order.TypeRaribleV2), Amount: big.NewInt(1)}
	first, err := f.TransactionData(context.Background(), req)
	if err != nil {
		t.Fatalf("TransactionData failed: %v", err)
	}
	second, err := f.TransactionData(context.Background(), req)
	if err != nil {
		t.Fatalf("TransactionData failed: %v", err)
	}
	if string(first.Data) != string(second.Data) || first.To != second.To {
		t.Fatal("TransactionData must be idempotent")
	}
	if w.SentCount() != 0 {
		t.Fatal("TransactionData must not submit")
	}
}

func TestBuyTxDoesNotNeedWallet(t *testing.T) {
	f := NewFiller(nil, 1, NewDispatcher(map[order.Type]protocol.Handler{order.TypeRaribleV2: &recordingHandler{}}))
	call, err := f.BuyTx(context.Background(), order.FillRequest{Order: sampleOrder(order.TypeRaribleV2), Amount: big.NewInt(1)}, filler)
	if err != nil {
		t.Fatalf("BuyTx failed: %v", err)
	}
	if common.BytesToAddress(call.Data[1:]) != filler {
		t.Fatal("BuyTx must invert for the explicit sender")
	}
	if _, err := f.TransactionData(context.Background(), order.FillRequest{Order: sampleOrder(order.TypeRaribleV2), Amount: big.NewInt(1)}); !clierr.HasCode(err, clierr.CodeWalletUnavailable) {
		t.Fatalf("expected wallet unavailable, got %v", err)
	}
}

func TestAcceptERC20BidEndToEnd(t *testing.T) {
	nftABI := protocol.MustABI(registry.NFTApprovalABI)
	w := wallettest.New(filler, 1)
	notApproved, _ := nftABI.Methods["isApprovedForAll"].Outputs.Pack(false)
	w.Returns(collection, nftABI.Methods["isApprovedForAll"].ID, notApproved)
	env := protocol.Env{
		Wallet:    w,
		ChainID:   1,
		Addresses: registry.Addresses{registry.RoleExchangeV2: exchangeV2, registry.RoleTransferProxyNFT: nftProxy},
	}
	f := NewFiller(w, 1, NewDispatcher(map[order.Type]protocol.Handler{order.TypeRaribleV2: v2.New(env)}))
	bid := order.Order{
		Type:      order.TypeRaribleV2,
		Maker:     maker,
		Make:      order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC20, Contract: weth}, Value: big.NewInt(100)},
		Take:      order.Asset{AssetType: order.AssetType{AssetClass: order.ClassERC721, Contract: collection, TokenID: big.NewInt(1)}, Value: big.NewInt(1)},
		Salt:      big.NewInt(1),
		Data:      &order.RaribleV2Data{DataType: order.DataTypeRaribleV2V1},
		Signature: make([]byte, 65),
	}
	exec, err := f.AcceptBid(context.Background(), order.FillRequest{Order: bid, Amount: big.NewInt(100)})
	if err != nil {
		t.Fatalf("AcceptBid failed: %v", err)
	}
	if err := exec.Next(context.Background()); err != nil {
		t.Fatalf("approve stage failed: %v", err)
	}
	approved, _ := exec.Approved()
	inv := approved.Inverted
	if inv.Maker != filler || inv.Make.AssetType.AssetClass != order.ClassERC721 || inv.Make.Value.Int64() != 1 || inv.Take.Value.Int64() != 100 {
		t.Fatalf("unexpected inverted order %+v", inv)
	}
	args, err := nftABI.Methods["setApprovalForAll"].Inputs.Unpack(w.Sent()[0].Data[4:])
	if err != nil {
		t.Fatalf("unpack approval: %v", err)
	}
	if args[0].(common.Address) != nftProxy {
		t.Fatalf("approval must target the standard transfer proxy, got %v", args[0])
	}
	tx, err := exec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tx.To != exchangeV2 {
		t.Fatalf("fill must go to the exchange, got %s", tx.To.Hex())
	}
}

func TestStoreSaveGetList(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "attempts.db"), filepath.Join(dir, "attempts.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	attempt := Attempt{AttemptID: NewAttemptID(), Intent: IntentFill, OrderType: string(order.TypeRaribleV2), ChainID: 1, Stage: StageStart, Status: AttemptRunning}
	attempt.Touch()
	attempt.CreatedAt = attempt.UpdatedAt
	if err := store.Save(attempt); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	attempt.Status = AttemptCompleted
	attempt.Stage = StageDone
	if err := store.Save(attempt); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}
	got, err := store.Get(attempt.AttemptID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != StageDone {
		t.Fatalf("unexpected stage %s", got.Stage)
	}
	completed, err := store.List(string(AttemptCompleted), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected one completed attempt, got %d", len(completed))
	}
	if _, err := store.Get("missing"); !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for missing attempt, got %v", err)
	}
}

func TestStoreConcurrentOpenAndSave(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "attempts.db")
	lockPath := filepath.Join(dir, "attempts.lock")

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			store, err := OpenStore(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()
			attempt := Attempt{AttemptID: NewAttemptID(), Intent: IntentFill, OrderType: string(order.TypeRaribleV2), ChainID: 1, Stage: StageStart, Status: AttemptRunning}
			attempt.Touch()
			attempt.CreatedAt = attempt.UpdatedAt
			if err := store.Save(attempt); err != nil {
				errCh <- fmt.Errorf("worker %d save: %w", workerID, err)
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	store, err := OpenStore(dbPath, lockPath)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()
	running, err := store.List(string(AttemptRunning), 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(running) != workers {
		t.Fatalf("expected %d attempts, got %d", workers, len(running))
	}
}
