// Package fill runs order fills as explicit staged executions.
package fill

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

type Stage string

const (
	StageStart   Stage = "start"
	StageApprove Stage = "approve"
	StageSendTx  Stage = "send-tx"
	StageDone    Stage = "done"
)

const (
	IntentFill      = "fill"
	IntentBuy       = "buy"
	IntentAcceptBid = "accept_bid"
)

// Approved is what the approve stage hands to the send-tx stage.
type Approved struct {
	Request  order.FillRequest
	Inverted order.Order
}

type Filler struct {
	wallet     wallet.Wallet
	chainID    int64
	dispatcher *Dispatcher
	recorder   Recorder
	logger     *slog.Logger
}

type Option func(*Filler)

func WithRecorder(r Recorder) Option {
	return func(f *Filler) { f.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Filler) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFiller binds a dispatcher to a wallet and the configured chain. w may be
// nil for payload-only use through BuyTx.
func NewFiller(w wallet.Wallet, chainID int64, d *Dispatcher, opts ...Option) *Filler {
	f := &Filler{
		wallet:     w,
		chainID:    chainID,
		dispatcher: d,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filler) Dispatcher() *Dispatcher { return f.dispatcher }

func (f *Filler) Fill(ctx context.Context, req order.FillRequest) (*Execution, error) {
	return f.start(ctx, IntentFill, req)
}

func (f *Filler) Buy(ctx context.Context, req order.FillRequest) (*Execution, error) {
	return f.start(ctx, IntentBuy, req)
}

func (f *Filler) AcceptBid(ctx context.Context, req order.FillRequest) (*Execution, error) {
	return f.start(ctx, IntentAcceptBid, req)
}

// start only validates the order tag; nothing touches the wallet until the
// first Next.
func (f *Filler) start(_ context.Context, intent string, req order.FillRequest) (*Execution, error) {
	handler, err := f.dispatcher.Handler(req)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	e := &Execution{
		f:       f,
		handler: handler,
		req:     req,
		stage:   StageStart,
		attempt: Attempt{
			AttemptID: NewAttemptID(),
			Intent:    intent,
			OrderType: string(req.Order.Type),
			ChainID:   f.chainID,
			Stage:     StageStart,
			Status:    AttemptRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	e.record()
	return e, nil
}

// TransactionData builds the fill payload for the connected wallet without
// submitting anything.
func (f *Filler) TransactionData(ctx context.Context, req order.FillRequest) (protocol.CallData, error) {
	handler, err := f.dispatcher.Handler(req)
	if err != nil {
		return protocol.CallData{}, err
	}
	if err := CheckChainID(ctx, f.wallet, f.chainID); err != nil {
		return protocol.CallData{}, err
	}
	from, err := f.wallet.From(ctx)
	if err != nil {
		return protocol.CallData{}, err
	}
	return payload(ctx, handler, req, from)
}

// BuyTx builds the fill payload for an explicit sender, for relayers that
// submit on the sender's behalf.
func (f *Filler) BuyTx(ctx context.Context, req order.FillRequest, from common.Address) (protocol.CallData, error) {
	handler, err := f.dispatcher.Handler(req)
	if err != nil {
		return protocol.CallData{}, err
	}
	return payload(ctx, handler, req, from)
}

func payload(ctx context.Context, handler protocol.Handler, req order.FillRequest, from common.Address) (protocol.CallData, error) {
	inverted, err := handler.Invert(ctx, req, from)
	if err != nil {
		return protocol.CallData{}, err
	}
	return handler.TransactionData(ctx, req.Order, inverted)
}

// Execution is one resumable fill. Each Next runs exactly one stage; a
// failed stage is terminal and is never retried.
type Execution struct {
	f       *Filler
	handler protocol.Handler
	req     order.FillRequest
	stage   Stage
	err     error

	approved   *Approved
	approvalTx *wallet.Transaction
	tx         *wallet.Transaction
	attempt    Attempt
}

func (e *Execution) ID() string { return e.attempt.AttemptID }

// Stage is the last stage that completed.
func (e *Execution) Stage() Stage { return e.stage }

func (e *Execution) Err() error { return e.err }

func (e *Execution) Attempt() Attempt { return e.attempt }

func (e *Execution) Approved() (Approved, bool) {
	if e.approved == nil {
		return Approved{}, false
	}
	return *e.approved, true
}

// ApprovalTx is the mined approval, or nil when none was needed.
func (e *Execution) ApprovalTx() *wallet.Transaction { return e.approvalTx }

// Tx is the fill transaction once send-tx completed.
func (e *Execution) Tx() *wallet.Transaction { return e.tx }

// Next advances the execution by one stage.
func (e *Execution) Next(ctx context.Context) error {
	if e.err != nil {
		return e.err
	}
	var (
		next Stage
		err  error
	)
	switch e.stage {
	case StageStart:
		next, err = StageApprove, e.approve(ctx)
	case StageApprove:
		next, err = StageSendTx, e.send(ctx)
	case StageSendTx:
		next = StageDone
	case StageDone:
		return nil
	default:
		return clierr.New(clierr.CodeInternal, "unknown execution stage "+string(e.stage))
	}
	if err != nil {
		e.fail(next, err)
		return err
	}
	e.stage = next
	e.attempt.Stage = next
	if next == StageDone {
		e.attempt.Status = AttemptCompleted
	}
	e.f.logger.Info("fill stage completed", "attempt_id", e.ID(), "intent", e.attempt.Intent, "order_type", e.attempt.OrderType, "stage", string(next))
	e.record()
	return nil
}

// Run drives the execution to done and returns the fill transaction.
func (e *Execution) Run(ctx context.Context) (*wallet.Transaction, error) {
	for e.stage != StageDone {
		if err := e.Next(ctx); err != nil {
			return nil, err
		}
	}
	return e.tx, nil
}

func (e *Execution) approve(ctx context.Context) error {
	f := e.f
	if err := CheckChainID(ctx, f.wallet, f.chainID); err != nil {
		return err
	}
	filler, err := f.wallet.From(ctx)
	if err != nil {
		return err
	}
	e.attempt.Filler = filler.Hex()
	inverted, err := e.handler.Invert(ctx, e.req, filler)
	if err != nil {
		return err
	}
	tx, err := e.handler.Approve(ctx, inverted, e.req.Infinite)
	if err != nil {
		return err
	}
	if tx != nil {
		e.attempt.ApprovalTxHash = tx.Hash.Hex()
		f.logger.Info("waiting for approval", "attempt_id", e.ID(), "tx_hash", tx.Hash.Hex())
		if _, err := tx.Wait(ctx); err != nil {
			return err
		}
	}
	e.approvalTx = tx
	e.approved = &Approved{Request: e.req, Inverted: inverted}
	return nil
}

func (e *Execution) send(ctx context.Context) error {
	f := e.f
	if err := CheckChainID(ctx, f.wallet, f.chainID); err != nil {
		return err
	}
	tx, err := e.handler.SendTransaction(ctx, e.approved.Request.Order, e.approved.Inverted)
	if err != nil {
		return err
	}
	e.tx = tx
	e.attempt.TxHash = tx.Hash.Hex()
	return nil
}

func (e *Execution) fail(stage Stage, err error) {
	e.err = err
	e.attempt.Stage = stage
	e.attempt.Status = AttemptFailed
	e.attempt.Error = err.Error()
	code := clierr.CodeInternal
	if cErr, ok := clierr.As(err); ok {
		code = cErr.Code
	}
	e.attempt.ErrorType = clierr.TypeName(code)
	e.f.logger.Warn("fill stage failed", "attempt_id", e.ID(), "stage", string(stage), "error", err.Error())
	e.record()
}

func (e *Execution) record() {
	if e.f.recorder == nil {
		return
	}
	e.attempt.Touch()
	if err := e.f.recorder.Save(e.attempt); err != nil {
		e.f.logger.Warn("record fill attempt", "attempt_id", e.ID(), "error", err.Error())
	}
}
