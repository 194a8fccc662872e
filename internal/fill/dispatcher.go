package fill

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

// Dispatcher routes every operation to the handler registered for the
// order's protocol tag. The table is fixed at construction.
type Dispatcher struct {
	handlers map[order.Type]protocol.Handler
}

func NewDispatcher(handlers map[order.Type]protocol.Handler) *Dispatcher {
	table := make(map[order.Type]protocol.Handler, len(handlers))
	for t, h := range handlers {
		if h != nil {
			table[t] = h
		}
	}
	return &Dispatcher{handlers: table}
}

// Handler returns the handler for req's order, or UnsupportedOrderType.
func (d *Dispatcher) Handler(req order.FillRequest) (protocol.Handler, error) {
	h, ok := d.handlers[req.Order.Type]
	if !ok {
		return nil, clierr.New(clierr.CodeUnsupportedOrderType, fmt.Sprintf("unsupported order type %q", req.Order.Type)).
			WithDetail("order_type", string(req.Order.Type)).
			WithDetail("request", req.Snapshot())
	}
	return h, nil
}

func (d *Dispatcher) handlerFor(o order.Order) (protocol.Handler, error) {
	return d.Handler(order.FillRequest{Order: o})
}

func (d *Dispatcher) Invert(ctx context.Context, req order.FillRequest, filler common.Address) (order.Order, error) {
	h, err := d.Handler(req)
	if err != nil {
		return order.Order{}, err
	}
	return h.Invert(ctx, req, filler)
}

func (d *Dispatcher) Approve(ctx context.Context, inverted order.Order, infinite bool) (*wallet.Transaction, error) {
	h, err := d.handlerFor(inverted)
	if err != nil {
		return nil, err
	}
	return h.Approve(ctx, inverted, infinite)
}

func (d *Dispatcher) SendTransaction(ctx context.Context, initial, inverted order.Order) (*wallet.Transaction, error) {
	h, err := d.handlerFor(initial)
	if err != nil {
		return nil, err
	}
	return h.SendTransaction(ctx, initial, inverted)
}

func (d *Dispatcher) TransactionRequestData(ctx context.Context, initial, inverted order.Order) (protocol.CallData, error) {
	h, err := d.handlerFor(initial)
	if err != nil {
		return protocol.CallData{}, err
	}
	return h.TransactionData(ctx, initial, inverted)
}

func (d *Dispatcher) OrderFee(ctx context.Context, o order.Order) (int64, error) {
	h, err := d.handlerFor(o)
	if err != nil {
		return 0, err
	}
	return h.OrderFee(ctx, o)
}

func (d *Dispatcher) BaseOrderFillFee(ctx context.Context, o order.Order) (int64, error) {
	h, err := d.handlerFor(o)
	if err != nil {
		return 0, err
	}
	return h.BaseOrderFee(ctx)
}
