package order

import (
	"encoding/json"
	"fmt"
	"math/big"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

// FillRequest is a user's intent to fill an order. Which auxiliary fields are
// read depends on the order's protocol.
type FillRequest struct {
	Order    Order    `json:"order"`
	Amount   *big.Int `json:"amount"`
	Infinite bool     `json:"infinite,omitempty"`

	Payouts    []Part `json:"payouts,omitempty"`
	OriginFees []Part `json:"originFees,omitempty"`

	// OriginFee is the legacy exchange buyer fee in basis points.
	OriginFee int64 `json:"originFee,omitempty"`

	PunkID *big.Int `json:"punkId,omitempty"`
}

// ValidateAmount rejects missing and non-positive fill amounts.
func (r FillRequest) ValidateAmount() error {
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return clierr.New(clierr.CodeUsage, "fill amount must be greater than zero")
	}
	return nil
}

// MaxBps is 100% in basis points.
const MaxBps = 10000

// ValidateParts rejects payouts and origin fees outside 0..MaxBps. Payouts,
// when present, must split the whole amount.
func (r FillRequest) ValidateParts() error {
	for _, set := range []struct {
		name  string
		parts []Part
	}{{"payout", r.Payouts}, {"origin fee", r.OriginFees}} {
		for _, p := range set.parts {
			if p.Value < 0 || p.Value > MaxBps {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("%s %d bps for %s is out of range", set.name, p.Value, p.Account.Hex()))
			}
		}
	}
	if sum := SumValues(r.Payouts); len(r.Payouts) > 0 && sum != MaxBps {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("payouts sum to %d bps, want %d", sum, MaxBps))
	}
	if sum := SumValues(r.OriginFees); sum > MaxBps {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("origin fees sum to %d bps, over %d", sum, MaxBps))
	}
	return nil
}

// Snapshot renders the request as JSON for error details.
func (r FillRequest) Snapshot() string {
	buf, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(buf)
}
