package app

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/fill"
	"github.com/ggonzalez94/orderfill/internal/model"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/protocol"
	"github.com/ggonzalez94/orderfill/internal/wallet"
)

type requestArgs struct {
	orderPath  string
	amount     string
	infinite   bool
	payouts    []string
	originFees []string
	legacyFee  int64
	punkID     string
}

func (a *requestArgs) bind(cmd *cobra.Command, withFillFlags bool) {
	cmd.Flags().StringVar(&a.orderPath, "order", "", "Path to the order JSON document (- for stdin)")
	_ = cmd.MarkFlagRequired("order")
	if !withFillFlags {
		return
	}
	cmd.Flags().StringVar(&a.amount, "amount", "", "Fill amount in units of the order's make asset")
	cmd.Flags().BoolVar(&a.infinite, "infinite", false, "Approve an unlimited ERC20 allowance")
	cmd.Flags().StringArrayVar(&a.payouts, "payout", nil, "Payout part as account:bps (repeatable)")
	cmd.Flags().StringArrayVar(&a.originFees, "origin-fee", nil, "Origin fee part as account:bps (repeatable)")
	cmd.Flags().Int64Var(&a.legacyFee, "legacy-fee", 0, "Buyer fee in bps for RARIBLE_V1 orders")
	cmd.Flags().StringVar(&a.punkID, "punk-id", "", "Expected punk index for CRYPTO_PUNK orders")
	_ = cmd.MarkFlagRequired("amount")
}

func (a requestArgs) readOrder(cmd *cobra.Command) (order.Order, error) {
	var (
		buf []byte
		err error
	)
	if a.orderPath == "-" {
		buf, err = io.ReadAll(cmd.InOrStdin())
	} else {
		buf, err = os.ReadFile(a.orderPath)
	}
	if err != nil {
		return order.Order{}, clierr.Wrap(clierr.CodeUsage, "read order file", err)
	}
	return order.Parse(buf)
}

func (a requestArgs) request(cmd *cobra.Command) (order.FillRequest, error) {
	o, err := a.readOrder(cmd)
	if err != nil {
		return order.FillRequest{}, err
	}
	amount, err := parseBigInt("--amount", a.amount)
	if err != nil {
		return order.FillRequest{}, err
	}
	payouts, err := parseParts("--payout", a.payouts)
	if err != nil {
		return order.FillRequest{}, err
	}
	originFees, err := parseParts("--origin-fee", a.originFees)
	if err != nil {
		return order.FillRequest{}, err
	}
	req := order.FillRequest{
		Order:      o,
		Amount:     amount,
		Infinite:   a.infinite,
		Payouts:    payouts,
		OriginFees: originFees,
		OriginFee:  a.legacyFee,
	}
	if strings.TrimSpace(a.punkID) != "" {
		id, err := parseBigInt("--punk-id", a.punkID)
		if err != nil {
			return order.FillRequest{}, err
		}
		req.PunkID = id
	}
	return req, nil
}

func parseBigInt(flag, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s must be a base-10 integer, got %q", flag, raw))
	}
	return v, nil
}

// parseParts reads account:bps pairs.
func parseParts(flag string, items []string) ([]order.Part, error) {
	parts := make([]order.Part, 0, len(items))
	for _, item := range items {
		account, bps, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok || !common.IsHexAddress(account) {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s expects account:bps, got %q", flag, item))
		}
		value, err := strconv.ParseInt(strings.TrimSpace(bps), 10, 64)
		if err != nil || value < 0 || value > 10000 {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s basis points must be within 0..10000, got %q", flag, bps))
		}
		parts = append(parts, order.Part{Account: common.HexToAddress(account), Value: value})
	}
	return parts, nil
}

func parseAddress(flag, raw string) (common.Address, error) {
	if !common.IsHexAddress(strings.TrimSpace(raw)) {
		return common.Address{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s must be a hex address, got %q", flag, raw))
	}
	return common.HexToAddress(strings.TrimSpace(raw)), nil
}

func callDataModel(from *common.Address, call protocol.CallData) model.CallData {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	out := model.CallData{
		To:    call.To.Hex(),
		Data:  hexutil.Encode(call.Data),
		Value: value.String(),
	}
	if from != nil {
		out.From = from.Hex()
	}
	return out
}

func transactionModel(tx *wallet.Transaction, receipt *wallet.Receipt) *model.Transaction {
	if tx == nil {
		return nil
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	out := &model.Transaction{
		Hash:  tx.Hash.Hex(),
		From:  tx.From.Hex(),
		To:    tx.To.Hex(),
		Value: value.String(),
	}
	if receipt != nil {
		out.Status = "success"
		if receipt.Status != wallet.ReceiptStatusSuccessful {
			out.Status = "reverted"
		}
		out.BlockNumber = receipt.BlockNumber
	}
	return out
}

func fillResultModel(e *fill.Execution, receipt *wallet.Receipt) model.FillResult {
	attempt := e.Attempt()
	result := model.FillResult{
		AttemptID:   attempt.AttemptID,
		Intent:      attempt.Intent,
		OrderType:   attempt.OrderType,
		Stage:       string(e.Stage()),
		ApprovalTx:  transactionModel(e.ApprovalTx(), nil),
		Transaction: transactionModel(e.Tx(), receipt),
	}
	if approved, ok := e.Approved(); ok {
		inverted := approved.Inverted
		result.Inverted = &inverted
	}
	return result
}
