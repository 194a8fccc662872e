package model

import (
	"time"

	"github.com/ggonzalez94/orderfill/internal/order"
)

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int            `json:"code"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Network   string    `json:"network,omitempty"`
	ChainID   int64     `json:"chain_id,omitempty"`
}

// CallData is an unsigned transaction as the CLI prints it.
type CallData struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Status      string `json:"status,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

type FillResult struct {
	AttemptID   string       `json:"attempt_id"`
	Intent      string       `json:"intent"`
	OrderType   string       `json:"order_type"`
	Stage       string       `json:"stage"`
	Inverted    *order.Order `json:"inverted,omitempty"`
	ApprovalTx  *Transaction `json:"approval_tx,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type FeeQuote struct {
	OrderType      string `json:"order_type"`
	OrderFeeBps    int64  `json:"order_fee_bps"`
	OrderFeePct    string `json:"order_fee_percent"`
	BaseFeeBps     int64  `json:"base_fee_bps"`
	BaseFeePercent string `json:"base_fee_percent"`
}

type VersionInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}
